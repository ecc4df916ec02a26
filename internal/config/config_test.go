package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelworks/repowarden/internal/domain/model"
)

// allConfigKeys lists every REPOWARDEN_ env var that Load() reads.
var allConfigKeys = []string{
	"REPOWARDEN_GITHUB_TOKEN",
	"REPOWARDEN_GITHUB_USERNAME",
	"REPOWARDEN_LISTEN_ADDR",
	"REPOWARDEN_BASE_URL",
	"REPOWARDEN_SMTP_PASSWORD",
}

// isolateConfigEnv saves and unsets all REPOWARDEN_ env vars so tests don't
// inherit values from the host environment (e.g. a running dev server).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

// writeConfig writes a YAML config to a temp file and returns its path.
func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

const minimalConfig = `
base_url: https://bot.example.org
monitors:
  - repo: org/widget
`

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOWARDEN_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("REPOWARDEN_GITHUB_USERNAME", "testbot")

	path := writeConfig(t, `
listen_addr: 0.0.0.0:9090
webhook_path: /hooks/github
base_url: https://bot.example.org
status_marker: "Custom Status: "
ci_context_prefix: ci/jenkins
sweep_interval: 12h
staleness:
  ready_reminder_after: 96h
  warn_after: 240h
  close_after: 360h
notifications:
  wiki_digest: wiki@example.org
  pr_review: reviews@example.org
  sender: bot@example.org
  smtp_addr: localhost:25
validators:
  service_accounts:
    - release-bot
    - ci-bot
monitors:
  - repo: org/widget
    tier: primary
    default_branch: main
    hooks:
      push: deploy.sh
      build:
        - notify.sh
        - archive.sh
  - repo: org/sandbox
    monitor: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ghp_test123", cfg.GitHubToken)
	assert.Equal(t, "testbot", cfg.GitHubUsername)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/hooks/github", cfg.WebhookPath)
	assert.Equal(t, "Custom Status: ", cfg.StatusMarker)
	assert.Equal(t, "ci/jenkins", cfg.CIContextPrefix)
	assert.Equal(t, 12*time.Hour, cfg.SweepInterval.Std())
	assert.Equal(t, 96*time.Hour, cfg.Staleness.ReadyReminderAfter.Std())
	assert.Equal(t, "wiki@example.org", cfg.Notifications.WikiDigest)
	assert.Equal(t, []string{"release-bot", "ci-bot"}, []string(cfg.Validators.ServiceAccounts))

	enabled := cfg.EnabledMonitors()
	require.Len(t, enabled, 1)
	assert.Equal(t, "org/widget", enabled[0].Repo)
	assert.Equal(t, "main", enabled[0].DefaultBranch)
	assert.Equal(t, model.TierPrimary, enabled[0].RepoTier())
	assert.Equal(t, []string{"deploy.sh"}, enabled[0].Hooks.ForType(model.HookPush))
	assert.Equal(t, []string{"notify.sh", "archive.sh"}, enabled[0].Hooks.ForType(model.HookBuild))
	assert.Empty(t, enabled[0].Hooks.ForType(model.HookTag))
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOWARDEN_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("REPOWARDEN_GITHUB_USERNAME", "testbot")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultWebhookPath, cfg.WebhookPath)
	assert.Equal(t, DefaultStatusMarker, cfg.StatusMarker)
	assert.Equal(t, DefaultCIContextPrefix, cfg.CIContextPrefix)
	assert.Equal(t, DefaultSweepInterval, cfg.SweepInterval.Std())
	assert.Equal(t, DefaultReadyReminderAfter, cfg.Staleness.ReadyReminderAfter.Std())
	assert.Equal(t, DefaultWarnAfter, cfg.Staleness.WarnAfter.Std())
	assert.Equal(t, DefaultCloseAfter, cfg.Staleness.CloseAfter.Std())
	assert.Equal(t, DefaultReadyLabel, cfg.Staleness.ReadyLabel)

	require.Len(t, cfg.Monitors, 1)
	assert.Equal(t, DefaultDefaultBranch, cfg.Monitors[0].DefaultBranch)
	assert.Equal(t, model.TierUnknown, cfg.Monitors[0].RepoTier())
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOWARDEN_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("REPOWARDEN_GITHUB_USERNAME", "testbot")
	t.Setenv("REPOWARDEN_LISTEN_ADDR", "0.0.0.0:7777")
	t.Setenv("REPOWARDEN_BASE_URL", "https://override.example.org")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7777", cfg.ListenAddr)
	assert.Equal(t, "https://override.example.org", cfg.BaseURL)
}

func TestLoad_MissingCredentials(t *testing.T) {
	isolateConfigEnv(t)

	_, err := Load(writeConfig(t, minimalConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REPOWARDEN_GITHUB_TOKEN")
}

func TestLoad_NoEnabledMonitors(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOWARDEN_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("REPOWARDEN_GITHUB_USERNAME", "testbot")

	path := writeConfig(t, `
monitors:
  - repo: org/widget
    monitor: false
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no enabled monitors")
}

func TestLoad_BadRepoSlug(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOWARDEN_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("REPOWARDEN_GITHUB_USERNAME", "testbot")

	path := writeConfig(t, `
monitors:
  - repo: just-a-name
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "org/name form")
}

func TestLoad_WarnAfterMustPrecedeCloseAfter(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOWARDEN_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("REPOWARDEN_GITHUB_USERNAME", "testbot")

	path := writeConfig(t, `
staleness:
  warn_after: 720h
  close_after: 600h
monitors:
  - repo: org/widget
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warn_after")
}

func TestLoad_MissingFile(t *testing.T) {
	isolateConfigEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolateConfigEnv(t)

	_, err := Load(writeConfig(t, "monitors: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid YAML")
}

func TestWebhookURL(t *testing.T) {
	cfg := &Config{BaseURL: "https://bot.example.org/", WebhookPath: "/github-hook"}
	assert.Equal(t, "https://bot.example.org/github-hook", cfg.WebhookURL())

	cfg = &Config{BaseURL: "https://bot.example.org", WebhookPath: "/github-hook"}
	assert.Equal(t, "https://bot.example.org/github-hook", cfg.WebhookURL())
}

func TestStringList_ScalarAndSequence(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOWARDEN_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("REPOWARDEN_GITHUB_USERNAME", "testbot")

	path := writeConfig(t, `
validators:
  service_accounts: solo-bot
monitors:
  - repo: org/widget
    hooks:
      push:
        - one.sh
        - two.sh
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"solo-bot"}, []string(cfg.Validators.ServiceAccounts))
	assert.Equal(t, []string{"one.sh", "two.sh"}, cfg.Monitors[0].Hooks.ForType(model.HookPush))
}
