// Package config loads application configuration from a YAML file with
// environment variable overrides for credentials and the listen address.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kestrelworks/repowarden/internal/domain/model"
)

// Defaults applied when the YAML file leaves a field unset.
const (
	DefaultListenAddr      = "127.0.0.1:8081"
	DefaultWebhookPath     = "/github-hook"
	DefaultStatusMarker    = "RepoWarden Status: "
	DefaultCIContextPrefix = "continuous-integration/travis-ci"
	DefaultDefaultBranch   = "master"
	DefaultSweepInterval   = 24 * time.Hour

	DefaultReadyReminderAfter = 7 * 24 * time.Hour
	DefaultWarnAfter          = 25 * 24 * time.Hour
	DefaultCloseAfter         = 30 * 24 * time.Hour

	DefaultReadyLabel      = "status:ready"
	DefaultInProgressLabel = "status:in progress"
	DefaultHelpWantedLabel = "status:help wanted"
)

// Duration accepts Go duration strings ("24h", "30m") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// StringList accepts either a YAML scalar or a YAML sequence, so a monitor
// may declare a single hook command without wrapping it in a list.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*s = StringList{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := node.Decode(&many); err != nil {
			return err
		}
		*s = StringList(many)
		return nil
	default:
		return fmt.Errorf("hook entry must be a string or a list of strings")
	}
}

// Hooks maps hook event classes to the shell commands configured for them.
type Hooks struct {
	Push  StringList `yaml:"push"`
	Tag   StringList `yaml:"tag"`
	Build StringList `yaml:"build"`
}

// ForType returns the commands configured for the given hook type.
func (h Hooks) ForType(t model.HookType) []string {
	switch t {
	case model.HookPush:
		return h.Push
	case model.HookTag:
		return h.Tag
	case model.HookBuild:
		return h.Build
	}
	return nil
}

// Monitor is one monitored repository entry.
type Monitor struct {
	Repo          string `yaml:"repo"` // "org/name"
	Tier          string `yaml:"tier"` // "primary", "auxiliary"; empty means unknown.
	Monitor       *bool  `yaml:"monitor"`
	DefaultBranch string `yaml:"default_branch"`
	Hooks         Hooks  `yaml:"hooks"`
}

// Enabled reports whether the entry should be monitored. Entries default to
// enabled; an explicit "monitor: false" opts out.
func (m Monitor) Enabled() bool {
	return m.Monitor == nil || *m.Monitor
}

// RepoTier maps the configured tier string to a model.RepoTier.
func (m Monitor) RepoTier() model.RepoTier {
	switch m.Tier {
	case "primary":
		return model.TierPrimary
	case "auxiliary":
		return model.TierAuxiliary
	default:
		return model.TierUnknown
	}
}

// Notifications holds the global notification addresses and mail transport
// settings.
type Notifications struct {
	WikiDigest string `yaml:"wiki_digest"` // Recipient for wiki-update digests; empty disables them.
	PRReview   string `yaml:"pr_review"`   // Recipient for the staleness reminder digest.
	Sender     string `yaml:"sender"`
	SMTPAddr   string `yaml:"smtp_addr"`
	SMTPUser   string `yaml:"smtp_user"` // Optional; enables PLAIN auth against the relay.

	// Env-only, like the GitHub credentials.
	SMTPPassword string `yaml:"-"`
}

// Staleness holds the sweep thresholds and label names. All are tunables;
// the defaults match the historical 7/25/30-day policy.
type Staleness struct {
	ReadyReminderAfter Duration `yaml:"ready_reminder_after"`
	WarnAfter          Duration `yaml:"warn_after"`
	CloseAfter         Duration `yaml:"close_after"`
	ReadyLabel         string   `yaml:"ready_label"`
	InProgressLabel    string   `yaml:"in_progress_label"`
	HelpWantedLabel    string   `yaml:"help_wanted_label"`
}

// Validators holds the settings consumed by the built-in validators.
type Validators struct {
	// ContributorsCSVURL points at a CSV roster with a "Github" column
	// listing contributor logins.
	ContributorsCSVURL string `yaml:"contributors_csv_url"`
	RosterURL          string `yaml:"roster_url"`
	SignURL            string `yaml:"sign_url"`
	ChangelogGuideURL  string `yaml:"changelog_guide_url"`
	DevProcessURL      string `yaml:"dev_process_url"`
	// ServiceAccounts are logins whose commits pass validation
	// automatically (CI bots, this service's own account).
	ServiceAccounts StringList `yaml:"service_accounts"`
}

// Config is the complete application configuration.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	WebhookPath string `yaml:"webhook_path"`
	// BaseURL is the externally reachable URL of this service, used when
	// registering webhooks with GitHub.
	BaseURL string `yaml:"base_url"`

	GitHubToken    string `yaml:"-"`
	GitHubUsername string `yaml:"-"`

	// StatusMarker prefixes every status description this service posts and
	// is the signal used to recognize self-authored statuses later.
	StatusMarker string `yaml:"status_marker"`
	// CIContextPrefix identifies build-success status notifications from the
	// CI system.
	CIContextPrefix string `yaml:"ci_context_prefix"`

	SkipWebhookRegistration bool `yaml:"skip_webhook_registration"`

	SweepInterval Duration      `yaml:"sweep_interval"`
	Staleness     Staleness     `yaml:"staleness"`
	Notifications Notifications `yaml:"notifications"`
	Validators    Validators    `yaml:"validators"`
	Monitors      []Monitor     `yaml:"monitors"`
}

// Load reads the YAML file at path and applies environment overrides.
// REPOWARDEN_GITHUB_TOKEN and REPOWARDEN_GITHUB_USERNAME are required (the
// service cannot make API calls without them); REPOWARDEN_LISTEN_ADDR and
// REPOWARDEN_BASE_URL override their file counterparts.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config file %s is not valid YAML: %w", path, err)
	}

	cfg.GitHubToken = os.Getenv("REPOWARDEN_GITHUB_TOKEN")
	cfg.GitHubUsername = os.Getenv("REPOWARDEN_GITHUB_USERNAME")
	if v := os.Getenv("REPOWARDEN_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("REPOWARDEN_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	cfg.Notifications.SMTPPassword = os.Getenv("REPOWARDEN_SMTP_PASSWORD")

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = DefaultWebhookPath
	}
	if cfg.StatusMarker == "" {
		cfg.StatusMarker = DefaultStatusMarker
	}
	if cfg.CIContextPrefix == "" {
		cfg.CIContextPrefix = DefaultCIContextPrefix
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = Duration(DefaultSweepInterval)
	}

	st := &cfg.Staleness
	if st.ReadyReminderAfter == 0 {
		st.ReadyReminderAfter = Duration(DefaultReadyReminderAfter)
	}
	if st.WarnAfter == 0 {
		st.WarnAfter = Duration(DefaultWarnAfter)
	}
	if st.CloseAfter == 0 {
		st.CloseAfter = Duration(DefaultCloseAfter)
	}
	if st.ReadyLabel == "" {
		st.ReadyLabel = DefaultReadyLabel
	}
	if st.InProgressLabel == "" {
		st.InProgressLabel = DefaultInProgressLabel
	}
	if st.HelpWantedLabel == "" {
		st.HelpWantedLabel = DefaultHelpWantedLabel
	}

	for i := range cfg.Monitors {
		if cfg.Monitors[i].DefaultBranch == "" {
			cfg.Monitors[i].DefaultBranch = DefaultDefaultBranch
		}
	}
}

func validate(cfg *Config) error {
	if cfg.GitHubToken == "" || cfg.GitHubUsername == "" {
		return fmt.Errorf("REPOWARDEN_GITHUB_TOKEN and REPOWARDEN_GITHUB_USERNAME are required")
	}
	if len(cfg.EnabledMonitors()) == 0 {
		return fmt.Errorf("config declares no enabled monitors")
	}
	for _, m := range cfg.Monitors {
		parts := strings.Split(m.Repo, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("monitor repo %q is not in org/name form", m.Repo)
		}
	}
	if cfg.Staleness.WarnAfter >= cfg.Staleness.CloseAfter {
		return fmt.Errorf("staleness warn_after (%s) must be shorter than close_after (%s)",
			cfg.Staleness.WarnAfter.Std(), cfg.Staleness.CloseAfter.Std())
	}
	return nil
}

// EnabledMonitors returns the monitor entries not opted out with
// "monitor: false".
func (c *Config) EnabledMonitors() []Monitor {
	var enabled []Monitor
	for _, m := range c.Monitors {
		if m.Enabled() {
			enabled = append(enabled, m)
		}
	}
	return enabled
}

// WebhookURL is the full delivery URL registered with GitHub.
func (c *Config) WebhookURL() string {
	return strings.TrimSuffix(c.BaseURL, "/") + c.WebhookPath
}
