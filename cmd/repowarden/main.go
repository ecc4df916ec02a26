package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
	"golang.org/x/sync/errgroup"

	githubadapter "github.com/kestrelworks/repowarden/internal/adapter/driven/github"
	mailadapter "github.com/kestrelworks/repowarden/internal/adapter/driven/mail"
	httphandler "github.com/kestrelworks/repowarden/internal/adapter/driving/http"
	"github.com/kestrelworks/repowarden/internal/application"
	"github.com/kestrelworks/repowarden/internal/config"
	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
	"github.com/kestrelworks/repowarden/internal/validator"
)

// webhookEvents are the event kinds registered with GitHub when this service
// creates a webhook.
var webhookEvents = []string{"push", "status", "pull_request", "issue_comment", "gollum"}

func main() {
	// A .env file is optional; environment variables win either way.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "repowarden",
		Short:         "Repository governance bot: validates commits, runs hooks, sweeps stale PRs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(
		newServeCmd(&configPath),
		newSweepCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server and the staleness sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func newSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one staleness sweep pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(*configPath)
		},
	}
}

// app bundles the wired services shared by serve and sweep.
type app struct {
	cfg        *config.Config
	repos      map[string]driven.RepoClient
	registry   *validator.Registry
	mailer     driven.Mailer
	dispatcher *application.Dispatcher
	sweeper    *application.Sweeper
	hooks      *application.HookRunner
}

// buildApp loads configuration and wires every service. Fails fast on
// malformed configuration or missing credentials.
func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"webhook_path", cfg.WebhookPath,
		"monitors", len(cfg.EnabledMonitors()),
		"sweep_interval", cfg.SweepInterval.Std(),
	)

	repos := make(map[string]driven.RepoClient, len(cfg.EnabledMonitors()))
	for _, m := range cfg.EnabledMonitors() {
		hooks := map[model.HookType][]string{
			model.HookPush:  m.Hooks.Push,
			model.HookTag:   m.Hooks.Tag,
			model.HookBuild: m.Hooks.Build,
		}
		client, err := githubadapter.NewClient(cfg.GitHubToken, m.Repo, m.RepoTier(), m.DefaultBranch, hooks)
		if err != nil {
			return nil, err
		}
		repos[m.Repo] = client
		slog.Info("repository client created", "repo", m.Repo, "tier", string(m.RepoTier()))
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("validators registered", "names", registry.Names())

	var mailer driven.Mailer = mailadapter.NopMailer{}
	if n := cfg.Notifications; n.SMTPAddr != "" {
		mailer = mailadapter.NewSMTPMailer(n.SMTPAddr, n.Sender, n.SMTPUser, n.SMTPPassword)
	}

	hooks := application.NewHookRunner()
	orchestrator := application.NewOrchestrator(registry, cfg.StatusMarker)
	dispatcher := application.NewDispatcher(
		repos,
		registry,
		orchestrator,
		hooks,
		mailer,
		cfg.StatusMarker,
		cfg.CIContextPrefix,
		cfg.Notifications.WikiDigest,
	)

	sweeper := application.NewSweeper(
		repos,
		mailer,
		application.StalenessPolicy{
			ReadyReminderAfter: cfg.Staleness.ReadyReminderAfter.Std(),
			WarnAfter:          cfg.Staleness.WarnAfter.Std(),
			CloseAfter:         cfg.Staleness.CloseAfter.Std(),
			ReadyLabel:         cfg.Staleness.ReadyLabel,
			InProgressLabel:    cfg.Staleness.InProgressLabel,
			HelpWantedLabel:    cfg.Staleness.HelpWantedLabel,
		},
		cfg.Notifications.PRReview,
		cfg.SweepInterval.Std(),
	)

	return &app{
		cfg:        cfg,
		repos:      repos,
		registry:   registry,
		mailer:     mailer,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		hooks:      hooks,
	}, nil
}

// buildRegistry assembles the explicit validator registration table.
func buildRegistry(cfg *config.Config) (*validator.Registry, error) {
	v := cfg.Validators
	allowlist := []string(v.ServiceAccounts)

	var roster validator.RosterFunc
	if v.ContributorsCSVURL != "" {
		roster = validator.NewHTTPRoster(v.ContributorsCSVURL)
	} else {
		roster = func(context.Context) ([]string, error) {
			return nil, fmt.Errorf("no contributor roster configured")
		}
	}

	return validator.NewRegistry(
		validator.NewContributor(roster, allowlist, v.RosterURL, v.SignURL),
		validator.NewChangelog(allowlist, v.ChangelogGuideURL),
		validator.NewFixesIssue(allowlist, v.DevProcessURL),
	)
}

func runServe(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(configPath)
	if err != nil {
		return err
	}

	// Check the rate limit before making any real calls. No useful work can
	// proceed on an exhausted quota, so this failure is fatal.
	if err := precheckRateLimit(ctx, a.repos); err != nil {
		return err
	}

	if a.cfg.SkipWebhookRegistration {
		slog.Info("webhook registration skipped by configuration")
	} else {
		if err := confirmWebhooks(ctx, a.repos, a.cfg.WebhookURL()); err != nil {
			return err
		}
	}

	go a.sweeper.Start(ctx)

	handler := httphandler.NewHandler(a.dispatcher, slog.Default())
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           httphandler.NewRouter(handler, a.cfg.WebhookPath, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", a.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("repowarden started",
		"listen_addr", a.cfg.ListenAddr,
		"webhook_url", a.cfg.WebhookURL(),
		"validators", a.registry.Names(),
	)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	// Let in-flight hook commands finish before exiting.
	a.hooks.Wait()

	slog.Info("shutdown complete")
	return nil
}

func runSweep(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(configPath)
	if err != nil {
		return err
	}

	if err := precheckRateLimit(ctx, a.repos); err != nil {
		return err
	}

	return a.sweeper.Sweep(ctx)
}

// precheckRateLimit asks GitHub for the remaining quota before any real work
// begins. One client suffices: the quota is per token, not per repository.
func precheckRateLimit(ctx context.Context, repos map[string]driven.RepoClient) error {
	for _, repo := range repos {
		remaining, err := repo.RateLimitRemaining(ctx)
		if err != nil {
			return fmt.Errorf("rate limit precheck: %w", err)
		}
		if remaining == 0 {
			return fmt.Errorf("github API rate limit exhausted, refusing to start")
		}
		slog.Info("rate limit precheck passed", "remaining", remaining)
		return nil
	}
	return nil
}

// confirmWebhooks ensures each monitored repository delivers to this
// service's webhook URL. Registration failure on any repository is fatal:
// monitoring a repository that never delivers would be silent no-op.
func confirmWebhooks(ctx context.Context, repos map[string]driven.RepoClient, url string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, repo := range repos {
		g.Go(func() error {
			return repo.ConfirmWebhook(gctx, url, webhookEvents)
		})
	}
	return g.Wait()
}
