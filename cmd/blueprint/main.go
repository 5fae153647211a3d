package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/blueprint/internal/config"
	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/internal/metrics"
	"github.com/vango-dev/blueprint/pkg/ancestor"
	"github.com/vango-dev/blueprint/pkg/blueprint"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	logLevel string
	noColor  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blueprint",
		Short: "Resynthesize generated repositories without losing user edits",
		Long: `Blueprint generates repositories from static assets and reconciles them
with the copies already on disk.

Every path is resolved by the ownership strategy whose globs match it:
  • useProposed / neverUpdate / threeWayMerge, among others
  • Strategies are recorded in each repository's ownership file
  • The last generated state is kept as the merge ancestor
  • Changes can be bundled as patches with a pull request descriptor`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				errors.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; default from blueprint.json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		initCmd(),
		synthCmd(),
		planCmd(),
		ownershipCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

// newLogger builds the text logger at the flag level, falling back to the
// configured one.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Level()
	if logLevel != "" {
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return nil, errors.New(errors.CodeConfigSchema).
				WithDetailf("invalid --log-level %q", logLevel).
				WithSuggestion("Use one of debug, info, warn, error")
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// session is the loaded configuration plus everything needed to run it.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  ancestor.Store
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	store, err := ancestor.Open(ctx, cfg.AncestorConfig())
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, store: store}, nil
}

func (s *session) blueprint(ctx context.Context, m *metrics.Metrics) (*blueprint.Blueprint, error) {
	return blueprint.New(ctx, blueprint.Options{
		Config:    s.cfg,
		Logger:    s.logger,
		Metrics:   m,
		Ancestors: s.store,
	})
}

// reload re-reads blueprint.json from the same directory, keeping the store.
func (s *session) reload() error {
	cfg, err := config.Load(s.cfg.Dir())
	if err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
