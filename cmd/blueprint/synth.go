package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/internal/watch"
	"github.com/vango-dev/blueprint/pkg/repository"
	"github.com/vango-dev/blueprint/pkg/resynth"
)

func synthCmd() *cobra.Command {
	var (
		watchMode bool
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate every repository and reconcile it on disk",
		Long: `Generate every repository declared in blueprint.json and reconcile it
with the copy on disk, preserving files owned by the user.

With --watch the project is synthesized again whenever blueprint.json or
the static assets change. The output, patch bundle and ancestor store are
not watched.

Examples:
  blueprint synth
  blueprint synth --watch
  blueprint synth --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			if !watchMode {
				return runSynth(ctx, s, verbose)
			}
			return watchSynth(ctx, s, verbose)
		},
	}

	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Synthesize again on change")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every resolved path, not only changes")

	return cmd
}

func runSynth(ctx context.Context, s *session, verbose bool) error {
	bp, err := s.blueprint(ctx, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	report, err := bp.Synthesize(ctx)
	if report != nil {
		printResults(report.Results, verbose)
	}
	if err != nil {
		return err
	}

	success("Synthesized %d repositories in %s", len(report.Results), time.Since(start).Round(time.Millisecond))
	if report.PullRequest != "" {
		info("Pull request: %s", report.PullRequest)
	}
	return nil
}

func watchSynth(ctx context.Context, s *session, verbose bool) error {
	if err := runSynth(ctx, s, verbose); err != nil {
		errors.PrintError(err)
	}

	exclude := []string{
		filepath.Join(s.cfg.OutputPath(), repository.SourceRoot),
		s.cfg.DiffPath(),
	}
	if dir := s.cfg.AncestorConfig().Dir; dir != "" {
		exclude = append(exclude, dir)
	}

	w := watch.NewWatcher(watch.WatcherConfig{
		Paths:   []string{s.cfg.Dir()},
		Exclude: exclude,
		Logger:  s.logger,
	})
	w.OnChange(func(changes []watch.Change) {
		for _, c := range changes {
			s.logger.Debug("changed", "path", c.Path, "op", c.Op)
		}
		if err := s.reload(); err != nil {
			errors.PrintError(err)
			return
		}
		if err := runSynth(ctx, s, verbose); err != nil {
			errors.PrintError(err)
		}
	})

	info("Watching %s for changes...", s.cfg.Dir())
	err := w.Start(ctx)
	if stderrors.Is(err, context.Canceled) {
		fmt.Println()
		info("Stopped watching")
		return nil
	}
	return err
}

// printResults prints one summary line per repository and, for the ones that
// changed, the resolution report.
func printResults(results []*resynth.Result, verbose bool) {
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.State == resynth.StateFailed {
			warn("%s: failed in %s", res.Repository, res.FailedIn)
			continue
		}
		if len(res.Written) == 0 && len(res.Deleted) == 0 && !verbose {
			info("%s: up to date", res.Repository)
			continue
		}
		success("%s: %d written, %d deleted", res.Repository, len(res.Written), len(res.Deleted))
		if res.Plan != nil {
			if err := res.Plan.WriteReport(os.Stdout, verbose); err != nil {
				warn("%s: %v", res.Repository, err)
			}
		}
	}
}

