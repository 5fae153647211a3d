// Package blueprint drives resynthesis for every repository declared in a
// blueprint.json: it generates each repository from static assets and
// registered strategies, reconciles it against disk, and optionally bundles
// the resulting changes as patches with a pull request descriptor.
package blueprint

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/blueprint/internal/config"
	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/internal/metrics"
	"github.com/vango-dev/blueprint/internal/templates"
	"github.com/vango-dev/blueprint/pkg/ancestor"
	"github.com/vango-dev/blueprint/pkg/difference"
	"github.com/vango-dev/blueprint/pkg/dispatch"
	"github.com/vango-dev/blueprint/pkg/repository"
	"github.com/vango-dev/blueprint/pkg/resynth"
)

// SynthesizeFunc adds generated content to a repository after its static
// assets are tracked.
type SynthesizeFunc func(ctx context.Context, repo *repository.Repository, rc config.RepositoryConfig) error

// Options configures a Blueprint.
type Options struct {
	Config *config.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	Metrics *metrics.Metrics
	Tracer  trace.Tracer

	// Ancestors overrides the store described by the configuration.
	Ancestors ancestor.Store

	// Assets overrides the asset directory described by the configuration.
	Assets fs.FS

	// Synthesize runs for every repository after asset copying.
	Synthesize SynthesizeFunc
}

// Blueprint generates and reconciles the repositories of one configuration.
type Blueprint struct {
	cfg        *config.Config
	logger     *slog.Logger
	assets     fs.FS
	synthesize SynthesizeFunc
	orch       *resynth.Orchestrator
}

// New opens the ancestor store and prepares the orchestrator.
func New(ctx context.Context, opts Options) (*Blueprint, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store := opts.Ancestors
	if store == nil {
		var err error
		if store, err = ancestor.Open(ctx, cfg.AncestorConfig()); err != nil {
			return nil, err
		}
	}

	assets := opts.Assets
	if assets == nil {
		assets = os.DirFS(cfg.AssetsPath())
	}

	return &Blueprint{
		cfg:        cfg,
		logger:     logger,
		assets:     assets,
		synthesize: opts.Synthesize,
		orch: resynth.New(resynth.Options{
			Logger:     logger,
			Ancestors:  store,
			Dispatcher: dispatch.New(dispatch.WithDotfiles(cfg.Dotfiles())),
			Package:    cfg.Package(),
			Strict:     cfg.Resynthesis.Strict,
			Metrics:    opts.Metrics,
			Tracer:     opts.Tracer,
		}),
	}, nil
}

// Config returns the configuration the blueprint was built from.
func (b *Blueprint) Config() *config.Config {
	return b.cfg
}

// Generate builds the proposed state of the repository titled title.
func (b *Blueprint) Generate(ctx context.Context, title string) (*repository.Repository, error) {
	for _, rc := range b.cfg.Repositories {
		if rc.Title == title || repository.ValidFolder(rc.Title) == title {
			return b.generate(ctx, rc)
		}
	}
	return nil, errors.New(errors.CodeInvalidRepository).
		WithDetailf("no repository titled %q in %s", title, config.ConfigFileName)
}

func (b *Blueprint) generate(ctx context.Context, rc config.RepositoryConfig) (*repository.Repository, error) {
	repo, err := repository.New(b.cfg.OutputPath(), rc.Title)
	if err != nil {
		return nil, err
	}

	mappings := make([]templates.Mapping, 0, len(rc.Assets))
	for _, a := range rc.Assets {
		mappings = append(mappings, templates.Mapping{From: a.From, To: a.To, Template: a.Template})
	}
	n, err := templates.CopyStaticFiles(repo, b.assets, mappings, rc.Substitute)
	if err != nil {
		return nil, fmt.Errorf("%s: copy static assets: %w", repo.Title, err)
	}
	b.logger.Debug("static assets tracked", "repository", repo.Title, "files", n)

	repo.SetStrategies(rc.Strategies)

	if b.synthesize != nil {
		if err := b.synthesize(ctx, repo, rc); err != nil {
			return nil, fmt.Errorf("%s: synthesize: %w", repo.Title, err)
		}
	}
	return repo, nil
}

// Report summarizes a run over all repositories.
type Report struct {
	// Results are in configuration order. A repository that was never
	// reached because the run was cancelled has a nil entry.
	Results []*resynth.Result

	// PullRequest is the descriptor path, or "" when none was written.
	PullRequest string
}

// Synthesize reconciles every repository, at most cfg.Concurrency at a time.
// The first failure cancels repositories not yet started; ones already
// running finish their current reconciliation. When diffs are enabled and
// any repository changed, patches and a pull request descriptor are written.
func (b *Blueprint) Synthesize(ctx context.Context) (*Report, error) {
	report, err := b.each(ctx, b.orch.Reconcile)
	if err != nil {
		return report, err
	}

	if b.cfg.Diffs.Enabled {
		sets, err := b.Differences(report.Results)
		if err != nil {
			return report, err
		}
		report.PullRequest, err = difference.Lifecycle(b.cfg.DiffPath(), sets, difference.Options{
			Title:        b.cfg.Diffs.Title,
			Description:  b.cfg.Diffs.Description,
			OriginBranch: b.cfg.Diffs.OriginBranch,
			TargetBranch: b.cfg.Diffs.TargetBranch,
		})
		if err != nil {
			return report, err
		}
		if report.PullRequest != "" {
			b.logger.Info("pull request written", "path", report.PullRequest)
		}
	}
	return report, nil
}

// Preview plans every repository without writing anything.
func (b *Blueprint) Preview(ctx context.Context) (*Report, error) {
	return b.each(ctx, b.orch.Preview)
}

// PreviewRepository plans one repository without writing anything.
func (b *Blueprint) PreviewRepository(ctx context.Context, title string) (*resynth.Result, error) {
	repo, err := b.Generate(ctx, title)
	if err != nil {
		return nil, err
	}
	return b.orch.Preview(ctx, repo)
}

// Differences computes per-repository patches from each result's existing
// snapshot to its final plan.
func (b *Blueprint) Differences(results []*resynth.Result) ([]*difference.Set, error) {
	var sets []*difference.Set
	for _, res := range results {
		if res == nil || res.Plan == nil {
			continue
		}
		set, err := difference.Compute(res.Repository, b.cfg.Diffs.OriginBranch, res.Existing, res.Plan.Final)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", res.Repository, err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

type runFunc func(context.Context, *repository.Repository) (*resynth.Result, error)

func (b *Blueprint) each(ctx context.Context, fn runFunc) (*Report, error) {
	report := &Report{Results: make([]*resynth.Result, len(b.cfg.Repositories))}

	g, gctx := errgroup.WithContext(ctx)
	limit := b.cfg.Concurrency
	if limit <= 0 {
		limit = config.DefaultConcurrency
	}
	g.SetLimit(limit)

	for i, rc := range b.cfg.Repositories {
		i, rc := i, rc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			repo, err := b.generate(gctx, rc)
			if err != nil {
				return err
			}
			res, err := fn(gctx, repo)
			report.Results[i] = res
			if err != nil {
				return fmt.Errorf("%s: %w", repo.Title, err)
			}
			return nil
		})
	}
	return report, g.Wait()
}
