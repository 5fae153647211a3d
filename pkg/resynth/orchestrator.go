// Package resynth reconciles a freshly generated repository against the
// copy already on disk.
//
// One reconciliation walks a fixed state machine:
//
//	LoadState -> DispatchAndMerge -> ApplyFilesystem -> PersistOwnership -> Done
//
// and ends in Failed from whichever state returned an error. LoadState and
// DispatchAndMerge never touch the filesystem, so ownership mistakes abort
// before anything is written. ApplyFilesystem is not transactional: an I/O
// error leaves the files already written in place, and the caller may simply
// run the reconciliation again.
//
// The ownership file is never dispatched. It is rewritten during
// PersistOwnership from the descriptor on disk plus any strategies the
// generation pass registered.
package resynth

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/internal/metrics"
	"github.com/vango-dev/blueprint/pkg/ancestor"
	"github.com/vango-dev/blueprint/pkg/dispatch"
	"github.com/vango-dev/blueprint/pkg/merge"
	"github.com/vango-dev/blueprint/pkg/ownership"
	"github.com/vango-dev/blueprint/pkg/repository"
)

// FallbackIdentifier identifies the implicit strategy applied to paths no
// registered strategy covers.
const FallbackIdentifier = "FALLBACK_" + merge.UseProposed

const tracerName = "github.com/vango-dev/blueprint/pkg/resynth"

// DefaultExclude lists paths never read from or written to disk.
var DefaultExclude = []string{".git"}

// Options configures an Orchestrator.
type Options struct {
	// Logger receives resolution reports. Default: slog.Default().
	Logger *slog.Logger

	// Ancestors supplies and records the last generated snapshot. When nil
	// every run behaves as a first run: the ancestor is empty.
	Ancestors ancestor.Store

	// Dispatcher defaults to dispatch.New().
	Dispatcher *dispatch.Dispatcher

	// Package is the blueprint running the resynthesis. Its name is the
	// owner written for strategies without one, and only strategies owned by
	// it take part in dispatch.
	Package ownership.Package

	// Strict disables the implicit useProposed fallback, so any path not
	// covered by a strategy fails the run.
	Strict bool

	// Exclude lists globs skipped when reading the existing snapshot.
	// Default: DefaultExclude.
	Exclude []string

	Metrics *metrics.Metrics

	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// Orchestrator runs reconciliations. It holds no per-repository state and
// may reconcile several repositories concurrently.
type Orchestrator struct {
	logger     *slog.Logger
	ancestors  ancestor.Store
	dispatcher *dispatch.Dispatcher
	pkg        ownership.Package
	strict     bool
	exclude    []string
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		logger:     opts.Logger,
		ancestors:  opts.Ancestors,
		dispatcher: opts.Dispatcher,
		pkg:        opts.Package,
		strict:     opts.Strict,
		exclude:    opts.Exclude,
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.dispatcher == nil {
		o.dispatcher = dispatch.New()
	}
	if o.exclude == nil {
		o.exclude = DefaultExclude
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

// Result describes a finished reconciliation.
type Result struct {
	RunID      string
	Repository string

	// State is StateDone or StateFailed.
	State State

	// FailedIn is the state that returned the error when State is StateFailed.
	FailedIn State

	Ancestor repository.Snapshot
	Existing repository.Snapshot
	Proposed repository.Snapshot

	// Ownership is the descriptor persisted at the end of the run.
	Ownership ownership.Descriptor

	Plan *Plan

	// Written and Deleted list repository paths changed on disk.
	Written []string
	Deleted []string
}

type run struct {
	repo   *repository.Repository
	result *Result
	logger *slog.Logger

	ownershipPath string
	onDisk        ownership.Descriptor
	ownershipText string
	ownershipOld  []byte
}

type step struct {
	state State
	fn    func(context.Context, *run) error
}

// Reconcile runs the full state machine for repo. On failure the returned
// Result records the state reached and the error is returned alongside it.
func (o *Orchestrator) Reconcile(ctx context.Context, repo *repository.Repository) (*Result, error) {
	return o.execute(ctx, repo, []step{
		{StateLoadState, o.loadState},
		{StateDispatchAndMerge, o.dispatchAndMerge},
		{StateApplyFilesystem, o.applyFilesystem},
		{StatePersistOwnership, o.persistOwnership},
	})
}

// Preview runs LoadState and DispatchAndMerge only. Nothing is written and
// synthesis steps do not run.
func (o *Orchestrator) Preview(ctx context.Context, repo *repository.Repository) (*Result, error) {
	return o.execute(ctx, repo, []step{
		{StateLoadState, o.loadState},
		{StateDispatchAndMerge, o.dispatchAndMerge},
	})
}

func (o *Orchestrator) execute(ctx context.Context, repo *repository.Repository, steps []step) (*Result, error) {
	runID := uuid.NewString()
	r := &run{
		repo:   repo,
		result: &Result{RunID: runID, Repository: repo.Title},
		logger: o.logger.With("repository", repo.Title, "run", runID),
	}

	ctx, span := o.tracer.Start(ctx, "resynth.reconcile", trace.WithAttributes(
		attribute.String("blueprint.repository", repo.Title),
		attribute.String("blueprint.run_id", runID),
	))
	defer span.End()

	for _, s := range steps {
		if err := o.enter(ctx, r, s); err != nil {
			r.result.State = StateFailed
			r.result.FailedIn = s.state
			o.metrics.Reconciled(StateFailed.String())
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.Error("reconciliation failed", "state", s.state.String(), "error", err)
			return r.result, err
		}
	}

	r.result.State = StateDone
	o.metrics.Reconciled(StateDone.String())
	return r.result, nil
}

func (o *Orchestrator) enter(ctx context.Context, r *run, s step) error {
	ctx, span := o.tracer.Start(ctx, "resynth."+s.state.String())
	defer span.End()

	start := time.Now()
	err := s.fn(ctx, r)
	o.metrics.ObserveState(s.state.String(), time.Since(start))
	if err != nil {
		o.metrics.Failed(s.state.String(), errorCode(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) loadState(ctx context.Context, r *run) error {
	existing, err := repository.LoadSnapshot(r.repo.Path, o.exclude...)
	if err != nil {
		return fmt.Errorf("load existing files: %w", err)
	}
	delete(existing, ownership.FileName)

	ancestorSnap := repository.Snapshot{}
	if o.ancestors != nil {
		ancestorSnap, err = o.ancestors.Load(ctx, r.repo.Title)
		if err != nil {
			return err
		}
		delete(ancestorSnap, ownership.FileName)
	}

	proposed := r.repo.Snapshot()
	if _, ok := proposed[ownership.FileName]; ok {
		r.logger.Debug("ignoring tracked ownership file; it is generated from strategies", "path", ownership.FileName)
		delete(proposed, ownership.FileName)
	}

	r.ownershipPath = filepath.Join(r.repo.Path, ownership.FileName)
	r.ownershipOld, err = os.ReadFile(r.ownershipPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read ownership file: %w", err)
	}
	r.onDisk, err = ownership.AsObject(string(r.ownershipOld),
		ownership.WithFile(filepath.Join(r.repo.RelativePath, ownership.FileName)),
		ownership.WithStrategyNames(merge.Names()...))
	if err != nil {
		return err
	}

	r.result.Ancestor = ancestorSnap
	r.result.Existing = existing
	r.result.Proposed = proposed
	return nil
}

func (o *Orchestrator) dispatchAndMerge(_ context.Context, r *run) error {
	registered := r.repo.Strategies()
	for _, s := range registered {
		if s.Identifier == "" {
			return errors.New(errors.CodeInvalidRepository).
				WithDetailf("a strategy registered for %s has no identifier", r.repo.Title)
		}
		if _, ok := merge.Lookup(s.Strategy); !ok {
			return errors.New(errors.CodeUnknownStrategy).
				WithDetailf("strategy %q uses %q", s.Identifier, s.Strategy)
		}
	}

	persisted := r.onDisk.Append(registered...)
	text, err := ownership.AsString(o.pkg.Name, persisted)
	if err != nil {
		return err
	}

	effective := persisted
	if o.pkg.Name != "" {
		effective = persisted.OwnedBy(o.pkg)
	}
	in := PlanInput{
		Ancestor:   r.result.Ancestor,
		Existing:   r.result.Existing,
		Proposed:   r.result.Proposed,
		Strategies: effective.Strategies,
		Dispatcher: o.dispatcher,
	}
	if !o.strict {
		in.Fallback = &ownership.Strategy{
			Identifier: FallbackIdentifier,
			Strategy:   merge.UseProposed,
			Globs:      []string{"**"},
		}
	}
	plan, err := BuildPlan(in)
	if err != nil {
		return err
	}

	for _, res := range plan.Resolutions {
		o.metrics.FileResolved(res.Merge, string(res.Outcome))
		r.logger.Debug("resolved path",
			"path", res.Path,
			"strategy", res.Strategy,
			"merge", res.Merge,
			"outcome", string(res.Outcome))
		if res.Overrode {
			o.metrics.Override()
			r.logger.Info("overriding existing file",
				"path", res.Path,
				"strategy", res.Strategy,
				"merge", res.Merge)
		}
	}

	r.ownershipText = text
	r.result.Ownership = persisted
	r.result.Plan = plan
	return nil
}

func (o *Orchestrator) applyFilesystem(_ context.Context, r *run) error {
	if err := os.MkdirAll(r.repo.Path, 0o755); err != nil {
		return fmt.Errorf("create repository directory: %w", err)
	}
	written, deleted, err := applyPlan(r.repo.Path, r.result.Plan)
	r.result.Written = append(r.result.Written, written...)
	r.result.Deleted = append(r.result.Deleted, deleted...)
	if err != nil {
		return err
	}
	counts := r.result.Plan.Counts()
	r.logger.Info("applied resynthesis",
		"created", counts[OutcomeCreated],
		"updated", counts[OutcomeUpdated],
		"deleted", counts[OutcomeDeleted],
		"unchanged", counts[OutcomeUnchanged])
	return nil
}

// persistOwnership writes the ownership file with a fixed overwrite rule,
// records the generated snapshot as the next ancestor, then runs the
// repository's synthesis steps.
func (o *Orchestrator) persistOwnership(ctx context.Context, r *run) error {
	if !bytes.Equal(r.ownershipOld, []byte(r.ownershipText)) {
		if err := os.WriteFile(r.ownershipPath, []byte(r.ownershipText), 0o644); err != nil {
			return fmt.Errorf("write ownership file: %w", err)
		}
		r.result.Written = append(r.result.Written, ownership.FileName)
	}

	if o.ancestors != nil && !r.result.Ancestor.Equal(r.result.Proposed) {
		if err := o.ancestors.Save(ctx, r.repo.Title, r.result.Proposed); err != nil {
			return err
		}
	}

	return r.repo.RunSynthesisSteps(ctx)
}

func errorCode(err error) string {
	var be *errors.BlueprintError
	if stderrors.As(err, &be) && be.Code != "" {
		return be.Code
	}
	return "io"
}
