package resynth

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/internal/metrics"
	"github.com/vango-dev/blueprint/pkg/ancestor"
	"github.com/vango-dev/blueprint/pkg/merge"
	"github.com/vango-dev/blueprint/pkg/ownership"
	"github.com/vango-dev/blueprint/pkg/repository"
)

var testPackage = ownership.Package{Name: "@acme/web-blueprint", Version: "1.0.0"}

type fixture struct {
	t     *testing.T
	root  string
	store *ancestor.Memory
	orch  *Orchestrator
	logs  *bytes.Buffer
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{t: t, root: t.TempDir(), store: ancestor.NewMemory(), logs: &bytes.Buffer{}}
	o := Options{
		Logger:    slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Ancestors: f.store,
		Package:   testPackage,
	}
	for _, opt := range opts {
		opt(&o)
	}
	f.orch = New(o)
	return f
}

// generate builds a fresh repository the way a generation pass would.
func (f *fixture) generate(files map[string]string, strategies ...ownership.Strategy) *repository.Repository {
	f.t.Helper()
	repo, err := repository.New(f.root, "demo")
	require.NoError(f.t, err)
	for p, c := range files {
		require.NoError(f.t, repo.Track(p, []byte(c)))
	}
	for _, s := range strategies {
		repo.AddStrategy(s)
	}
	return repo
}

func (f *fixture) repoPath(rel string) string {
	return filepath.Join(f.root, "src", "demo", filepath.FromSlash(rel))
}

func (f *fixture) read(rel string) string {
	f.t.Helper()
	data, err := os.ReadFile(f.repoPath(rel))
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) write(rel, content string) {
	f.t.Helper()
	p := f.repoPath(rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(f.t, os.WriteFile(p, []byte(content), 0o644))
}

func (f *fixture) exists(rel string) bool {
	_, err := os.Stat(f.repoPath(rel))
	return err == nil
}

func TestReconcileDemoScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assets := strategy("protect_assets", merge.NeverUpdate, "static-assets/**")

	_, err := f.orch.Reconcile(ctx, f.generate(map[string]string{
		"static-assets/logo.png": "X",
		"src/index.ts":           "Y1",
	}, assets))
	require.NoError(t, err)

	// The user edits a generated source file.
	f.write("src/index.ts", "Y2")

	res, err := f.orch.Reconcile(ctx, f.generate(map[string]string{
		"static-assets/logo.png": "X2",
		"src/index.ts":           "Y3",
	}, assets))
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "X", f.read("static-assets/logo.png"))
	assert.Equal(t, "Y3", f.read("src/index.ts"))
	assert.Equal(t, FallbackIdentifier, resolutionFor(t, res.Plan, "src/index.ts").Strategy)
	assert.Equal(t, "protect_assets", resolutionFor(t, res.Plan, "static-assets/logo.png").Strategy)
}

func TestReconcileIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	files := map[string]string{
		"README.md":       "# demo\n",
		"src/index.ts":    "export {}\n",
		".github/ci.yaml": "on: push\n",
	}
	strategies := []ownership.Strategy{
		strategy("merge_sources", merge.ThreeWayMerge, "src/**"),
		strategy("readme", merge.NeverUpdate, "README.md"),
	}

	first, err := f.orch.Reconcile(ctx, f.generate(files, strategies...))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"README.md", "src/index.ts", ".github/ci.yaml", ownership.FileName}, first.Written)

	second, err := f.orch.Reconcile(ctx, f.generate(files, strategies...))
	require.NoError(t, err)
	assert.Empty(t, second.Written)
	assert.Empty(t, second.Deleted)
	assert.Empty(t, second.Plan.Changed())
	assert.True(t, second.Existing.Equal(second.Ancestor))
}

func TestReconcileThreeWayKeepsUserEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	merging := strategy("merge_sources", merge.ThreeWayMerge, "src/**")

	_, err := f.orch.Reconcile(ctx, f.generate(map[string]string{"src/app.ts": "a\nb\nc\n"}, merging))
	require.NoError(t, err)

	f.write("src/app.ts", "a\nB\nc\n")

	_, err = f.orch.Reconcile(ctx, f.generate(map[string]string{"src/app.ts": "a\nb\nc\nd\n"}, merging))
	require.NoError(t, err)
	assert.Equal(t, "a\nB\nc\nd\n", f.read("src/app.ts"))
}

func TestReconcileDeletesDroppedFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Reconcile(ctx, f.generate(map[string]string{
		"keep.txt":        "k",
		"legacy/old.txt":  "old",
		"legacy/deep/x.y": "x",
	}))
	require.NoError(t, err)

	res, err := f.orch.Reconcile(ctx, f.generate(map[string]string{"keep.txt": "k"}))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"legacy/old.txt", "legacy/deep/x.y"}, res.Deleted)
	assert.False(t, f.exists("legacy"))
	assert.True(t, f.exists("keep.txt"))
}

func TestReconcileFileReplacesDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Reconcile(ctx, f.generate(map[string]string{"a/b": "x", "a/c/d": "y"}))
	require.NoError(t, err)

	res, err := f.orch.Reconcile(ctx, f.generate(map[string]string{"a": "file"}))
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{"a/c/d", "a/b"}, res.Deleted)
	assert.Equal(t, []string{"a"}, res.Written)
	assert.Equal(t, "file", f.read("a"))

	// And back again: the file gives way to a directory.
	res, err = f.orch.Reconcile(ctx, f.generate(map[string]string{"a/b": "z"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Deleted)
	assert.Equal(t, []string{"a/b"}, res.Written)
	assert.Equal(t, "z", f.read("a/b"))

	// Nothing is left to do on a further run.
	res, err = f.orch.Reconcile(ctx, f.generate(map[string]string{"a/b": "z"}))
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Empty(t, res.Deleted)
}

func TestReconcileNestedOwnershipFileIsPlainContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nested := "strategies:\n  - identifier: freeze\n    strategy: neverUpdate\n    globs: ['**']\n"

	_, err := f.orch.Reconcile(ctx, f.generate(map[string]string{
		"sub/" + ownership.FileName: nested,
		"sub/x.txt":                 "1",
	}))
	require.NoError(t, err)
	assert.Equal(t, nested, f.read("sub/"+ownership.FileName))

	_, err = f.orch.Reconcile(ctx, f.generate(map[string]string{
		"sub/" + ownership.FileName: nested,
		"sub/x.txt":                 "2",
	}))
	require.NoError(t, err)
	assert.Equal(t, "2", f.read("sub/x.txt"))
}

func TestReconcileParseErrorAbortsBeforeWrites(t *testing.T) {
	f := newFixture(t)
	f.write(ownership.FileName, "strategies:\n  - identifier: broken\n")

	res, err := f.orch.Reconcile(context.Background(), f.generate(map[string]string{"new.txt": "n"}))
	require.Error(t, err)
	assert.True(t, errors.IsParse(err))
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, StateLoadState, res.FailedIn)
	assert.False(t, f.exists("new.txt"))
}

func TestReconcileStrictUnresolvedAbortsBeforeWrites(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Strict = true })

	res, err := f.orch.Reconcile(context.Background(), f.generate(
		map[string]string{"src/a.ts": "a", "README.md": "r"},
		strategy("src", merge.UseProposed, "src/**"),
	))
	require.Error(t, err)
	assert.True(t, errors.IsUnresolvedPath(err))
	assert.Equal(t, StateDispatchAndMerge, res.FailedIn)
	assert.False(t, f.exists("src/a.ts"))
	assert.False(t, f.exists(ownership.FileName))
}

func TestReconcileWithoutOwnerFails(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Package = ownership.Package{} })

	res, err := f.orch.Reconcile(context.Background(), f.generate(
		map[string]string{"a.txt": "a"},
		strategy("all", merge.UseProposed, "**"),
	))
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.Equal(t, StateDispatchAndMerge, res.FailedIn)
	assert.False(t, f.exists("a.txt"))
}

func TestReconcileUnknownRegisteredStrategy(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Reconcile(context.Background(), f.generate(
		map[string]string{"a.txt": "a"},
		strategy("odd", "clobber", "**"),
	))
	assert.True(t, errors.HasCode(err, errors.CodeUnknownStrategy))
}

func TestReconcileRejectsStrategyWithoutGlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orch.Reconcile(ctx, f.generate(
		map[string]string{"a.txt": "a"},
		ownership.Strategy{Identifier: "noglobs", Strategy: merge.UseExisting},
	))
	require.Error(t, err)
	assert.True(t, errors.IsParse(err), "got %v", err)
	assert.Contains(t, err.Error(), `strategy "noglobs" has no globs`)
	assert.Equal(t, StateDispatchAndMerge, res.FailedIn)
	assert.False(t, f.exists("a.txt"))
	assert.False(t, f.exists(ownership.FileName))

	// The repository is not left unreadable: a valid registration succeeds.
	_, err = f.orch.Reconcile(ctx, f.generate(
		map[string]string{"a.txt": "a"},
		strategy("keep", merge.UseExisting, "**"),
	))
	require.NoError(t, err)
	_, err = f.orch.Reconcile(ctx, f.generate(
		map[string]string{"a.txt": "a"},
		strategy("keep", merge.UseExisting, "**"),
	))
	require.NoError(t, err)
	assert.Equal(t, "a", f.read("a.txt"))
}

func TestReconcileOwnershipFileEditsSurvive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assets := strategy("protect_assets", merge.NeverUpdate, "static-assets/**")

	_, err := f.orch.Reconcile(ctx, f.generate(map[string]string{"config/app.json": "{}"}, assets))
	require.NoError(t, err)

	d, err := ownership.AsObject(f.read(ownership.FileName))
	require.NoError(t, err)
	require.Len(t, d.Strategies, 1)
	assert.Equal(t, testPackage.Name, d.Strategies[0].Owner)

	// The user extends the glob list by hand.
	d.Strategies[0].Globs = append(d.Strategies[0].Globs, "config/**")
	text, err := ownership.AsString("", d)
	require.NoError(t, err)
	f.write(ownership.FileName, text)
	f.write("config/app.json", `{"mine":true}`)

	res, err := f.orch.Reconcile(ctx, f.generate(map[string]string{"config/app.json": `{"gen":2}`}, assets))
	require.NoError(t, err)

	assert.Equal(t, `{"mine":true}`, f.read("config/app.json"))
	assert.Equal(t, []string{"static-assets/**", "config/**"}, res.Ownership.Strategies[0].Globs)
}

func TestReconcileIgnoresForeignStrategies(t *testing.T) {
	f := newFixture(t)
	foreign := ownership.Descriptor{Strategies: []ownership.Strategy{{
		Identifier: "other_layer",
		Owner:      "@other/blueprint",
		Strategy:   merge.NeverUpdate,
		Globs:      []string{"**"},
	}}}
	text, err := ownership.AsString("", foreign)
	require.NoError(t, err)
	f.write(ownership.FileName, text)
	f.write("a.txt", "user")

	res, err := f.orch.Reconcile(context.Background(), f.generate(map[string]string{"a.txt": "gen"}))
	require.NoError(t, err)

	assert.Equal(t, "gen", f.read("a.txt"))
	_, kept := res.Ownership.Lookup("other_layer")
	assert.True(t, kept)
	assert.Contains(t, f.read(ownership.FileName), "other_layer")
}

func TestReconcileIgnoresTrackedOwnershipFile(t *testing.T) {
	f := newFixture(t)
	res, err := f.orch.Reconcile(context.Background(), f.generate(map[string]string{
		ownership.FileName: "garbage",
		"a.txt":            "a",
	}))
	require.NoError(t, err)

	_, err = ownership.AsObject(f.read(ownership.FileName))
	require.NoError(t, err)
	for _, r := range res.Plan.Resolutions {
		assert.NotEqual(t, ownership.FileName, r.Path)
	}
}

func TestReconcileRunsSynthesisStepsAfterApply(t *testing.T) {
	f := newFixture(t)
	repo := f.generate(map[string]string{"package.json": "{}"})

	var sawFile bool
	repo.AddSynthesisStep(func(context.Context) error {
		_, err := os.Stat(f.repoPath("package.json"))
		sawFile = err == nil
		return nil
	})

	_, err := f.orch.Reconcile(context.Background(), repo)
	require.NoError(t, err)
	assert.True(t, sawFile)
}

func TestPreviewWritesNothing(t *testing.T) {
	f := newFixture(t)
	repo := f.generate(map[string]string{"a.txt": "a"})
	ran := false
	repo.AddSynthesisStep(func(context.Context) error { ran = true; return nil })

	res, err := f.orch.Preview(context.Background(), repo)
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, OutcomeCreated, resolutionFor(t, res.Plan, "a.txt").Outcome)
	assert.False(t, f.exists("a.txt"))
	assert.False(t, ran)

	empty, err := f.store.Load(context.Background(), "demo")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReconcileLogsAuditedOverride(t *testing.T) {
	f := newFixture(t)
	f.write("a.txt", "user")

	_, err := f.orch.Reconcile(context.Background(), f.generate(
		map[string]string{"a.txt": "gen"},
		strategy("force", merge.AlwaysUpdate, "**"),
	))
	require.NoError(t, err)
	assert.Contains(t, f.logs.String(), "overriding existing file")
	assert.Contains(t, f.logs.String(), "path=a.txt")
}

func TestReconcileRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(metrics.WithRegistry(reg))
	f := newFixture(t, func(o *Options) { o.Metrics = m })

	_, err := f.orch.Reconcile(context.Background(), f.generate(map[string]string{"a.txt": "a", "b.txt": "b"}))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "blueprint_resynth_files_resolved_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = testutil.GatherAndCount(reg, "blueprint_resynth_state_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestReconcileWithoutAncestorStore(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Ancestors = nil })
	res, err := f.orch.Reconcile(context.Background(), f.generate(map[string]string{"a.txt": "a"}))
	require.NoError(t, err)
	assert.Empty(t, res.Ancestor)
	assert.Equal(t, "a", f.read("a.txt"))
}

func TestReconcileIOErrorPropagates(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	f := newFixture(t)
	f.write("locked/existing.txt", "x")
	require.NoError(t, os.Chmod(f.repoPath("locked"), 0o555))
	t.Cleanup(func() { _ = os.Chmod(f.repoPath("locked"), 0o755) })

	res, err := f.orch.Reconcile(context.Background(), f.generate(map[string]string{
		"locked/existing.txt": "x",
		"locked/new.txt":      "n",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, StateApplyFilesystem, res.FailedIn)
}
