package ownership

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/blueprint/internal/errors"
)

var builtinNames = []string{
	"useProposed", "useExisting", "neverUpdate", "alwaysUpdate",
	"onlyAdd", "threeWayMerge", "preferProposed", "preferExisting",
}

func sample() Descriptor {
	return Descriptor{Strategies: []Strategy{
		{
			Identifier: "base_catch_all",
			Owner:      "@acme/base-blueprint",
			Strategy:   "useExisting",
			Globs:      []string{"**"},
		},
		{
			Identifier:  "generated",
			Owner:       "@acme/web-blueprint@1.4.0",
			Description: "Generated clients: edits are overwritten.\nRegenerate instead.",
			Strategy:    "useProposed",
			Globs:       []string{"**/*.generated.ts", "src/api/{client,server}.ts"},
		},
		{
			Identifier: "assets",
			Owner:      "@acme/web-blueprint",
			Strategy:   "neverUpdate",
			Globs:      []string{"static-assets/**", ".github/**"},
		},
	}}
}

func TestRoundTrip(t *testing.T) {
	d := sample()
	text, err := AsString("@acme/ignored", d)
	require.NoError(t, err)

	got, err := AsObject(text, WithStrategyNames(builtinNames...))
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestRoundTripEmpty(t *testing.T) {
	text, err := AsString("", Descriptor{})
	require.NoError(t, err)

	got, err := AsObject(text)
	require.NoError(t, err)
	assert.Equal(t, Descriptor{}, got)
}

func TestAsStringFillsOwner(t *testing.T) {
	d := Descriptor{Strategies: []Strategy{{Identifier: "all", Strategy: "useProposed", Globs: []string{"src/**"}}}}
	text, err := AsString("@acme/web-blueprint", d)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "# Resynthesis ownership"))
	assert.Contains(t, text, "@acme/web-blueprint")
	assert.Contains(t, text, "src/**")

	got, err := AsObject(text)
	require.NoError(t, err)
	assert.Equal(t, "@acme/web-blueprint", got.Strategies[0].Owner)
}

func TestAsStringWithoutOwner(t *testing.T) {
	d := Descriptor{Strategies: []Strategy{{Identifier: "orphan", Strategy: "useProposed", Globs: []string{"**"}}}}
	_, err := AsString("", d)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestAsStringRejectsUnreadableDescriptors(t *testing.T) {
	tests := []struct {
		name   string
		d      Descriptor
		detail string
	}{
		{"no globs", Descriptor{Strategies: []Strategy{{Identifier: "noglobs", Strategy: "useExisting"}}}, "has no globs"},
		{"empty glob", Descriptor{Strategies: []Strategy{{Identifier: "blank", Strategy: "useExisting", Globs: []string{""}}}}, "invalid glob"},
		{"bad glob", Descriptor{Strategies: []Strategy{{Identifier: "bad", Strategy: "useExisting", Globs: []string{"src/[a-"}}}}, "invalid glob"},
		{"no identifier", Descriptor{Strategies: []Strategy{{Strategy: "useExisting", Globs: []string{"**"}}}}, "missing an identifier"},
		{"no merge", Descriptor{Strategies: []Strategy{{Identifier: "a", Globs: []string{"**"}}}}, "does not name a merge strategy"},
		{"duplicate", Descriptor{Strategies: []Strategy{
			{Identifier: "a", Strategy: "useExisting", Globs: []string{"**"}},
			{Identifier: "a", Strategy: "useProposed", Globs: []string{"src/**"}},
		}}, `identifier "a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AsString("@acme/web", tt.d)
			require.Error(t, err)
			assert.True(t, errors.IsParse(err), "want parse error, got %v", err)
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}

func TestAsObjectMultipleDocuments(t *testing.T) {
	text := "strategies:\n  - identifier: a\n    strategy: useProposed\n    globs: ['**']\n" +
		"---\nstrategies:\n  - identifier: b\n    strategy: useExisting\n    globs: ['docs/**']\n"

	_, err := AsObject(text, WithFile("src/demo/blueprint.ownership"))
	require.Error(t, err)
	assert.True(t, errors.IsParse(err), "want parse error, got %v", err)
	assert.Contains(t, err.Error(), "only one YAML document")

	var be *errors.BlueprintError
	require.ErrorAs(t, err, &be)
	require.NotNil(t, be.Location)
	assert.Equal(t, "src/demo/blueprint.ownership", be.Location.File)
	assert.Equal(t, text, be.Source)

	errors.DisableColors()
	defer errors.EnableColors()
	out := be.Format()
	assert.Contains(t, out, "| ---\n")
	assert.Contains(t, out, "> ")
}

func TestAsObjectTrailingSeparator(t *testing.T) {
	d, err := AsObject("strategies:\n  - identifier: a\n    strategy: useProposed\n    globs: ['**']\n---\n")
	require.NoError(t, err)
	require.Len(t, d.Strategies, 1)
	assert.Equal(t, "a", d.Strategies[0].Identifier)
}

func TestAsObjectLayeredFile(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "layered.ownership"))
	require.NoError(t, err)

	d, err := AsObject(string(data), WithStrategyNames(builtinNames...))
	require.NoError(t, err)
	require.Len(t, d.Strategies, 3)

	assert.Equal(t, "base_catch_all", d.Strategies[0].Identifier)
	assert.Equal(t, []string{"**"}, d.Strategies[0].Globs)
	assert.Equal(t, []string{"**/*.generated.ts", "src/api/{client,server}.ts"}, d.Strategies[1].Globs)
	assert.Empty(t, d.Strategies[1].Description)
	assert.Equal(t, "Hand-added by the repository owner.\nKeeps CI edits.\n", d.Strategies[2].Description)
	assert.Equal(t, "src/app/blueprint.ownership", d.Strategies[2].Owner)
}

func TestAsObjectErrors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantLine int
		detail   string
	}{
		{
			name:     "bad yaml",
			text:     "strategies:\n  - identifier: [a\n",
			wantLine: -1,
		},
		{
			name:     "unknown key",
			text:     "strategies:\n  - identifier: a\n    strategy: useProposed\n    globs: ['**']\n    mergeFunction: custom\n",
			wantLine: 5,
		},
		{
			name:     "missing identifier",
			text:     "strategies:\n  - strategy: useProposed\n    globs: ['**']\n",
			wantLine: 2,
			detail:   "missing an identifier",
		},
		{
			name:     "missing strategy",
			text:     "strategies:\n  - identifier: a\n    globs: ['**']\n",
			wantLine: 2,
			detail:   "does not name a merge strategy",
		},
		{
			name:     "unknown strategy",
			text:     "strategies:\n  - identifier: ok\n    strategy: useProposed\n    globs: ['**']\n  - identifier: b\n    strategy: clobber\n    globs: ['**']\n",
			wantLine: 5,
			detail:   `unknown merge strategy "clobber"`,
		},
		{
			name:     "no globs",
			text:     "strategies:\n  - identifier: a\n    strategy: useProposed\n",
			wantLine: 2,
			detail:   "has no globs",
		},
		{
			name:     "invalid glob",
			text:     "strategies:\n  - identifier: a\n    strategy: useProposed\n    globs: ['src/[a-']\n",
			wantLine: 2,
			detail:   "invalid glob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AsObject(tt.text, WithStrategyNames(builtinNames...), WithFile("src/demo/blueprint.ownership"))
			require.Error(t, err)
			assert.True(t, errors.IsParse(err), "want parse error, got %v", err)

			var be *errors.BlueprintError
			require.ErrorAs(t, err, &be)
			require.NotNil(t, be.Location)
			assert.Equal(t, "src/demo/blueprint.ownership", be.Location.File)
			if tt.wantLine >= 0 {
				assert.Equal(t, tt.wantLine, be.Location.Line)
			}
			if tt.detail != "" {
				assert.Contains(t, be.Detail, tt.detail)
			}
		})
	}
}

func TestAsObjectDuplicateIdentifier(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "duplicate.ownership"))
	require.NoError(t, err)

	_, err = AsObject(string(data))
	require.Error(t, err)
	assert.True(t, errors.IsParse(err))
	assert.Contains(t, err.Error(), `identifier "assets" is already used by the strategy at line 2`)
}

func TestAsObjectCommentsOnly(t *testing.T) {
	d, err := AsObject("# nothing here yet\n")
	require.NoError(t, err)
	assert.Empty(t, d.Strategies)
}

func TestAppendDeduplicates(t *testing.T) {
	existing := Descriptor{Strategies: []Strategy{
		{Identifier: "assets", Strategy: "neverUpdate", Globs: []string{"static-assets/**", "user-added/**"}},
	}}
	merged := existing.Append(
		Strategy{Identifier: "assets", Strategy: "neverUpdate", Globs: []string{"static-assets/**"}},
		Strategy{Identifier: "generated", Strategy: "useProposed", Globs: []string{"*.generated.ts"}},
		Strategy{Identifier: "generated", Strategy: "useExisting", Globs: []string{"x"}},
	)

	require.Len(t, merged.Strategies, 2)
	assert.Equal(t, []string{"static-assets/**", "user-added/**"}, merged.Strategies[0].Globs)
	assert.Equal(t, "useProposed", merged.Strategies[1].Strategy)
	assert.Len(t, existing.Strategies, 1)
}

func TestOwnedBy(t *testing.T) {
	pkg := Package{Name: "@amazon-codecatalyst/test-blueprint", Version: "1.2.3"}

	matching := []string{
		"*",
		"@amazon-codecatalyst/*",
		"@amazon-codecatalyst/test-blueprint",
		"@amazon-codecatalyst/test-blueprint@1.2.3",
		"@amazon-codecatalyst/test-blueprint@1.*.*",
		"*/test-blueprint",
		"*/*@1.*",
	}
	nonMatching := []string{
		"@another-namespace/test-blueprint",
		"@another-namespace/*",
		"@amazon-codecatalyst/test-blueprint@2.0.0",
		"*/wrong-name",
	}

	var d Descriptor
	for i, owner := range append(append([]string{}, matching...), nonMatching...) {
		d.Strategies = append(d.Strategies, Strategy{
			Identifier: "s" + string(rune('a'+i)),
			Owner:      owner,
			Strategy:   "alwaysUpdate",
			Globs:      []string{"*"},
		})
	}

	got := d.OwnedBy(pkg)
	var owners []string
	for _, s := range got.Strategies {
		owners = append(owners, s.Owner)
	}
	assert.Equal(t, matching, owners)
}

func TestPackageString(t *testing.T) {
	assert.Equal(t, "@acme/web@1.0.0", Package{Name: "@acme/web", Version: "1.0.0"}.String())
	assert.Equal(t, "@acme/web", Package{Name: "@acme/web"}.String())
}

func TestReadWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo", FileName)

	d, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, d.Strategies)

	require.NoError(t, WriteFile(path, "@acme/web", sample()))
	got, err := ReadFile(path, WithStrategyNames(builtinNames...))
	require.NoError(t, err)
	assert.Equal(t, sample(), got)

	require.NoError(t, os.WriteFile(path, []byte("strategies: {"), 0o644))
	_, err = ReadFile(path)
	require.Error(t, err)
	var be *errors.BlueprintError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, path, be.Location.File)
}
