// Package ownership reads and writes the ownership file committed into every
// generated repository. The file lists, in order, the glob-scoped merge
// strategies that govern resynthesis of that repository. Users may edit it to
// change how future runs treat their files.
package ownership

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/blueprint/internal/errors"
)

// FileName is the ownership file location relative to the repository root.
const FileName = "blueprint.ownership"

const header = `# Resynthesis ownership for this repository.
#
# Each strategy maps globs to a merge strategy. When several strategies match
# a path, the one listed last wins. Edit this file to change how future
# resynthesis runs treat your files.
`

// Strategy binds a set of globs to a named merge strategy.
type Strategy struct {
	// Identifier is stable across runs and used for deduplication and audit logs.
	Identifier string `yaml:"identifier" json:"identifier"`

	// Owner is the package ("name" or "name@version") or local file that registered the strategy.
	Owner string `yaml:"owner,omitempty" json:"owner,omitempty"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Strategy names a merge function ("useProposed", "neverUpdate", ...).
	Strategy string `yaml:"strategy" json:"strategy"`

	Globs []string `yaml:"globs" json:"globs"`
}

// Descriptor is the ordered set of strategies for one repository.
type Descriptor struct {
	Strategies []Strategy `yaml:"strategies"`
}

// Lookup returns the strategy with the given identifier.
func (d Descriptor) Lookup(identifier string) (Strategy, bool) {
	for _, s := range d.Strategies {
		if s.Identifier == identifier {
			return s, true
		}
	}
	return Strategy{}, false
}

// Append returns a descriptor holding d's strategies followed by every
// strategy whose identifier d does not already carry. Existing entries win
// so that hand edits to the ownership file survive resynthesis.
func (d Descriptor) Append(strategies ...Strategy) Descriptor {
	out := Descriptor{Strategies: cloneStrategies(d.Strategies)}
	seen := make(map[string]struct{}, len(out.Strategies))
	for _, s := range out.Strategies {
		seen[s.Identifier] = struct{}{}
	}
	for _, s := range strategies {
		if _, ok := seen[s.Identifier]; ok {
			continue
		}
		seen[s.Identifier] = struct{}{}
		out.Strategies = append(out.Strategies, cloneStrategy(s))
	}
	return out
}

// AsString renders d as ownership file text. Strategies without an owner are
// attributed to owner. If neither is set the file would have no accountable
// owner and a configuration error is returned. A descriptor AsObject would
// reject is refused with a parse error, so a written file always reads back.
func AsString(owner string, d Descriptor) (string, error) {
	doc := Descriptor{Strategies: make([]Strategy, 0, len(d.Strategies))}
	seen := make(map[string]struct{}, len(d.Strategies))
	for _, s := range d.Strategies {
		if detail := checkStrategy(s, nil); detail != "" {
			return "", errors.New(errors.CodeOwnershipParse).WithDetail(detail)
		}
		if _, dup := seen[s.Identifier]; dup {
			return "", errors.New(errors.CodeOwnershipParse).
				WithDetailf("identifier %q is used by more than one strategy", s.Identifier)
		}
		seen[s.Identifier] = struct{}{}
		s = cloneStrategy(s)
		if s.Owner == "" {
			s.Owner = owner
		}
		if s.Owner == "" {
			return "", errors.New(errors.CodeOwnerUnresolved).
				WithDetailf("strategy %q has no owner and no package name is configured", s.Identifier).
				WithSuggestion("Set \"name\" in blueprint.json or give the strategy an owner")
		}
		doc.Strategies = append(doc.Strategies, s)
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	if len(doc.Strategies) == 0 {
		buf.WriteString("strategies: []\n")
		return buf.String(), nil
	}
	buf.WriteString("\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encode ownership: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode ownership: %w", err)
	}
	return buf.String(), nil
}

// ParseOption configures AsObject.
type ParseOption func(*parseConfig)

type parseConfig struct {
	file  string
	known map[string]struct{}
}

// WithFile names the file being parsed in error locations.
func WithFile(name string) ParseOption {
	return func(c *parseConfig) { c.file = name }
}

// WithStrategyNames restricts the accepted merge strategy names.
func WithStrategyNames(names ...string) ParseOption {
	return func(c *parseConfig) {
		c.known = make(map[string]struct{}, len(names))
		for _, n := range names {
			c.known[n] = struct{}{}
		}
	}
}

var lineRE = regexp.MustCompile(`line (\d+)`)

// AsObject parses ownership file text. Any malformed content is reported as a
// parse error carrying the offending line; strategies are never dropped
// silently. Empty text yields an empty descriptor.
func AsObject(text string, opts ...ParseOption) (Descriptor, error) {
	cfg := parseConfig{file: FileName}
	for _, opt := range opts {
		opt(&cfg)
	}

	var d Descriptor
	dec := yaml.NewDecoder(strings.NewReader(text))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		if stderrors.Is(err, io.EOF) {
			return Descriptor{}, nil
		}
		return Descriptor{}, parseError(cfg.file, text, lineOf(err), "invalid YAML").Wrap(err)
	}
	for {
		var next yaml.Node
		err := dec.Decode(&next)
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Descriptor{}, parseError(cfg.file, text, lineOf(err), "invalid YAML").Wrap(err)
		}
		if !emptyDocument(&next) {
			return Descriptor{}, parseError(cfg.file, text, next.Line,
				"only one YAML document is allowed; merge the strategies into a single list")
		}
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return Descriptor{}, parseError(cfg.file, text, lineOf(err), "invalid YAML").Wrap(err)
	}
	lines := entryLines(&root)

	seen := make(map[string]int, len(d.Strategies))
	for i, s := range d.Strategies {
		line := 0
		if i < len(lines) {
			line = lines[i]
		}
		if prev, dup := seen[s.Identifier]; dup && s.Identifier != "" {
			return Descriptor{}, parseError(cfg.file, text, line,
				fmt.Sprintf("identifier %q is already used by the strategy at line %d", s.Identifier, prev))
		}
		seen[s.Identifier] = line
		if detail := checkStrategy(s, cfg.known); detail != "" {
			return Descriptor{}, parseError(cfg.file, text, line, detail)
		}
	}
	if len(d.Strategies) == 0 {
		d.Strategies = nil
	}
	return d, nil
}

// checkStrategy returns why s cannot appear in an ownership file, or "".
// A nil known accepts any merge strategy name.
func checkStrategy(s Strategy, known map[string]struct{}) string {
	if s.Identifier == "" {
		return "strategy is missing an identifier"
	}
	if s.Strategy == "" {
		return fmt.Sprintf("strategy %q does not name a merge strategy", s.Identifier)
	}
	if known != nil {
		if _, ok := known[s.Strategy]; !ok {
			return fmt.Sprintf("strategy %q uses unknown merge strategy %q", s.Identifier, s.Strategy)
		}
	}
	if len(s.Globs) == 0 {
		return fmt.Sprintf("strategy %q has no globs", s.Identifier)
	}
	for _, g := range s.Globs {
		if g == "" || !doublestar.ValidatePattern(g) {
			return fmt.Sprintf("strategy %q has invalid glob %q", s.Identifier, g)
		}
	}
	return ""
}

// emptyDocument reports whether n is a document with no content, as left by
// a trailing "---".
func emptyDocument(n *yaml.Node) bool {
	if n.Kind != yaml.DocumentNode {
		return false
	}
	if len(n.Content) == 0 {
		return true
	}
	c := n.Content[0]
	return c.Kind == yaml.ScalarNode && c.ShortTag() == "!!null"
}

func parseError(file, text string, line int, detail string) *errors.BlueprintError {
	return errors.New(errors.CodeOwnershipParse).
		WithLocation(file, line, 0).
		WithSource(text).
		WithDetail(detail)
}

func lineOf(err error) int {
	m := lineRE.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// entryLines returns the line of every item in the strategies sequence.
func entryLines(root *yaml.Node) []int {
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != "strategies" {
			continue
		}
		seq := m.Content[i+1]
		lines := make([]int, 0, len(seq.Content))
		for _, item := range seq.Content {
			lines = append(lines, item.Line)
		}
		return lines
	}
	return nil
}

func cloneStrategy(s Strategy) Strategy {
	s.Globs = append([]string(nil), s.Globs...)
	return s
}

func cloneStrategies(in []Strategy) []Strategy {
	if in == nil {
		return nil
	}
	out := make([]Strategy, len(in))
	for i, s := range in {
		out[i] = cloneStrategy(s)
	}
	return out
}
