package merge

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// MarkerLength is the width of conflict markers.
const MarkerLength = 7

// Options configures Diff3.
type Options struct {
	ExistingLabel string
	AncestorLabel string
	ProposedLabel string

	// Formatter renders conflicting hunks. Defaults to TrimEnds.
	Formatter ConflictFormatter
}

type chunk struct {
	conflict bool
	ok       string
	a, o, b  string
}

// diff3 follows Khanna, Kuber and Pierce, "A Formal Investigation of Diff3".
// Line numbers are 1-based; cur* hold the last consumed line of each input.
type diff3 struct {
	a, o, b []string

	matchA map[int]int
	matchB map[int]int

	curA, curO, curB int
	chunks           []chunk
}

// Diff3 merges existing (a) and proposed (b) against their common ancestor
// (o) line by line. Hunks changed on only one side are taken from that side;
// hunks changed identically on both are taken once; other hunks are rendered
// by the formatter.
func Diff3(a, o, b string, opts Options) string {
	if opts.Formatter == nil {
		opts.Formatter = TrimEnds
	}
	d := &diff3{
		a:      SplitLines(a),
		o:      SplitLines(o),
		b:      SplitLines(b),
		matchA: lineMatches(o, a),
		matchB: lineMatches(o, b),
	}
	d.run()

	labels := Labels{A: opts.ExistingLabel, O: opts.AncestorLabel, B: opts.ProposedLabel}
	var out strings.Builder
	for _, c := range d.chunks {
		if !c.conflict {
			out.WriteString(c.ok)
			continue
		}
		out.WriteString(opts.Formatter(c.a, c.o, c.b, labels))
	}
	return out.String()
}

func (d *diff3) run() {
	for {
		i := d.findMismatch()
		switch {
		case i == 1:
			o, a, aok, b, bok := d.findMatch()
			if !aok || !bok {
				d.pushRemaining()
				return
			}
			d.push(a, o, b)
		case i > 0:
			d.push(d.curA+i, d.curO+i, d.curB+i)
		default:
			d.pushRemaining()
			return
		}
	}
}

// findMismatch returns the offset from the current position to the next line
// where the inputs disagree, or 0 when they agree to the end.
func (d *diff3) findMismatch() int {
	for i := 1; d.curA+i <= len(d.a) || d.curB+i <= len(d.b) || d.curO+i <= len(d.o); i++ {
		if !matchesAt(d.matchA, d.curO+i, d.curA+i) || !matchesAt(d.matchB, d.curO+i, d.curB+i) {
			return i
		}
	}
	return 0
}

// findMatch finds the next ancestor line matched by both sides.
func (d *diff3) findMatch() (o, a int, aok bool, b int, bok bool) {
	o = d.curO + 1
	for o <= len(d.o) {
		_, inA := d.matchA[o]
		_, inB := d.matchB[o]
		if inA && inB {
			break
		}
		o++
	}
	a, aok = d.matchA[o]
	b, bok = d.matchB[o]
	return o, a, aok, b, bok
}

func (d *diff3) pushRemaining() {
	d.push(len(d.a)+1, len(d.o)+1, len(d.b)+1)
}

// push emits the hunk ending before lines a, o and b.
func (d *diff3) push(a, o, b int) {
	oText := strings.Join(d.o[d.curO:o-1], "")
	aText := strings.Join(d.a[d.curA:a-1], "")
	bText := strings.Join(d.b[d.curB:b-1], "")

	switch {
	case oText == aText && oText == bText:
		d.chunks = append(d.chunks, chunk{ok: oText})
	case oText == aText:
		d.chunks = append(d.chunks, chunk{ok: bText})
	case oText == bText:
		d.chunks = append(d.chunks, chunk{ok: aText})
	case aText == bText:
		d.chunks = append(d.chunks, chunk{ok: aText})
	default:
		d.chunks = append(d.chunks, chunk{conflict: true, a: aText, o: oText, b: bText})
	}

	d.curA, d.curO, d.curB = a-1, o-1, b-1
}

func matchesAt(m map[int]int, o, want int) bool {
	got, ok := m[o]
	return ok && got == want
}

// LineOp is a run of lines that are equal in both texts, only in the first
// (delete) or only in the second (insert).
type LineOp struct {
	Type  diffmatchpatch.Operation
	Lines []string
}

// DiffLines computes a line diff turning a into b. Lines keep their
// trailing newline.
func DiffLines(a, b string) []LineOp {
	ra, rb, table := linesToRunes(a, b)
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(ra, rb, false)

	ops := make([]LineOp, 0, len(diffs))
	for _, d := range diffs {
		op := LineOp{Type: d.Type}
		for _, r := range d.Text {
			op.Lines = append(op.Lines, table[r])
		}
		ops = append(ops, op)
	}
	return ops
}

// lineMatches maps 1-based lines of o to the equal lines of x.
func lineMatches(o, x string) map[int]int {
	matches := make(map[int]int)
	oLine, xLine := 1, 1
	for _, op := range DiffLines(o, x) {
		n := len(op.Lines)
		switch op.Type {
		case diffmatchpatch.DiffEqual:
			for i := 0; i < n; i++ {
				matches[oLine+i] = xLine + i
			}
			oLine += n
			xLine += n
		case diffmatchpatch.DiffDelete:
			oLine += n
		case diffmatchpatch.DiffInsert:
			xLine += n
		}
	}
	return matches
}

// linesToRunes encodes every distinct line as one rune so the character diff
// operates on whole lines. Codes skip the surrogate range, which does not
// survive conversion to string.
func linesToRunes(a, b string) ([]rune, []rune, map[rune]string) {
	codes := make(map[string]rune)
	table := make(map[rune]string)
	next := rune(1)
	encode := func(s string) []rune {
		var out []rune
		for _, line := range SplitLines(s) {
			if line == "" {
				continue
			}
			c, ok := codes[line]
			if !ok {
				if next >= 0xD800 && next <= 0xDFFF {
					next = 0xE000
				}
				c = next
				codes[line] = c
				table[c] = line
				next++
			}
			out = append(out, c)
		}
		return out
	}
	return encode(a), encode(b), table
}

// SplitLines splits s after every newline. The final element holds whatever
// follows the last newline and may be empty.
func SplitLines(s string) []string {
	parts := strings.Split(s, "\n")
	for i := 0; i < len(parts)-1; i++ {
		parts[i] += "\n"
	}
	return parts
}
