package merge

import "strings"

// Labels annotate conflict markers.
type Labels struct {
	A, O, B string
}

// ConflictFormatter renders one conflicting hunk given the existing (a),
// ancestor (o) and proposed (b) text.
type ConflictFormatter func(a, o, b string, labels Labels) string

// Built-in conflict formatters.
var (
	// TrimEnds wraps only the differing lines in markers, keeping the common
	// leading and trailing lines of both sides outside them.
	TrimEnds ConflictFormatter = trimEnds

	// Diff3Formatter includes the ancestor hunk between "|||||||" and "=======".
	Diff3Formatter ConflictFormatter = func(a, o, b string, l Labels) string {
		return conflictString(a, b, l.A, l.B, &ancestorHunk{text: o, label: l.O})
	}

	// Diff3NoAncestor wraps both whole hunks in markers.
	Diff3NoAncestor ConflictFormatter = func(a, _, b string, l Labels) string {
		return conflictString(a, b, l.A, l.B, nil)
	}

	PreferExistingFormatter ConflictFormatter = func(a, _, _ string, _ Labels) string { return a }
	PreferProposedFormatter ConflictFormatter = func(_, _, b string, _ Labels) string { return b }
)

func trimEnds(a, _, b string, l Labels) string {
	aLines := SplitLines(a)
	bLines := SplitLines(b)
	shortest := min(len(aLines), len(bLines))

	prefix := 0
	for prefix < shortest && aLines[prefix] == bLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < shortest-prefix && aLines[len(aLines)-1-suffix] == bLines[len(bLines)-1-suffix] {
		suffix++
	}

	var out strings.Builder
	for _, line := range aLines[:prefix] {
		out.WriteString(line)
	}
	aMid := aLines[prefix : len(aLines)-suffix]
	bMid := bLines[prefix : len(bLines)-suffix]
	if len(aMid) > 0 || len(bMid) > 0 {
		out.WriteString(conflictString(strings.Join(aMid, ""), strings.Join(bMid, ""), l.A, l.B, nil))
	}
	for _, line := range aLines[len(aLines)-suffix:] {
		out.WriteString(line)
	}
	return out.String()
}

type ancestorHunk struct {
	text  string
	label string
}

func conflictString(a, b, aLabel, bLabel string, o *ancestorHunk) string {
	var out strings.Builder
	out.WriteString(marker('<', aLabel))
	writeTerminated(&out, a)
	if o != nil {
		out.WriteString(marker('|', o.label))
		writeTerminated(&out, o.text)
	}
	out.WriteString(marker('=', ""))
	writeTerminated(&out, b)
	out.WriteString(marker('>', bLabel))
	return out.String()
}

func writeTerminated(b *strings.Builder, s string) {
	b.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		b.WriteByte('\n')
	}
}

func marker(c byte, label string) string {
	m := strings.Repeat(string(c), MarkerLength)
	if label != "" {
		m += " " + label
	}
	return m + "\n"
}
