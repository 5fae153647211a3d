// Package difference renders the changes a resynthesis made to a repository
// as git-style patches and bundles them into pull request descriptors.
package difference

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/sourcegraph/go-diff/diff"

	"github.com/vango-dev/blueprint/pkg/merge"
	"github.com/vango-dev/blueprint/pkg/repository"
)

// ContextLines is the number of unchanged lines kept around each hunk.
const ContextLines = 3

const noNewline = "\\ No newline at end of file\n"

const devNull = "/dev/null"

type line struct {
	kind byte
	text string
}

// Patch renders the change from before to after as a git-style unified diff.
// Either side may be nil for created or deleted files. It returns nil when
// both sides hold the same content.
func Patch(p string, before, after *repository.File) ([]byte, error) {
	if repository.SameContent(before, after) {
		return nil, nil
	}

	fd := &diff.FileDiff{
		OrigName: "a/" + p,
		NewName:  "b/" + p,
		Extended: []string{fmt.Sprintf("diff --git a/%s b/%s", p, p)},
	}
	switch {
	case before == nil:
		fd.OrigName = devNull
		fd.Extended = append(fd.Extended, "new file mode 100644")
	case after == nil:
		fd.NewName = devNull
		fd.Extended = append(fd.Extended, "deleted file mode 100644")
	}

	var a, b []byte
	if before != nil {
		a = before.Content
	}
	if after != nil {
		b = after.Content
	}
	if merge.IsBinary(before) || merge.IsBinary(after) {
		fd.Extended = append(fd.Extended, fmt.Sprintf("Binary files %s and %s differ", fd.OrigName, fd.NewName))
		return diff.PrintFileDiff(fd)
	}

	fd.Hunks = hunks(flatten(merge.DiffLines(string(a), string(b))), ContextLines)
	return diff.PrintFileDiff(fd)
}

func flatten(ops []merge.LineOp) []line {
	var out []line
	for _, op := range ops {
		kind := byte(' ')
		switch op.Type {
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		}
		for _, l := range op.Lines {
			out = append(out, line{kind: kind, text: l})
		}
	}
	return out
}

// hunks groups changed lines into hunks, merging changes separated by at
// most 2*context unchanged lines.
func hunks(lines []line, context int) []*diff.Hunk {
	var out []*diff.Hunk
	i := 0
	for i < len(lines) {
		for i < len(lines) && lines[i].kind == ' ' {
			i++
		}
		if i == len(lines) {
			break
		}

		start := max(i-context, 0)
		end := i + 1
		for j := i; j < len(lines); j++ {
			if lines[j].kind != ' ' {
				end = j + 1
				continue
			}
			if j-end+1 > 2*context {
				break
			}
		}
		end = min(end+context, len(lines))

		out = append(out, hunk(lines, start, end))
		i = end
	}
	return out
}

func hunk(lines []line, start, end int) *diff.Hunk {
	var origBefore, newBefore int32
	for _, l := range lines[:start] {
		if l.kind != '+' {
			origBefore++
		}
		if l.kind != '-' {
			newBefore++
		}
	}

	h := &diff.Hunk{}
	var body strings.Builder
	for _, l := range lines[start:end] {
		if l.kind != '+' {
			h.OrigLines++
		}
		if l.kind != '-' {
			h.NewLines++
		}
		body.WriteByte(l.kind)
		body.WriteString(l.text)
		if !strings.HasSuffix(l.text, "\n") {
			body.WriteString("\n")
			body.WriteString(noNewline)
		}
	}
	h.Body = []byte(body.String())

	h.OrigStartLine = origBefore
	if h.OrigLines > 0 {
		h.OrigStartLine++
	}
	h.NewStartLine = newBefore
	if h.NewLines > 0 {
		h.NewStartLine++
	}
	return h
}
