package resynth

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteReport prints one aligned line per resolved path.
func (p *Plan) WriteReport(w io.Writer, verbose bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range p.Resolutions {
		if !verbose && !r.Outcome.Changes() {
			continue
		}
		mark := ""
		if r.Overrode {
			mark = " (override)"
		}
		if _, err := fmt.Fprintf(tw, "%s\t[%s]\t%s\t%s%s\n", r.Outcome, r.Strategy, r.Merge, r.Path, mark); err != nil {
			return err
		}
	}
	return tw.Flush()
}
