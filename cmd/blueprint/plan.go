package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vango-dev/blueprint/pkg/resynth"
)

func planCmd() *cobra.Command {
	var (
		showDiff bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "plan [repository]",
		Short: "Show what synth would change, without writing",
		Long: `Resolve every path as synth would and print the outcome, the ownership
strategy that matched and the merge that produced the result. Nothing is
written to disk and the ancestor store is left untouched.

Examples:
  blueprint plan
  blueprint plan web --diff
  blueprint plan --verbose`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			bp, err := s.blueprint(ctx, nil)
			if err != nil {
				return err
			}

			var results []*resynth.Result
			if len(args) == 1 {
				res, err := bp.PreviewRepository(ctx, args[0])
				if err != nil {
					return err
				}
				results = []*resynth.Result{res}
			} else {
				report, err := bp.Preview(ctx)
				if err != nil {
					return err
				}
				results = report.Results
			}

			for _, res := range results {
				fmt.Printf("\n%s\n", res.Repository)
				if err := res.Plan.WriteReport(os.Stdout, verbose); err != nil {
					return err
				}
			}
			if !showDiff {
				return nil
			}

			sets, err := bp.Differences(results)
			if err != nil {
				return err
			}
			for _, set := range sets {
				paths := make([]string, 0, len(set.Patches))
				for p := range set.Patches {
					paths = append(paths, p)
				}
				sort.Strings(paths)
				for _, p := range paths {
					os.Stdout.Write(set.Patches[p])
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showDiff, "diff", "d", false, "Print unified patches against the files on disk")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include unchanged paths")

	return cmd
}
