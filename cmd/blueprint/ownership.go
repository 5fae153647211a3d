package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/blueprint/internal/config"
	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/merge"
	"github.com/vango-dev/blueprint/pkg/ownership"
	"github.com/vango-dev/blueprint/pkg/repository"
)

func ownershipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ownership",
		Short: "Inspect and validate ownership files",
		Long: `Every synthesized repository carries a blueprint.ownership file listing
the strategies that decide who owns each path. Later strategies take
precedence over earlier ones.`,
	}
	cmd.AddCommand(ownershipShowCmd(), ownershipValidateCmd())
	return cmd
}

func ownershipShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <repository>",
		Short: "Print the strategies recorded for a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromWorkingDir()
			if err != nil {
				return err
			}
			path, err := ownershipPath(cfg, args[0])
			if err != nil {
				return err
			}
			d, err := ownership.ReadFile(path, ownership.WithStrategyNames(merge.Names()...))
			if err != nil {
				return err
			}
			if len(d.Strategies) == 0 {
				info("%s has no ownership strategies", args[0])
				return nil
			}
			for _, s := range d.Strategies {
				fmt.Printf("%s\t%s\t%s\t%s\n", s.Identifier, s.Strategy, s.Owner, strings.Join(s.Globs, " "))
			}
			return nil
		},
	}
}

func ownershipValidateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate [repository...]",
		Short: "Parse ownership files and report the first error in each",
		Long: `Parse ownership files and check every strategy names a known merge.

Without arguments every repository in blueprint.json is checked. --file
checks a single ownership file outside any project.

Examples:
  blueprint ownership validate
  blueprint ownership validate web
  blueprint ownership validate --file=./blueprint.ownership`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				return validateOwnership(file)
			}

			cfg, err := config.LoadFromWorkingDir()
			if err != nil {
				return err
			}
			titles := args
			if len(titles) == 0 {
				for _, rc := range cfg.Repositories {
					titles = append(titles, rc.Title)
				}
			}

			failed := 0
			for _, title := range titles {
				path, err := ownershipPath(cfg, title)
				if err == nil {
					err = validateOwnership(path)
				}
				if err != nil {
					errors.PrintError(err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d ownership files are invalid", failed, len(titles))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Validate a single ownership file")

	return cmd
}

func validateOwnership(path string) error {
	if _, err := os.Stat(path); err != nil {
		warn("%s does not exist yet", path)
		return nil
	}
	d, err := ownership.ReadFile(path, ownership.WithStrategyNames(merge.Names()...))
	if err != nil {
		return err
	}
	success("%s: %d strategies", path, len(d.Strategies))
	return nil
}

func ownershipPath(cfg *config.Config, title string) (string, error) {
	for _, rc := range cfg.Repositories {
		if rc.Title == title || repository.ValidFolder(rc.Title) == title {
			return filepath.Join(cfg.OutputPath(), repository.SourceRoot, repository.ValidFolder(rc.Title), ownership.FileName), nil
		}
	}
	return "", errors.New(errors.CodeInvalidRepository).
		WithDetailf("no repository titled %q in %s", title, config.ConfigFileName)
}
