package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/blueprint/internal/config"
	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/internal/templates"
)

func initCmd() *cobra.Command {
	var (
		template    string
		name        string
		description string
		repo        string
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a blueprint.json and starter assets",
		Long: `Create a new blueprint project in dir (default: the current directory).

Templates:
  minimal   One repository generated from static assets (default)
  full      Layered strategies, patch bundle and pull request descriptor

Examples:
  blueprint init
  blueprint init site --name=@acme/site
  blueprint init --template=full --repository=web`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, template, templates.Config{
				ProjectName: name,
				Description: description,
				Repository:  repo,
			})
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "minimal", "Project template (minimal, full)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Blueprint package name (default: directory name)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Project description")
	cmd.Flags().StringVarP(&repo, "repository", "r", "", "Title of the first repository (default: package name)")

	return cmd
}

func runInit(dir, templateName string, cfg templates.Config) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if config.Exists(abs) {
		return errors.New(errors.CodeConfigSchema).
			WithDetail(config.ConfigFileName + " already exists in " + abs).
			WithSuggestion("Edit the existing file or choose another directory")
	}

	tmpl, err := templates.Get(templateName)
	if err != nil {
		return err
	}

	if cfg.ProjectName == "" {
		cfg.ProjectName = filepath.Base(abs)
	}
	if cfg.Description == "" {
		cfg.Description = "Generated by blueprint"
	}

	if err := os.MkdirAll(abs, 0755); err != nil {
		return err
	}
	info("Creating project from '%s' template...", templateName)
	if err := tmpl.Create(abs, cfg); err != nil {
		return err
	}

	// The starter must load cleanly before we report success.
	if _, err := config.Load(abs); err != nil {
		return err
	}

	success("Created %s", filepath.Join(abs, config.ConfigFileName))
	info("Run 'blueprint plan' to preview, then 'blueprint synth' to generate.")
	return nil
}
