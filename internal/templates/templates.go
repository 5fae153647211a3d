package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/vango-dev/blueprint/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the blueprint package name.
	ProjectName string

	// Description is a short project description.
	Description string

	// Repository is the title of the first synthesized repository.
	Repository string
}

// Template represents a blueprint project starter.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// Files is a map of relative paths to file contents.
	Files map[string]string
}

// Available templates.
var templates = map[string]*Template{
	"minimal": minimalTemplate(),
	"full":    fullTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New(errors.CodeTemplateNotFound).
			WithDetail("Template '" + name + "' not found").
			WithSuggestion("Available templates: full, minimal")
	}
	return tmpl, nil
}

// List returns all available template names, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create generates a project from the template.
func (t *Template) Create(dir string, cfg Config) error {
	if cfg.Repository == "" {
		cfg.Repository = cfg.ProjectName
	}
	for relPath, content := range t.Files {
		tmpl, err := template.New(relPath).Parse(content)
		if err != nil {
			return errors.New(errors.CodeTemplateRender).WithLocation(relPath, 0, 0).Wrap(err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, cfg); err != nil {
			return errors.New(errors.CodeTemplateRender).WithLocation(relPath, 0, 0).Wrap(err)
		}

		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return err
		}

		if err := os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
			return err
		}
	}

	return nil
}

func minimalTemplate() *Template {
	return &Template{
		Name:        "minimal",
		Description: "One repository generated from static assets",
		Files: map[string]string{
			"blueprint.json": `{
  "name": "{{.ProjectName}}",
  "version": "0.1.0",
  "repositories": [
    {
      "title": "{{.Repository}}",
      "assets": [{"from": "**", "template": true}],
      "substitute": {"ProjectName": "{{.ProjectName}}"}
    }
  ]
}
`,
			"static-assets/README.md": `# {{"{{"}}.ProjectName{{"}}"}}

{{.Description}}
`,
			".gitignore": `.blueprint/
`,
		},
	}
}

func fullTemplate() *Template {
	return &Template{
		Name:        "full",
		Description: "Layered strategies, patch bundle and pull request descriptor",
		Files: map[string]string{
			"blueprint.json": `{
  "name": "{{.ProjectName}}",
  "version": "0.1.0",
  "repositories": [
    {
      "title": "{{.Repository}}",
      "assets": [
        {"from": "app/**", "template": true},
        {"from": "public/**", "to": "public"}
      ],
      "substitute": {"ProjectName": "{{.ProjectName}}"},
      "strategies": [
        {
          "identifier": "merge_sources",
          "description": "Generated sources are merged with user edits.",
          "strategy": "threeWayMerge",
          "globs": ["**"]
        },
        {
          "identifier": "keep_public",
          "description": "Public files belong to the user once generated.",
          "strategy": "neverUpdate",
          "globs": ["public/**"]
        }
      ]
    }
  ],
  "resynthesis": {"strict": true},
  "ancestors": {"driver": "fs", "dir": ".blueprint/ancestors"},
  "diffs": {
    "enabled": true,
    "originBranch": "main",
    "title": "Update {{.ProjectName}}",
    "description": "Resynthesized from the latest blueprint."
  }
}
`,
			"static-assets/app/README.md": `# {{"{{"}}.ProjectName{{"}}"}}

{{.Description}}
`,
			"static-assets/app/.editorconfig": `root = true

[*]
indent_style = space
indent_size = 2
`,
			"static-assets/public/robots.txt": `User-agent: *
Allow: /
`,
			".gitignore": `.blueprint/
`,
		},
	}
}
