// Package templates provides blueprint project starters and static asset
// copying.
//
// # Starters
//
//   - minimal: one repository generated from static assets
//   - full: layered strategies, patch bundle and pull request descriptor
//
//	tmpl, err := templates.Get("full")
//	if err := tmpl.Create(projectDir, cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # Static assets
//
// CopyStaticFiles tracks files from the asset directory in a repository.
// Mappings marked as templates are rendered with text/template over the
// repository's substitution values:
//
//	{{.ProjectName}}     - value of "ProjectName" in blueprint.json "substitute"
package templates
