package templates

import (
	"bytes"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/vango-dev/blueprint/internal/errors"
	"github.com/vango-dev/blueprint/pkg/merge"
	"github.com/vango-dev/blueprint/pkg/repository"
)

// Asset is a file read from the static asset directory.
type Asset struct {
	// Path is relative to the asset directory, slash separated.
	Path    string
	Content []byte
}

// Mapping selects assets with the From glob and re-roots them under To.
type Mapping struct {
	From     string
	To       string
	Template bool
}

// FindAll returns every regular file of fsys matching pattern, sorted by
// path. Hidden files are included. An empty pattern matches everything.
func FindAll(fsys fs.FS, pattern string) ([]Asset, error) {
	if pattern == "" {
		pattern = "**"
	}
	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.New(errors.CodeInvalidGlob).WithDetail(pattern).Wrap(err)
	}
	sort.Strings(matches)

	assets := make([]Asset, 0, len(matches))
	for _, m := range matches {
		content, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, err
		}
		assets = append(assets, Asset{Path: m, Content: content})
	}
	return assets, nil
}

// Substitute renders the asset as a text/template over values. Missing keys
// render empty. Binary assets are returned unchanged.
func (a Asset) Substitute(values map[string]string) ([]byte, error) {
	if merge.IsBinary(repository.NewFile(a.Path, a.Content)) {
		return bytes.Clone(a.Content), nil
	}
	tmpl, err := template.New(a.Path).Option("missingkey=zero").Parse(string(a.Content))
	if err != nil {
		return nil, errors.New(errors.CodeTemplateRender).WithLocation(a.Path, 0, 0).Wrap(err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return nil, errors.New(errors.CodeTemplateRender).WithLocation(a.Path, 0, 0).Wrap(err)
	}
	return buf.Bytes(), nil
}

// CopyStaticFiles tracks every asset selected by mappings in repo and returns
// how many files were tracked. The static prefix of each From glob is
// stripped before joining with To, so {From: "web/**", To: "public"} maps
// web/css/site.css to public/css/site.css.
func CopyStaticFiles(repo *repository.Repository, fsys fs.FS, mappings []Mapping, values map[string]string) (int, error) {
	n := 0
	for _, m := range mappings {
		assets, err := FindAll(fsys, m.From)
		if err != nil {
			return n, err
		}
		base, _ := doublestar.SplitPattern(m.From)
		for _, a := range assets {
			content := a.Content
			if m.Template {
				if content, err = a.Substitute(values); err != nil {
					return n, err
				}
			}
			if err := repo.Track(destination(base, a.Path, m.To), content); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func destination(base, p, to string) string {
	rel := p
	if base != "." && base != "" {
		rel = strings.TrimPrefix(p, base+"/")
	}
	if to == "" {
		return rel
	}
	return path.Join(to, rel)
}
