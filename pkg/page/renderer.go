// Package page renders the upload and result pages of the compositing
// front-end through a pongo2-backed template set.
package page

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	gotemplatepkg "github.com/goliatone/go-template"

	"github.com/goliatone/go-scenemerge/pkg/merge"
)

const (
	uploadTemplate = "upload"
	resultTemplate = "result"
)

// Option configures the page renderer before construction.
type Option func(*config)

type config struct {
	baseDir    string
	templates  fs.FS
	extension  string
	globalData map[string]any
	theme      *themeContext
}

// WithBaseDir loads templates from a directory on disk.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithFS loads templates from an fs.FS.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithExtension overrides the default template extension.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.extension = trimmed
	}
}

// WithGlobalData seeds context values available to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// WithGoTemplateOptions exists for compatibility with the shared go-template
// configuration surface and is currently a no-op.
func WithGoTemplateOptions(_ ...gotemplatepkg.Option) Option {
	return func(*config) {}
}

// UploadData feeds the upload page template.
type UploadData struct {
	// ProductURL pre-populates the product image URL, typically from the img
	// query parameter.
	ProductURL string

	// Mergers lists the selectable merge providers.
	Mergers []string

	// Error carries a user-facing failure message from a previous attempt.
	Error string
}

// ResultData feeds the result page template.
type ResultData struct {
	// CompositeDataURL inlines the composite image.
	CompositeDataURL string

	// Instructions echoes the sanitized placement guidance.
	Instructions string

	// Status is the terminal pipeline status.
	Status merge.Status
}

// Renderer renders the front-end pages. Safe for concurrent use.
type Renderer struct {
	mu sync.RWMutex

	templateSet *pongo2.TemplateSet
	templates   map[string]*pongo2.Template
	tplExt      string
	globalData  map[string]any
	theme       *themeContext
}

// New constructs a Renderer using the provided configuration options. When no
// template location is configured the embedded defaults are used.
func New(options ...Option) (*Renderer, error) {
	cfg := &config{
		extension: ".html",
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	if cfg.baseDir == "" && cfg.templates == nil {
		cfg.templates = TemplatesFS()
	}

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("page: create local loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.templates != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.templates))
	}

	return &Renderer{
		templateSet: pongo2.NewSet("scenemerge", loaders...),
		templates:   make(map[string]*pongo2.Template),
		tplExt:      cfg.extension,
		globalData:  cfg.globalData,
		theme:       cfg.theme,
	}, nil
}

// RenderUpload renders the upload page.
func (r *Renderer) RenderUpload(data UploadData) ([]byte, error) {
	return r.render(uploadTemplate, pongo2.Context{
		"product_url": data.ProductURL,
		"mergers":     data.Mergers,
		"error":       data.Error,
	})
}

// RenderResult renders the result page.
func (r *Renderer) RenderResult(data ResultData) ([]byte, error) {
	return r.render(resultTemplate, pongo2.Context{
		"composite_data_url": data.CompositeDataURL,
		"instructions":       data.Instructions,
		"status":             data.Status.String(),
	})
}

func (r *Renderer) render(name string, data pongo2.Context) ([]byte, error) {
	if r == nil || r.templateSet == nil {
		return nil, errors.New("page: renderer is nil")
	}

	tmpl, err := r.getTemplate(name + r.tplExt)
	if err != nil {
		return nil, err
	}

	viewContext := pongo2.Context{}
	for key, value := range r.globalData {
		viewContext[key] = value
	}
	viewContext["theme"] = r.themeView()
	viewContext.Update(data)

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(viewContext, &buf); err != nil {
		return nil, fmt.Errorf("page: execute template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) getTemplate(path string) (*pongo2.Template, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[path]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.templates[path]; ok {
		return tmpl, nil
	}

	tmpl, err := r.templateSet.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("page: load template %q: %w", path, err)
	}
	r.templates[path] = tmpl
	return tmpl, nil
}
