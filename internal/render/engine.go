package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// Option configures the engine before construction.
type Option func(*config)

type config struct {
	baseDir    string
	templates  fs.FS
	extension  string
	globalData map[string]any
}

// WithBaseDir loads templates from a directory on disk instead of the
// embedded set, for deployments that override the wizard markup.
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

// WithGlobalData seeds context values available to every template, such as
// the service name and phase banner.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[key] = value
		}
	}
}

// Engine renders wizard pages through a pongo2 template set. Compiled
// templates are cached; the cache is safe for concurrent handlers.
type Engine struct {
	mu sync.RWMutex

	templateSet *pongo2.TemplateSet
	templates   map[string]*pongo2.Template
	tplExt      string
	globalData  map[string]any
}

// New constructs an Engine. With no options it serves the embedded wizard
// templates.
func New(options ...Option) (*Engine, error) {
	cfg := &config{extension: ".html"}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("render: create local loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.templates != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.templates))
	}
	if len(loaders) == 0 {
		loaders = append(loaders, pongo2.NewFSLoader(Templates()))
	}

	engine := &Engine{
		templateSet: pongo2.NewSet("formrunner", loaders...),
		templates:   make(map[string]*pongo2.Template),
		tplExt:      cfg.extension,
		globalData:  cfg.globalData,
	}
	return engine, nil
}

// Render writes the named template with the given data.
func (e *Engine) Render(w io.Writer, name string, data map[string]any) error {
	if name == "" {
		return errors.New("render: empty template name")
	}

	tpl, err := e.template(name)
	if err != nil {
		return err
	}

	ctx := make(pongo2.Context, len(e.globalData)+len(data))
	for key, value := range e.globalData {
		ctx[key] = value
	}
	for key, value := range data {
		ctx[key] = value
	}

	if err := tpl.ExecuteWriter(ctx, w); err != nil {
		return fmt.Errorf("render: execute %q: %w", name, err)
	}
	return nil
}

// RenderString is Render into a string, used by tests and the CLI.
func (e *Engine) RenderString(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := e.Render(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *Engine) template(name string) (*pongo2.Template, error) {
	filename := name
	if !strings.HasSuffix(filename, e.tplExt) {
		filename += e.tplExt
	}

	e.mu.RLock()
	tpl, ok := e.templates[filename]
	e.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if tpl, ok := e.templates[filename]; ok {
		return tpl, nil
	}

	tpl, err := e.templateSet.FromFile(filename)
	if err != nil {
		return nil, fmt.Errorf("render: load %q: %w", filename, err)
	}
	e.templates[filename] = tpl
	return tpl, nil
}
