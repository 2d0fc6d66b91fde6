package templates

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"dcaadvisor/pkg/errors"
)

//go:embed assets/**/*.tmpl
var embeddedFS embed.FS

// Template ids of the bundled prompts
const (
	AdvisorSystemPrompt = "prompts/advisor_system"
	ToolProtocolPrompt  = "prompts/tool_protocol"
)

// Template is one parsed prompt template.
type Template struct {
	ID      string
	Path    string
	Content string

	parsed *template.Template
}

// Render executes the template with data.
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.parsed.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render template %s", t.ID)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Registry resolves templates by id, where the id is the slash path
// relative to the root without the .tmpl extension.
type Registry struct {
	fs        fs.FS
	templates map[string]*Template
	mu        sync.RWMutex
}

// NewRegistry loads every template below basePath on disk.
func NewRegistry(basePath string) (*Registry, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, errors.Wrap(err, "resolve template base path")
	}
	return NewRegistryFromFS(os.DirFS(abs))
}

// NewRegistryFromFS loads every template of filesystem.
func NewRegistryFromFS(filesystem fs.FS) (*Registry, error) {
	r := &Registry{
		fs:        filesystem,
		templates: map[string]*Template{},
	}
	if err := r.loadAll(); err != nil {
		return nil, err
	}
	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Get returns the registry of the bundled prompts.
func Get() *Registry {
	defaultOnce.Do(func() {
		var sub fs.FS
		sub, defaultErr = fs.Sub(embeddedFS, "assets")
		if defaultErr == nil {
			defaultRegistry, defaultErr = NewRegistryFromFS(sub)
		}
	})

	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultRegistry
}

// GetTemplate returns the template with id. Files added after the registry
// was built are picked up on first request.
func (r *Registry) GetTemplate(id string) (*Template, error) {
	r.mu.RLock()
	tmpl, ok := r.templates[id]
	r.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	file := id + ".tmpl"
	if _, err := fs.Stat(r.fs, file); err != nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "template %s", id)
	}
	if err := r.load(file); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.templates[id], nil
}

// Render executes the template with id.
func (r *Registry) Render(id string, data any) (string, error) {
	tmpl, err := r.GetTemplate(id)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

// List returns the known template ids, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.templates))
	for id := range r.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) loadAll() error {
	return fs.WalkDir(r.fs, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".tmpl" {
			return nil
		}
		return r.load(p)
	})
}

func (r *Registry) load(file string) error {
	id := strings.TrimSuffix(strings.TrimPrefix(filepath.ToSlash(file), "/"), ".tmpl")

	content, err := fs.ReadFile(r.fs, file)
	if err != nil {
		return errors.Wrapf(err, "read template %s", id)
	}

	parsed, err := template.New(id).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return errors.Wrapf(err, "parse template %s", id)
	}

	r.mu.Lock()
	r.templates[id] = &Template{
		ID:      id,
		Path:    file,
		Content: string(content),
		parsed:  parsed,
	}
	r.mu.Unlock()
	return nil
}
