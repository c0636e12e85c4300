package placeholder

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Layouts renders resolved email bodies inside pongo2 layout templates loaded
// from an fs.FS. A layout receives `subject`, `body` (already resolved and
// marked safe) and `values` (the form data).
type Layouts struct {
	mu        sync.RWMutex
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
	ext       string
}

// NewLayouts constructs a layout set. ext defaults to ".html".
func NewLayouts(files fs.FS, ext string) (*Layouts, error) {
	if files == nil {
		return nil, errors.New("placeholder: layouts need a filesystem")
	}
	ext = strings.TrimSpace(ext)
	if ext == "" {
		ext = ".html"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Layouts{
		set:       pongo2.NewSet("formwizard-email", pongo2.NewFSLoader(files)),
		templates: make(map[string]*pongo2.Template),
		ext:       ext,
	}, nil
}

// Wrap renders body inside the named layout.
func (l *Layouts) Wrap(name, subject, body string, data model.FormData) (string, error) {
	if l == nil {
		return body, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return body, nil
	}
	tmpl, err := l.template(name)
	if err != nil {
		return "", err
	}

	values := make(map[string]any, len(data))
	for k, v := range data {
		values[k] = v
	}

	var buf bytes.Buffer
	err = tmpl.ExecuteWriter(pongo2.Context{
		"subject": subject,
		"body":    pongo2.AsSafeValue(body),
		"values":  values,
	}, &buf)
	if err != nil {
		return "", fmt.Errorf("placeholder: execute layout %q: %w", name, err)
	}
	return buf.String(), nil
}

func (l *Layouts) template(name string) (*pongo2.Template, error) {
	path := name
	if !strings.HasSuffix(path, l.ext) {
		path += l.ext
	}

	l.mu.RLock()
	tmpl, ok := l.templates[path]
	l.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if tmpl, ok := l.templates[path]; ok {
		return tmpl, nil
	}
	tmpl, err := l.set.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("placeholder: load layout %q: %w", path, err)
	}
	l.templates[path] = tmpl
	return tmpl, nil
}
