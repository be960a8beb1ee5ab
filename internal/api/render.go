package api

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
)

var ErrTemplateNotFound = errors.New("template not found")

// Renderer turns a named template and its data into a page.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses every *.html file in dir.
func NewTemplateRenderer(dir string) (*TemplateRenderer, error) {
	tmpl, err := template.ParseGlob(filepath.Join(dir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("parse templates in %s: %w", dir, err)
	}
	return &TemplateRenderer{templates: tmpl}, nil
}

func (t *TemplateRenderer) Render(w io.Writer, name string, data any) error {
	if t.templates.Lookup(name) == nil {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	if err := t.templates.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return nil
}
