package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"

	"github.com/Boostport/mjml-go"
)

type TemplateName string

const (
	TemplateVerifyCode TemplateName = "verify-code"
	TemplateWelcome    TemplateName = "welcome"
)

// KnownTemplates is the fixed set every Registry must provide.
var KnownTemplates = []TemplateName{TemplateVerifyCode, TemplateWelcome}

var ErrUnknownTemplate = errors.New("unknown email template")

//go:embed templates/*.mjml
var embeddedTemplates embed.FS

type VerifyCodeData struct {
	Code             string
	ExpiresInMinutes int
	ProductName      string
	BaseURL          string
	Year             int
}

type WelcomeData struct {
	UserName    string
	ProductName string
	BaseURL     string
	Year        int
}

// Warning is one validation problem the MJML compiler tolerated.
type Warning struct {
	Line    int
	Tag     string
	Message string
}

func (w Warning) String() string {
	if w.Tag == "" {
		return w.Message
	}
	return fmt.Sprintf("line %d <%s>: %s", w.Line, w.Tag, w.Message)
}

type Rendered struct {
	HTML     string
	Warnings []Warning
}

type Registry struct {
	templates map[TemplateName]*template.Template
}

// NewRegistry parses the embedded templates.
func NewRegistry() (*Registry, error) {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return nil, err
	}
	return NewRegistryFromFS(sub)
}

// NewRegistryFromFS parses <name>.mjml for every known template. A missing or
// malformed file is an error so bad templates stop the process at boot.
func NewRegistryFromFS(fsys fs.FS) (*Registry, error) {
	r := &Registry{templates: make(map[TemplateName]*template.Template, len(KnownTemplates))}

	for _, name := range KnownTemplates {
		src, err := fs.ReadFile(fsys, string(name)+".mjml")
		if err != nil {
			return nil, fmt.Errorf("email template %q: %w", name, err)
		}
		tmpl, err := template.New(string(name)).Option("missingkey=error").Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("email template %q: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

// Render substitutes data into the template, then compiles the MJML with soft
// validation. Validation problems are returned as warnings, never raised.
func (r *Registry) Render(ctx context.Context, name TemplateName, data any) (Rendered, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("render %q: %w", name, err)
	}
	src := buf.String()

	html, err := mjml.ToHTML(ctx, src, mjml.WithValidationLevel(mjml.Soft))
	if err != nil {
		return Rendered{}, fmt.Errorf("compile %q: %w", name, err)
	}
	return Rendered{HTML: html, Warnings: validate(ctx, src)}, nil
}

// validate recompiles src in strict mode to collect what soft mode let through.
func validate(ctx context.Context, src string) []Warning {
	_, err := mjml.ToHTML(ctx, src, mjml.WithValidationLevel(mjml.Strict))

	var compileErr mjml.Error
	if !errors.As(err, &compileErr) {
		return nil
	}

	warnings := make([]Warning, 0, len(compileErr.Details))
	for _, d := range compileErr.Details {
		warnings = append(warnings, Warning{Line: d.Line, Tag: d.TagName, Message: d.Message})
	}
	if len(warnings) == 0 {
		warnings = append(warnings, Warning{Message: compileErr.Message})
	}
	return warnings
}
