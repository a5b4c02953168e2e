package llm

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Prompt template names.
const (
	PromptIdentifyScreens = "identify_screens"
	PromptComposeWorkflow = "compose_workflow"
	PromptScreenSpec      = "screen_spec"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Prompts renders the named prompt templates. Files in an override
// directory replace the embedded template of the same name.
type Prompts struct {
	templates map[string]*template.Template
}

var promptFuncs = template.FuncMap{
	"join": strings.Join,
}

// LoadPrompts parses the embedded templates and then any
// <name>.tmpl files found in overrideDir.
func LoadPrompts(overrideDir string) (*Prompts, error) {
	p := &Prompts{templates: make(map[string]*template.Template)}

	entries, err := promptFS.ReadDir("prompts")
	if err != nil {
		return nil, fmt.Errorf("reading embedded prompts: %w", err)
	}
	for _, entry := range entries {
		data, err := promptFS.ReadFile("prompts/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading prompt %s: %w", entry.Name(), err)
		}
		if err := p.add(entry.Name(), string(data)); err != nil {
			return nil, err
		}
	}

	if overrideDir == "" {
		return p, nil
	}
	matches, err := filepath.Glob(filepath.Join(overrideDir, "*.tmpl"))
	if err != nil {
		return nil, fmt.Errorf("listing prompt overrides: %w", err)
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading prompt override %s: %w", path, err)
		}
		if err := p.add(filepath.Base(path), string(data)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// MustLoadPrompts returns the embedded templates and panics if they are
// malformed.
func MustLoadPrompts() *Prompts {
	p, err := LoadPrompts("")
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Prompts) add(file, text string) error {
	name := strings.TrimSuffix(file, ".tmpl")
	tmpl, err := template.New(name).Funcs(promptFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return fmt.Errorf("parsing prompt %s: %w", name, err)
	}
	p.templates[name] = tmpl
	return nil
}

// Render executes the named template with data.
func (p *Prompts) Render(name string, data any) (string, error) {
	tmpl, ok := p.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", name, err)
	}
	return buf.String(), nil
}
