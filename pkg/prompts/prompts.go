// Package prompts holds the prompt templates sent to the SQL generator.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

// Templates is the YAML shape of a prompts file.
type Templates struct {
	System     string `yaml:"system"`
	Regenerate string `yaml:"regenerate"`
	Repair     string `yaml:"repair"`
}

// Set is a compiled, immutable set of prompts. Safe for concurrent use.
type Set struct {
	system     *template.Template
	regenerate *template.Template
	repair     *template.Template
}

type systemData struct {
	Dialect string
}

type regenerateData struct {
	Error string
}

type repairData struct {
	Question string
	SQL      string
	Error    string
}

// Default returns the built-in prompts.
func Default() *Set {
	var t Templates
	if err := yaml.Unmarshal(defaultPromptsYAML, &t); err != nil {
		panic(fmt.Sprintf("prompts: invalid embedded prompts.yaml: %v", err))
	}
	set, err := compile(t)
	if err != nil {
		panic(fmt.Sprintf("prompts: invalid embedded prompts.yaml: %v", err))
	}
	return set
}

// Load reads a prompts file. Keys absent from the file keep their built-in
// value. An empty path returns Default().
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}

	var t Templates
	if err := yaml.Unmarshal(defaultPromptsYAML, &t); err != nil {
		return nil, fmt.Errorf("parse built-in prompts: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	set, err := compile(t)
	if err != nil {
		return nil, fmt.Errorf("prompts file %s: %w", path, err)
	}
	return set, nil
}

func compile(t Templates) (*Set, error) {
	if strings.TrimSpace(t.System) == "" {
		return nil, fmt.Errorf("system prompt is empty")
	}

	system, err := template.New("system").Option("missingkey=error").Parse(strings.TrimSpace(t.System))
	if err != nil {
		return nil, fmt.Errorf("system template: %w", err)
	}
	regenerate, err := template.New("regenerate").Option("missingkey=error").Parse(t.Regenerate)
	if err != nil {
		return nil, fmt.Errorf("regenerate template: %w", err)
	}
	repair, err := template.New("repair").Option("missingkey=error").Parse(t.Repair)
	if err != nil {
		return nil, fmt.Errorf("repair template: %w", err)
	}

	set := &Set{
		system:     system,
		regenerate: regenerate,
		repair:     repair,
	}

	// Templates referencing unknown fields only fail at execution time.
	if _, err := set.System("SQL", ""); err != nil {
		return nil, err
	}
	if _, err := set.Regenerate("x"); err != nil {
		return nil, err
	}
	if _, err := set.Repair("x", "x", "x"); err != nil {
		return nil, err
	}
	return set, nil
}

// System renders the system prompt for a dialect display name, such as
// "PostgreSQL", followed by the schema context.
func (s *Set) System(dialect, schemaContext string) (string, error) {
	var b strings.Builder
	if err := s.system.Execute(&b, systemData{Dialect: dialect}); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	if schemaContext == "" {
		return b.String(), nil
	}
	return b.String() + "\n\n" + schemaContext, nil
}

// SystemWithError is the system prompt for a regeneration after a rejected
// attempt: System plus the regenerate note carrying the error.
func (s *Set) SystemWithError(dialect, schemaContext, lastError string) (string, error) {
	base, err := s.System(dialect, schemaContext)
	if err != nil || lastError == "" {
		return base, err
	}
	note, err := s.Regenerate(lastError)
	if err != nil {
		return "", err
	}
	return base + "\n\n" + note, nil
}

// Regenerate renders the note telling the generator why its last query failed.
func (s *Set) Regenerate(lastError string) (string, error) {
	var b strings.Builder
	if err := s.regenerate.Execute(&b, regenerateData{Error: lastError}); err != nil {
		return "", fmt.Errorf("render regenerate prompt: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}

// Repair renders the user message asking the generator to fix invalidSQL.
func (s *Set) Repair(question, invalidSQL, errorMessage string) (string, error) {
	var b strings.Builder
	if err := s.repair.Execute(&b, repairData{Question: question, SQL: invalidSQL, Error: errorMessage}); err != nil {
		return "", fmt.Errorf("render repair prompt: %w", err)
	}
	return strings.TrimSpace(b.String()), nil
}
