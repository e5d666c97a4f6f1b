package schema

import (
	"encoding/json"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ParseFile parses a manifest from a YAML or JSON(C) file, chosen by extension.
func ParseFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read file %s: %w", path, err)
	}

	var m Manifest
	if isJSON(path) {
		m, err = ParseJSON(data)
	} else {
		m, err = Parse(data)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse parses a manifest from YAML bytes.
func Parse(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(m); err != nil {
		return Manifest{}, err
	}

	return m, nil
}

// ParseJSON parses a manifest from JSON bytes. Comments and trailing commas
// are allowed.
func ParseJSON(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return Manifest{}, fmt.Errorf("parse json: %w", err)
	}

	if err := Validate(m); err != nil {
		return Manifest{}, err
	}

	return m, nil
}

// ParseDir parses every manifest under dir, including subdirectories, and
// merges their channels in path order.
func ParseDir(dir string) (Manifest, error) {
	var merged Manifest

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Manifest{}, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		var m Manifest
		switch {
		case entry.IsDir():
			m, err = ParseDir(path)
		case isManifest(entry.Name()):
			m, err = ParseFile(path)
		default:
			continue
		}
		if err != nil {
			return Manifest{}, err
		}

		if merged.Package == "" {
			merged.Package = m.Package
		}
		merged.Channels = append(merged.Channels, m.Channels...)
	}

	if err := Validate(merged); err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", dir, err)
	}
	return merged, nil
}

// Load parses path as a file or a directory of manifests.
func Load(path string) (Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ParseDir(path)
	}
	return ParseFile(path)
}

func isJSON(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".json" || ext == ".jsonc"
}

func isManifest(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json", ".jsonc":
		return true
	}
	return false
}

var (
	parameterTypes = map[string]bool{
		"": true, "string": true, "integer": true, "number": true, "boolean": true, "array": true, "object": true,
	}
	itemTypes = map[string]bool{
		"": true, "string": true, "integer": true, "number": true, "boolean": true,
	}
)

// Validate checks what can be checked without building descriptors. Template
// syntax and parameter styles are checked by the descriptor builder.
func Validate(m Manifest) error {
	var errs []string

	if m.Package != "" && !token.IsIdentifier(m.Package) {
		errs = append(errs, fmt.Sprintf("package %q is not a valid identifier", m.Package))
	}

	ids := make(map[string]bool)
	for i, c := range m.Channels {
		if c.ID == "" {
			errs = append(errs, fmt.Sprintf("channel %d: id is required", i))
			continue
		}
		if ids[c.ID] {
			errs = append(errs, fmt.Sprintf("channel %q is declared twice", c.ID))
		}
		ids[c.ID] = true

		errs = append(errs, validateChannel(c)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func validateChannel(c Channel) []string {
	var errs []string

	if c.Address == "" {
		errs = append(errs, fmt.Sprintf("channel %q: address is required", c.ID))
	}
	if len(c.Messages) == 0 {
		errs = append(errs, fmt.Sprintf("channel %q: at least one message is required", c.ID))
	}

	names := make(map[string]bool)
	for _, p := range c.Parameters {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("channel %q: parameter without a name", c.ID))
			continue
		}
		if names[p.Name] {
			errs = append(errs, fmt.Sprintf("channel %q: parameter %q is declared twice", c.ID, p.Name))
		}
		names[p.Name] = true

		if !parameterTypes[p.Type] {
			errs = append(errs, fmt.Sprintf("channel %q: parameter %q: unknown type %q", c.ID, p.Name, p.Type))
		}
		if !itemTypes[p.Items] {
			errs = append(errs, fmt.Sprintf("channel %q: parameter %q: unknown items type %q", c.ID, p.Name, p.Items))
		}
	}

	for _, msgs := range [][]Message{c.Messages, c.Reply} {
		for _, msg := range msgs {
			typ := msg.GoType
			if typ == "" {
				typ = msg.Name
			}
			if !token.IsIdentifier(typ) {
				errs = append(errs, fmt.Sprintf("channel %q: message type %q is not a valid identifier", c.ID, typ))
			}
		}
	}

	if c.Headers != nil && !token.IsIdentifier(c.Headers.GoType) {
		errs = append(errs, fmt.Sprintf("channel %q: header type %q is not a valid identifier", c.ID, c.Headers.GoType))
	}

	return errs
}
