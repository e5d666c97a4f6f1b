package formatter

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// EncodingFormatter marshals values as they are, ignoring Table and
// Document layouts. Errors become {"error": message}.
type EncodingFormatter struct {
	name, description string
	encode            func(w io.Writer, v any, compact bool) error
}

// NewJSONFormatter returns the json formatter: indented unless Compact.
func NewJSONFormatter() *EncodingFormatter {
	return &EncodingFormatter{name: "json", description: "JSON output format", encode: encodeJSON}
}

// NewYAMLFormatter returns the yaml formatter. Compact has no effect.
func NewYAMLFormatter() *EncodingFormatter {
	return &EncodingFormatter{name: "yaml", description: "YAML output format", encode: encodeYAML}
}

func (f *EncodingFormatter) Name() string        { return f.name }
func (f *EncodingFormatter) Description() string { return f.description }

func (f *EncodingFormatter) Format(w io.Writer, v any, opts FormatOptions) error {
	return f.encode(w, v, opts.Compact)
}

func (f *EncodingFormatter) FormatError(w io.Writer, err error) error {
	return f.encode(w, map[string]string{"error": err.Error()}, false)
}

func encodeJSON(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func encodeYAML(w io.Writer, v any, _ bool) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
