// Package param describes channel parameters and serializes their values into
// address segments and query strings, following the OpenAPI style/explode rules.
//
// Decoding inverts encoding with one exception: a joined array holding a
// single empty string serializes exactly like an empty array, so []any{""}
// decodes as []any{}. Exploded query and matrix arrays keep the distinction.
package param

import (
	"errors"
	"fmt"
	"strings"
)

// Location is where a parameter's value travels.
type Location string

const (
	LocationPath  Location = "path"
	LocationQuery Location = "query"
	LocationTopic Location = "topic"
)

// Style is the serialization style of a parameter.
type Style string

const (
	StyleSimple         Style = "simple"
	StyleLabel          Style = "label"
	StyleMatrix         Style = "matrix"
	StyleForm           Style = "form"
	StyleSpaceDelimited Style = "spaceDelimited"
	StylePipeDelimited  Style = "pipeDelimited"
	StyleDeepObject     Style = "deepObject"
	StylePositional     Style = "positional"
)

// Type is the shape of a parameter value.
type Type string

const (
	TypeScalar Type = "scalar"
	TypeArray  Type = "array"
	TypeObject Type = "object"
)

// Scalar is the primitive type of a scalar value, an array item or an object field.
type Scalar string

const (
	ScalarString  Scalar = "string"
	ScalarInteger Scalar = "integer"
	ScalarNumber  Scalar = "number"
	ScalarBoolean Scalar = "boolean"
)

// Spec describes one channel parameter.
type Spec struct {
	Name          string   `json:"name" yaml:"name"`
	Location      Location `json:"location" yaml:"location"`
	Style         Style    `json:"style,omitempty" yaml:"style,omitempty"`
	Explode       bool     `json:"explode" yaml:"explode"`
	AllowReserved bool     `json:"allowReserved,omitempty" yaml:"allowReserved,omitempty"`
	Type          Type     `json:"type" yaml:"type"`
	Scalar        Scalar   `json:"scalar,omitempty" yaml:"scalar,omitempty"`
	Required      bool     `json:"required" yaml:"required"`
}

var ErrInvalidSpec = errors.New("invalid parameter")

// SpecError reports a parameter declaration that cannot be serialized.
type SpecError struct {
	Name   string
	Reason string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Name, e.Reason)
}

func (e *SpecError) Is(target error) bool { return target == ErrInvalidSpec }

// DefaultStyle returns the style used when a parameter declares none.
func DefaultStyle(loc Location) Style {
	switch loc {
	case LocationQuery:
		return StyleForm
	case LocationTopic:
		return StylePositional
	default:
		return StyleSimple
	}
}

// DefaultExplode returns the explode flag used when a parameter declares none.
// Only form-style query parameters explode by default.
func DefaultExplode(loc Location, style Style) bool {
	return loc == LocationQuery && style == StyleForm
}

// Normalize fills in defaults for an unset style and scalar type.
// explodeSet reports whether the declaration carried an explicit explode flag.
func (s Spec) Normalize(explodeSet bool) Spec {
	if s.Style == "" {
		s.Style = DefaultStyle(s.Location)
	}
	if !explodeSet {
		s.Explode = DefaultExplode(s.Location, s.Style)
	}
	if s.Type == "" {
		s.Type = TypeScalar
	}
	if s.Scalar == "" {
		s.Scalar = ScalarString
	}
	if s.Location == LocationPath || s.Location == LocationTopic {
		s.Required = true
	}
	return s
}

// Validate checks the (location, style, type) combination.
func (s Spec) Validate() error {
	if s.Name == "" {
		return &SpecError{Name: s.Name, Reason: "name is required"}
	}

	var allowed []Style
	switch s.Location {
	case LocationPath:
		allowed = []Style{StyleSimple, StyleLabel, StyleMatrix}
	case LocationQuery:
		allowed = []Style{StyleForm, StyleSpaceDelimited, StylePipeDelimited, StyleDeepObject}
	case LocationTopic:
		allowed = []Style{StylePositional}
	default:
		return &SpecError{Name: s.Name, Reason: fmt.Sprintf("unknown location %q", s.Location)}
	}
	if !containsStyle(allowed, s.Style) {
		return &SpecError{Name: s.Name, Reason: fmt.Sprintf("style %q is not valid for %s parameters", s.Style, s.Location)}
	}

	switch s.Type {
	case TypeScalar, TypeArray, TypeObject:
	default:
		return &SpecError{Name: s.Name, Reason: fmt.Sprintf("unknown type %q", s.Type)}
	}
	switch s.Scalar {
	case ScalarString, ScalarInteger, ScalarNumber, ScalarBoolean:
	default:
		return &SpecError{Name: s.Name, Reason: fmt.Sprintf("unknown scalar type %q", s.Scalar)}
	}

	if s.Style == StyleDeepObject && s.Type != TypeObject {
		return &SpecError{Name: s.Name, Reason: "deepObject style requires an object value"}
	}
	if s.Location == LocationTopic && s.Type != TypeScalar {
		return &SpecError{Name: s.Name, Reason: "topic parameters must be scalar"}
	}
	return nil
}

func containsStyle(styles []Style, s Style) bool {
	for _, st := range styles {
		if st == s {
			return true
		}
	}
	return false
}

// FromCollectionFormat maps an OpenAPI 2 collectionFormat onto style and explode.
func FromCollectionFormat(format string, loc Location) (Style, bool, error) {
	base := StyleSimple
	if loc == LocationQuery {
		base = StyleForm
	}

	switch strings.ToLower(format) {
	case "", "csv", "tsv":
		return base, false, nil
	case "ssv":
		return StyleSpaceDelimited, false, nil
	case "pipes":
		return StylePipeDelimited, false, nil
	case "multi":
		return StyleForm, true, nil
	default:
		return "", false, fmt.Errorf("unknown collectionFormat %q", format)
	}
}
