// Package address parses channel address templates such as "orders.{action}"
// or "/users/{id}/signedup", renders them for a target transport, and compiles
// them into matchers that recover parameter values from concrete addresses.
package address

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates address segments for a transport family.
type Delimiter byte

const (
	Slash Delimiter = '/' // HTTP paths, MQTT topics, WebSocket and SSE paths
	Dot   Delimiter = '.' // NATS subjects, Kafka topics, AMQP routing keys
)

func (d Delimiter) String() string { return string(rune(d)) }

// SegmentKind distinguishes literal text from a parameter placeholder.
type SegmentKind int

const (
	Literal SegmentKind = iota
	Parameter
)

// Segment is one piece of a parsed template. For literals Value is the text,
// for parameters it is the parameter name.
type Segment struct {
	Kind  SegmentKind
	Value string
}

// Template is a parsed address template. It is immutable once parsed.
type Template struct {
	raw      string
	segments []Segment
	names    []string
}

var (
	ErrMalformedTemplate = errors.New("malformed address template")
	ErrMissingParameter  = errors.New("missing parameter value")
)

// MalformedTemplateError reports where a template failed to parse.
type MalformedTemplateError struct {
	Template string
	Offset   int
	Reason   string
}

func (e *MalformedTemplateError) Error() string {
	return fmt.Sprintf("malformed address template %q at offset %d: %s", e.Template, e.Offset, e.Reason)
}

func (e *MalformedTemplateError) Is(target error) bool { return target == ErrMalformedTemplate }

// MissingParameterError is returned by Expand when a placeholder has no value.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing value for parameter %q", e.Name)
}

func (e *MissingParameterError) Is(target error) bool { return target == ErrMissingParameter }

// Parse splits s into literal and {name} parameter segments.
func Parse(s string) (Template, error) {
	t := Template{raw: s}
	seen := make(map[string]bool)

	var lit strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			end := strings.IndexAny(s[i+1:], "{}")
			if end < 0 || s[i+1+end] != '}' {
				return Template{}, &MalformedTemplateError{Template: s, Offset: i, Reason: "unterminated placeholder"}
			}
			name := s[i+1 : i+1+end]
			if strings.TrimSpace(name) == "" {
				return Template{}, &MalformedTemplateError{Template: s, Offset: i, Reason: "empty parameter name"}
			}
			if seen[name] {
				return Template{}, &MalformedTemplateError{Template: s, Offset: i, Reason: fmt.Sprintf("duplicate parameter %q", name)}
			}
			seen[name] = true

			if lit.Len() > 0 {
				t.segments = append(t.segments, Segment{Kind: Literal, Value: lit.String()})
				lit.Reset()
			}
			t.segments = append(t.segments, Segment{Kind: Parameter, Value: name})
			t.names = append(t.names, name)
			i += end + 1
		case '}':
			return Template{}, &MalformedTemplateError{Template: s, Offset: i, Reason: "unmatched closing brace"}
		default:
			lit.WriteByte(s[i])
		}
	}
	if lit.Len() > 0 {
		t.segments = append(t.segments, Segment{Kind: Literal, Value: lit.String()})
	}
	return t, nil
}

// MustParse is like Parse but panics on error. Intended for package-level vars.
func MustParse(s string) Template {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Template) String() string { return t.raw }

// Segments returns a copy of the parsed segments.
func (t Template) Segments() []Segment {
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Names returns parameter names in the order they occur in the template.
func (t Template) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Has reports whether name occurs as a placeholder.
func (t Template) Has(name string) bool {
	for _, n := range t.names {
		if n == name {
			return true
		}
	}
	return false
}

// Delimiter reports the delimiter used by the template's literal text: Slash
// when any literal contains '/', Dot otherwise.
func (t Template) Delimiter() Delimiter {
	for _, seg := range t.segments {
		if seg.Kind == Literal && strings.Contains(seg.Value, "/") {
			return Slash
		}
	}
	return Dot
}

// Render rewrites the literal delimiters of t to d. Placeholders are kept as
// {name}. A leading delimiter is dropped unless the target is Slash.
func Render(t Template, d Delimiter) string {
	src := t.Delimiter()
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.Kind == Parameter {
			b.WriteString("{" + seg.Value + "}")
			continue
		}
		if src == d {
			b.WriteString(seg.Value)
			continue
		}
		b.WriteString(strings.ReplaceAll(seg.Value, src.String(), d.String()))
	}
	out := b.String()
	if d != Slash {
		out = strings.TrimPrefix(out, d.String())
	}
	return out
}

// Project is Render followed by Parse. Rendering never introduces braces, so
// the result always parses.
func Project(t Template, d Delimiter) Template {
	return MustParse(Render(t, d))
}

// Expand substitutes already-encoded segment values into the placeholders.
func Expand(t Template, values map[string]string) (string, error) {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.Kind == Literal {
			b.WriteString(seg.Value)
			continue
		}
		v, ok := values[seg.Value]
		if !ok {
			return "", &MissingParameterError{Name: seg.Value}
		}
		b.WriteString(v)
	}
	return b.String(), nil
}
