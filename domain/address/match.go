package address

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrNoMatch               = errors.New("address does not match template")
	ErrInvalidParameterValue = errors.New("invalid parameter value")
)

// InvalidParameterValueError is returned when a placeholder captured an empty value.
type InvalidParameterValueError struct {
	Name    string
	Address string
}

func (e *InvalidParameterValueError) Error() string {
	return fmt.Sprintf("parameter %q is empty in address %q", e.Name, e.Address)
}

func (e *InvalidParameterValueError) Is(target error) bool { return target == ErrInvalidParameterValue }

// Matcher recovers raw (still encoded) parameter values from concrete addresses.
// A Matcher is safe for concurrent use.
type Matcher struct {
	template  Template
	delimiter Delimiter
	regex     *regexp.Regexp
	names     []string
}

// Compile builds a matcher for t. Each placeholder becomes a capture group
// that cannot cross the delimiter d; literal text is matched verbatim.
func Compile(t Template, d Delimiter) (*Matcher, error) {
	class := "([^" + regexp.QuoteMeta(d.String()) + "]*)"

	var b strings.Builder
	b.WriteString("^")
	for _, seg := range t.segments {
		if seg.Kind == Parameter {
			b.WriteString(class)
			continue
		}
		b.WriteString(regexp.QuoteMeta(seg.Value))
	}
	b.WriteString("$")

	regex, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compile address %q: %w", t.raw, err)
	}

	return &Matcher{
		template:  t,
		delimiter: d,
		regex:     regex,
		names:     t.Names(),
	}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(t Template, d Delimiter) *Matcher {
	m, err := Compile(t, d)
	if err != nil {
		panic(err)
	}
	return m
}

// Match returns name -> raw segment for addr. Capture groups are zipped with
// parameter names in template occurrence order.
func (m *Matcher) Match(addr string) (map[string]string, error) {
	groups := m.regex.FindStringSubmatch(addr)
	if groups == nil {
		return nil, fmt.Errorf("%w: %q against %q", ErrNoMatch, addr, m.template.raw)
	}

	params := make(map[string]string, len(m.names))
	for i, name := range m.names {
		value := groups[i+1]
		if value == "" {
			return nil, &InvalidParameterValueError{Name: name, Address: addr}
		}
		params[name] = value
	}
	return params, nil
}

// Names returns the parameter names in capture group order.
func (m *Matcher) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Pattern returns the compiled regular expression source.
func (m *Matcher) Pattern() string { return m.regex.String() }

func (m *Matcher) Template() Template { return m.template }

func (m *Matcher) Delimiter() Delimiter { return m.delimiter }
