// Package binding is the runtime imported by generated channel bindings. It
// resolves addresses from typed parameters, recovers parameters from incoming
// addresses, and runs the subscription and request/reply contracts shared by
// every transport.
package binding

import (
	"fmt"

	"github.com/artpar/channelgen/domain/address"
	"github.com/artpar/channelgen/domain/param"
)

// Channel binds one address template to its parameter declarations.
// It is safe for concurrent use.
type Channel struct {
	template  address.Template
	matcher   *address.Matcher
	delimiter address.Delimiter
	params    []param.Spec
	query     []param.Spec
}

// NewChannel parses tmpl, already rendered for the transport, and attaches
// the parameter declarations. Every placeholder must be declared.
func NewChannel(tmpl string, delim address.Delimiter, specs ...param.Spec) (*Channel, error) {
	t, err := address.Parse(tmpl)
	if err != nil {
		return nil, err
	}
	m, err := address.Compile(t, delim)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]param.Spec, len(specs))
	c := &Channel{template: t, matcher: m, delimiter: delim}
	for _, s := range specs {
		byName[s.Name] = s
		if s.Location == param.LocationQuery {
			c.query = append(c.query, s)
		}
	}
	for _, name := range t.Names() {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("channel %q: parameter %q is not declared", tmpl, name)
		}
		c.params = append(c.params, s)
	}
	return c, nil
}

// MustChannel is like NewChannel but panics on error. Generated code uses it
// for package-level channel variables.
func MustChannel(tmpl string, delim address.Delimiter, specs ...param.Spec) *Channel {
	c, err := NewChannel(tmpl, delim, specs...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Channel) Template() address.Template { return c.template }

func (c *Channel) String() string { return c.template.String() }

// Resolve serializes every address parameter and substitutes it into the
// template. A missing or empty value is an error.
func (c *Channel) Resolve(values map[string]any) (string, error) {
	segments := make(map[string]string, len(c.params))
	for _, p := range c.params {
		v, ok := values[p.Name]
		if !ok || v == nil {
			return "", &address.MissingParameterError{Name: p.Name}
		}
		seg, err := param.EncodeSegment(p, v, byte(c.delimiter))
		if err != nil {
			return "", err
		}
		if seg == "" {
			return "", &address.InvalidParameterValueError{Name: p.Name, Address: c.template.String()}
		}
		segments[p.Name] = seg
	}
	return address.Expand(c.template, segments)
}

// Pattern is Resolve for subscriptions: parameters that are missing or
// serialize to nothing are replaced by the transport wildcard. An empty
// wildcard means the transport cannot subscribe to partial addresses.
func (c *Channel) Pattern(values map[string]any, wildcard string) (string, error) {
	segments := make(map[string]string, len(c.params))
	for _, p := range c.params {
		seg := ""
		if v, ok := values[p.Name]; ok && v != nil {
			s, err := param.EncodeSegment(p, v, byte(c.delimiter))
			if err != nil {
				return "", err
			}
			seg = s
		}
		if seg == "" {
			if wildcard == "" {
				return "", &address.MissingParameterError{Name: p.Name}
			}
			seg = wildcard
		}
		segments[p.Name] = seg
	}
	return address.Expand(c.template, segments)
}

// Query serializes the query parameters present in values. Missing required
// query parameters are an error.
func (c *Channel) Query(values map[string]any) (string, error) {
	var pairs []param.Pair
	for _, q := range c.query {
		v, ok := values[q.Name]
		if !ok || v == nil {
			if q.Required {
				return "", &address.MissingParameterError{Name: q.Name}
			}
			continue
		}
		encoded, err := param.EncodeQuery(q, v)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, encoded...)
	}
	return param.FormatQuery(pairs), nil
}

// Recover matches addr against the template and decodes every parameter,
// including query parameters found in rawQuery. On error the values decoded
// so far are returned alongside it.
func (c *Channel) Recover(addr, rawQuery string) (map[string]any, error) {
	values := make(map[string]any, len(c.params)+len(c.query))

	raw, err := c.matcher.Match(addr)
	if err != nil {
		return values, err
	}
	for _, p := range c.params {
		v, err := param.DecodeSegment(p, raw[p.Name])
		if err != nil {
			return values, err
		}
		values[p.Name] = v
	}

	if len(c.query) == 0 {
		return values, nil
	}
	claimed := param.ClaimQuery(c.query, param.ParseQuery(rawQuery))
	for _, q := range c.query {
		pairs := claimed[q.Name]
		if len(pairs) == 0 {
			if q.Required {
				return values, &address.MissingParameterError{Name: q.Name}
			}
			continue
		}
		v, err := param.DecodeQuery(q, pairs)
		if err != nil {
			return values, err
		}
		values[q.Name] = v
	}
	return values, nil
}
