package schema

import (
	"github.com/artpar/channelgen/domain/descriptor"
	"github.com/artpar/channelgen/domain/param"
)

// Manifest is the root of a channel manifest.
type Manifest struct {
	// Package is the Go package name of generated code; configuration may
	// override it.
	Package string `yaml:"package,omitempty" json:"package,omitempty"`

	Channels []Channel `yaml:"channels" json:"channels"`
}

// Channel describes one addressable channel.
type Channel struct {
	ID      string `yaml:"id" json:"id"`
	Address string `yaml:"address" json:"address"`

	// Description is carried into generated docs and the OpenAPI export.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Protocols defaults the transports the channel is generated for.
	Protocols []string `yaml:"protocols,omitempty" json:"protocols,omitempty"`

	Parameters    []Parameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Messages      []Message   `yaml:"messages" json:"messages"`
	Reply         []Message   `yaml:"reply,omitempty" json:"reply,omitempty"`
	Discriminator string      `yaml:"discriminator,omitempty" json:"discriminator,omitempty"`
	Headers       *Headers    `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Parameter is a declared channel parameter.
type Parameter struct {
	Name string `yaml:"name" json:"name"`

	// Type is string, integer, number, boolean, array or object.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
	// Items is the element type of an array, or the value type of an object.
	Items string `yaml:"items,omitempty" json:"items,omitempty"`

	Location         string `yaml:"location,omitempty" json:"location,omitempty"`
	Style            string `yaml:"style,omitempty" json:"style,omitempty"`
	Explode          *bool  `yaml:"explode,omitempty" json:"explode,omitempty"`
	AllowReserved    bool   `yaml:"allowReserved,omitempty" json:"allowReserved,omitempty"`
	Required         bool   `yaml:"required,omitempty" json:"required,omitempty"`
	CollectionFormat string `yaml:"collectionFormat,omitempty" json:"collectionFormat,omitempty"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Message names one payload type.
type Message struct {
	Name     string `yaml:"name" json:"name"`
	GoType   string `yaml:"goType,omitempty" json:"goType,omitempty"`
	Tag      string `yaml:"tag,omitempty" json:"tag,omitempty"`
	Validate bool   `yaml:"validate,omitempty" json:"validate,omitempty"`
}

// Headers names the header type of a channel.
type Headers struct {
	GoType string `yaml:"goType" json:"goType"`
}

// Channel returns the channel with id.
func (m Manifest) Channel(id string) (Channel, bool) {
	for _, c := range m.Channels {
		if c.ID == id {
			return c, true
		}
	}
	return Channel{}, false
}

// Input converts c to a descriptor input.
func (c Channel) Input() descriptor.Input {
	in := descriptor.Input{
		ID:            c.ID,
		Address:       c.Address,
		Discriminator: c.Discriminator,
		Messages:      messageRefs(c.Messages),
		Reply:         messageRefs(c.Reply),
	}
	for _, p := range c.Parameters {
		in.Parameters = append(in.Parameters, p.parameter())
	}
	if c.Headers != nil {
		in.Headers = &descriptor.TypeRef{GoType: c.Headers.GoType}
	}
	return in
}

func messageRefs(msgs []Message) []descriptor.MessageRef {
	var out []descriptor.MessageRef
	for _, m := range msgs {
		out = append(out, descriptor.MessageRef{Name: m.Name, GoType: m.GoType, Tag: m.Tag, Validate: m.Validate})
	}
	return out
}

func (p Parameter) parameter() descriptor.Parameter {
	spec := param.Spec{
		Name:          p.Name,
		Location:      param.Location(p.Location),
		Style:         param.Style(p.Style),
		AllowReserved: p.AllowReserved,
		Required:      p.Required,
	}
	spec.Type, spec.Scalar = valueType(p.Type, p.Items)
	if p.Explode != nil {
		spec.Explode = *p.Explode
	}
	return descriptor.Parameter{
		Spec:             spec,
		ExplodeSet:       p.Explode != nil,
		CollectionFormat: p.CollectionFormat,
	}
}

func valueType(typ, items string) (param.Type, param.Scalar) {
	switch typ {
	case "array":
		return param.TypeArray, scalar(items)
	case "object":
		return param.TypeObject, scalar(items)
	default:
		return param.TypeScalar, scalar(typ)
	}
}

func scalar(s string) param.Scalar {
	if s == "" {
		return param.ScalarString
	}
	return param.Scalar(s)
}
