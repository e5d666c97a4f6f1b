// Package descriptor assembles the per-channel binding descriptor: the parsed
// address template, its parameters in template order, the message types and
// the protocols the channel is generated for.
package descriptor

import (
	"github.com/artpar/channelgen/domain/address"
	"github.com/artpar/channelgen/domain/param"
)

// TypeRef names a type supplied by the message model collaborator.
type TypeRef struct {
	GoType string `json:"goType" yaml:"goType"`
}

// MessageRef is one message type a channel carries. Tag is the discriminator
// value identifying the type inside a union and defaults to Name. Validate is
// set when the type provides a Validate method.
type MessageRef struct {
	Name     string `json:"name" yaml:"name"`
	GoType   string `json:"goType" yaml:"goType"`
	Tag      string `json:"tag,omitempty" yaml:"tag,omitempty"`
	Validate bool   `json:"validate" yaml:"validate"`
}

// Union is a single message type or a tagged union of several.
type Union struct {
	Types         []MessageRef `json:"types" yaml:"types"`
	Discriminator string       `json:"discriminator,omitempty" yaml:"discriminator,omitempty"`
}

// IsUnion reports whether more than one type is carried.
func (u Union) IsUnion() bool { return len(u.Types) > 1 }

// Single returns the only type of a non-union.
func (u Union) Single() MessageRef {
	if len(u.Types) == 0 {
		return MessageRef{}
	}
	return u.Types[0]
}

// Empty reports whether no type is declared.
func (u Union) Empty() bool { return len(u.Types) == 0 }

func (u Union) clone() Union {
	out := Union{Discriminator: u.Discriminator, Types: make([]MessageRef, len(u.Types))}
	copy(out.Types, u.Types)
	return out
}

// Descriptor is immutable once built; accessors return copies.
type Descriptor struct {
	id        string
	template  address.Template
	params    []param.Spec
	query     []param.Spec
	messages  Union
	reply     Union
	headers   *TypeRef
	protocols []string
}

func (d Descriptor) ID() string { return d.id }

func (d Descriptor) Template() address.Template { return d.template }

// Parameters returns address parameters in template occurrence order.
func (d Descriptor) Parameters() []param.Spec {
	out := make([]param.Spec, len(d.params))
	copy(out, d.params)
	return out
}

// Query returns query parameters in declaration order.
func (d Descriptor) Query() []param.Spec {
	out := make([]param.Spec, len(d.query))
	copy(out, d.query)
	return out
}

// AllParameters returns address parameters followed by query parameters.
func (d Descriptor) AllParameters() []param.Spec {
	return append(d.Parameters(), d.query...)
}

// Parameter looks up a declared parameter by name.
func (d Descriptor) Parameter(name string) (param.Spec, bool) {
	for _, p := range d.AllParameters() {
		if p.Name == name {
			return p, true
		}
	}
	return param.Spec{}, false
}

func (d Descriptor) Messages() Union { return d.messages.clone() }

// Reply returns the reply types of a request/reply channel. When none were
// declared the channel's message types answer themselves.
func (d Descriptor) Reply() Union {
	if d.reply.Empty() {
		return d.messages.clone()
	}
	return d.reply.clone()
}

// HasReply reports whether explicit reply types were declared.
func (d Descriptor) HasReply() bool { return !d.reply.Empty() }

func (d Descriptor) Headers() *TypeRef {
	if d.headers == nil {
		return nil
	}
	h := *d.headers
	return &h
}

func (d Descriptor) Protocols() []string {
	out := make([]string, len(d.protocols))
	copy(out, d.protocols)
	return out
}
