package descriptor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/channelgen/domain/address"
	"github.com/artpar/channelgen/domain/param"
)

// DefaultDiscriminator is the union tag property used when none is declared.
const DefaultDiscriminator = "type"

// Parameter is a declared parameter before normalization.
type Parameter struct {
	Spec             param.Spec
	ExplodeSet       bool
	CollectionFormat string
}

// Input is one parsed manifest channel.
type Input struct {
	ID            string
	Address       string
	Parameters    []Parameter
	Messages      []MessageRef
	Reply         []MessageRef
	Discriminator string
	Headers       *TypeRef
}

var (
	ErrUnresolvedParameter = errors.New("unresolved parameter")
	ErrInvalidChannel      = errors.New("invalid channel")
)

// UnresolvedParameterError reports a template placeholder with no declaration.
type UnresolvedParameterError struct {
	Channel string
	Name    string
}

func (e *UnresolvedParameterError) Error() string {
	return fmt.Sprintf("channel %q: parameter %q is used in the address but not declared", e.Channel, e.Name)
}

func (e *UnresolvedParameterError) Is(target error) bool { return target == ErrUnresolvedParameter }

// ChannelError reports any other configuration problem with a channel.
type ChannelError struct {
	Channel string
	Reason  string
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("channel %q: %s: %v", e.Channel, e.Reason, e.Err)
	}
	return fmt.Sprintf("channel %q: %s", e.Channel, e.Reason)
}

func (e *ChannelError) Unwrap() error { return e.Err }

func (e *ChannelError) Is(target error) bool { return target == ErrInvalidChannel }

// WarningKind classifies non-fatal findings.
type WarningKind string

const WarningUnusedParameter WarningKind = "unused_parameter"

// Warning is a non-fatal diagnostic produced while building a descriptor.
type Warning struct {
	Kind      WarningKind
	Channel   string
	Parameter string
	Message   string
}

func (w Warning) String() string {
	return fmt.Sprintf("channel %q: %s", w.Channel, w.Message)
}

// Build validates in and assembles its descriptor. Placeholders without a
// declaration are fatal; declared address parameters missing from the
// template are reported as warnings and left out.
func Build(in Input, protocols []string) (Descriptor, []Warning, error) {
	if in.ID == "" {
		return Descriptor{}, nil, &ChannelError{Channel: in.Address, Reason: "channel id is required"}
	}

	tmpl, err := address.Parse(in.Address)
	if err != nil {
		return Descriptor{}, nil, &ChannelError{Channel: in.ID, Reason: "address", Err: err}
	}

	declared := make(map[string]param.Spec, len(in.Parameters))
	var order []string
	for _, p := range in.Parameters {
		spec, err := normalize(tmpl, p)
		if err != nil {
			return Descriptor{}, nil, &ChannelError{Channel: in.ID, Reason: "parameter", Err: err}
		}
		if _, dup := declared[spec.Name]; dup {
			return Descriptor{}, nil, &ChannelError{Channel: in.ID, Reason: fmt.Sprintf("parameter %q declared twice", spec.Name)}
		}
		declared[spec.Name] = spec
		order = append(order, spec.Name)
	}

	d := Descriptor{
		id:        in.ID,
		template:  tmpl,
		protocols: dedupe(protocols),
	}
	if in.Headers != nil {
		h := *in.Headers
		d.headers = &h
	}

	for _, name := range tmpl.Names() {
		spec, ok := declared[name]
		if !ok {
			return Descriptor{}, nil, &UnresolvedParameterError{Channel: in.ID, Name: name}
		}
		if spec.Location == param.LocationQuery {
			return Descriptor{}, nil, &ChannelError{Channel: in.ID, Reason: fmt.Sprintf("parameter %q appears in the address but is declared as a query parameter", name)}
		}
		d.params = append(d.params, spec)
	}

	var warnings []Warning
	for _, name := range order {
		spec := declared[name]
		if tmpl.Has(name) {
			continue
		}
		if spec.Location == param.LocationQuery {
			d.query = append(d.query, spec)
			continue
		}
		warnings = append(warnings, Warning{
			Kind:      WarningUnusedParameter,
			Channel:   in.ID,
			Parameter: name,
			Message:   fmt.Sprintf("parameter %q is declared but not used in address %q", name, in.Address),
		})
	}

	if param.ExplodedFormObjects(d.query) > 1 {
		return Descriptor{}, nil, &ChannelError{Channel: in.ID, Reason: "more than one exploded object query parameter"}
	}

	if d.messages, err = union(in.ID, in.Messages, in.Discriminator); err != nil {
		return Descriptor{}, nil, err
	}
	if d.messages.Empty() {
		return Descriptor{}, nil, &ChannelError{Channel: in.ID, Reason: "no message types declared"}
	}
	if d.reply, err = union(in.ID, in.Reply, in.Discriminator); err != nil {
		return Descriptor{}, nil, err
	}
	if in.Headers != nil && in.Headers.GoType == "" {
		return Descriptor{}, nil, &ChannelError{Channel: in.ID, Reason: "header schema has no type"}
	}

	return d, warnings, nil
}

// normalize resolves location, defaults and collectionFormat, then validates.
func normalize(tmpl address.Template, p Parameter) (param.Spec, error) {
	spec := p.Spec
	if spec.Location == "" {
		switch {
		case !tmpl.Has(spec.Name):
			spec.Location = param.LocationQuery
		case tmpl.Delimiter() == address.Slash:
			spec.Location = param.LocationPath
		default:
			spec.Location = param.LocationTopic
		}
	}
	explodeSet := p.ExplodeSet
	if p.CollectionFormat != "" && spec.Style == "" {
		style, explode, err := param.FromCollectionFormat(p.CollectionFormat, spec.Location)
		if err != nil {
			return param.Spec{}, &param.SpecError{Name: spec.Name, Reason: err.Error()}
		}
		spec.Style = style
		spec.Explode = explode
		explodeSet = true
	}

	spec = spec.Normalize(explodeSet)
	if err := spec.Validate(); err != nil {
		return param.Spec{}, err
	}
	return spec, nil
}

func union(channel string, refs []MessageRef, discriminator string) (Union, error) {
	u := Union{Discriminator: discriminator}
	if len(refs) > 1 && u.Discriminator == "" {
		u.Discriminator = DefaultDiscriminator
	}

	tags := make(map[string]bool)
	for _, ref := range refs {
		if ref.GoType == "" {
			ref.GoType = ref.Name
		}
		if ref.GoType == "" {
			return Union{}, &ChannelError{Channel: channel, Reason: "message type without a name"}
		}
		if ref.Name == "" {
			ref.Name = ref.GoType
		}
		if ref.Tag == "" {
			ref.Tag = ref.Name
		}
		if tags[ref.Tag] {
			return Union{}, &ChannelError{Channel: channel, Reason: fmt.Sprintf("message tag %q is not unique", ref.Tag)}
		}
		tags[ref.Tag] = true
		u.Types = append(u.Types, ref)
	}
	return u, nil
}

func dedupe(protocols []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range protocols {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
