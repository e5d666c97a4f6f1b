// Package synth emits Go bindings for a channel descriptor on a transport.
//
// Every protocol is described by an Adapter: what operations it can serve,
// how it delimits addresses and the native client calls that send and
// receive. The publish, subscribe, request and reply contracts themselves
// are built once here, on top of the pkg/binding runtime.
package synth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/channelgen/core/ir"
	"github.com/artpar/channelgen/domain/address"
	"github.com/artpar/channelgen/domain/descriptor"
	"github.com/artpar/channelgen/domain/param"
)

// Operation is one kind of generated binding.
type Operation string

const (
	Publish   Operation = "publish"
	Subscribe Operation = "subscribe"
	Request   Operation = "request"
	Reply     Operation = "reply"
)

// Transport-specific variants. They are generated only when a channel asks
// for them by name.
const (
	JetStreamPublish       Operation = "jetstream_publish"
	JetStreamPushSubscribe Operation = "jetstream_push_subscribe"
	JetStreamPullSubscribe Operation = "jetstream_pull_subscribe"
	ExchangePublish        Operation = "exchange_publish"
)

// Operations lists every common operation in emission order.
var Operations = []Operation{Publish, Subscribe, Request, Reply}

// Extensions lists the transport-specific variants in emission order.
var Extensions = []Operation{JetStreamPublish, JetStreamPushSubscribe, JetStreamPullSubscribe, ExchangePublish}

// Kind returns the common operation op is a variant of.
func (op Operation) Kind() Operation {
	switch op {
	case JetStreamPublish, ExchangePublish:
		return Publish
	case JetStreamPushSubscribe, JetStreamPullSubscribe:
		return Subscribe
	}
	return op
}

// ParseOperation accepts an operation name in any case.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allOperations() {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

func allOperations() []Operation {
	return append(append([]Operation{}, Operations...), Extensions...)
}

// Capabilities describes what a transport supports.
type Capabilities struct {
	Publish      bool
	Subscribe    bool
	RequestReply bool
	// Duplex transports publish and subscribe on one long-lived connection
	// that is already bound to an address.
	Duplex bool
	// PushOnly transports deliver to the client and cannot send.
	PushOnly bool
	// Query is set for URL-based transports that carry query parameters.
	Query bool
	// InboundReply serves the reply side as an inbound request handler
	// instead of a subscription.
	InboundReply bool
	// JetStream enables the persistent stream variants of publish and
	// subscribe.
	JetStream bool
	// Exchange enables publishing through a named exchange.
	Exchange bool
}

// Supports reports whether op can be generated.
func (c Capabilities) Supports(op Operation) bool {
	switch op {
	case Publish:
		return c.Publish && !c.PushOnly
	case Subscribe:
		return c.Subscribe
	case Request, Reply:
		return c.RequestReply
	case JetStreamPublish, JetStreamPushSubscribe, JetStreamPullSubscribe:
		return c.JetStream
	case ExchangePublish:
		return c.Exchange
	}
	return false
}

// Operations returns the supported common operations in emission order.
// Extensions are left out.
func (c Capabilities) Operations() []Operation {
	var out []Operation
	for _, op := range Operations {
		if c.Supports(op) {
			out = append(out, op)
		}
	}
	return out
}

// Dependency is an external module the generated code needs at runtime.
type Dependency struct {
	Module  string `json:"module" yaml:"module"`
	Purpose string `json:"purpose" yaml:"purpose"`
}

// Runtime is the dependency every binding has on pkg/binding.
var Runtime = Dependency{Module: "github.com/artpar/channelgen", Purpose: "binding runtime"}

// Site is what an adapter sees when it contributes code to one binding.
type Site struct {
	Channel   descriptor.Descriptor
	Names     Names
	Operation Operation
	Options   Options
	// Address names the variable holding the resolved address or subscription
	// pattern; Query the encoded query. Both are empty where not computed.
	Address string
	Query   string
}

// Adapter maps the common binding contract onto one transport's client.
type Adapter interface {
	Protocol() string
	// Suffix is appended to generated function names, e.g. "NATS".
	Suffix() string
	Capabilities() Capabilities
	Delimiter() address.Delimiter
	// Wildcard matches one address segment in subscriptions; "" when partial
	// subscriptions are unsupported.
	Wildcard() string
	// Client returns the leading native client parameters of op's function.
	Client(op Operation) []ir.Param
	Imports(op Operation) []ir.Import
	Dependencies(op Operation) []Dependency
	// NativeSend returns a binding.Sender expression.
	NativeSend(site Site) ir.Expr
	// NativeRequest returns a binding.Requester expression.
	NativeRequest(site Site) ir.Expr
	// NativeSource returns the body of a binding.Opener.
	NativeSource(site Site) ir.Block
	// Shared returns helper declarations used by every binding of the channel
	// on this transport (connection helpers, configured clients).
	Shared(site Site) []ir.Decl
}

// HTTPOptions parameterize request/reply helpers over HTTP.
type HTTPOptions struct {
	Method     string
	Auth       string
	Retry      *RetryOptions
	Pagination *PaginationOptions
}

// RetryOptions mirror binding.RetryPolicy.
type RetryOptions struct {
	MaxRetries          int
	InitialDelayMillis  int
	MaxDelayMillis      int
	Multiplier          float64
	RetryableStatus     []int
	RetryOnNetworkError bool
}

// PaginationOptions mirror binding.Pagination.
type PaginationOptions struct {
	Style string
	Limit int
}

// Options configure one channel's bindings.
type Options struct {
	// Operations to generate; empty means all the transport supports.
	Operations []Operation
	// Validate enables payload validation on receive.
	Validate bool
	// Reverse swaps publish with subscribe for explicitly requested operations.
	Reverse bool
	HTTP    *HTTPOptions
}

// Binding is one generated operation for one channel on one protocol.
type Binding struct {
	Channel      string
	Protocol     string
	Operation    Operation
	Func         string
	Source       string
	Decls        []ir.Decl
	Shared       []ir.Decl
	Dependencies []Dependency
}

var (
	ErrUnsupportedOperation   = errors.New("unsupported operation")
	ErrUnknownProtocol        = errors.New("unknown protocol")
	ErrUnsatisfiableParameter = errors.New("unsatisfiable parameter")
)

// UnsupportedOperationError is returned when a channel requests an operation
// its transport cannot serve.
type UnsupportedOperationError struct {
	Channel   string
	Protocol  string
	Operation Operation
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("channel %q: protocol %s does not support %s", e.Channel, e.Protocol, e.Operation)
}

func (e *UnsupportedOperationError) Is(target error) bool { return target == ErrUnsupportedOperation }

// UnknownProtocolError names a protocol with no adapter.
type UnknownProtocolError struct {
	Channel  string
	Protocol string
}

func (e *UnknownProtocolError) Error() string {
	return fmt.Sprintf("channel %q: unknown protocol %q", e.Channel, e.Protocol)
}

func (e *UnknownProtocolError) Is(target error) bool { return target == ErrUnknownProtocol }

// UnsatisfiableParameterError is returned when a parameter cannot be carried
// by the transport.
type UnsatisfiableParameterError struct {
	Channel   string
	Protocol  string
	Parameter string
	Reason    string
}

func (e *UnsatisfiableParameterError) Error() string {
	return fmt.Sprintf("channel %q: parameter %q cannot be carried by %s: %s", e.Channel, e.Parameter, e.Protocol, e.Reason)
}

func (e *UnsatisfiableParameterError) Is(target error) bool {
	return target == ErrUnsatisfiableParameter
}

// Synthesizer holds the registered adapters. It is safe for concurrent use
// once constructed.
type Synthesizer struct {
	adapters map[string]Adapter
}

// New returns a synthesizer serving adapters.
func New(adapters ...Adapter) *Synthesizer {
	s := &Synthesizer{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		s.adapters[strings.ToLower(a.Protocol())] = a
	}
	return s
}

// Adapter returns the adapter registered for protocol.
func (s *Synthesizer) Adapter(protocol string) (Adapter, bool) {
	a, ok := s.adapters[strings.ToLower(protocol)]
	return a, ok
}

// Protocols lists the registered protocols in name order.
func (s *Synthesizer) Protocols() []string {
	out := make([]string, 0, len(s.adapters))
	for p := range s.adapters {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Synthesize generates the bindings of channel d on protocol. Any
// configuration error fails the whole (channel, protocol) pair.
func (s *Synthesizer) Synthesize(run *Run, d descriptor.Descriptor, protocol string, opts Options) ([]Binding, error) {
	a, ok := s.Adapter(protocol)
	if !ok {
		return nil, &UnknownProtocolError{Channel: d.ID(), Protocol: protocol}
	}

	ops, err := resolveOperations(d.ID(), a, opts)
	if err != nil {
		return nil, err
	}
	if err := checkParameters(d, a); err != nil {
		return nil, err
	}
	if err := checkTypes(d); err != nil {
		return nil, err
	}

	g := &generator{run: run, desc: d, adapter: a, names: NamesFor(d.ID()), opts: opts, ops: ops}
	shared := g.shared()

	bindings := make([]Binding, 0, len(ops))
	for _, op := range ops {
		decls := g.operation(op)
		src, err := renderDecls(decls)
		if err != nil {
			return nil, fmt.Errorf("channel %q: render %s %s: %w", d.ID(), a.Protocol(), op, err)
		}
		bindings = append(bindings, Binding{
			Channel:      d.ID(),
			Protocol:     a.Protocol(),
			Operation:    op,
			Func:         decls[0].DeclName(),
			Source:       src,
			Decls:        decls,
			Shared:       shared,
			Dependencies: append([]Dependency{Runtime}, a.Dependencies(op)...),
		})
	}
	return bindings, nil
}

func resolveOperations(channel string, a Adapter, opts Options) ([]Operation, error) {
	caps := a.Capabilities()
	if len(opts.Operations) == 0 {
		return caps.Operations(), nil
	}

	want := make(map[Operation]bool)
	for _, op := range opts.Operations {
		if opts.Reverse {
			op = reverse(op)
		}
		want[op] = true
		// request and reply are generated as a pair on one address
		if op == Request {
			want[Reply] = true
		}
		if op == Reply {
			want[Request] = true
		}
	}

	var ops []Operation
	for _, op := range allOperations() {
		if !want[op] {
			continue
		}
		if !caps.Supports(op) {
			return nil, &UnsupportedOperationError{Channel: channel, Protocol: a.Protocol(), Operation: op}
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func reverse(op Operation) Operation {
	switch op {
	case Publish:
		return Subscribe
	case Subscribe:
		return Publish
	case Request:
		return Reply
	case Reply:
		return Request
	}
	return op
}

func checkParameters(d descriptor.Descriptor, a Adapter) error {
	caps := a.Capabilities()
	for _, q := range d.Query() {
		if q.Required && !caps.Query {
			return &UnsatisfiableParameterError{
				Channel: d.ID(), Protocol: a.Protocol(), Parameter: q.Name,
				Reason: "required query parameter on a transport without query strings",
			}
		}
	}
	for _, p := range d.Parameters() {
		if p.Style == param.StyleLabel && a.Delimiter() == address.Dot {
			return &UnsatisfiableParameterError{
				Channel: d.ID(), Protocol: a.Protocol(), Parameter: p.Name,
				Reason: "label style prefix collides with the '.' address delimiter",
			}
		}
	}
	return nil
}
