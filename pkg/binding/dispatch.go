package binding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Marshaler is implemented by generated message and header types.
type Marshaler interface {
	Marshal() ([]byte, error)
}

// MarshalFunc adapts an encoding function to Marshaler.
type MarshalFunc func() ([]byte, error)

func (f MarshalFunc) Marshal() ([]byte, error) { return f() }

var (
	ErrDecode      = errors.New("payload decode failed")
	ErrValidation  = errors.New("payload validation failed")
	ErrNoReplyPath = errors.New("transport delivery has no reply path")
)

// DecodeError wraps a payload unmarshal failure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode payload: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ValidationError wraps a schema validation failure.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "validate payload: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Decoder turns a delivery into a typed message M and its inbound metadata P
// (recovered parameters and headers).
type Decoder[M, P any] struct {
	Recover  func(d Delivery) (P, error)
	Decode   func(payload []byte) (M, error)
	Validate func(M) error // nil when validation is disabled
}

// Handler receives either a message or an error, never both. The inbound
// metadata is passed in both cases.
type Handler[M, P any] func(msg *M, in P, err error)

// Dispatch runs the per-message contract: recover parameters, decode,
// validate, invoke the handler. Failures reach the handler without a payload.
func Dispatch[M, P any](d Delivery, dec Decoder[M, P], h Handler[M, P]) {
	msg, in, err := decode(d, dec)
	if err != nil {
		h(nil, in, err)
		return
	}
	h(&msg, in, nil)
}

func decode[M, P any](d Delivery, dec Decoder[M, P]) (M, P, error) {
	var zero M
	in, err := dec.Recover(d)
	if err != nil {
		return zero, in, err
	}
	msg, err := dec.Decode(d.Payload)
	if err != nil {
		return zero, in, &DecodeError{Err: err}
	}
	if dec.Validate != nil {
		if err := dec.Validate(msg); err != nil {
			return zero, in, &ValidationError{Err: err}
		}
	}
	return msg, in, nil
}

// Responder handles a request and produces the reply.
type Responder[Req, Resp, P any] func(ctx context.Context, req *Req, in P) (Resp, error)

// ErrorHeader carries the failure message of an error reply.
const ErrorHeader = "Binding-Error"

// ReplyError is returned by Request when the responder answered with an
// error reply instead of a payload.
type ReplyError struct {
	Message string
}

func (e *ReplyError) Error() string { return "error reply: " + e.Message }

// Serve is the reply side of request/reply: it decodes the request with dec,
// calls respond and sends the marshaled reply back on the delivery. When any
// step fails the requester still gets an answer: an error reply through
// d.RespondError or, by default, a {"error": ...} payload with ErrorHeader
// set. The original failure is returned.
func Serve[Req, Resp, P any](ctx context.Context, d Delivery, dec Decoder[Req, P], respond Responder[Req, Resp, P], marshal func(Resp) ([]byte, error)) error {
	if d.Respond == nil {
		return ErrNoReplyPath
	}
	data, err := serveReply(ctx, d, dec, respond, marshal)
	if err != nil {
		if rerr := respondError(ctx, d, err); rerr != nil {
			return errors.Join(err, fmt.Errorf("send error reply: %w", rerr))
		}
		return err
	}
	return d.Respond(ctx, data, nil)
}

func serveReply[Req, Resp, P any](ctx context.Context, d Delivery, dec Decoder[Req, P], respond Responder[Req, Resp, P], marshal func(Resp) ([]byte, error)) ([]byte, error) {
	req, in, err := decode(d, dec)
	if err != nil {
		return nil, err
	}
	resp, err := respond(ctx, &req, in)
	if err != nil {
		return nil, err
	}
	data, err := marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}
	return data, nil
}

func respondError(ctx context.Context, d Delivery, err error) error {
	if d.RespondError != nil {
		return d.RespondError(ctx, err)
	}
	payload, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		return merr
	}
	return d.Respond(ctx, payload, map[string]string{ErrorHeader: err.Error()})
}

// Outbound is one message ready for a transport.
type Outbound struct {
	Address string
	Query   string
	Payload []byte
	Headers map[string]string
}

// Sender hands an outbound message to the native client.
type Sender func(ctx context.Context, out Outbound) error

// Requester sends a request and waits for the reply.
type Requester func(ctx context.Context, out Outbound) (Delivery, error)

// Prepare resolves the address and query, then marshals the message and the
// optional headers.
func Prepare(ch *Channel, values map[string]any, msg Marshaler, headers Marshaler) (Outbound, error) {
	addr, err := ch.Resolve(values)
	if err != nil {
		return Outbound{}, fmt.Errorf("resolve address: %w", err)
	}
	query, err := ch.Query(values)
	if err != nil {
		return Outbound{}, fmt.Errorf("encode query: %w", err)
	}
	out := Outbound{Address: addr, Query: query}

	if msg != nil {
		out.Payload, err = msg.Marshal()
		if err != nil {
			return Outbound{}, fmt.Errorf("marshal payload: %w", err)
		}
	}
	if headers != nil {
		out.Headers, err = HeaderMap(headers)
		if err != nil {
			return Outbound{}, err
		}
	}
	return out, nil
}

// Publish resolves, marshals and sends. It reports exactly one outcome.
func Publish(ctx context.Context, ch *Channel, values map[string]any, msg Marshaler, headers Marshaler, send Sender) error {
	out, err := Prepare(ch, values, msg, headers)
	if err != nil {
		return err
	}
	if err := send(ctx, out); err != nil {
		return fmt.Errorf("send to %s: %w", out.Address, err)
	}
	return nil
}

// Request sends msg and decodes the reply.
func Request[Resp any](ctx context.Context, ch *Channel, values map[string]any, msg Marshaler, headers Marshaler, do Requester, decodeReply func([]byte) (Resp, error), validate func(Resp) error) (*Resp, error) {
	out, err := Prepare(ch, values, msg, headers)
	if err != nil {
		return nil, err
	}
	d, err := do(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", out.Address, err)
	}
	if msg, ok := d.Headers[ErrorHeader]; ok {
		return nil, fmt.Errorf("request %s: %w", out.Address, &ReplyError{Message: msg})
	}
	resp, err := decodeReply(d.Payload)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if validate != nil {
		if err := validate(resp); err != nil {
			return nil, &ValidationError{Err: err}
		}
	}
	return &resp, nil
}

// Validator builds a validation function once, on first use. A build error is
// returned by every call.
func Validator[M any](build func() (func(M) error, error)) func(M) error {
	var (
		once sync.Once
		fn   func(M) error
		err  error
	)
	return func(m M) error {
		once.Do(func() { fn, err = build() })
		if err != nil {
			return err
		}
		return fn(m)
	}
}

// Discriminator reads the string tag property of a JSON object payload.
func Discriminator(payload []byte, field string) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return "", fmt.Errorf("read discriminator %q: %w", field, err)
	}
	raw, ok := obj[field]
	if !ok {
		return "", fmt.Errorf("discriminator %q is missing", field)
	}
	var tag string
	if err := json.Unmarshal(raw, &tag); err != nil {
		return "", fmt.Errorf("discriminator %q is not a string", field)
	}
	return tag, nil
}

// UnknownVariantError is returned when a union tag names no known type.
type UnknownVariantError struct {
	Field string
	Tag   string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Field, e.Tag)
}
