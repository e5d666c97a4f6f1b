package binding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the lifecycle state of a Subscription.
type State int32

const (
	Unsubscribed State = iota
	Subscribing
	Active
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrSourceClosed is returned by a Source whose transport went away.
	ErrSourceClosed = errors.New("subscription source closed")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("subscription already started")
)

// Delivery is one message received from a transport.
type Delivery struct {
	Address string
	Query   string
	Payload []byte
	Headers map[string]string

	// Respond answers a request. It is nil when the transport has no reply path.
	Respond func(ctx context.Context, payload []byte, headers map[string]string) error
	// RespondError answers a request that could not be served. When nil,
	// Serve answers through Respond with an error payload.
	RespondError func(ctx context.Context, err error) error
}

// Source yields deliveries one at a time.
type Source interface {
	Next(ctx context.Context) (Delivery, error)
	Close() error
}

// SourceFuncs adapts a pair of functions to Source.
type SourceFuncs struct {
	NextFunc  func(ctx context.Context) (Delivery, error)
	CloseFunc func() error
}

func (s SourceFuncs) Next(ctx context.Context) (Delivery, error) { return s.NextFunc(ctx) }

func (s SourceFuncs) Close() error {
	if s.CloseFunc == nil {
		return nil
	}
	return s.CloseFunc()
}

// ChanSource turns a channel fed by a callback-style client into a Source.
// The channel is never closed by ChanSource; closing it ends the subscription.
func ChanSource(ch <-chan Delivery, closeFn func() error) Source {
	return MapSource(ch, func(d Delivery) Delivery { return d }, closeFn)
}

// MapSource is ChanSource for clients that deliver their own message type.
func MapSource[T any](ch <-chan T, convert func(T) Delivery, closeFn func() error) Source {
	return SourceFuncs{
		NextFunc: func(ctx context.Context) (Delivery, error) {
			select {
			case <-ctx.Done():
				return Delivery{}, ctx.Err()
			case m, ok := <-ch:
				if !ok {
					return Delivery{}, ErrSourceClosed
				}
				return convert(m), nil
			}
		},
		CloseFunc: closeFn,
	}
}

// NewConsumerTag returns a unique consumer name starting with prefix, for
// brokers that cancel consumers by tag.
func NewConsumerTag(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks a Source error that should be reported without ending the
// subscription.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// Opener establishes the transport subscription.
type Opener func(ctx context.Context) (Source, error)

// Option configures a Subscription.
type Option func(*Subscription)

// WithLogger attaches a logger for lifecycle events.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Subscription) { s.logger = logger }
}

// Subscription drives one transport subscription through
// Unsubscribed -> Subscribing -> Active -> Closing -> Closed.
// Messages are handled one at a time on a single goroutine.
type Subscription struct {
	mu             sync.Mutex
	state          State
	source         Source
	cancel         context.CancelFunc
	closeRequested bool
	closeOnce      sync.Once
	done           chan struct{}
	err            error
	logger         zerolog.Logger
}

// NewSubscription returns an Unsubscribed subscription.
func NewSubscription(opts ...Option) *Subscription {
	s := &Subscription{
		done:   make(chan struct{}),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the subscription reaches Closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the error that ended the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start opens the source and launches the receive loop. deliver is called for
// every message; fail receives transport errors. When open fails the
// subscription goes straight to Closed and the error is returned.
func (s *Subscription) Start(ctx context.Context, open Opener, deliver func(context.Context, Delivery), fail func(error)) error {
	s.mu.Lock()
	if s.state != Unsubscribed {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = Subscribing
	s.mu.Unlock()

	src, err := open(ctx)

	s.mu.Lock()
	if err != nil {
		s.state = Closed
		s.err = err
		close(s.done)
		s.mu.Unlock()
		return err
	}
	if s.closeRequested {
		s.source = src
		s.mu.Unlock()
		s.finish(nil)
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.source = src
	s.cancel = cancel
	s.state = Active
	s.mu.Unlock()

	s.logger.Debug().Msg("subscription active")
	go s.run(loopCtx, src, deliver, fail)
	return nil
}

func (s *Subscription) run(ctx context.Context, src Source, deliver func(context.Context, Delivery), fail func(error)) {
	var cause error
	for {
		d, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrSourceClosed) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				break
			}
			if fail != nil {
				fail(err)
			}
			if IsTransient(err) {
				continue
			}
			cause = err
			break
		}
		deliver(ctx, d)
	}
	s.finish(cause)
}

// finish moves to Closing, closes the source exactly once and lands in Closed.
func (s *Subscription) finish(cause error) {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closing
	src := s.source
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.closeSource(src)

	s.mu.Lock()
	s.state = Closed
	if cause != nil && s.err == nil {
		s.err = cause
	}
	close(s.done)
	s.mu.Unlock()

	if cause != nil {
		s.logger.Warn().Err(cause).Msg("subscription closed by transport")
	} else {
		s.logger.Debug().Msg("subscription closed")
	}
}

func (s *Subscription) closeSource(src Source) {
	if src == nil {
		return
	}
	s.closeOnce.Do(func() {
		if err := src.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("close subscription source")
		}
	})
}

// Unsubscribe stops the subscription. It does not wait for the receive loop;
// use Done for that. Calling it again, or on a Closed subscription, is a no-op.
func (s *Subscription) Unsubscribe() error {
	s.mu.Lock()
	switch s.state {
	case Unsubscribed:
		s.state = Closed
		close(s.done)
		s.mu.Unlock()
		return nil
	case Subscribing:
		s.closeRequested = true
		s.mu.Unlock()
		return nil
	case Active:
		s.state = Closing
		cancel := s.cancel
		src := s.source
		s.mu.Unlock()
		cancel()
		s.closeSource(src)
		return nil
	default:
		s.mu.Unlock()
		return nil
	}
}
