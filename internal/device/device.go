package device

import (
	"context"
	"fmt"

	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/metrics"
	"github.com/OKaluzny/devicewallet/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrUnexpectedMessage is returned when the device answers with a message
// type the caller did not expect at that point of the protocol.
var ErrUnexpectedMessage = errors.New("unexpected device message")

// Transport sends one typed request to a device and returns its typed
// response. Implementations own framing and the physical link (USB, HID,
// WebUSB, emulator). A *Failure response may be returned either as the
// message or already converted into an error.
type Transport interface {
	Exchange(ctx context.Context, req Message) (Message, error)
}

// FailureError is a device Failure that is not a user rejection.
type FailureError struct {
	Code    FailureType
	Message string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("device failure %d: %s", e.Code, e.Message)
}

// Device serializes access to one physical device: at most one exchange,
// or one multi-exchange Session, is in flight at a time.
type Device struct {
	transport Transport
	sem       *semaphore.Weighted
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Device) { d.logger = l.With(zap.String("component", "device")) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Device) { d.metrics = m }
}

// New wraps a transport.
func New(t Transport, opts ...Option) *Device {
	d := &Device{
		transport: t,
		sem:       semaphore.NewWeighted(1),
		logger:    logger.Named("device"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Call performs a single exchange.
func (d *Device) Call(ctx context.Context, req Message) (Message, error) {
	var resp Message
	err := d.Session(ctx, func(s *Session) error {
		var err error
		resp, err = s.Call(ctx, req)
		return err
	})
	return resp, err
}

// Session runs fn with exclusive access to the device. ctx only bounds the
// wait for the device; once fn starts it runs to completion.
func (d *Device) Session(ctx context.Context, fn func(s *Session) error) error {
	if d == nil || d.transport == nil {
		return errors.Wrap(errs.ErrInvalidParameter, "device is nil")
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return errors.Wrap(err, "wait for device")
	}
	defer d.sem.Release(1)
	return fn(&Session{d: d})
}

// Session is a handle valid only inside Device.Session.
type Session struct {
	d *Device
}

// Call sends req and returns the response. Device failures come back as
// errors: user cancellations wrap errs.ErrDeviceRejected, everything else is
// a *FailureError.
func (s *Session) Call(ctx context.Context, req Message) (Message, error) {
	d := s.d
	name := req.MessageName()

	// Once the request leaves, the exchange is not cancellable.
	resp, err := d.transport.Exchange(context.WithoutCancel(ctx), req)
	if err == nil {
		if f, ok := resp.(*Failure); ok {
			err = f
		}
	}
	if err != nil {
		err = convertFailure(err)
		d.metrics.ObserveExchange(name, outcome(err))
		d.logger.Warn("device exchange failed", zap.String("request", name), zap.Error(err))
		return nil, err
	}

	d.metrics.ObserveExchange(name, "ok")
	d.logger.Debug("device exchange", zap.String("request", name), zap.String("response", resp.MessageName()))
	return resp, nil
}

// Error lets a Failure travel as an error from a transport.
func (f *Failure) Error() string {
	return fmt.Sprintf("device failure %d: %s", f.Code, f.Message)
}

func convertFailure(err error) error {
	var f *Failure
	if !errors.As(err, &f) {
		return err
	}
	switch f.Code {
	case FailureActionCancelled, FailurePinCancelled:
		return errors.Wrap(errs.ErrDeviceRejected, f.Message)
	default:
		return &FailureError{Code: f.Code, Message: f.Message}
	}
}

func outcome(err error) string {
	if errors.Is(err, errs.ErrDeviceRejected) {
		return "rejected"
	}
	return "error"
}

// Expect narrows a response to the message type T.
func Expect[T Message](m Message, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := m.(T)
	if !ok {
		return zero, errors.Wrapf(ErrUnexpectedMessage, "want %T, got %s", zero, nameOf(m))
	}
	return t, nil
}

func nameOf(m Message) string {
	if m == nil {
		return "nothing"
	}
	return m.MessageName()
}
