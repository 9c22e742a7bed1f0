package commands

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/OKaluzny/devicewallet/internal/device"
	"github.com/OKaluzny/devicewallet/internal/errs"
	"github.com/OKaluzny/devicewallet/internal/metrics"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// State is a signing machine state.
type State string

// Signing states. SIGNED and FAILED are terminal.
const (
	StateBuilding             State = "BUILDING"
	StateAwaitingTxAck        State = "AWAITING_TX_ACK"
	StateAwaitingOperationAck State = "AWAITING_OPERATION_ACK"
	StateSigned               State = "SIGNED"
	StateFailed               State = "FAILED"
)

// SigningPlan is the message script of one signing run: a header, then
// one message per pending operation. Every message but the last must be
// answered with an acknowledgement IsAck accepts; the last answer is the
// signed result, checked by IsResult when set. A plan without operations
// is single-shot.
type SigningPlan struct {
	Coin       string
	Header     device.Message
	Operations []device.Message
	IsAck      func(device.Message) bool
	IsResult   func(device.Message) bool
}

// SigningMachine drives one signing run over an exclusive device session.
// A machine runs once; a failed run cannot be resumed.
type SigningMachine struct {
	plan    SigningPlan
	id      string
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	state State
}

// NewSigningMachine prepares a run in state BUILDING.
func NewSigningMachine(plan SigningPlan, logger *zap.Logger, m *metrics.Metrics) *SigningMachine {
	id := uuid.NewString()
	return &SigningMachine{
		plan:    plan,
		id:      id,
		logger:  logger.With(zap.String("signing_session", id)),
		metrics: m,
		state:   StateBuilding,
	}
}

// ID identifies the run in logs.
func (m *SigningMachine) ID() string { return m.id }

// State returns the current state.
func (m *SigningMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *SigningMachine) set(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.logger.Debug("signing state", zap.String("state", string(s)))
}

// Run executes the plan and returns the device's final answer. Any failure
// moves the machine to FAILED and comes back as *errs.SigningError.
func (m *SigningMachine) Run(ctx context.Context, dev *device.Device) (device.Message, error) {
	if m.State() != StateBuilding {
		return nil, errors.Wrapf(errs.ErrInvalidParameter, "signing run already %s", m.State())
	}
	if dev == nil || m.plan.Header == nil {
		return nil, m.fail(StateBuilding, errors.Wrap(errs.ErrInvalidParameter, "device and header are required"))
	}
	if len(m.plan.Operations) > 0 && m.plan.IsAck == nil {
		return nil, m.fail(StateBuilding, errors.Wrap(errs.ErrInvalidParameter, "multi-step plan needs an ack check"))
	}

	m.logger.Info("signing started",
		zap.String("header", m.plan.Header.MessageName()),
		zap.Int("operations", len(m.plan.Operations)),
	)

	var result device.Message
	err := dev.Session(ctx, func(s *device.Session) error {
		var err error
		result, err = m.exchange(ctx, s)
		return err
	})
	if err != nil {
		var se *errs.SigningError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, m.fail(StateBuilding, err)
	}

	m.set(StateSigned)
	m.metrics.ObserveSigning(m.plan.Coin, string(StateSigned))
	m.logger.Info("signing finished", zap.String("result", result.MessageName()))
	return result, nil
}

func (m *SigningMachine) exchange(ctx context.Context, s *device.Session) (device.Message, error) {
	ops := m.plan.Operations
	if len(ops) == 0 {
		resp, err := s.Call(ctx, m.plan.Header)
		if err != nil {
			return nil, m.fail(StateBuilding, err)
		}
		return m.result(StateBuilding, resp)
	}

	m.set(StateAwaitingTxAck)
	resp, err := s.Call(ctx, m.plan.Header)
	if err != nil {
		return nil, m.fail(StateAwaitingTxAck, err)
	}
	if !m.plan.IsAck(resp) {
		return nil, m.fail(StateAwaitingTxAck, unexpected(resp))
	}

	m.set(StateAwaitingOperationAck)
	for i, op := range ops {
		resp, err = s.Call(ctx, op)
		if err != nil {
			return nil, m.fail(StateAwaitingOperationAck, errors.WithMessagef(err, "operation %d", i))
		}
		last := i == len(ops)-1
		if !last && !m.plan.IsAck(resp) {
			return nil, m.fail(StateAwaitingOperationAck, unexpected(resp))
		}
	}
	return m.result(StateAwaitingOperationAck, resp)
}

func (m *SigningMachine) result(at State, resp device.Message) (device.Message, error) {
	if m.plan.IsResult != nil && !m.plan.IsResult(resp) {
		return nil, m.fail(at, unexpected(resp))
	}
	return resp, nil
}

func (m *SigningMachine) fail(at State, err error) error {
	m.set(StateFailed)
	m.metrics.ObserveSigning(m.plan.Coin, string(StateFailed))
	m.logger.Warn("signing failed", zap.String("state", string(at)), zap.Error(err))
	return &errs.SigningError{State: string(at), Err: err}
}

func unexpected(m device.Message) error {
	name := "nothing"
	if m != nil {
		name = m.MessageName()
	}
	return errors.Wrapf(device.ErrUnexpectedMessage, "got %s", name)
}

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}
