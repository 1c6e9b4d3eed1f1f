package payments

import (
	"context"
	"errors"
	"sync"

	"github.com/create-my-art/api/internal/domain"
)

// SurfaceState tags the lifecycle of a payment surface. There is never more
// than one active surface; terminal states tear down and return to Idle.
type SurfaceState string

const (
	StateIdle          SurfaceState = "idle"
	StateInitializing  SurfaceState = "initializing"
	StateRendering     SurfaceState = "rendering"
	StateAwaitingUser  SurfaceState = "awaiting_user_action"
	StateCaptured      SurfaceState = "captured"
	StateUserCancelled SurfaceState = "user_cancelled"
	StateFailed        SurfaceState = "failed"
)

// ErrNoActiveAttempt is returned when Resolve or Cancel is called without a
// payment attempt awaiting user action.
var ErrNoActiveAttempt = errors.New("payments: no payment attempt in progress")

// ErrAttemptMismatch is returned when the resolved order ID does not belong
// to the active attempt.
var ErrAttemptMismatch = errors.New("payments: order id does not match active attempt")

// Surface owns a single payment attempt at a time, mirroring the rendered
// provider widget. Beginning a new attempt while one is in flight tears the
// old one down first; every exit path tears down exactly once.
type Surface struct {
	mu       sync.Mutex
	state    SurfaceState
	gen      uint64
	orderID  string
	provider Provider
	logger   Logger

	// teardown runs on every attempt conclusion, once per attempt.
	teardown func()
}

// ErrAttemptSuperseded is returned from Begin when a newer attempt started
// while the provider order was being created.
var ErrAttemptSuperseded = errors.New("payments: attempt superseded by a newer one")

// SurfaceDeps carries the surface collaborators.
type SurfaceDeps struct {
	Logger Logger
	// Teardown is invoked once per concluded attempt, whatever the outcome.
	Teardown func()
}

// NewSurface builds an idle surface.
func NewSurface(deps SurfaceDeps) *Surface {
	return &Surface{
		state:    StateIdle,
		logger:   deps.Logger,
		teardown: deps.Teardown,
	}
}

// State returns the current lifecycle state.
func (s *Surface) State() SurfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin opens a provider order and moves the surface to awaiting user
// action. An attempt already in flight is torn down first. On provider
// failure the surface passes through Failed, tears down, and returns to
// Idle with the error.
func (s *Surface) Begin(ctx context.Context, provider Provider, req OrderRequest) (string, error) {
	if provider == nil {
		return "", errors.New("payments: provider is required")
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.concludeLocked(StateIdle)
	}
	s.state = StateInitializing
	s.provider = provider
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	orderID, err := provider.CreateOrder(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return "", ErrAttemptSuperseded
	}
	if err != nil {
		s.state = StateFailed
		s.concludeLocked(StateIdle)
		return "", err
	}

	s.state = StateRendering
	s.orderID = orderID
	s.state = StateAwaitingUser
	s.log(ctx, "payment.surface.awaiting", map[string]any{"order_id": orderID})
	return orderID, nil
}

// Resolve captures the active attempt. The first outcome wins: once the
// attempt concludes, further Resolve calls report ErrNoActiveAttempt.
func (s *Surface) Resolve(ctx context.Context, orderID string) (domain.PaymentResult, error) {
	s.mu.Lock()
	if s.state != StateAwaitingUser {
		s.mu.Unlock()
		return domain.PaymentResult{}, ErrNoActiveAttempt
	}
	if orderID != s.orderID {
		s.mu.Unlock()
		return domain.PaymentResult{}, ErrAttemptMismatch
	}
	provider := s.provider
	s.mu.Unlock()

	result, err := provider.Capture(ctx, orderID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingUser || s.orderID != orderID {
		// Another path concluded the attempt while the capture was in
		// flight; the first outcome already won.
		return domain.PaymentResult{}, ErrNoActiveAttempt
	}
	if err != nil {
		s.state = StateFailed
		s.concludeLocked(StateIdle)
		return domain.FailedResult(err), nil
	}

	switch result.Outcome {
	case domain.PaymentSucceeded:
		s.state = StateCaptured
	case domain.PaymentCancelled:
		s.state = StateUserCancelled
	default:
		s.state = StateFailed
	}
	s.log(ctx, "payment.surface.resolved", map[string]any{
		"order_id": orderID,
		"outcome":  string(result.Outcome),
	})
	s.concludeLocked(StateIdle)
	return result, nil
}

// Cancel concludes the active attempt as a user cancellation without
// contacting the provider.
func (s *Surface) Cancel(ctx context.Context, reason string) (domain.PaymentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingUser {
		return domain.PaymentResult{}, ErrNoActiveAttempt
	}
	s.state = StateUserCancelled
	s.log(ctx, "payment.surface.cancelled", map[string]any{"order_id": s.orderID, "reason": reason})
	s.concludeLocked(StateIdle)
	return domain.CancelledResult(reason), nil
}

// concludeLocked runs the teardown hook exactly once for the current attempt
// and resets the surface to next.
func (s *Surface) concludeLocked(next SurfaceState) {
	if s.teardown != nil && s.state != StateIdle {
		s.teardown()
	}
	s.state = next
	s.orderID = ""
	s.provider = nil
}

func (s *Surface) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}
