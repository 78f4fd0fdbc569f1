package permission

import (
	"context"
	"fmt"
	"sync"

	"github.com/implanttrace/healthbridge/internal/model"
	"github.com/implanttrace/healthbridge/internal/repository"
	"github.com/implanttrace/healthbridge/pkg/errors"
	"github.com/implanttrace/healthbridge/pkg/logger"
	"github.com/implanttrace/healthbridge/pkg/metrics"
)

// Observer is invoked synchronously, in registration order, on every
// permission transition.
type Observer func(model.PermissionStatus)

// Decider produces the outcome of a user-facing consent prompt. The default
// grants; onboarding flows inject a decider that models the user declining,
// and the native bridge injects the platform prompt.
type Decider func(ctx context.Context) (model.PermissionStatus, error)

type observerEntry struct {
	fn Observer
}

// Service tracks the single authorization value gating all record access.
// Every transition is persisted before observers are notified.
type Service struct {
	store   repository.KVStore
	logger  *logger.Logger
	metrics *metrics.Metrics
	decide  Decider

	mu        sync.Mutex
	status    model.PermissionStatus
	observers []*observerEntry
}

type Option func(*Service)

// WithDecider overrides the consent outcome of RequestAuthorization.
func WithDecider(d Decider) Option {
	return func(s *Service) { s.decide = d }
}

// WithMetrics attaches transition counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService loads the persisted status (defaulting to notDetermined when
// absent) and returns the state machine.
func NewService(ctx context.Context, store repository.KVStore, log *logger.Logger, opts ...Option) (*Service, error) {
	s := &Service{
		store:  store,
		logger: log,
		status: model.PermissionNotDetermined,
		decide: func(context.Context) (model.PermissionStatus, error) {
			return model.PermissionAuthorized, nil
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	value, found, err := store.Get(ctx, repository.KeyPermissionStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to load permission status: %w", err)
	}
	if found {
		s.status = model.ParsePermissionStatus(string(value))
	}

	return s, nil
}

// SetDecider rebinds the consent prompt after construction. Used at startup
// when the capability probe selects the native platform prompt.
func (s *Service) SetDecider(d Decider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decide = d
}

// RequestAuthorization runs the consent prompt and persists its outcome. An
// unavailable platform resolves to denied rather than an error, so callers
// never hang on a capability the device does not have. Concurrent calls are
// tolerated; each persists and notifies independently and all converge on the
// same underlying consent.
func (s *Service) RequestAuthorization(ctx context.Context) (model.PermissionStatus, error) {
	s.mu.Lock()
	decide := s.decide
	s.mu.Unlock()

	status, err := decide(ctx)
	if err != nil {
		s.logger.Warn("authorization prompt unavailable", "error", err.Error())
		status = model.PermissionDenied
	}
	if !status.Valid() {
		status = model.PermissionDenied
	}

	if err := s.transition(ctx, status); err != nil {
		return s.Status(), err
	}

	s.metrics.ObservePermissionRequest(status.String())
	return status, nil
}

// Status returns the cached value. It never blocks and never prompts.
func (s *Service) Status() model.PermissionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Deny forces the status to denied without prompting.
func (s *Service) Deny(ctx context.Context) error {
	return s.transition(ctx, model.PermissionDenied)
}

// Reset forces the status back to notDetermined.
func (s *Service) Reset(ctx context.Context) error {
	return s.transition(ctx, model.PermissionNotDetermined)
}

// Subscribe registers an observer and returns its unsubscribe handle.
// Observers fire on every transition call, including a repeated grant, so a
// UI layer refreshes even when the value is unchanged.
func (s *Service) Subscribe(fn Observer) func() {
	entry := &observerEntry{fn: fn}

	s.mu.Lock()
	s.observers = append(s.observers, entry)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o == entry {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// transition persists the new status and, only once durable, updates the
// cached value and notifies observers. A failed write leaves the prior
// status in place.
func (s *Service) transition(ctx context.Context, status model.PermissionStatus) error {
	s.mu.Lock()
	if err := s.store.Put(ctx, repository.KeyPermissionStatus, []byte(status)); err != nil {
		s.mu.Unlock()
		return errors.Persistence("failed to persist permission status", err)
	}
	s.status = status
	observers := make([]*observerEntry, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	s.metrics.ObservePermissionTransition(status.String())
	s.logger.Debug("permission status changed", "status", status.String())

	for _, o := range observers {
		o.fn(status)
	}
	return nil
}
