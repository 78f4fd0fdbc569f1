package bridge

import (
	"context"
	"time"

	"github.com/implanttrace/healthbridge/internal/model"
	"github.com/implanttrace/healthbridge/internal/service/permission"
	"github.com/implanttrace/healthbridge/internal/service/record"
	"github.com/implanttrace/healthbridge/pkg/logger"
	"github.com/implanttrace/healthbridge/pkg/metrics"
)

const variantSimulated = "simulated"

// Simulated stands in for the platform health store on devices without one.
// It composes the permission state machine and the local record store and
// presents the same contract as the native variant, optionally with
// artificial latency.
type Simulated struct {
	perms   *permission.Service
	records *record.Store
	latency time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewSimulated(cfg Config, perms *permission.Service, records *record.Store, log *logger.Logger, m *metrics.Metrics) *Simulated {
	return &Simulated{
		perms:   perms,
		records: records,
		latency: cfg.SimulatedLatency,
		logger:  log,
		metrics: m,
	}
}

func (s *Simulated) Variant() string { return variantSimulated }

func (s *Simulated) RequestAuthorization(ctx context.Context) (model.PermissionStatus, error) {
	start := time.Now()
	if err := s.sleep(ctx); err != nil {
		return s.perms.Status(), err
	}
	status, err := s.perms.RequestAuthorization(ctx)
	s.observe("request_authorization", err, start)
	return status, err
}

func (s *Simulated) AuthorizationStatus(_ context.Context) (model.PermissionStatus, error) {
	return s.perms.Status(), nil
}

func (s *Simulated) Save(ctx context.Context, rec model.ImplantRecord) (bool, error) {
	start := time.Now()
	if err := s.sleep(ctx); err != nil {
		return false, err
	}
	// The facade gates on permission already; refuse here as well so the
	// store never mutates without authorization.
	if s.perms.Status() != model.PermissionAuthorized {
		s.observe("save", nil, start)
		return false, nil
	}
	if err := s.records.Create(ctx, rec); err != nil {
		s.observe("save", err, start)
		return false, err
	}
	s.observe("save", nil, start)
	return true, nil
}

func (s *Simulated) List(ctx context.Context) ([]model.ImplantRecord, error) {
	start := time.Now()
	if err := s.sleep(ctx); err != nil {
		return nil, err
	}
	if s.perms.Status() != model.PermissionAuthorized {
		s.observe("list", nil, start)
		return []model.ImplantRecord{}, nil
	}
	records := s.records.List(ctx)
	s.observe("list", nil, start)
	return records, nil
}

func (s *Simulated) DeleteByID(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	if err := s.sleep(ctx); err != nil {
		return false, err
	}
	if s.perms.Status() != model.PermissionAuthorized {
		s.observe("delete", nil, start)
		return false, nil
	}
	removed, err := s.records.DeleteByID(ctx, id)
	s.observe("delete", err, start)
	return removed, err
}

func (s *Simulated) sleep(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	select {
	case <-time.After(s.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulated) observe(operation string, err error, start time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveBridgeCall(variantSimulated, operation, status, time.Since(start).Seconds())
}
