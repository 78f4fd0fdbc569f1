package healthrecord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/implanttrace/healthbridge/internal/bridge"
	"github.com/implanttrace/healthbridge/internal/model"
	"github.com/implanttrace/healthbridge/internal/service/permission"
	apperrors "github.com/implanttrace/healthbridge/pkg/errors"
	"github.com/implanttrace/healthbridge/pkg/logger"
	"github.com/implanttrace/healthbridge/pkg/messaging"
	"github.com/implanttrace/healthbridge/pkg/metrics"
)

// Service is the integration facade, the only entry point presentation code
// depends on. It validates before any I/O, gates every record operation on
// the permission state machine, and sequences a list refresh strictly after
// each acknowledged write so observers see the updated collection.
type Service struct {
	perms    *permission.Service
	bridge   bridge.Bridge
	broker   messaging.Broker
	validate *validator.Validate
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu        sync.Mutex
	lastKnown []model.ImplantRecord
}

type Option func(*Service)

// WithBroker attaches an optional change-event publisher.
func WithBroker(b messaging.Broker) Option {
	return func(s *Service) { s.broker = b }
}

// WithMetrics attaches save/delete counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(perms *permission.Service, b bridge.Bridge, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		perms:    perms,
		bridge:   b,
		validate: validator.New(),
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestAuthorization delegates to the permission state machine and returns
// the resulting status.
func (s *Service) RequestAuthorization(ctx context.Context) (model.PermissionStatus, error) {
	status, err := s.perms.RequestAuthorization(ctx)
	if err != nil {
		return status, err
	}
	s.publishPermission(ctx, status)
	return status, nil
}

// Status reads the cached permission value without prompting.
func (s *Service) Status() model.PermissionStatus {
	return s.perms.Status()
}

// Deny models the user explicitly declining during onboarding.
func (s *Service) Deny(ctx context.Context) error {
	if err := s.perms.Deny(ctx); err != nil {
		return err
	}
	s.publishPermission(ctx, model.PermissionDenied)
	return nil
}

// Reset clears the authorization decision (testing/support hook).
func (s *Service) Reset(ctx context.Context) error {
	if err := s.perms.Reset(ctx); err != nil {
		return err
	}
	s.publishPermission(ctx, model.PermissionNotDetermined)
	return nil
}

// Subscribe exposes the state machine's observer registration directly.
func (s *Service) Subscribe(fn permission.Observer) func() {
	return s.perms.Subscribe(fn)
}

// SaveRecord validates required fields locally, failing fast without touching
// the bridge, generates an id when the caller did not, and resolves false
// without error when access has not been granted.
func (s *Service) SaveRecord(ctx context.Context, rec model.ImplantRecord) (bool, error) {
	if err := s.validateRecord(&rec); err != nil {
		s.metrics.ObserveRecordSave("invalid")
		return false, err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.NormalizeImplantDate(time.Now())

	if s.perms.Status() != model.PermissionAuthorized {
		s.logger.Debug("save refused, not authorized", "id", rec.ID)
		s.metrics.ObserveRecordSave("unauthorized")
		return false, nil
	}

	saved, err := s.bridge.Save(ctx, rec)
	if err != nil {
		s.metrics.ObserveRecordSave("error")
		return false, err
	}
	if !saved {
		s.metrics.ObserveRecordSave("refused")
		return false, nil
	}

	s.metrics.ObserveRecordSave("ok")
	s.refresh(ctx)
	return true, nil
}

// ListRecords returns an empty slice, not an error, when not authorized.
func (s *Service) ListRecords(ctx context.Context) ([]model.ImplantRecord, error) {
	if s.perms.Status() != model.PermissionAuthorized {
		return []model.ImplantRecord{}, nil
	}
	records, err := s.bridge.List(ctx)
	if err != nil {
		return nil, err
	}
	s.remember(records)
	return records, nil
}

// DeleteRecord reports whether a record was actually removed; a missing id
// resolves false without error.
func (s *Service) DeleteRecord(ctx context.Context, id string) (bool, error) {
	if s.perms.Status() != model.PermissionAuthorized {
		s.metrics.ObserveRecordDelete("unauthorized")
		return false, nil
	}

	removed, err := s.bridge.DeleteByID(ctx, id)
	if err != nil {
		s.metrics.ObserveRecordDelete("error")
		return false, err
	}
	if !removed {
		s.metrics.ObserveRecordDelete("not_found")
		return false, nil
	}

	s.metrics.ObserveRecordDelete("ok")
	s.refresh(ctx)
	return true, nil
}

// Records returns the collection as of the last successful refresh, for
// consumers that render between calls.
func (s *Service) Records() []model.ImplantRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]model.ImplantRecord, len(s.lastKnown))
	copy(snapshot, s.lastKnown)
	return snapshot
}

// requiredFields maps struct fields to their wire names for validation
// messages.
var requiredFields = map[string]string{
	"Type":         "type",
	"Manufacturer": "manufacturer",
	"Model":        "model",
	"SerialNumber": "serialNumber",
	"ImplantDate":  "implantDate",
	"Location":     "location",
}

func (s *Service) validateRecord(rec *model.ImplantRecord) error {
	err := s.validate.Struct(rec)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Validation("record failed validation")
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if name, ok := requiredFields[fe.Field()]; ok {
			missing = append(missing, name)
		} else {
			missing = append(missing, fe.Field())
		}
	}
	return apperrors.Validation(fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
}

// refresh is sequenced strictly after a write acknowledgment so a save that
// resolved true is reflected in the next list.
func (s *Service) refresh(ctx context.Context) {
	records, err := s.bridge.List(ctx)
	if err != nil {
		s.logger.Error(err, "failed to refresh records after write")
		return
	}
	s.remember(records)
	s.publishRecords(ctx, records)
}

func (s *Service) remember(records []model.ImplantRecord) {
	s.mu.Lock()
	s.lastKnown = records
	s.mu.Unlock()
}

func (s *Service) publishPermission(ctx context.Context, status model.PermissionStatus) {
	if s.broker == nil {
		return
	}
	msg := messaging.Message{Type: "permission.changed", Payload: status}
	if err := s.broker.Publish(ctx, messaging.ChannelPermissionChanged, msg); err != nil {
		s.logger.Warn("failed to publish permission change", "error", err.Error())
	}
}

func (s *Service) publishRecords(ctx context.Context, records []model.ImplantRecord) {
	if s.broker == nil {
		return
	}
	msg := messaging.Message{Type: "records.changed", Payload: records}
	if err := s.broker.Publish(ctx, messaging.ChannelRecordsChanged, msg); err != nil {
		s.logger.Warn("failed to publish record change", "error", err.Error())
	}
}
