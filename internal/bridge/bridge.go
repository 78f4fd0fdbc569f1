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

// Bridge is the single asynchronous contract over the platform health-record
// integration. Every method resolves; a missing capability or unauthorized
// state surfaces as a negative or empty result, never a hang.
type Bridge interface {
	RequestAuthorization(ctx context.Context) (model.PermissionStatus, error)
	AuthorizationStatus(ctx context.Context) (model.PermissionStatus, error)
	Save(ctx context.Context, rec model.ImplantRecord) (bool, error)
	List(ctx context.Context) ([]model.ImplantRecord, error)
	DeleteByID(ctx context.Context, id string) (bool, error)

	// Variant names the concrete implementation for logs and metrics.
	Variant() string
}

// Config selects and tunes the bridge variant.
type Config struct {
	// PlatformURL points at the device health-record service. Empty means
	// no native capability on this build.
	PlatformURL string

	// ProbeTimeout bounds the startup capability probe.
	ProbeTimeout time.Duration

	// StatusCacheTTL bounds how long a native authorization status query is
	// served from cache.
	StatusCacheTTL time.Duration

	// SimulatedLatency adds artificial delay to simulated calls. Zero by
	// default; UI builds opt in for realism.
	SimulatedLatency time.Duration
}

// New probes the platform capability once and returns the native variant when
// the health-record service is reachable and supported, otherwise the
// simulated fallback. The decision is made here, not scattered through call
// sites.
func New(ctx context.Context, cfg Config, perms *permission.Service, records *record.Store, log *logger.Logger, m *metrics.Metrics) Bridge {
	if cfg.PlatformURL != "" {
		native := NewNative(cfg, log, m)
		if native.Available(ctx) {
			log.Info("platform health integration detected", "url", cfg.PlatformURL)
			return native
		}
		log.Warn("platform health integration unavailable, falling back to simulation", "url", cfg.PlatformURL)
	}
	return NewSimulated(cfg, perms, records, log, m)
}
