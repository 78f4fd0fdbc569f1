package bridge

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/implanttrace/healthbridge/internal/model"
	"github.com/implanttrace/healthbridge/internal/repository/memory"
	"github.com/implanttrace/healthbridge/internal/service/permission"
	"github.com/implanttrace/healthbridge/internal/service/record"
	"github.com/implanttrace/healthbridge/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

func newSimulated(t *testing.T) (*Simulated, *permission.Service) {
	t.Helper()
	ctx := context.Background()
	kv := memory.NewKVStore()

	perms, err := permission.NewService(ctx, kv, testLogger())
	require.NoError(t, err)
	records, err := record.NewStore(ctx, kv, testLogger())
	require.NoError(t, err)

	return NewSimulated(Config{}, perms, records, testLogger(), nil), perms
}

func implantRecord(id string) model.ImplantRecord {
	return model.ImplantRecord{
		ID:           id,
		Type:         "Knee",
		Manufacturer: "Orthofix",
		Model:        "K-200",
		SerialNumber: "SN-" + id,
		ImplantDate:  "2022-11-02",
		Location:     "Right knee",
	}
}

func TestSimulatedRefusesWithoutAuthorization(t *testing.T) {
	ctx := context.Background()
	sim, _ := newSimulated(t)

	saved, err := sim.Save(ctx, implantRecord("a"))
	require.NoError(t, err)
	assert.False(t, saved)

	records, err := sim.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	removed, err := sim.DeleteByID(ctx, "a")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSimulatedRoundTrip(t *testing.T) {
	ctx := context.Background()
	sim, _ := newSimulated(t)

	status, err := sim.RequestAuthorization(ctx)
	require.NoError(t, err)
	require.Equal(t, model.PermissionAuthorized, status)

	saved, err := sim.Save(ctx, implantRecord("a"))
	require.NoError(t, err)
	assert.True(t, saved)

	records, err := sim.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)

	removed, err := sim.DeleteByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestSimulatedAuthorizationStatusNeverPrompts(t *testing.T) {
	ctx := context.Background()
	sim, perms := newSimulated(t)

	status, err := sim.AuthorizationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PermissionNotDetermined, status)
	assert.Equal(t, model.PermissionNotDetermined, perms.Status())
}

func TestSimulatedLatencyRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim, _ := newSimulated(t)
	sim.latency = time.Second

	_, err := sim.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
