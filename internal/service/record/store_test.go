package record

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/implanttrace/healthbridge/internal/model"
	"github.com/implanttrace/healthbridge/internal/repository"
	"github.com/implanttrace/healthbridge/internal/repository/memory"
	"github.com/implanttrace/healthbridge/pkg/errors"
	"github.com/implanttrace/healthbridge/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:      logger.ErrorLevel,
		TimeFormat: time.RFC3339,
		Output:     io.Discard,
	})
}

func newStore(t *testing.T, kv repository.KVStore) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), kv, testLogger())
	require.NoError(t, err)
	return store
}

func testRecord(id string) model.ImplantRecord {
	return model.ImplantRecord{
		ID:           id,
		Type:         "Hip",
		Manufacturer: "Acme",
		Model:        "X1",
		SerialNumber: "SN-" + id,
		ImplantDate:  "2023-05-15",
		Location:     "Left hip",
	}
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, memory.NewKVStore())

	require.NoError(t, store.Create(ctx, testRecord("a")))
	require.NoError(t, store.Create(ctx, testRecord("b")))

	records := store.List(ctx)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "b", records[1].ID)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, memory.NewKVStore())

	require.NoError(t, store.Create(ctx, testRecord("a")))

	err := store.Create(ctx, testRecord("a"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrDuplicate, errors.CodeOf(err))
	assert.Equal(t, 1, store.Count())
}

func TestListReturnsDefensiveCopy(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, memory.NewKVStore())

	require.NoError(t, store.Create(ctx, testRecord("a")))

	records := store.List(ctx)
	records[0].Manufacturer = "Tampered"

	fresh := store.List(ctx)
	assert.Equal(t, "Acme", fresh[0].Manufacturer)
}

func TestDeleteByID(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, memory.NewKVStore())

	require.NoError(t, store.Create(ctx, testRecord("a")))

	removed, err := store.DeleteByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, store.Count())

	// Deleting twice is idempotent in effect.
	removed, err = store.DeleteByID(ctx, "a")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDeleteMissingIDResolvesFalse(t *testing.T) {
	store := newStore(t, memory.NewKVStore())

	removed, err := store.DeleteByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCollectionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()

	store := newStore(t, kv)
	require.NoError(t, store.Create(ctx, testRecord("a")))

	reloaded := newStore(t, kv)
	records := reloaded.List(ctx)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "Left hip", records[0].Location)
}

func TestFailedPersistLeavesCollectionUntouched(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{KVStore: memory.NewKVStore()}
	store, err := NewStore(ctx, kv, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, testRecord("a")))

	kv.fail = true
	err = store.Create(ctx, testRecord("b"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrPersistence, errors.CodeOf(err))
	assert.Equal(t, 1, store.Count())
}

func TestCorruptDocumentIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	require.NoError(t, kv.Put(ctx, repository.KeyImplantRecords, []byte("{not json")))

	_, err := NewStore(ctx, kv, testLogger())
	require.Error(t, err)
	assert.Equal(t, errors.ErrPersistence, errors.CodeOf(err))
}

type failingKV struct {
	repository.KVStore
	fail bool
}

func (f *failingKV) Put(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return context.DeadlineExceeded
	}
	return f.KVStore.Put(ctx, key, value)
}
