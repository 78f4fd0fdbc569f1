package record

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/implanttrace/healthbridge/internal/model"
	"github.com/implanttrace/healthbridge/internal/repository"
	"github.com/implanttrace/healthbridge/pkg/errors"
	"github.com/implanttrace/healthbridge/pkg/logger"
)

// Store owns the ordered implant record collection. The in-memory copy is
// authoritative; durable storage is a write-through mirror holding the whole
// collection as one document, so a mutation is either fully persisted or not
// applied at all. Permissions are enforced above this layer.
type Store struct {
	kv     repository.KVStore
	logger *logger.Logger

	mu      sync.Mutex
	records []model.ImplantRecord
}

// NewStore loads any previously persisted collection. A missing document is
// an empty store; a corrupt one is a persistence failure.
func NewStore(ctx context.Context, kv repository.KVStore, log *logger.Logger) (*Store, error) {
	s := &Store{kv: kv, logger: log}

	value, found, err := kv.Get(ctx, repository.KeyImplantRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to load implant records: %w", err)
	}
	if found {
		if err := json.Unmarshal(value, &s.records); err != nil {
			return nil, errors.Persistence("stored implant records are corrupt", err)
		}
	}

	return s, nil
}

// Create appends the record and persists the collection. A reused id is
// rejected with a duplicate error before anything is written.
func (s *Store) Create(ctx context.Context, rec model.ImplantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.records {
		if existing.ID == rec.ID {
			return errors.Duplicate(rec.ID)
		}
	}

	next := make([]model.ImplantRecord, len(s.records), len(s.records)+1)
	copy(next, s.records)
	next = append(next, rec)

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.records = next

	s.logger.Debug("implant record created", "id", rec.ID, "type", rec.Type)
	return nil
}

// List returns a snapshot of all records in insertion order.
func (s *Store) List(_ context.Context) []model.ImplantRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]model.ImplantRecord, len(s.records))
	copy(snapshot, s.records)
	return snapshot
}

// DeleteByID removes the record with the given id, if present, and reports
// whether anything was removed.
func (s *Store) DeleteByID(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, rec := range s.records {
		if rec.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	next := make([]model.ImplantRecord, 0, len(s.records)-1)
	next = append(next, s.records[:idx]...)
	next = append(next, s.records[idx+1:]...)

	if err := s.persist(ctx, next); err != nil {
		return false, err
	}
	s.records = next

	s.logger.Debug("implant record deleted", "id", id)
	return true, nil
}

// Count returns the current number of records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) persist(ctx context.Context, records []model.ImplantRecord) error {
	value, err := json.Marshal(records)
	if err != nil {
		return errors.Persistence("failed to encode implant records", err)
	}
	if err := s.kv.Put(ctx, repository.KeyImplantRecords, value); err != nil {
		return errors.Persistence("failed to persist implant records", err)
	}
	return nil
}
