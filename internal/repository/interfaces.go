package repository

import (
	"context"
)

// Durable storage keys. Each holds one whole document, written atomically.
const (
	KeyPermissionStatus = "permission_status"
	KeyImplantRecords   = "implant_records"
)

// KVStore is the durable storage contract shared by the SQLite-backed store
// and the in-memory store used in tests. Values are opaque documents; a
// missing key is reported through the found flag, not an error.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
