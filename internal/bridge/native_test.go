package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/implanttrace/healthbridge/internal/model"
	"github.com/implanttrace/healthbridge/internal/repository/memory"
	"github.com/implanttrace/healthbridge/internal/service/permission"
	"github.com/implanttrace/healthbridge/internal/service/record"
)

// fakePlatform implements the device health-record wire contract.
type fakePlatform struct {
	mu        sync.Mutex
	available bool
	status    string
	documents []platformDocument
}

func (p *fakePlatform) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/capabilities", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"health_records": p.available})
	})
	mux.HandleFunc("/v1/authorization/request", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.status = "authorized"
		p.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"status": "authorized"})
	})
	mux.HandleFunc("/v1/authorization/status", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"status": p.status})
	})
	mux.HandleFunc("/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			var doc platformDocument
			json.NewDecoder(r.Body).Decode(&doc)
			p.documents = append(p.documents, doc)
			json.NewEncoder(w).Encode(map[string]bool{"saved": true})
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{"documents": p.documents})
		case http.MethodDelete:
			id := r.URL.Query().Get("metadata_id")
			removed := false
			for i, doc := range p.documents {
				if doc.Metadata["id"] == id {
					p.documents = append(p.documents[:i], p.documents[i+1:]...)
					removed = true
					break
				}
			}
			json.NewEncoder(w).Encode(map[string]bool{"removed": removed})
		}
	})
	return mux
}

func newFakePlatform(t *testing.T) (*fakePlatform, *Native) {
	t.Helper()
	platform := &fakePlatform{available: true, status: "notDetermined"}
	srv := httptest.NewServer(platform.handler())
	t.Cleanup(srv.Close)

	native := NewNative(Config{
		PlatformURL:    srv.URL,
		ProbeTimeout:   time.Second,
		StatusCacheTTL: 50 * time.Millisecond,
	}, testLogger(), nil)
	return platform, native
}

func TestNativeCapabilityProbe(t *testing.T) {
	platform, native := newFakePlatform(t)
	assert.True(t, native.Available(context.Background()))

	platform.available = false
	assert.False(t, native.Available(context.Background()))
}

func TestNativeAuthorizationFlow(t *testing.T) {
	ctx := context.Background()
	_, native := newFakePlatform(t)

	status, err := native.AuthorizationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PermissionNotDetermined, status)

	status, err = native.RequestAuthorization(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PermissionAuthorized, status)

	// Served from the short-lived cache after the request.
	status, err = native.AuthorizationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PermissionAuthorized, status)
}

func TestNativeDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	platform, native := newFakePlatform(t)

	rec := implantRecord("native-1")
	rec.Surgeon = "Dr. Osei"
	rec.Hospital = "St. Mary's"
	rec.Notes = "revision surgery"

	saved, err := native.Save(ctx, rec)
	require.NoError(t, err)
	assert.True(t, saved)

	// The app-assigned id travels inside metadata, not as the platform key.
	require.Len(t, platform.documents, 1)
	assert.Equal(t, "native-1", platform.documents[0].Metadata["id"])
	assert.Equal(t, rec.SerialNumber, platform.documents[0].DeviceSerial)

	records, err := native.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec, records[0])

	removed, err := native.DeleteByID(ctx, "native-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = native.DeleteByID(ctx, "native-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestNativeTransportFailureResolvesNegatively(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	native := NewNative(Config{PlatformURL: srv.URL, ProbeTimeout: 100 * time.Millisecond}, testLogger(), nil)

	status, err := native.RequestAuthorization(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PermissionDenied, status)

	status, err = native.AuthorizationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.PermissionNotDetermined, status)

	saved, err := native.Save(ctx, implantRecord("x"))
	require.NoError(t, err)
	assert.False(t, saved)

	records, err := native.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFactoryFallsBackToSimulation(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	perms, err := permission.NewService(ctx, kv, testLogger())
	require.NoError(t, err)
	records, err := record.NewStore(ctx, kv, testLogger())
	require.NoError(t, err)

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	b := New(ctx, Config{PlatformURL: srv.URL, ProbeTimeout: 100 * time.Millisecond}, perms, records, testLogger(), nil)
	assert.Equal(t, "simulated", b.Variant())
}

func TestFactorySelectsNativeWhenSupported(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVStore()
	perms, err := permission.NewService(ctx, kv, testLogger())
	require.NoError(t, err)
	records, err := record.NewStore(ctx, kv, testLogger())
	require.NoError(t, err)

	platform := &fakePlatform{available: true, status: "notDetermined"}
	srv := httptest.NewServer(platform.handler())
	t.Cleanup(srv.Close)

	b := New(ctx, Config{PlatformURL: srv.URL, ProbeTimeout: time.Second}, perms, records, testLogger(), nil)
	assert.Equal(t, "native", b.Variant())
}
