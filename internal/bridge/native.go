package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/implanttrace/healthbridge/internal/model"
	"github.com/implanttrace/healthbridge/pkg/logger"
	"github.com/implanttrace/healthbridge/pkg/metrics"
)

const (
	variantNative  = "native"
	statusCacheKey = "authorization_status"
)

// Native forwards every call to the device health-record service. The
// application-assigned record id travels inside document metadata, not as the
// platform's own identifier, so records stay addressable across the boundary.
// Transport failures resolve to denied or empty results so callers see the
// same shape as a missing capability.
type Native struct {
	baseURL     string
	client      *http.Client
	statusCache *gocache.Cache
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

// platformDocument is the wire shape of one health-record document. The
// document is anchored at the implant date and carries the clinical fields as
// free-form metadata.
type platformDocument struct {
	DeviceSerial string            `json:"device_serial"`
	StartDate    string            `json:"start_date"`
	EndDate      string            `json:"end_date"`
	Metadata     map[string]string `json:"metadata"`
}

func NewNative(cfg Config, log *logger.Logger, m *metrics.Metrics) *Native {
	ttl := cfg.StatusCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	return &Native{
		baseURL:     cfg.PlatformURL,
		client:      &http.Client{Timeout: probeTimeout},
		statusCache: gocache.New(ttl, 2*ttl),
		logger:      log,
		metrics:     m,
	}
}

func (n *Native) Variant() string { return variantNative }

// Available probes the platform once at startup. Anything other than an
// affirmative answer means the capability is absent on this device.
func (n *Native) Available(ctx context.Context) bool {
	var resp struct {
		HealthRecords bool `json:"health_records"`
	}
	if err := n.do(ctx, http.MethodGet, "/v1/capabilities", nil, &resp); err != nil {
		return false
	}
	return resp.HealthRecords
}

func (n *Native) RequestAuthorization(ctx context.Context) (model.PermissionStatus, error) {
	start := time.Now()
	var resp struct {
		Status string `json:"status"`
	}
	if err := n.do(ctx, http.MethodPost, "/v1/authorization/request", nil, &resp); err != nil {
		n.logger.Warn("platform authorization request failed", "error", err.Error())
		n.observe("request_authorization", err, start)
		return model.PermissionDenied, nil
	}
	status := model.ParsePermissionStatus(resp.Status)
	n.statusCache.Set(statusCacheKey, status, gocache.DefaultExpiration)
	n.observe("request_authorization", nil, start)
	return status, nil
}

func (n *Native) AuthorizationStatus(ctx context.Context) (model.PermissionStatus, error) {
	if cached, ok := n.statusCache.Get(statusCacheKey); ok {
		return cached.(model.PermissionStatus), nil
	}

	start := time.Now()
	var resp struct {
		Status string `json:"status"`
	}
	if err := n.do(ctx, http.MethodGet, "/v1/authorization/status", nil, &resp); err != nil {
		n.observe("authorization_status", err, start)
		return model.PermissionNotDetermined, nil
	}
	status := model.ParsePermissionStatus(resp.Status)
	n.statusCache.Set(statusCacheKey, status, gocache.DefaultExpiration)
	n.observe("authorization_status", nil, start)
	return status, nil
}

func (n *Native) Save(ctx context.Context, rec model.ImplantRecord) (bool, error) {
	start := time.Now()
	var resp struct {
		Saved bool `json:"saved"`
	}
	if err := n.do(ctx, http.MethodPost, "/v1/documents", documentFromRecord(rec), &resp); err != nil {
		n.logger.Warn("platform save failed", "error", err.Error(), "id", rec.ID)
		n.observe("save", err, start)
		return false, nil
	}
	n.observe("save", nil, start)
	return resp.Saved, nil
}

func (n *Native) List(ctx context.Context) ([]model.ImplantRecord, error) {
	start := time.Now()
	var resp struct {
		Documents []platformDocument `json:"documents"`
	}
	// Unbounded date range; the platform returns documents in insertion order.
	if err := n.do(ctx, http.MethodGet, "/v1/documents", nil, &resp); err != nil {
		n.observe("list", err, start)
		return []model.ImplantRecord{}, nil
	}
	records := make([]model.ImplantRecord, 0, len(resp.Documents))
	for _, doc := range resp.Documents {
		records = append(records, doc.toRecord())
	}
	n.observe("list", nil, start)
	return records, nil
}

func (n *Native) DeleteByID(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	var resp struct {
		Removed bool `json:"removed"`
	}
	path := fmt.Sprintf("/v1/documents?metadata_id=%s&limit=1", url.QueryEscape(id))
	if err := n.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		n.observe("delete", err, start)
		return false, nil
	}
	n.observe("delete", nil, start)
	return resp.Removed, nil
}

func (n *Native) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("platform call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("platform returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode platform response: %w", err)
		}
	}
	return nil
}

func (n *Native) observe(operation string, err error, start time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	n.metrics.ObserveBridgeCall(variantNative, operation, status, time.Since(start).Seconds())
}

func documentFromRecord(rec model.ImplantRecord) platformDocument {
	return platformDocument{
		DeviceSerial: rec.SerialNumber,
		StartDate:    rec.ImplantDate,
		EndDate:      rec.ImplantDate,
		Metadata: map[string]string{
			"id":           rec.ID,
			"type":         rec.Type,
			"manufacturer": rec.Manufacturer,
			"model":        rec.Model,
			"location":     rec.Location,
			"surgeon":      rec.Surgeon,
			"hospital":     rec.Hospital,
			"notes":        rec.Notes,
		},
	}
}

func (d platformDocument) toRecord() model.ImplantRecord {
	return model.ImplantRecord{
		ID:           d.Metadata["id"],
		Type:         d.Metadata["type"],
		Manufacturer: d.Metadata["manufacturer"],
		Model:        d.Metadata["model"],
		SerialNumber: d.DeviceSerial,
		ImplantDate:  d.StartDate,
		Location:     d.Metadata["location"],
		Surgeon:      d.Metadata["surgeon"],
		Hospital:     d.Metadata["hospital"],
		Notes:        d.Metadata["notes"],
	}
}
