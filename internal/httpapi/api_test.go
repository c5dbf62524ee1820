package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bavix/presence/internal/annotations"
	customerrors "github.com/bavix/presence/internal/errors"
	"github.com/bavix/presence/internal/httpapi"
	"github.com/bavix/presence/internal/icons"
	"github.com/bavix/presence/internal/presence"
)

type fakeDevices struct {
	snap presence.Snapshot
}

func (f fakeDevices) Reconcile(context.Context) presence.Snapshot { return f.snap }

type fakeFlusher struct {
	err   error
	calls int
}

func (f *fakeFlusher) Flush(context.Context) error {
	f.calls++

	return f.err
}

type fakeDisconnector struct {
	known map[string]bool
	err   error
}

func (f fakeDisconnector) Disconnect(_ context.Context, mac string) error {
	if f.err != nil {
		return f.err
	}

	if !f.known[mac] {
		return customerrors.ErrDeviceNotAssociatedWithMAC(mac)
	}

	return nil
}

type notifications struct {
	mu      sync.Mutex
	reasons []string
}

func (n *notifications) notify(reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.reasons = append(n.reasons, reason)
}

func (n *notifications) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]string(nil), n.reasons...)
}

type harness struct {
	router  *mux.Router
	store   *annotations.Store
	flusher *fakeFlusher
	events  *notifications
}

func newHarness(t *testing.T, snap presence.Snapshot) *harness {
	t.Helper()

	h := &harness{
		store:   annotations.New(filepath.Join(t.TempDir(), "overview.json")),
		flusher: &fakeFlusher{},
		events:  &notifications{},
	}

	catalog := icons.NewFS(fstest.MapFS{"tv.png": {}, "phone.png": {}, "default.png": {}}, "/icons")

	handler := httpapi.NewAPIHandler(httpapi.Deps{
		Devices:      fakeDevices{snap: snap},
		Annotations:  h.store,
		Icons:        catalog,
		Flusher:      h.flusher,
		Disconnector: fakeDisconnector{known: map[string]bool{"AA:BB:CC:DD:EE:01": true}},
		Notify:       h.events.notify,
	})

	h.router = mux.NewRouter()
	handler.RegisterRoutes(h.router.PathPrefix("/api/v1").Subrouter(), nil)

	return h
}

func (h *harness) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}

	return w, resp
}

func sampleSnapshot() presence.Snapshot {
	online := int64(3600)

	return presence.Snapshot{
		ShowAll: true,
		TakenAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Devices: []presence.DeviceRecord{
			{
				MAC:            "AA:BB:CC:DD:EE:01",
				DisplayName:    "phone",
				ConnectionType: presence.ConnectionWifi,
				IPv4:           "192.168.1.10",
				IPv6:           "-",
				OnlineSeconds:  &online,
				Annotation:     &annotations.Annotation{Label: "Alice's phone", IconPath: "/icons/phone.png"},
			},
			{
				MAC:            "AA:BB:CC:DD:EE:02",
				DisplayName:    "?",
				ConnectionType: presence.ConnectionWired,
				IPv4:           "-",
				IPv6:           "-",
			},
		},
	}
}

func TestGetDevices(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sampleSnapshot())

	w, resp := h.do(t, http.MethodGet, "/api/v1/devices", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.InDelta(t, 2, resp["count"], 0)
	assert.InDelta(t, 1, resp["wifi"], 0)
	assert.InDelta(t, 1, resp["wired"], 0)
	assert.Equal(t, true, resp["showAllUsers"])

	list, ok := resp["devices"].([]any)
	require.True(t, ok)
	require.Len(t, list, 2)

	first, ok := list[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", first["hardwareAddress"])
	assert.Equal(t, "Alice's phone", first["label"])
	assert.Equal(t, "/icons/phone.png", first["icon"])
	assert.InDelta(t, 3600, first["onlineDurationSeconds"], 0)

	second, ok := list[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "?", second["label"])
	assert.Equal(t, "/icons/default.png", second["icon"])
	assert.Nil(t, second["onlineDurationSeconds"])
}

func TestGetDevicesEmpty(t *testing.T) {
	t.Parallel()

	h := newHarness(t, presence.Snapshot{})

	w, resp := h.do(t, http.MethodGet, "/api/v1/devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, resp["devices"])
}

func TestLabelLifecycle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, presence.Snapshot{})

	w, resp := h.do(t, http.MethodPut, "/api/v1/devices/aa-bb-cc-dd-ee-01/label", `{"label":"Kitchen TV"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", resp["hardwareAddress"])

	a, ok := h.store.Get(context.Background(), "AA:BB:CC:DD:EE:01")
	require.True(t, ok)
	assert.Equal(t, "Kitchen TV", a.Label)

	w, _ = h.do(t, http.MethodGet, "/api/v1/annotations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Kitchen TV")

	w, _ = h.do(t, http.MethodDelete, "/api/v1/devices/AA:BB:CC:DD:EE:01/label", "")
	require.Equal(t, http.StatusOK, w.Code)

	_, ok = h.store.Get(context.Background(), "AA:BB:CC:DD:EE:01")
	assert.False(t, ok)

	assert.Equal(t, []string{"annotations", "annotations"}, h.events.all())
}

func TestSetIconValidatesCatalog(t *testing.T) {
	t.Parallel()

	h := newHarness(t, presence.Snapshot{})

	w, _ := h.do(t, http.MethodPut, "/api/v1/devices/AA:BB:CC:DD:EE:01/icon", `{"iconPath":"/icons/unknown.png"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = h.do(t, http.MethodPut, "/api/v1/devices/AA:BB:CC:DD:EE:01/icon", `{"iconPath":"/icons/tv.png"}`)
	require.Equal(t, http.StatusOK, w.Code)

	a, ok := h.store.Get(context.Background(), "AA:BB:CC:DD:EE:01")
	require.True(t, ok)
	assert.Equal(t, "/icons/tv.png", a.IconPath)

	w, _ = h.do(t, http.MethodDelete, "/api/v1/devices/AA:BB:CC:DD:EE:01/icon", "")
	require.Equal(t, http.StatusOK, w.Code)

	_, ok = h.store.Get(context.Background(), "AA:BB:CC:DD:EE:01")
	assert.False(t, ok)
}

func TestBadRequests(t *testing.T) {
	t.Parallel()

	h := newHarness(t, presence.Snapshot{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid mac", http.MethodPut, "/api/v1/devices/not-a-mac/label", `{"label":"x"}`, http.StatusBadRequest},
		{"invalid json", http.MethodPut, "/api/v1/devices/AA:BB:CC:DD:EE:01/label", `{`, http.StatusBadRequest},
		{"show-all missing field", http.MethodPut, "/api/v1/settings/show-all", `{}`, http.StatusBadRequest},
		{"too large", http.MethodPut, "/api/v1/devices/AA:BB:CC:DD:EE:01/label",
			`{"label":"` + strings.Repeat("x", 70*1024) + `"}`, http.StatusRequestEntityTooLarge},
		{"wrong method", http.MethodPost, "/api/v1/devices/AA:BB:CC:DD:EE:01/label", `{}`, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		w := httptest.NewRecorder()
		h.router.ServeHTTP(w, req)

		assert.Equal(t, tt.want, w.Code, tt.name)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, presence.Snapshot{})

	tests := []struct {
		name   string
		method string
		path   string
		allow  string
	}{
		{"label", http.MethodPost, "/api/v1/devices/AA:BB:CC:DD:EE:01/label", "PUT, DELETE"},
		{"icon", http.MethodGet, "/api/v1/devices/AA:BB:CC:DD:EE:01/icon", "PUT, DELETE"},
		{"devices", http.MethodPost, "/api/v1/devices", "GET"},
		{"flush", http.MethodGet, "/api/v1/neighbors/flush", "POST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, resp := h.do(t, tt.method, tt.path, `{}`)
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
			assert.Equal(t, tt.allow, w.Header().Get("Allow"))
			assert.Equal(t, "method not allowed", resp["error"])
		})
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetShowAll(t *testing.T) {
	t.Parallel()

	h := newHarness(t, presence.Snapshot{})

	w, resp := h.do(t, http.MethodPut, "/api/v1/settings/show-all", `{"showAllUsers":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["showAllUsers"])
	assert.False(t, h.store.Load(context.Background()).ShowAll())
	assert.Equal(t, []string{"settings"}, h.events.all())
}

func TestGetIcons(t *testing.T) {
	t.Parallel()

	h := newHarness(t, presence.Snapshot{})

	w, resp := h.do(t, http.MethodGet, "/api/v1/icons", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"/icons/phone.png", "/icons/tv.png"}, resp["icons"])
	assert.Equal(t, "/icons/default.png", resp["default"])
}

func TestFlushNeighbors(t *testing.T) {
	t.Parallel()

	h := newHarness(t, presence.Snapshot{})

	w, _ := h.do(t, http.MethodPost, "/api/v1/neighbors/flush", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, h.flusher.calls)
	assert.Equal(t, []string{"neighbors"}, h.events.all())

	h.flusher.err = customerrors.ErrCommandTimeout

	w, _ = h.do(t, http.MethodPost, "/api/v1/neighbors/flush", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestDisconnect(t *testing.T) {
	t.Parallel()

	h := newHarness(t, presence.Snapshot{})

	w, resp := h.do(t, http.MethodPost, "/api/v1/devices/aa:bb:cc:dd:ee:01/disconnect", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "disconnected", resp["status"])

	w, _ = h.do(t, http.MethodPost, "/api/v1/devices/AA:BB:CC:DD:EE:09/disconnect", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOptionalFeaturesUnavailable(t *testing.T) {
	t.Parallel()

	handler := httpapi.NewAPIHandler(httpapi.Deps{
		Devices:     fakeDevices{},
		Annotations: annotations.New(filepath.Join(t.TempDir(), "overview.json")),
		Icons:       icons.NewFS(fstest.MapFS{}, "/icons"),
	})

	router := mux.NewRouter()
	handler.RegisterRoutes(router.PathPrefix("/api/v1").Subrouter(), nil)

	for _, path := range []string{"/api/v1/neighbors/flush", "/api/v1/devices/AA:BB:CC:DD:EE:01/disconnect"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		assert.Equal(t, http.StatusNotImplemented, w.Code, path)
	}
}

func TestAnnotationStoreNotWritable(t *testing.T) {
	t.Parallel()

	handler := httpapi.NewAPIHandler(httpapi.Deps{
		Devices:     fakeDevices{},
		Annotations: annotations.New(filepath.Join(t.TempDir(), "missing", "overview.json")),
		Icons:       icons.NewFS(fstest.MapFS{}, "/icons"),
	})

	router := mux.NewRouter()
	handler.RegisterRoutes(router.PathPrefix("/api/v1").Subrouter(), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/devices/AA:BB:CC:DD:EE:01/label",
		strings.NewReader(`{"label":"x"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
