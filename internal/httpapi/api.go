package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/bavix/presence/internal/annotations"
	customerrors "github.com/bavix/presence/internal/errors"
	"github.com/bavix/presence/internal/macaddr"
	"github.com/bavix/presence/internal/metrics"
	"github.com/bavix/presence/internal/presence"
	"github.com/bavix/presence/internal/version"
)

var (
	errInvalidJSON         = errors.New("invalid JSON")
	errFeatureUnavailable  = errors.New("not available on this router")
	errAnnotationsReadOnly = errors.New("annotations are read-only")
	errMethodNotAllowed    = errors.New("method not allowed")
)

const defaultMaxRequestSize = 64 * 1024

// Snapshotter produces the current device list.
type Snapshotter interface {
	Reconcile(ctx context.Context) presence.Snapshot
}

// AnnotationEditor reads and edits per-device labels and icons.
type AnnotationEditor interface {
	Load(ctx context.Context) annotations.Snapshot
	SetIcon(ctx context.Context, mac, iconPath string) error
	ClearIcon(ctx context.Context, mac string) error
	SetLabel(ctx context.Context, mac, label string) error
	ClearLabel(ctx context.Context, mac string) error
	SetShowAll(ctx context.Context, showAll bool) error
}

// IconCatalog lists selectable icons.
type IconCatalog interface {
	List(ctx context.Context) []string
	Validate(ctx context.Context, iconPath string) error
	Default() string
}

// NeighborFlusher clears the kernel neighbor table.
type NeighborFlusher interface {
	Flush(ctx context.Context) error
}

// Disconnector kicks a wireless station.
type Disconnector interface {
	Disconnect(ctx context.Context, mac string) error
}

// Deps wires the API. Flusher and Disconnector may be nil; their endpoints
// then answer 501.
type Deps struct {
	Devices        Snapshotter
	Annotations    AnnotationEditor
	Icons          IconCatalog
	Flusher        NeighborFlusher
	Disconnector   Disconnector
	MaxRequestSize int64
	// Notify is called after any change a dashboard should refetch for.
	Notify func(reason string)
}

// APIHandler serves the /api/v1 routes.
type APIHandler struct {
	deps Deps
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(deps Deps) *APIHandler {
	if deps.MaxRequestSize <= 0 {
		deps.MaxRequestSize = defaultMaxRequestSize
	}

	if deps.Notify == nil {
		deps.Notify = func(string) {}
	}

	return &APIHandler{deps: deps}
}

// RegisterRoutes registers all API routes. Mutating routes pass through limit.
func (h *APIHandler) RegisterRoutes(api *mux.Router, limit func(http.Handler) http.Handler) {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	read := func(f http.HandlerFunc) http.Handler { return f }
	write := func(f http.HandlerFunc) http.Handler { return limit(f) }

	routes := []struct {
		path    string
		method  string
		handler http.Handler
	}{
		{"/devices", http.MethodGet, read(h.GetDevices)},
		{"/annotations", http.MethodGet, read(h.GetAnnotations)},
		{"/icons", http.MethodGet, read(h.GetIcons)},
		{"/stats", http.MethodGet, read(h.GetStats)},
		{"/devices/{mac}/label", http.MethodPut, write(h.SetLabel)},
		{"/devices/{mac}/label", http.MethodDelete, write(h.ClearLabel)},
		{"/devices/{mac}/icon", http.MethodPut, write(h.SetIcon)},
		{"/devices/{mac}/icon", http.MethodDelete, write(h.ClearIcon)},
		{"/devices/{mac}/disconnect", http.MethodPost, write(h.Disconnect)},
		{"/settings/show-all", http.MethodPut, write(h.SetShowAll)},
		{"/neighbors/flush", http.MethodPost, write(h.FlushNeighbors)},
	}

	var paths []string

	allowed := make(map[string][]string)

	for _, rt := range routes {
		api.Handle(rt.path, rt.handler).Methods(rt.method)

		if _, ok := allowed[rt.path]; !ok {
			paths = append(paths, rt.path)
		}

		allowed[rt.path] = append(allowed[rt.path], rt.method)
	}

	// Subrouter routes share the prefix matcher, which resets mux's method
	// mismatch state, so a known path with another method lands here.
	for _, path := range paths {
		api.Handle(path, methodNotAllowed(allowed[path]))
	}
}

func methodNotAllowed(methods []string) http.Handler {
	allow := strings.Join(methods, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		jsonError(w, r, http.StatusMethodNotAllowed, errMethodNotAllowed)
	})
}

type deviceResponse struct {
	presence.DeviceRecord

	Label string `json:"label"`
	Icon  string `json:"icon"`
}

type devicesResponse struct {
	Devices     []deviceResponse `json:"devices"`
	Count       int              `json:"count"`
	Wifi        int              `json:"wifi"`
	Wired       int              `json:"wired"`
	ShowAll     bool             `json:"showAllUsers"`
	FailedFeeds []string         `json:"failedFeeds,omitempty"`
	TakenAt     time.Time        `json:"takenAt"`
}

// GetDevices runs (or joins) a reconciliation pass.
func (h *APIHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	snap := h.deps.Devices.Reconcile(r.Context())
	fallback := h.deps.Icons.Default()

	out := make([]deviceResponse, 0, len(snap.Devices))
	for _, d := range snap.Devices {
		out = append(out, deviceResponse{DeviceRecord: d, Label: d.Label(), Icon: d.IconPath(fallback)})
	}

	wifi, wired := presence.Counts(snap.Devices)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, devicesResponse{
		Devices:     out,
		Count:       len(out),
		Wifi:        wifi,
		Wired:       wired,
		ShowAll:     snap.ShowAll,
		FailedFeeds: snap.FailedFeeds,
		TakenAt:     snap.TakenAt,
	})
}

// GetAnnotations returns every stored label and icon.
func (h *APIHandler) GetAnnotations(w http.ResponseWriter, r *http.Request) {
	snap := h.deps.Annotations.Load(r.Context())

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{
		"showAllUsers": snap.ShowAll(),
		"devices":      snap.All(),
	})
}

func (h *APIHandler) GetIcons(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{
		"icons":   h.deps.Icons.List(r.Context()),
		"default": h.deps.Icons.Default(),
	})
}

func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	st, err := metrics.GatherStats(metrics.Service())
	if err != nil {
		jsonError(w, r, http.StatusInternalServerError, err)

		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{
		"stats":   st,
		"version": version.Get(),
	})
}

type labelRequest struct {
	Label string `json:"label"`
}

func (h *APIHandler) SetLabel(w http.ResponseWriter, r *http.Request) {
	mac, ok := macParam(w, r)
	if !ok {
		return
	}

	var req labelRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.mutate(w, r, mac, "label", func(ctx context.Context) error {
		return h.deps.Annotations.SetLabel(ctx, mac, req.Label)
	})
}

func (h *APIHandler) ClearLabel(w http.ResponseWriter, r *http.Request) {
	mac, ok := macParam(w, r)
	if !ok {
		return
	}

	h.mutate(w, r, mac, "label", func(ctx context.Context) error {
		return h.deps.Annotations.ClearLabel(ctx, mac)
	})
}

type iconRequest struct {
	IconPath string `json:"iconPath"`
}

func (h *APIHandler) SetIcon(w http.ResponseWriter, r *http.Request) {
	mac, ok := macParam(w, r)
	if !ok {
		return
	}

	var req iconRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.deps.Icons.Validate(r.Context(), req.IconPath); err != nil {
		jsonError(w, r, http.StatusBadRequest, err)

		return
	}

	h.mutate(w, r, mac, "icon", func(ctx context.Context) error {
		return h.deps.Annotations.SetIcon(ctx, mac, req.IconPath)
	})
}

func (h *APIHandler) ClearIcon(w http.ResponseWriter, r *http.Request) {
	mac, ok := macParam(w, r)
	if !ok {
		return
	}

	h.mutate(w, r, mac, "icon", func(ctx context.Context) error {
		return h.deps.Annotations.ClearIcon(ctx, mac)
	})
}

type showAllRequest struct {
	ShowAll *bool `json:"showAllUsers"`
}

func (h *APIHandler) SetShowAll(w http.ResponseWriter, r *http.Request) {
	var req showAllRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.ShowAll == nil {
		jsonError(w, r, http.StatusBadRequest, errInvalidJSON)

		return
	}

	if err := h.deps.Annotations.SetShowAll(r.Context(), *req.ShowAll); err != nil {
		writeStoreError(w, r, err)

		return
	}

	h.deps.Notify("settings")

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{"showAllUsers": *req.ShowAll})
}

// FlushNeighbors drops stale neighbor entries so the next pass only sees live devices.
func (h *APIHandler) FlushNeighbors(w http.ResponseWriter, r *http.Request) {
	if h.deps.Flusher == nil {
		jsonError(w, r, http.StatusNotImplemented, errFeatureUnavailable)

		return
	}

	if err := h.deps.Flusher.Flush(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("neighbor flush failed")
		jsonError(w, r, http.StatusBadGateway, err)

		return
	}

	h.deps.Notify("neighbors")

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "flushed"})
}

func (h *APIHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	mac, ok := macParam(w, r)
	if !ok {
		return
	}

	if h.deps.Disconnector == nil {
		jsonError(w, r, http.StatusNotImplemented, errFeatureUnavailable)

		return
	}

	err := h.deps.Disconnector.Disconnect(r.Context(), mac)

	switch {
	case err == nil:
	case errors.Is(err, customerrors.ErrDeviceNotAssociated):
		jsonError(w, r, http.StatusNotFound, err)

		return
	default:
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("mac", mac).Msg("disconnect failed")
		jsonError(w, r, http.StatusBadGateway, err)

		return
	}

	h.deps.Notify("disconnect")

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"hardwareAddress": mac, "status": "disconnected"})
}

func (h *APIHandler) mutate(w http.ResponseWriter, r *http.Request, mac, field string, fn func(context.Context) error) {
	if err := fn(r.Context()); err != nil {
		writeStoreError(w, r, err)

		return
	}

	h.deps.Notify("annotations")

	a, _ := h.deps.Annotations.Load(r.Context()).Get(mac)

	zerolog.Ctx(r.Context()).Info().Str("mac", mac).Str("field", field).Msg("annotation updated")

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{"hardwareAddress": mac, "annotation": a})
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxRequestSize)

	if err := render.DecodeJSON(r.Body, v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, r, http.StatusRequestEntityTooLarge, err)

			return false
		}

		jsonError(w, r, http.StatusBadRequest, errInvalidJSON)

		return false
	}

	return true
}

func macParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	mac, err := macaddr.Normalize(mux.Vars(r)["mac"])
	if err != nil {
		jsonError(w, r, http.StatusBadRequest, err)

		return "", false
	}

	return mac, true
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("annotation write failed")

	if errors.Is(err, customerrors.ErrAnnotationStoreNotWritable) {
		jsonError(w, r, http.StatusServiceUnavailable, errAnnotationsReadOnly)

		return
	}

	jsonError(w, r, http.StatusInternalServerError, err)
}

func jsonError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}
