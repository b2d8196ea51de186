// Package api provides the REST and streaming API for the gateway.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"taglink/config"
	"taglink/engine"
	"taglink/metric"
	"taglink/registry"
	"taglink/stream"
)

// handlers holds the API handler state.
type handlers struct {
	cfg     *config.Config
	eng     *engine.Engine
	reg     *registry.Registry
	layout  map[string]interface{}
	metrics *metric.Metrics
}

// StructureResponse is the one-shot full snapshot plus static layout used by
// clients to render before subscribing to the stream.
type StructureResponse struct {
	Version  string                   `json:"version"`
	Branding string                   `json:"branding"`
	Pages    interface{}              `json:"pages"`
	Tags     []string                 `json:"tags"`
	Meta     map[string]registry.Meta `json:"meta"`
	Data     []stream.TagUpdate       `json:"data"`
	Status   StatusResponse           `json:"status"`
}

// StatusResponse is the JSON response for gateway status.
type StatusResponse struct {
	TagCount         int   `json:"tagCount"`
	ConnectedClients int   `json:"connectedClients"`
	PollIntervalMs   int64 `json:"pollIntervalMs"`
}

// NewRouter creates the API router. All routes sit behind the bearer auth
// gate when auth is enabled.
func NewRouter(cfg *config.Config, eng *engine.Engine, layout map[string]interface{}, metrics *metric.Metrics) chi.Router {
	r := chi.NewRouter()
	h := &handlers{
		cfg:     cfg,
		eng:     eng,
		reg:     eng.Registry(),
		layout:  layout,
		metrics: metrics,
	}

	auth := NewAuthenticator(&cfg.Web.Auth)
	r.Use(auth.Middleware)

	r.Get("/structure", h.handleStructure)
	r.Get("/status", h.handleStatus)
	r.Get("/events", h.handleSSE)

	return r
}

func (h *handlers) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (h *handlers) status() StatusResponse {
	return StatusResponse{
		TagCount:         h.eng.TagCount(),
		ConnectedClients: h.eng.Hub().ClientCount(),
		PollIntervalMs:   h.eng.PollInterval().Milliseconds(),
	}
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.status())
}

func (h *handlers) handleStructure(w http.ResponseWriter, r *http.Request) {
	resp := StructureResponse{
		Version:  h.cfg.Version,
		Branding: h.cfg.Branding,
		Tags:     h.reg.Tags,
		Meta:     h.reg.Meta,
		Data:     h.eng.SnapshotUpdates(),
		Status:   h.status(),
	}
	if h.layout != nil {
		resp.Pages = h.layout["pages"]
		if resp.Branding == "" {
			if s, ok := h.layout["branding"].(string); ok {
				resp.Branding = s
			}
		}
		if resp.Version == "" {
			if s, ok := h.layout["version"].(string); ok {
				resp.Version = s
			}
		}
	}
	if resp.Pages == nil {
		resp.Pages = []interface{}{}
	}
	h.writeJSON(w, resp)
}
