// Package web serves the editor page and a health endpoint.
package web

import (
	"bytes"
	"encoding/json"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/jaakkos/sketchstore/internal/api"
	"github.com/jaakkos/sketchstore/internal/app"
)

// PageConfig is injected into the editor page.
type PageConfig struct {
	PersistenceKey string
	SaveDebounce   time.Duration
	APIPrefix      string
}

// Handler holds dependencies for the page and health handlers.
type Handler struct {
	svc    *app.EditorService
	page   []byte
	logger *log.Logger
}

// HandlerOption configures optional Handler settings.
type HandlerOption func(*Handler)

// WithLogger sets the logger for request errors.
func WithLogger(l *log.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler renders the page once for cfg. Zero fields take defaults.
func NewHandler(svc *app.EditorService, cfg PageConfig, opts ...HandlerOption) (*Handler, error) {
	if cfg.PersistenceKey == "" {
		cfg.PersistenceKey = "vidext-editor"
	}
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = 500 * time.Millisecond
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = api.DefaultPrefix
	}

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, map[string]any{
		"PersistenceKey": cfg.PersistenceKey,
		"DebounceMs":     cfg.SaveDebounce.Milliseconds(),
		"GetURL":         cfg.APIPrefix + api.PathGetStoreData,
		"SaveURL":        cfg.APIPrefix + api.PathSaveStoreData,
	})
	if err != nil {
		return nil, err
	}

	h := &Handler{svc: svc, page: buf.Bytes(), logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// RegisterRoutes adds the page and health routes to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/", h.handlePage)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(h.page)
}

// HealthStatus is the JSON response from /health.
type HealthStatus struct {
	Status   string `json:"status"`
	Revision int64  `json:"revision"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	snap, err := h.svc.Snapshot()
	if err != nil {
		h.logger.Printf("health: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
		return
	}
	json.NewEncoder(w).Encode(HealthStatus{Status: "ok", Revision: snap.Revision})
}

var pageTemplate = template.Must(template.New("editor").Parse(editorHTML))
