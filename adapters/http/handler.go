// Package http provides the preview server: it synthesizes bindings for
// posted manifests and serves the OpenAPI export of HTTP channels.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/channelgen/adapters/output"
	"github.com/artpar/channelgen/app"
	"github.com/artpar/channelgen/config"
	"github.com/artpar/channelgen/core/schema"
	"github.com/artpar/channelgen/core/synth"
	"github.com/artpar/channelgen/ports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxManifestBytes bounds POSTed manifests.
const maxManifestBytes = 1 << 20

// ErrorResponseBody is the body of every error response.
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// ProtocolInfo describes one registered transport.
type ProtocolInfo = app.ProtocolInfo

// GeneratedFile is one file of a preview.
type GeneratedFile struct {
	Path     string   `json:"path"`
	Channels []string `json:"channels"`
	Digest   string   `json:"digest"`
	Bytes    int      `json:"bytes"`
	Content  string   `json:"content"`
}

// GenerateResponse is the body of a successful preview.
type GenerateResponse struct {
	Report app.Report      `json:"report"`
	Files  []GeneratedFile `json:"files"`
}

// ChannelInfo summarizes one channel of the configured manifest.
type ChannelInfo struct {
	ID        string   `json:"id"`
	Address   string   `json:"address"`
	Protocols []string `json:"protocols"`
	Skip      bool     `json:"skip,omitempty"`
}

// Handler serves the preview API.
type Handler struct {
	service *app.GenerateService
	synth   *synth.Synthesizer
	history ports.HistoryStore
	config  func() *config.Config
	version string
	logger  zerolog.Logger
}

// HandlerConfig wires a Handler. History may be nil.
type HandlerConfig struct {
	Service     *app.GenerateService
	Synthesizer *synth.Synthesizer
	History     ports.HistoryStore
	Config      func() *config.Config
	Version     string
}

// NewHandler creates a preview handler.
func NewHandler(cfg HandlerConfig, logger zerolog.Logger) *Handler {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		service: cfg.Service,
		synth:   cfg.Synthesizer,
		history: cfg.History,
		config:  cfg.Config,
		version: version,
		logger:  logger.With().Str("component", "preview").Logger(),
	}
}

// Liveness returns OK while the server runs.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness reports whether the configured manifest loads.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	if _, err := schema.Load(h.config().Input); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version returns the service version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: h.version, Service: "channelgen"})
}

// Protocols lists the registered transports and what they support.
func (h *Handler) Protocols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Catalog(h.synth))
}

// Channels lists the channels of the configured manifest with their
// resolved protocols.
func (h *Handler) Channels(w http.ResponseWriter, r *http.Request) {
	cfg := h.config()
	m, err := schema.Load(cfg.Input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "manifest_unavailable", err.Error())
		return
	}

	out := make([]ChannelInfo, 0, len(m.Channels))
	for _, ch := range m.Channels {
		out = append(out, ChannelInfo{
			ID:        ch.ID,
			Address:   ch.Address,
			Protocols: app.Protocols(cfg, ch),
			Skip:      cfg.Channels[ch.ID].Skip,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Generate synthesizes the posted manifest under the current configuration
// and returns the files without writing them. JSON bodies are read as JSON
// with comments, everything else as YAML.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxManifestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}
	if len(body) > maxManifestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "manifest exceeds 1 MiB")
		return
	}

	var m schema.Manifest
	if strings.Contains(r.Header.Get("Content-Type"), "json") {
		m, err = schema.ParseJSON(body)
	} else {
		m, err = schema.Parse(body)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_manifest", err.Error())
		return
	}

	res, err := h.service.Synthesize(r.Context(), h.config(), m)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "canceled", err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("preview failed")
		writeError(w, http.StatusInternalServerError, "generate_failed", err.Error())
		return
	}

	resp := GenerateResponse{Report: res.Report, Files: make([]GeneratedFile, 0, len(res.Files))}
	for _, f := range res.Files {
		resp.Files = append(resp.Files, GeneratedFile{
			Path:     f.Path,
			Channels: f.Channels,
			Digest:   output.Digest(f.Content),
			Bytes:    len(f.Content),
			Content:  string(f.Content),
		})
	}

	status := http.StatusOK
	if res.Report.Status == app.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

// OpenAPI serves the OpenAPI document of the configured manifest's HTTP
// channels.
func (h *Handler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	cfg := h.config()
	m, err := schema.Load(cfg.Input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "manifest_unavailable", err.Error())
		return
	}

	spec, err := app.OpenAPI(cfg, m, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "openapi_failed", err.Error())
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, spec)
}

// Runs lists recorded runs, newest first. ?limit= bounds the page.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history_disabled", "run history is not enabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.history.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("list runs failed")
		writeError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	if runs == nil {
		runs = []ports.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// Run returns one recorded run with its files.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history_disabled", "run history is not enabled")
		return
	}

	run, artifacts, err := h.history.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "run not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("get run failed")
		writeError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, app.RunDetail{Run: run, Artifacts: artifacts})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponseBody{Error: ErrorDetail{Code: code, Message: message}})
}

// requestTimeout bounds every request except the metrics scrape.
const requestTimeout = 60 * time.Second
