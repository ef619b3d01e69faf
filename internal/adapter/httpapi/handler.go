package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"webmcp-inspector/internal/application/port/input"
	"webmcp-inspector/internal/application/port/output"
	"webmcp-inspector/internal/domain/entity"
	"webmcp-inspector/internal/usecase/toolsource"
)

const maxArgumentsBytes = 1 << 20

// Handler serves the aggregated tool catalog of a tool source over HTTP.
type Handler struct {
	source  input.ToolSource
	logger  output.LoggerPort
	metrics http.Handler
}

func NewHandler(source input.ToolSource, logger output.LoggerPort, metrics http.Handler) *Handler {
	return &Handler{
		source:  source,
		logger:  logger,
		metrics: metrics,
	}
}

func NewRequestLogger(service string) zerolog.Logger {
	return httplog.NewLogger(service, httplog.Options{JSON: true})
}

func (h *Handler) Routes(requestLogger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/tools", h.listTools)
	r.Post("/tools/{name}/call", h.callTool)
	r.Get("/targets", h.listTargets)
	r.Post("/refresh", h.refresh)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

type healthResponse struct {
	Connected bool `json:"connected"`
	Targets   int  `json:"targets"`
	Tools     int  `json:"tools"`
}

type callResponse struct {
	CallID     string  `json:"call_id"`
	Result     *string `json:"result"`
	DurationMS int64   `json:"duration_ms"`
}

type errorResponse struct {
	Error  string `json:"error"`
	CallID string `json:"call_id,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if !h.source.IsConnected() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{
		Connected: h.source.IsConnected(),
		Targets:   len(h.source.Targets()),
		Tools:     len(h.source.ListTools()),
	})
}

func (h *Handler) listTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.ListTools())
}

func (h *Handler) listTargets(w http.ResponseWriter, r *http.Request) {
	targets := h.source.Targets()
	if targets == nil {
		targets = []entity.TargetSummary{}
	}
	writeJSON(w, http.StatusOK, targets)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.source.RefreshTools(r.Context()); err != nil {
		h.logger.Warn("Refresh incomplete", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.source.ListTools())
}

func (h *Handler) callTool(w http.ResponseWriter, r *http.Request) {
	callID := uuid.NewString()
	name := chi.URLParam(r, "name")
	log := h.logger.WithFields(map[string]any{"call_id": callID, "tool": name})

	body, err := io.ReadAll(io.LimitReader(r.Body, maxArgumentsBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "read body: " + err.Error(), CallID: callID})
		return
	}
	if len(body) > maxArgumentsBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "arguments too large", CallID: callID})
		return
	}
	args := string(body)
	if len(body) == 0 {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "arguments must be JSON", CallID: callID})
		return
	}

	start := time.Now()
	result, err := h.source.CallTool(r.Context(), name, args)
	if err != nil {
		var execErr *toolsource.ToolExecutionError
		switch {
		case errors.Is(err, toolsource.ErrToolNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), CallID: callID})
		case errors.As(err, &execErr):
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), CallID: callID})
		default:
			log.Error("Tool call failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), CallID: callID})
		}
		return
	}

	writeJSON(w, http.StatusOK, callResponse{
		CallID:     callID,
		Result:     result,
		DurationMS: time.Since(start).Milliseconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
