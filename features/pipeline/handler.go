package pipeline

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Handler struct {
	service    *Service
	dispatcher *Dispatcher
	runs       RunRepository
	adminToken string
}

func NewHandler(service *Service, dispatcher *Dispatcher, runs RunRepository, adminToken string) *Handler {
	return &Handler{service: service, dispatcher: dispatcher, runs: runs, adminToken: adminToken}
}

// Reingest queues an ingestion run, falling back to a synchronous run
// when the job runner is unreachable. Both paths report the same shape.
func (h *Handler) Reingest(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.writeError(w, "UNAUTHORIZED", "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		SourceTypes []string `json:"source_types"`
	}
	if r.Body != nil {
		// An empty body means "all enabled sources".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")

	if h.dispatcher != nil {
		jobID, err := h.dispatcher.Enqueue(ctx, req.SourceTypes)
		if err == nil {
			w.WriteHeader(http.StatusAccepted)
			if err := json.NewEncoder(w).Encode(map[string]interface{}{
				"queued": true,
				"job_id": jobID,
			}); err != nil {
				slog.Error("failed to encode response", "error", err)
			}
			return
		}
		slog.WarnContext(ctx, "job runner unavailable, running inline", "error", err)
	}

	result, err := h.service.Run(ctx, req.SourceTypes)
	if err != nil {
		slog.ErrorContext(ctx, "inline ingestion run failed", "error", err)
		h.writeError(w, "INTERNAL_ERROR", "ingestion run failed", http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"queued": false,
		"result": result,
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.writeError(w, "UNAUTHORIZED", "Unauthorized", http.StatusUnauthorized)
		return
	}

	runs, err := h.runs.List(r.Context(), 50)
	if err != nil {
		slog.ErrorContext(r.Context(), "run list failed", "error", err)
		h.writeError(w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": runs}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+h.adminToken
}

func (h *Handler) writeError(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
