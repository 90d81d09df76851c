package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceType      string   `json:"source_type"`
		Name            string   `json:"name"`
		ExternalRef     string   `json:"external_ref"`
		URL             string   `json:"url"`
		PollingInterval int      `json:"polling_interval_seconds"`
		CategoryHints   []string `json:"category_hints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.SourceType == "" || req.ExternalRef == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "source_type and external_ref are required", http.StatusBadRequest)
		return
	}

	src := &Source{
		SourceType:      req.SourceType,
		Name:            req.Name,
		ExternalRef:     req.ExternalRef,
		URL:             req.URL,
		PollingInterval: req.PollingInterval,
		CategoryHints:   req.CategoryHints,
	}
	if err := h.service.Create(r.Context(), src); err != nil {
		slog.ErrorContext(r.Context(), "source create failed", "error", err, "external_ref", req.ExternalRef)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": src}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.List(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "source list failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if sources == nil {
		sources = []Source{}
	}
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": sources}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	src, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "source not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "source get failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": src}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.SetEnabled(r.Context(), r.PathValue("id"), req.Enabled); err != nil {
		slog.ErrorContext(r.Context(), "source update failed", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(_ context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
