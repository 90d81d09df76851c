package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"pulsewire/internal/middleware"
)

type SourceRepo interface {
	Count(ctx context.Context) (int, error)
}

type ItemRepo interface {
	Count(ctx context.Context) (int, error)
}

type ClusterRepo interface {
	Count(ctx context.Context) (int, error)
}

type SummaryRepo interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	sourceRepo  SourceRepo
	itemRepo    ItemRepo
	clusterRepo ClusterRepo
	summaryRepo SummaryRepo
}

func NewHandler(s SourceRepo, i ItemRepo, c ClusterRepo, sm SummaryRepo) *Handler {
	return &Handler{sourceRepo: s, itemRepo: i, clusterRepo: c, summaryRepo: sm}
}

type StatsResponse struct {
	Sources   int `json:"sources"`
	Items     int `json:"items"`
	Stories   int `json:"stories"`
	Summaries int `json:"summaries"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	sCount, err := h.sourceRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count sources", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count sources", http.StatusInternalServerError)
		return
	}

	iCount, err := h.itemRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count items", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count items", http.StatusInternalServerError)
		return
	}

	cCount, err := h.clusterRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count stories", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count stories", http.StatusInternalServerError)
		return
	}

	smCount, err := h.summaryRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count summaries", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count summaries", http.StatusInternalServerError)
		return
	}

	resp := StatsResponse{
		Sources:   sCount,
		Items:     iCount,
		Stories:   cCount,
		Summaries: smCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
