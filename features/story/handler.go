package story

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"pulsewire/features/cluster"
	"pulsewire/internal/cache"
)

type Handler struct {
	repo  Repository
	cache *cache.Cache
}

func NewHandler(repo Repository, feedCache *cache.Cache) *Handler {
	return &Handler{repo: repo, cache: feedCache}
}

func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)
	h.serveCards(w, r, fmt.Sprintf("public:latest:%d", limit), limit, "", "")
}

func (h *Handler) Breaking(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)
	h.serveCards(w, r, fmt.Sprintf("public:breaking:%d", limit), limit, cluster.StatusBreaking, "")
}

// List serves the story feed, filterable by category slug. The special
// slug "breaking" maps onto cluster status; every other slug filters on
// the aggregate's primary category.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)
	status := ""
	category := r.URL.Query().Get("category")
	if category == cluster.StatusBreaking {
		status = cluster.StatusBreaking
		category = ""
	}
	h.serveCards(w, r, fmt.Sprintf("public:stories:%s:%s:%d", status, category, limit), limit, status, category)
}

func (h *Handler) serveCards(w http.ResponseWriter, r *http.Request, cacheKey string, limit int, status, category string) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")

	var cached struct {
		Items []StoryCard `json:"items"`
	}
	if hit, err := h.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		h.encode(w, cached)
		return
	}

	cards, err := h.repo.Cards(ctx, limit, status, category)
	if err != nil {
		slog.ErrorContext(ctx, "story card query failed", "error", err)
		h.writeError(w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if cards == nil {
		cards = []StoryCard{}
	}

	payload := struct {
		Items []StoryCard `json:"items"`
	}{Items: cards}
	if err := h.cache.Set(ctx, cacheKey, payload); err != nil {
		slog.WarnContext(ctx, "feed cache write failed", "key", cacheKey, "error", err)
	}
	h.encode(w, payload)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")

	detail, err := h.repo.Detail(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(w, "NOT_FOUND", "story not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "story detail query failed", "error", err)
		h.writeError(w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.encode(w, detail)
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")

	const cacheKey = "public:categories"
	var cached struct {
		Items []Category `json:"items"`
	}
	if hit, err := h.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		h.encode(w, cached)
		return
	}

	categories, err := h.repo.Categories(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "category query failed", "error", err)
		h.writeError(w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if categories == nil {
		categories = []Category{}
	}

	payload := struct {
		Items []Category `json:"items"`
	}{Items: categories}
	if err := h.cache.Set(ctx, cacheKey, payload); err != nil {
		slog.WarnContext(ctx, "feed cache write failed", "key", cacheKey, "error", err)
	}
	h.encode(w, payload)
}

func (h *Handler) encode(w http.ResponseWriter, payload interface{}) {
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code, message string, status int) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > 50 {
		return fallback
	}
	return limit
}
