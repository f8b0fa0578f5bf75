package mapping

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harborview/backoffice/internal/platform/httpx"
)

// Handler exposes the mapping review surface: suggestions for an
// unresolved source and manual confirmation of a mapping.
type Handler struct {
	service  *Service
	cache    *Cache
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(service *Service, cache *Cache, logger *slog.Logger) *Handler {
	return &Handler{service: service, cache: cache, validate: validator.New(), logger: logger}
}

// MountRoutes registers the mapping routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suggest", h.suggest)
	r.Get("/confirmed", h.confirmed)
	r.Post("/", h.upsert)
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	typ := Type(r.URL.Query().Get("type"))
	source := r.URL.Query().Get("source")
	if typ == "" || source == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "type and source are required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := h.service.Suggest(r.Context(), typ, source, limit)
	if err != nil {
		h.logger.Error("mapping suggest failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suggestions": results})
}

func (h *Handler) confirmed(w http.ResponseWriter, r *http.Request) {
	typ := Type(r.URL.Query().Get("type"))
	if typ == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "type is required")
		return
	}

	confirmed, err := h.cache.Confirmed(r.Context(), typ, func(ctx context.Context) (map[string]Mapping, error) {
		return h.service.AutoConfirmed(ctx, typ, 0, 0)
	})
	if err != nil {
		h.logger.Error("mapping confirmed lookup failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, confirmed)
}

type upsertRequest struct {
	Type       string         `json:"type" validate:"required,oneof=productNames emailSupplier emailProduct"`
	Source     string         `json:"source" validate:"required"`
	Target     string         `json:"target" validate:"required"`
	TargetID   string         `json:"targetId"`
	Confidence int            `json:"confidence" validate:"gte=0,lte=100"`
	Metadata   map[string]any `json:"metadata"`
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.Confidence == 0 {
		req.Confidence = 100
	}

	record, err := h.service.Upsert(r.Context(), UpsertInput{
		Type:       Type(req.Type),
		Source:     req.Source,
		Target:     req.Target,
		TargetID:   req.TargetID,
		Confidence: req.Confidence,
		Metadata:   req.Metadata,
	})
	if err != nil {
		h.logger.Error("mapping upsert failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	// A manual confirmation changes what counts as auto-confirmed.
	_ = h.cache.Invalidate(r.Context(), Type(req.Type))
	httpx.JSON(w, http.StatusOK, record)
}
