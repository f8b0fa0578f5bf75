package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/harborview/backoffice/internal/platform/httpx"
)

const maxUploadBytes = 10 << 20

// Handler exposes the import endpoints.
type Handler struct {
	statements *StatementService
	invoices   *InvoiceService
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(statements *StatementService, invoices *InvoiceService, logger *slog.Logger) *Handler {
	return &Handler{
		statements: statements,
		invoices:   invoices,
		validate:   validator.New(),
		logger:     logger,
	}
}

// MountRoutes registers the import routes. Uploads get a tighter rate
// limit than the global stack since each one fans out into parsing and
// catalog lookups.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/statement", h.importStatement)
		r.Post("/email", h.importEmail)
	})
	r.Post("/purchase", h.commitPurchase)
}

func (h *Handler) importStatement(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Could not read upload", err.Error())
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.Message(w, http.StatusBadRequest, "Missing file field", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		httpx.Message(w, http.StatusBadRequest, "Could not read upload", err.Error())
		return
	}

	result, err := h.statements.Import(r.Context(), data)
	if errors.Is(err, ErrBadFile) {
		httpx.Message(w, http.StatusBadRequest, "Unsupported or unreadable file", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("statement import failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	// Zero transactions is a soft outcome: the file was readable, so
	// the caller gets a 200 with the explanation.
	httpx.JSON(w, http.StatusOK, result)
}

type emailImportRequest struct {
	MessageID string `json:"messageId" validate:"required"`
	Skip      int    `json:"skip" validate:"gte=0"`
}

func (h *Handler) importEmail(w http.ResponseWriter, r *http.Request) {
	var req emailImportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	result, err := h.invoices.ProcessNotification(ctx, req.MessageID, req.Skip)
	if err != nil {
		h.logger.Error("email import failed",
			slog.String("message_id", req.MessageID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type commitPurchaseRequest struct {
	SupplierID  string            `json:"supplierId" validate:"required"`
	OrderNumber string            `json:"orderNumber"`
	Amount      float64           `json:"amount" validate:"gte=0"`
	Items       []MatchedLineItem `json:"items" validate:"required,min=1"`
}

func (h *Handler) commitPurchase(w http.ResponseWriter, r *http.Request) {
	var req commitPurchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	results, err := h.invoices.CommitPurchase(r.Context(), Purchase{
		SupplierID:  req.SupplierID,
		OrderNumber: req.OrderNumber,
		Amount:      req.Amount,
		Items:       req.Items,
	})
	if err != nil {
		h.logger.Error("purchase commit failed", slog.Any("error", err))
		// Partial results still matter to the caller: stock may have
		// moved for some items before the failure.
		httpx.JSON(w, http.StatusInternalServerError, map[string]any{
			"message": "Purchase partially applied",
			"error":   err.Error(),
			"results": results,
		})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "Purchase applied", "results": results})
}
