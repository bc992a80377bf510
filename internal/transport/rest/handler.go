// Package rest provides the HTTP API for the catalog, sales and inventory.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/abgdnv/stockroom/internal/catalog"
	apperrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/abgdnv/stockroom/internal/inventory"
	"github.com/abgdnv/stockroom/internal/sales"
	"github.com/abgdnv/stockroom/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	catalog        catalog.CatalogService
	sales          sales.SalesService
	inventory      inventory.InventoryReporter
	pinger         Pinger
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewHandler creates a Handler. maxUploadBytes bounds the size of an uploaded product image.
func NewHandler(cat catalog.CatalogService, sal sales.SalesService, inv inventory.InventoryReporter,
	pinger Pinger, maxUploadBytes int64, logger *slog.Logger) *Handler {
	return &Handler{
		catalog:        cat,
		sales:          sal,
		inventory:      inv,
		pinger:         pinger,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
		r.Route("/sales", func(r chi.Router) {
			r.Get("/", h.ListSales)
			r.Post("/", h.RecordSale)
			r.Get("/recent", h.RecentSales)
		})
		r.Get("/inventory/status", h.InventoryStatus)
		r.Get("/health", h.HealthCheck)
	})

	r.Get("/healthz", h.HealthCheck)
}

// HealthCheck answers 200 {"ok":true} while the store is reachable and 503 otherwise.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	if err := h.pinger.Ping(r.Context()); err != nil {
		mLogger.ErrorContext(r.Context(), "Store ping failed", "error", err)
		web.RespondJSON(w, mLogger, http.StatusServiceUnavailable, map[string]bool{"ok": false})
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]bool{"ok": true})
}

// respondServiceError maps a service error to a response. fallback is the message for unexpected failures.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, err error,
	notFound, fallback string) {
	var ve *apperrors.ValidationError
	switch {
	case errors.As(err, &ve):
		h.respondValidation(w, r, mLogger, ve.Fields)
	case errors.Is(err, apperrors.ErrProductNotFound):
		mLogger.WarnContext(r.Context(), "Product not found", "error", err)
		web.RespondError(w, mLogger, http.StatusNotFound, notFound)
	case errors.Is(err, apperrors.ErrInsufficientStock):
		mLogger.WarnContext(r.Context(), "Insufficient stock", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Insufficient stock")
	case errors.Is(err, apperrors.ErrInvalidInput):
		mLogger.WarnContext(r.Context(), "Invalid input", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid input")
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		mLogger.ErrorContext(r.Context(), "Store unavailable", "error", err)
		web.RespondError(w, mLogger, http.StatusServiceUnavailable, "Store unavailable")
	default:
		mLogger.ErrorContext(r.Context(), fallback, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fallback)
	}
}

func (h *Handler) respondValidation(w http.ResponseWriter, r *http.Request, mLogger *slog.Logger, fields map[string]string) {
	errorResponse := make(map[string]string, len(fields))
	for field, rule := range fields {
		errorResponse[field] = "failed on rule: " + rule
	}
	mLogger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
	web.RespondValidation(w, mLogger, errorResponse)
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
