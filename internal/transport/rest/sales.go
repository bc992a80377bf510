package rest

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/abgdnv/stockroom/internal/sales"
	"github.com/abgdnv/stockroom/pkg/web"
)

// saleRequest is the body of POST /api/sales. Quantity and totalAmount may be JSON numbers or numeric strings;
// the sales service parses them once the product is known to exist.
type saleRequest struct {
	ProductID   string          `json:"productId"`
	Quantity    json.RawMessage `json:"quantity"`
	TotalAmount json.RawMessage `json:"totalAmount"`
}

// numberText returns the text of a JSON number or string. Missing and null values give "".
func numberText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// ListSales returns every sale in the order it was recorded.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	mLogger.DebugContext(r.Context(), "Received request to list sales")
	list, err := h.sales.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "", "Failed to fetch sales")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// RecentSales returns the newest sales.
func (h *Handler) RecentSales(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	mLogger.DebugContext(r.Context(), "Received request to list recent sales")
	list, err := h.sales.Recent(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "", "Failed to fetch recent sales")
		return
	}
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// RecordSale sells a quantity of a product.
func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		mLogger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	input := sales.SaleInput{
		ProductID:   req.ProductID,
		Quantity:    numberText(req.Quantity),
		TotalAmount: numberText(req.TotalAmount),
	}
	mLogger.DebugContext(r.Context(), "Received request to record sale", "productId", input.ProductID, "quantity", input.Quantity)

	sale, err := h.sales.Record(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "Product not found", "Failed to record sale")
		return
	}
	mLogger.InfoContext(r.Context(), "Sale recorded successfully", "ID", sale.ID, "productId", sale.ProductID)
	web.RespondJSON(w, mLogger, http.StatusCreated, sale)
}
