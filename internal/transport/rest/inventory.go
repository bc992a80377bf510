package rest

import (
	"net/http"

	"github.com/abgdnv/stockroom/pkg/web"
)

// InventoryStatus returns the low-stock summary.
func (h *Handler) InventoryStatus(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	status, err := h.inventory.Status(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "", "Failed to fetch inventory status")
		return
	}
	mLogger.DebugContext(r.Context(), "Inventory status computed", "total", status.TotalProducts, "low", status.LowStockCount)
	web.RespondJSON(w, mLogger, http.StatusOK, status)
}
