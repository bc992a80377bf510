// Package inventory derives the low-stock report from current product quantities.
package inventory

import (
	"context"
	"fmt"

	"github.com/abgdnv/stockroom/internal/model"
	"github.com/abgdnv/stockroom/internal/store"
)

// LowStockThreshold is the quantity below which a product counts as low on stock.
const LowStockThreshold = 10

// InventoryReporter computes the inventory status.
type InventoryReporter interface {
	// Status is recomputed from the store on every call.
	Status(ctx context.Context) (*model.InventoryStatus, error)
}

// Reporter implements InventoryReporter.
type Reporter struct {
	store store.Store
}

func NewReporter(st store.Store) *Reporter {
	return &Reporter{store: st}
}

func (r *Reporter) Status(ctx context.Context) (*model.InventoryStatus, error) {
	st, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	low := make([]model.Product, 0)
	for _, p := range st.Products {
		if p.Quantity < LowStockThreshold {
			low = append(low, p)
		}
	}
	return &model.InventoryStatus{
		TotalProducts:    len(st.Products),
		LowStockCount:    len(low),
		LowStockProducts: low,
	}, nil
}
