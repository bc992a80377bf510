package model

// InventoryStatus is the low-stock summary computed on every request.
type InventoryStatus struct {
	TotalProducts    int       `json:"totalProducts"`
	LowStockCount    int       `json:"lowStockCount"`
	LowStockProducts []Product `json:"lowStockProducts"`
}
