// Package store provides the persistent store that holds every product and sale.
//
// The store is a single document read and written as one unit. Mutations go
// through Update, which loads the document, applies a callback and saves the
// result while holding the store's write lock, so concurrent sales cannot both
// pass a stock check against the same pre-decrement quantity.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	apperrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/abgdnv/stockroom/internal/model"
	"github.com/google/uuid"
)

// Store is the persistence contract used by the catalog, sales and inventory packages.
type Store interface {
	// Load returns a private copy of the whole state.
	// A missing document yields an empty state.
	Load(ctx context.Context) (*State, error)

	// Save replaces the whole persisted state.
	Save(ctx context.Context, state *State) error

	// Update loads the state, passes it to fn and saves it if fn returns nil.
	// Calls are serialized; when fn fails nothing is written and its error is returned as is.
	Update(ctx context.Context, fn func(state *State) error) error

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}

// State is the persisted document: products and sales in insertion order.
type State struct {
	Products []model.Product `json:"products"`
	Sales    []model.Sale    `json:"sales"`
}

// NewState returns an empty state with non-nil collections.
func NewState() *State {
	return &State{
		Products: []model.Product{},
		Sales:    []model.Sale{},
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := &State{
		Products: slices.Clone(s.Products),
		Sales:    slices.Clone(s.Sales),
	}
	for i := range c.Products {
		if at := c.Products[i].UpdatedAt; at != nil {
			t := *at
			c.Products[i].UpdatedAt = &t
		}
	}
	c.normalize()
	return c
}

// ProductIndex returns the position of the product with the given ID, or -1.
func (s *State) ProductIndex(id string) int {
	return slices.IndexFunc(s.Products, func(p model.Product) bool { return p.ID == id })
}

// HasID reports whether any product or sale already uses id.
func (s *State) HasID(id string) bool {
	if s.ProductIndex(id) >= 0 {
		return true
	}
	return slices.ContainsFunc(s.Sales, func(sale model.Sale) bool { return sale.ID == id })
}

// NewID returns a time-ordered identifier not yet used by any product or sale.
func (s *State) NewID() (string, error) {
	for {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("failed to generate id: %w", err)
		}
		if !s.HasID(id.String()) {
			return id.String(), nil
		}
	}
}

func (s *State) normalize() {
	if s.Products == nil {
		s.Products = []model.Product{}
	}
	if s.Sales == nil {
		s.Sales = []model.Sale{}
	}
}

func decodeState(data []byte) (*State, error) {
	st := NewState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	st.normalize()
	return st, nil
}

func encodeState(st *State) ([]byte, error) {
	c := st.Clone()
	return json.MarshalIndent(c, "", "  ")
}

// healCorrupt decides what a backend does with a document it cannot read.
// Outside strict mode it logs and substitutes an empty state; in strict mode it fails with ErrStoreUnavailable.
func healCorrupt(ctx context.Context, logger *slog.Logger, strict bool, cause error) (*State, error) {
	if strict {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStoreUnavailable, cause)
	}
	logger.ErrorContext(ctx, "Persisted state is unreadable, continuing with an empty state", "error", cause)
	return NewState(), nil
}
