package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/abgdnv/stockroom/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleProduct(id string, qty int) model.Product {
	return model.Product{
		ID:        id,
		Name:      "Widget " + id,
		Category:  "tools",
		Price:     decimal.RequireFromString("9.99"),
		Quantity:  qty,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// backends returns a fresh instance of every store that runs without external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "data", "store.json"), false, discardLogger()),
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// when
			st, err := s.Load(context.Background())

			// then
			require.NoError(t, err)
			assert.NotNil(t, st.Products)
			assert.NotNil(t, st.Sales)
			assert.Empty(t, st.Products)
			assert.Empty(t, st.Sales)
		})
	}
}

func TestStore_SaveThenLoad(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// given
			ctx := context.Background()
			updated := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
			p := sampleProduct("p1", 5)
			p.UpdatedAt = &updated
			st := NewState()
			st.Products = append(st.Products, p)
			st.Sales = append(st.Sales, model.Sale{
				ID: "s1", ProductID: "p1", ProductName: p.Name, Quantity: 1,
				TotalAmount: decimal.RequireFromString("9.99"), Date: updated,
			})

			// when
			require.NoError(t, s.Save(ctx, st))
			loaded, err := s.Load(ctx)

			// then
			require.NoError(t, err)
			require.Len(t, loaded.Products, 1)
			require.Len(t, loaded.Sales, 1)
			assert.Equal(t, "p1", loaded.Products[0].ID)
			assert.True(t, p.Price.Equal(loaded.Products[0].Price))
			require.NotNil(t, loaded.Products[0].UpdatedAt)
			assert.True(t, updated.Equal(*loaded.Products[0].UpdatedAt))
			assert.Equal(t, "s1", loaded.Sales[0].ID)
		})
	}
}

func TestStore_LoadReturnsPrivateCopy(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// given
			ctx := context.Background()
			st := NewState()
			st.Products = append(st.Products, sampleProduct("p1", 5))
			require.NoError(t, s.Save(ctx, st))

			// when
			first, err := s.Load(ctx)
			require.NoError(t, err)
			first.Products[0].Quantity = 0
			st.Products[0].Quantity = 1

			// then
			second, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, second.Products[0].Quantity)
		})
	}
}

func TestStore_UpdateFailureWritesNothing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// given
			ctx := context.Background()
			st := NewState()
			st.Products = append(st.Products, sampleProduct("p1", 5))
			require.NoError(t, s.Save(ctx, st))
			boom := errors.New("boom")

			// when
			err := s.Update(ctx, func(st *State) error {
				st.Products[0].Quantity = 0
				st.Products = append(st.Products, sampleProduct("p2", 1))
				return boom
			})

			// then
			assert.ErrorIs(t, err, boom)
			loaded, err := s.Load(ctx)
			require.NoError(t, err)
			require.Len(t, loaded.Products, 1)
			assert.Equal(t, 5, loaded.Products[0].Quantity)
		})
	}
}

func TestStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	const stock = 7
	const buyers = 20

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// given
			ctx := context.Background()
			st := NewState()
			st.Products = append(st.Products, sampleProduct("p1", stock))
			require.NoError(t, s.Save(ctx, st))
			errSoldOut := errors.New("sold out")

			// when
			var g errgroup.Group
			results := make([]error, buyers)
			for i := range buyers {
				g.Go(func() error {
					results[i] = s.Update(ctx, func(st *State) error {
						if st.Products[0].Quantity < 1 {
							return errSoldOut
						}
						st.Products[0].Quantity--
						st.Sales = append(st.Sales, model.Sale{ID: string(rune('a' + i)), ProductID: "p1", Quantity: 1})
						return nil
					})
					return nil
				})
			}
			require.NoError(t, g.Wait())

			// then
			succeeded := 0
			for _, err := range results {
				if err == nil {
					succeeded++
				} else {
					assert.ErrorIs(t, err, errSoldOut)
				}
			}
			assert.Equal(t, stock, succeeded)
			loaded, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, loaded.Products[0].Quantity)
			assert.Len(t, loaded.Sales, stock)
		})
	}
}

func TestStore_CanceledContext(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// given
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			// when
			_, loadErr := s.Load(ctx)
			updateErr := s.Update(ctx, func(*State) error { return nil })

			// then
			assert.ErrorIs(t, loadErr, context.Canceled)
			assert.ErrorIs(t, updateErr, context.Canceled)
		})
	}
}

func TestState_HasID(t *testing.T) {
	st := NewState()
	st.Products = append(st.Products, sampleProduct("p1", 1))
	st.Sales = append(st.Sales, model.Sale{ID: "s1"})

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "product id", id: "p1", want: true},
		{name: "sale id", id: "s1", want: true},
		{name: "unused id", id: "x", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, st.HasID(tt.id))
		})
	}
}
