package sales

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/abgdnv/stockroom/internal/model"
	"github.com/abgdnv/stockroom/internal/store"
	"github.com/abgdnv/stockroom/pkg/messaging"
	"github.com/abgdnv/stockroom/pkg/messaging/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type mockPublisher struct {
	mu     sync.Mutex
	events []messaging.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, event messaging.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, st store.Store, products ...model.Product) {
	t.Helper()
	require.NoError(t, st.Save(context.Background(), &store.State{Products: products, Sales: []model.Sale{}}))
}

func widget(qty int) model.Product {
	return model.Product{
		ID:        "p1",
		Name:      "Widget",
		Price:     decimal.RequireFromString("9.99"),
		Quantity:  qty,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestService_Record(t *testing.T) {
	tests := []struct {
		name       string
		stock      int
		input      SaleInput
		wantQty    int
		wantErr    error
		wantFields map[string]string
	}{
		{name: "sells part of the stock", stock: 5, input: SaleInput{ProductID: "p1", Quantity: "3", TotalAmount: "29.97"}, wantQty: 3},
		{name: "sells all of the stock", stock: 5, input: SaleInput{ProductID: "p1", Quantity: "5", TotalAmount: "0"}, wantQty: 5},
		{name: "insufficient stock", stock: 2, input: SaleInput{ProductID: "p1", Quantity: "3", TotalAmount: "1"}, wantErr: apperrors.ErrInsufficientStock},
		{name: "unknown product", stock: 5, input: SaleInput{ProductID: "nope", Quantity: "1", TotalAmount: "1"}, wantErr: apperrors.ErrProductNotFound},
		{name: "unknown product wins over bad quantity", stock: 5, input: SaleInput{ProductID: "nope", Quantity: "0", TotalAmount: "1"}, wantErr: apperrors.ErrProductNotFound},
		{name: "unknown product wins over malformed numbers", stock: 5, input: SaleInput{ProductID: "nope", Quantity: "2.5"}, wantErr: apperrors.ErrProductNotFound},
		{name: "zero quantity", stock: 5, input: SaleInput{ProductID: "p1", Quantity: "0", TotalAmount: "1"}, wantErr: apperrors.ErrInvalidInput,
			wantFields: map[string]string{"quantity": "gt"}},
		{name: "negative quantity", stock: 5, input: SaleInput{ProductID: "p1", Quantity: "-2", TotalAmount: "1"}, wantErr: apperrors.ErrInvalidInput,
			wantFields: map[string]string{"quantity": "gt"}},
		{name: "fractional quantity", stock: 5, input: SaleInput{ProductID: "p1", Quantity: "1.5", TotalAmount: "1"}, wantErr: apperrors.ErrInvalidInput,
			wantFields: map[string]string{"quantity": "integer"}},
		{name: "negative total", stock: 5, input: SaleInput{ProductID: "p1", Quantity: "1", TotalAmount: "-1"}, wantErr: apperrors.ErrInvalidInput,
			wantFields: map[string]string{"totalAmount": "min"}},
		{name: "non-numeric total", stock: 5, input: SaleInput{ProductID: "p1", Quantity: "1", TotalAmount: "abc"}, wantErr: apperrors.ErrInvalidInput,
			wantFields: map[string]string{"totalAmount": "decimal"}},
		{name: "missing numbers", stock: 5, input: SaleInput{ProductID: "p1"}, wantErr: apperrors.ErrInvalidInput,
			wantFields: map[string]string{"quantity": "required", "totalAmount": "required"}},
		{name: "bad quantity checked before stock", stock: 0, input: SaleInput{ProductID: "p1", Quantity: "0", TotalAmount: "1"}, wantErr: apperrors.ErrInvalidInput,
			wantFields: map[string]string{"quantity": "gt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			ctx := context.Background()
			st := store.NewMemoryStore()
			seed(t, st, widget(tt.stock))
			pub := &mockPublisher{}
			s := NewService(st, pub, discardLogger())
			before := time.Now().UTC()

			// when
			sale, err := s.Record(ctx, tt.input)

			// then
			loaded, loadErr := st.Load(ctx)
			require.NoError(t, loadErr)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.wantFields != nil {
					var ve *apperrors.ValidationError
					require.ErrorAs(t, err, &ve)
					assert.Equal(t, tt.wantFields, ve.Fields)
				}
				assert.Nil(t, sale)
				assert.Equal(t, tt.stock, loaded.Products[0].Quantity)
				assert.Empty(t, loaded.Sales)
				assert.Empty(t, pub.events)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.stock-tt.wantQty, loaded.Products[0].Quantity)
			require.Len(t, loaded.Sales, 1)
			assert.Equal(t, *sale, loaded.Sales[0])
			assert.Equal(t, "p1", sale.ProductID)
			assert.Equal(t, "Widget", sale.ProductName)
			assert.Equal(t, tt.wantQty, sale.Quantity)
			assert.True(t, decimal.RequireFromString(tt.input.TotalAmount).Equal(sale.TotalAmount))
			assert.False(t, sale.Date.Before(before))

			require.Len(t, pub.events, 1)
			event, ok := pub.events[0].(events.SaleRecordedEvent)
			require.True(t, ok)
			assert.Equal(t, sale.ID, event.SaleID)
			assert.Equal(t, tt.stock-tt.wantQty, event.RemainingQuantity)
		})
	}
}

func TestService_Record_Scenario(t *testing.T) {
	// given
	ctx := context.Background()
	st := store.NewMemoryStore()
	seed(t, st, widget(5))
	s := NewService(st, messaging.NoopPublisher{}, discardLogger())

	// when
	first, err := s.Record(ctx, SaleInput{ProductID: "p1", Quantity: "3", TotalAmount: "29.97"})
	require.NoError(t, err)
	_, secondErr := s.Record(ctx, SaleInput{ProductID: "p1", Quantity: "3", TotalAmount: "29.97"})

	// then
	assert.ErrorIs(t, secondErr, apperrors.ErrInsufficientStock)
	loaded, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Products[0].Quantity)
	require.Len(t, loaded.Sales, 1)
	assert.Equal(t, first.ID, loaded.Sales[0].ID)
	assert.Equal(t, "29.97", loaded.Sales[0].TotalAmount.String())
}

func TestService_Record_PublishFailureIsNotFatal(t *testing.T) {
	// given
	st := store.NewMemoryStore()
	seed(t, st, widget(5))
	s := NewService(st, &mockPublisher{err: messaging.ErrPublisherUnavailable}, discardLogger())

	// when
	sale, err := s.Record(context.Background(), SaleInput{ProductID: "p1", Quantity: "1", TotalAmount: "9.99"})

	// then
	require.NoError(t, err)
	assert.NotNil(t, sale)
}

func TestService_Record_NameSnapshot(t *testing.T) {
	// given
	ctx := context.Background()
	st := store.NewMemoryStore()
	seed(t, st, widget(5))
	s := NewService(st, messaging.NoopPublisher{}, discardLogger())
	_, err := s.Record(ctx, SaleInput{ProductID: "p1", Quantity: "1", TotalAmount: "9.99"})
	require.NoError(t, err)

	// when
	require.NoError(t, st.Update(ctx, func(state *store.State) error {
		state.Products[0].Name = "Renamed"
		return nil
	}))

	// then
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Widget", list[0].ProductName)
}

func TestService_Record_Concurrent(t *testing.T) {
	const stock = 10
	const buyers = 40

	backends := map[string]store.Store{
		"memory": store.NewMemoryStore(),
		"file":   store.NewFileStore(filepath.Join(t.TempDir(), "store.json"), false, discardLogger()),
	}
	for name, st := range backends {
		t.Run(name, func(t *testing.T) {
			// given
			ctx := context.Background()
			seed(t, st, widget(stock))
			s := NewService(st, messaging.NoopPublisher{}, discardLogger())

			// when
			var g errgroup.Group
			var mu sync.Mutex
			var sold, rejected int
			for range buyers {
				g.Go(func() error {
					_, err := s.Record(ctx, SaleInput{ProductID: "p1", Quantity: "1", TotalAmount: "9.99"})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						sold++
					case errors.Is(err, apperrors.ErrInsufficientStock):
						rejected++
					default:
						return err
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())

			// then
			assert.Equal(t, stock, sold)
			assert.Equal(t, buyers-stock, rejected)
			loaded, err := st.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, loaded.Products[0].Quantity)
			assert.Len(t, loaded.Sales, stock)
		})
	}
}

func TestService_Recent(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("newest first, ties keep insertion order, capped", func(t *testing.T) {
		// given
		ctx := context.Background()
		st := store.NewMemoryStore()
		state := store.NewState()
		for i := range 14 {
			state.Sales = append(state.Sales, model.Sale{
				ID:   string(rune('a' + i)),
				Date: base.Add(time.Duration(i/2) * time.Hour),
			})
		}
		require.NoError(t, st.Save(ctx, state))
		s := NewService(st, messaging.NoopPublisher{}, discardLogger())

		// when
		recent, err := s.Recent(ctx)

		// then
		require.NoError(t, err)
		require.Len(t, recent, RecentLimit)
		ids := make([]string, len(recent))
		for i, sale := range recent {
			ids[i] = sale.ID
			if i > 0 {
				assert.False(t, sale.Date.After(recent[i-1].Date))
			}
		}
		assert.Equal(t, []string{"m", "n", "k", "l", "i", "j", "g", "h", "e", "f"}, ids)

		all, err := s.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a", all[0].ID)
	})

	t.Run("fewer than the limit", func(t *testing.T) {
		st := store.NewMemoryStore()
		s := NewService(st, messaging.NoopPublisher{}, discardLogger())

		recent, err := s.Recent(context.Background())

		require.NoError(t, err)
		assert.NotNil(t, recent)
		assert.Empty(t, recent)
	})
}
