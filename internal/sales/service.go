// Package sales records sales against the catalog and reports them.
package sales

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/abgdnv/stockroom/internal/model"
	"github.com/abgdnv/stockroom/internal/store"
	"github.com/abgdnv/stockroom/pkg/messaging"
	"github.com/abgdnv/stockroom/pkg/messaging/events"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

// RecentLimit caps the number of sales returned by Recent.
const RecentLimit = 10

// SalesService defines the sale operations.
type SalesService interface {
	// Record checks stock, decrements it and appends a sale in one store update.
	// Returns ErrProductNotFound, ErrInvalidInput or ErrInsufficientStock, leaving the store unchanged.
	Record(ctx context.Context, input SaleInput) (*model.Sale, error)

	// List returns all sales in store order.
	List(ctx context.Context) ([]model.Sale, error)

	// Recent returns at most RecentLimit sales, newest first.
	Recent(ctx context.Context) ([]model.Sale, error)
}

// SaleInput is a request to sell Quantity units of a product, with the numbers as submitted.
// They are parsed after the product lookup, so an unknown product is reported before malformed numbers.
// TotalAmount is taken as given and is not checked against the product price.
type SaleInput struct {
	ProductID   string
	Quantity    string
	TotalAmount string
}

// Service implements SalesService.
type Service struct {
	store        store.Store
	publisher    messaging.Publisher
	salesCounter metric.Int64Counter
	logger       *slog.Logger
	now          func() time.Time
}

// NewService creates a sales Service. Events go to publisher after each committed sale.
func NewService(st store.Store, publisher messaging.Publisher, logger *slog.Logger) *Service {
	meter := otel.Meter("stockroom")
	salesCounter, err := meter.Int64Counter("sales_recorded", metric.WithDescription("Total number of recorded sales"))
	if err != nil {
		panic(fmt.Sprintf("failed to create sales_recorded counter: %v", err))
	}
	return &Service{
		store:        st,
		publisher:    publisher,
		salesCounter: salesCounter,
		logger:       logger.With("component", "sales"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Record(ctx context.Context, input SaleInput) (*model.Sale, error) {
	var sale model.Sale
	var remaining int
	err := s.store.Update(ctx, func(st *store.State) error {
		i := st.ProductIndex(input.ProductID)
		if i < 0 {
			return apperrors.ErrProductNotFound
		}
		qty, total, err := parse(input)
		if err != nil {
			return err
		}
		p := &st.Products[i]
		if p.Quantity < qty {
			return fmt.Errorf("product %s. Available: %d, Requested: %d: %w",
				p.ID, p.Quantity, qty, apperrors.ErrInsufficientStock)
		}

		id, err := st.NewID()
		if err != nil {
			return err
		}
		p.Quantity -= qty
		sale = model.Sale{
			ID:          id,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    qty,
			TotalAmount: total,
			Date:        s.now(),
		}
		st.Sales = append(st.Sales, sale)
		remaining = p.Quantity
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record sale: %w", err)
	}

	s.logger.InfoContext(ctx, "Sale recorded", "sale_id", sale.ID, "product_id", sale.ProductID,
		"quantity", sale.Quantity, "remaining", remaining)

	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	event := events.SaleRecordedEvent{
		Carrier:           carrier,
		SaleID:            sale.ID,
		ProductID:         sale.ProductID,
		ProductName:       sale.ProductName,
		Quantity:          sale.Quantity,
		TotalAmount:       sale.TotalAmount,
		RemainingQuantity: remaining,
		RecordedAt:        sale.Date,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish SaleRecordedEvent", "sale_id", sale.ID, "error", err)
	}
	s.salesCounter.Add(ctx, 1)

	return &sale, nil
}

func (s *Service) List(ctx context.Context) ([]model.Sale, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	return st.Sales, nil
}

func (s *Service) Recent(ctx context.Context) ([]model.Sale, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	recent := slices.Clone(st.Sales)
	slices.SortStableFunc(recent, func(a, b model.Sale) int {
		return b.Date.Compare(a.Date)
	})
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}
	return recent, nil
}

// parse checks the submitted quantity and total, reporting both fields at once.
func parse(input SaleInput) (int, decimal.Decimal, error) {
	fields := map[string]string{}

	qtyText := strings.TrimSpace(input.Quantity)
	qty, err := strconv.Atoi(qtyText)
	switch {
	case qtyText == "":
		fields["quantity"] = "required"
	case err != nil:
		fields["quantity"] = "integer"
	case qty <= 0:
		fields["quantity"] = "gt"
	}

	totalText := strings.TrimSpace(input.TotalAmount)
	total, err := decimal.NewFromString(totalText)
	switch {
	case totalText == "":
		fields["totalAmount"] = "required"
	case err != nil:
		fields["totalAmount"] = "decimal"
	case total.IsNegative():
		fields["totalAmount"] = "min"
	}

	if len(fields) > 0 {
		return 0, decimal.Zero, &apperrors.ValidationError{Fields: fields}
	}
	return qty, total, nil
}
