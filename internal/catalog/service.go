// Package catalog manages products and the lifecycle of their images.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/abgdnv/stockroom/internal/images"
	"github.com/abgdnv/stockroom/internal/model"
	"github.com/abgdnv/stockroom/internal/store"
	"github.com/abgdnv/stockroom/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// CatalogService defines the product operations.
type CatalogService interface {
	// List returns all products in store order.
	List(ctx context.Context) ([]model.Product, error)

	// Create validates the input, stores the optional image and appends a new product.
	Create(ctx context.Context, input ProductInput) (*model.Product, error)

	// Update replaces the editable fields of an existing product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Update(ctx context.Context, id string, input ProductInput) (*model.Product, error)

	// Delete removes a product and releases its image. Sales that reference it are kept.
	// Returns ErrProductNotFound if no product exists with the given ID.
	Delete(ctx context.Context, id string) error
}

// ProductInput carries product fields as submitted by a form.
// Price and Quantity are parsed here so malformed numbers are rejected instead of coerced.
type ProductInput struct {
	Name        string `json:"name"        validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category"    validate:"max=100"`
	Price       string `json:"price"       validate:"required"`
	Quantity    string `json:"quantity"    validate:"required"`
	// Image is the new image content, nil when none was uploaded.
	Image io.Reader `json:"-"`
	// CurrentImage is the reference the client believes the product has. The stored reference wins.
	CurrentImage string `json:"currentImage"`
}

type parsedInput struct {
	name        string
	description string
	category    string
	price       decimal.Decimal
	quantity    int
}

// Service implements CatalogService.
type Service struct {
	store    store.Store
	images   images.Storage
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a catalog Service.
func NewService(st store.Store, img images.Storage, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		images:   img,
		validate: validation.New(),
		logger:   logger.With("component", "catalog"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context) ([]model.Product, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	return st.Products, nil
}

func (s *Service) Create(ctx context.Context, input ProductInput) (*model.Product, error) {
	in, err := s.parse(input)
	if err != nil {
		return nil, err
	}
	imageRef, err := s.saveImage(ctx, input.Image)
	if err != nil {
		return nil, err
	}

	var created model.Product
	err = s.store.Update(ctx, func(st *store.State) error {
		id, err := st.NewID()
		if err != nil {
			return err
		}
		created = model.Product{
			ID:          id,
			Name:        in.name,
			Description: in.description,
			Category:    in.category,
			Price:       in.price,
			Quantity:    in.quantity,
			ImageURL:    imageRef,
			CreatedAt:   s.now(),
		}
		st.Products = append(st.Products, created)
		return nil
	})
	if err != nil {
		s.release(ctx, imageRef)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.InfoContext(ctx, "Product created", "product_id", created.ID)
	return &created, nil
}

func (s *Service) Update(ctx context.Context, id string, input ProductInput) (*model.Product, error) {
	in, err := s.parse(input)
	if err != nil {
		return nil, err
	}
	newRef, err := s.saveImage(ctx, input.Image)
	if err != nil {
		return nil, err
	}

	var updated model.Product
	var oldRef string
	err = s.store.Update(ctx, func(st *store.State) error {
		i := st.ProductIndex(id)
		if i < 0 {
			return apperrors.ErrProductNotFound
		}
		p := &st.Products[i]
		oldRef = p.ImageURL
		if input.CurrentImage != "" && input.CurrentImage != oldRef {
			s.logger.DebugContext(ctx, "Ignoring stale currentImage", "product_id", id, "current_image", input.CurrentImage)
		}

		p.Name = in.name
		p.Description = in.description
		p.Category = in.category
		p.Price = in.price
		p.Quantity = in.quantity
		if newRef != "" {
			p.ImageURL = newRef
		}
		now := s.now()
		p.UpdatedAt = &now
		updated = *p
		return nil
	})
	if err != nil {
		s.release(ctx, newRef)
		return nil, fmt.Errorf("failed to update product with ID %s: %w", id, err)
	}

	if newRef != "" && oldRef != newRef {
		s.release(ctx, oldRef)
	}
	s.logger.InfoContext(ctx, "Product updated", "product_id", id)
	return &updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	var imageRef string
	err := s.store.Update(ctx, func(st *store.State) error {
		i := st.ProductIndex(id)
		if i < 0 {
			return apperrors.ErrProductNotFound
		}
		imageRef = st.Products[i].ImageURL
		st.Products = append(st.Products[:i], st.Products[i+1:]...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete product with ID %s: %w", id, err)
	}

	s.release(ctx, imageRef)
	s.logger.InfoContext(ctx, "Product deleted", "product_id", id)
	return nil
}

// parse validates a trimmed copy of the input. Text fields are stored as submitted.
func (s *Service) parse(input ProductInput) (*parsedInput, error) {
	checked := input
	checked.Name = strings.TrimSpace(input.Name)
	checked.Category = strings.TrimSpace(input.Category)
	checked.Price = strings.TrimSpace(input.Price)
	checked.Quantity = strings.TrimSpace(input.Quantity)

	fields := map[string]string{}
	if err := validation.Struct(s.validate, checked); err != nil {
		var ve *apperrors.ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		fields = ve.Fields
	}

	out := &parsedInput{name: input.Name, description: input.Description, category: input.Category}
	if _, failed := fields["price"]; !failed {
		price, err := decimal.NewFromString(checked.Price)
		switch {
		case err != nil:
			fields["price"] = "decimal"
		case price.IsNegative():
			fields["price"] = "min"
		default:
			out.price = price
		}
	}
	if _, failed := fields["quantity"]; !failed {
		qty, err := strconv.Atoi(checked.Quantity)
		switch {
		case err != nil:
			fields["quantity"] = "integer"
		case qty < 0:
			fields["quantity"] = "min"
		default:
			out.quantity = qty
		}
	}

	if len(fields) > 0 {
		return nil, &apperrors.ValidationError{Fields: fields}
	}
	return out, nil
}

// saveImage stores r when present. Content problems are reported as invalid input on the image field.
func (s *Service) saveImage(ctx context.Context, r io.Reader) (string, error) {
	if r == nil {
		return "", nil
	}
	ref, err := s.images.Save(ctx, r)
	switch {
	case err == nil:
		return ref, nil
	case errors.Is(err, images.ErrNotImage):
		return "", apperrors.NewValidationError("image", "image")
	case errors.Is(err, images.ErrTooLarge):
		return "", apperrors.NewValidationError("image", "max")
	case errors.Is(err, images.ErrEmptyPayload):
		return "", apperrors.NewValidationError("image", "required")
	default:
		return "", fmt.Errorf("failed to store image: %w", err)
	}
}

// release deletes an image that is no longer referenced. Failures are logged only.
func (s *Service) release(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.images.Delete(ctx, ref); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete image", "ref", ref, "error", err)
	}
}
