package rest

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/abgdnv/stockroom/internal/catalog"
	"github.com/abgdnv/stockroom/pkg/web"
)

// formOverhead is the allowance for the non-file fields of a product form.
const formOverhead = 1 << 20

// ListProducts returns every product.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	mLogger.DebugContext(r.Context(), "Received request to list products")
	list, err := h.catalog.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "", "Failed to fetch products")
		return
	}
	mLogger.DebugContext(r.Context(), "Successfully retrieved product list", "count", len(list))
	web.RespondJSON(w, mLogger, http.StatusOK, list)
}

// CreateProduct creates a product from a multipart form with an optional image file.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	input, cleanup, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}
	defer cleanup()
	mLogger.DebugContext(r.Context(), "Received request to create product", "name", input.Name)

	created, err := h.catalog.Create(r.Context(), input)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err, "", "Failed to create product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "Name", created.Name)
	web.RespondJSON(w, mLogger, http.StatusCreated, created)
}

// UpdateProduct replaces the fields of a product. Without a new image file the stored image is kept.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	input, cleanup, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}
	defer cleanup()
	mLogger.DebugContext(r.Context(), "Received request to update product", "ID", id)

	updated, err := h.catalog.Update(r.Context(), id, input)
	if err != nil {
		h.respondServiceError(w, r, mLogger, err,
			fmt.Sprintf("Product with ID %s not found", id),
			fmt.Sprintf("Failed to update product with ID %s", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Product updated successfully", "ID", updated.ID, "Name", updated.Name)
	web.RespondJSON(w, mLogger, http.StatusOK, updated)
}

// DeleteProduct deletes a product by its ID.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	mLogger.DebugContext(r.Context(), "Received request to delete product", "ID", id)
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.respondServiceError(w, r, mLogger, err,
			fmt.Sprintf("Product with ID %s not found", id),
			fmt.Sprintf("Failed to delete product with ID %s", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
	web.RespondJSON(w, mLogger, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

// parseProductForm reads a multipart or url-encoded product form.
// The returned cleanup closes the uploaded file and removes temporary form files.
func (h *Handler) parseProductForm(w http.ResponseWriter, r *http.Request) (catalog.ProductInput, func(), bool) {
	mLogger := h.loggerWithReqID(r)
	cleanup := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)

	err := r.ParseMultipartForm(formOverhead)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondValidation(w, r, mLogger, map[string]string{"image": "max"})
			return catalog.ProductInput{}, cleanup, false
		}
		mLogger.WarnContext(r.Context(), "Error parsing product form", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return catalog.ProductInput{}, cleanup, false
	}
	if r.MultipartForm != nil {
		form := r.MultipartForm
		cleanup = func() { _ = form.RemoveAll() }
	}

	input := catalog.ProductInput{
		Name:         r.FormValue("name"),
		Description:  r.FormValue("description"),
		Category:     r.FormValue("category"),
		Price:        r.FormValue("price"),
		Quantity:     r.FormValue("quantity"),
		CurrentImage: r.FormValue("currentImage"),
	}

	file, _, err := r.FormFile("image")
	switch {
	case err == nil:
		prev := cleanup
		cleanup = func() {
			_ = file.Close()
			prev()
		}
		input.Image = file
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		cleanup()
		mLogger.WarnContext(r.Context(), "Error reading image", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid image upload")
		return catalog.ProductInput{}, func() {}, false
	}
	return input, cleanup, true
}
