// Shoprank - Marketplace Recommendation and User Behavior Modeling
// Copyright 2026 David Kim (dkim815)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dkim815/shoprank

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/dkim815/shoprank/internal/recommend"
)

// ProductUpsert is the wire format for one product in a catalog upsert.
type ProductUpsert struct {
	ID         string  `json:"id" validate:"required,max=128"`
	Category   string  `json:"category" validate:"required,max=128"`
	Price      float64 `json:"price" validate:"gt=0"`
	SalesCount int     `json:"sales_count" validate:"gte=0"`
}

// PutProducts handles POST /api/v1/products.
// Upserts a batch of catalog products.
func (h *Handler) PutProducts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var body []ProductUpsert
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if len(body) == 0 {
		rw.BadRequest("Product list is empty")
		return
	}

	products := make([]recommend.Product, 0, len(body))
	for i, p := range body {
		if err := validate.Struct(p); err != nil {
			rw.ValidationError("Invalid product at index "+strconv.Itoa(i), validationDetails(err))
			return
		}
		products = append(products, recommend.Product{
			ID:         p.ID,
			Category:   p.Category,
			Price:      p.Price,
			SalesCount: p.SalesCount,
		})
	}

	h.catalog.Upsert(products...)

	rw.Success(map[string]interface{}{
		"upserted":     len(products),
		"catalog_size": h.catalog.Len(),
	})
}

// GetProduct handles GET /api/v1/products/{productID}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	productID := chi.URLParam(r, "productID")
	p, ok := h.catalog.Product(productID)
	if !ok {
		rw.NotFound("Product not found: " + productID)
		return
	}

	rw.Success(p)
}
