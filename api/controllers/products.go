package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sweetcrumb/storefront/api/responses"
	"github.com/sweetcrumb/storefront/internal/catalog"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
)

// CatalogReader is the read side of the product catalog.
type CatalogReader interface {
	Resolve(productID string) (catalog.Product, bool)
	List() []catalog.Product
	PriceCents(productID string) (int64, bool)
}

type productView struct {
	catalog.Product
	Price string `json:"price"`
}

func newProductView(p catalog.Product) productView {
	return productView{Product: p, Price: p.Price().StringFixed(2)}
}

func ProductList(cat CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		products := cat.List()
		views := make([]productView, 0, len(products))
		for _, p := range products {
			views = append(views, newProductView(p))
		}
		responses.WriteSuccess(w, map[string]any{"products": views})
	}
}

func ProductDetail(cat CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		p, ok := cat.Resolve(chi.URLParam(r, "productId"))
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"product": newProductView(p)})
	}
}
