package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sweetcrumb/storefront/api/middleware"
	"github.com/sweetcrumb/storefront/api/responses"
	"github.com/sweetcrumb/storefront/api/validators"
	"github.com/sweetcrumb/storefront/internal/cart"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
)

type cartView struct {
	Items         []cart.LineItem `json:"items"`
	ItemCount     int             `json:"itemCount"`
	SubtotalCents int64           `json:"subtotalCents"`
	Subtotal      string          `json:"subtotal"`
}

type addCartItemRequest struct {
	ProductID string `json:"productId" validate:"required,max=64"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=999"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"max=999"`
}

// CartGet returns the cart bound to the caller's cart cookie.
func CartGet(mirror cart.Mirror, cat CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(mirror, cat, logg, func(w http.ResponseWriter, r *http.Request, c *cart.Store) error {
		return nil
	})
}

// CartAdd adds a catalog product to the cart. Unknown products are rejected
// here so the server cart never holds lines checkout would drop.
func CartAdd(mirror cart.Mirror, cat CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(mirror, cat, logg, func(w http.ResponseWriter, r *http.Request, c *cart.Store) error {
		var req addCartItemRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			return err
		}
		if _, ok := cat.Resolve(req.ProductID); !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return c.AddItem(r.Context(), req.ProductID, req.Quantity)
	})
}

// CartUpdate sets a line's quantity; zero or less removes it.
func CartUpdate(mirror cart.Mirror, cat CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(mirror, cat, logg, func(w http.ResponseWriter, r *http.Request, c *cart.Store) error {
		var req updateCartItemRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			return err
		}
		productID := chi.URLParam(r, "productId")
		if req.Quantity > 0 {
			if _, ok := cat.Resolve(productID); !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
		}
		return c.UpdateQuantity(r.Context(), productID, req.Quantity)
	})
}

func CartRemove(mirror cart.Mirror, cat CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(mirror, cat, logg, func(w http.ResponseWriter, r *http.Request, c *cart.Store) error {
		return c.RemoveItem(r.Context(), chi.URLParam(r, "productId"))
	})
}

func CartClear(mirror cart.Mirror, cat CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return cartHandler(mirror, cat, logg, func(w http.ResponseWriter, r *http.Request, c *cart.Store) error {
		return c.Clear(r.Context())
	})
}

// cartHandler applies op to the cookie cart under the mirror's per-cart lock
// and writes the resulting view. Expects CartToken middleware upstream.
func cartHandler(mirror cart.Mirror, cat CatalogReader, logg *logger.Logger, op func(http.ResponseWriter, *http.Request, *cart.Store) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if mirror == nil || cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable"))
			return
		}
		token := middleware.CartTokenFromContext(r.Context())
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "cart token missing"))
			return
		}
		c, err := cart.Update(r.Context(), mirror, token, func(c *cart.Store) error {
			return op(w, r, c)
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(c, cat))
	}
}

func openCart(ctx context.Context, mirror cart.Mirror) (*cart.Store, error) {
	token := middleware.CartTokenFromContext(ctx)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart token missing")
	}
	return cart.Open(ctx, mirror, token)
}

func newCartView(c *cart.Store, prices cart.PriceResolver) cartView {
	snap := c.Snapshot()
	subtotal := c.Subtotal(prices)
	return cartView{
		Items:         snap.Items,
		ItemCount:     snap.ItemCount,
		SubtotalCents: subtotal,
		Subtotal:      decimal.New(subtotal, -2).StringFixed(2),
	}
}
