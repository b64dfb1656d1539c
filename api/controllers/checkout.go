package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sweetcrumb/storefront/api/middleware"
	"github.com/sweetcrumb/storefront/api/responses"
	"github.com/sweetcrumb/storefront/api/validators"
	"github.com/sweetcrumb/storefront/internal/cart"
	"github.com/sweetcrumb/storefront/internal/checkout"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
	"github.com/sweetcrumb/storefront/pkg/types"
)

type CheckoutService interface {
	InitiateCheckout(ctx context.Context, items []cart.LineItem, identity *checkout.CustomerIdentity) (string, error)
}

// checkoutItem mirrors the cart line the browser sends. priceCents is
// accepted for compatibility and ignored: prices always come from the catalog.
type checkoutItem struct {
	ProductID  string `json:"productId"`
	Quantity   int    `json:"quantity"`
	PriceCents *int64 `json:"priceCents,omitempty"`
}

type checkoutRequest struct {
	Items []checkoutItem `json:"items"`
}

// Checkout starts a hosted payment session and returns its URL.
//
// A body with an items array checks out exactly those lines. A body without
// one checks out the server cart bound to the cart cookie, which is cleared
// once the session exists. Expects OptionalAuth and CartToken upstream.
func Checkout(svc CheckoutService, mirror cart.Mirror, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var (
			items      []cart.LineItem
			serverCart *cart.Store
		)
		if payload.Items != nil {
			items = make([]cart.LineItem, 0, len(payload.Items))
			for _, it := range payload.Items {
				items = append(items, cart.LineItem{ProductID: it.ProductID, Quantity: it.Quantity})
			}
		} else if mirror != nil && middleware.CartTokenFromContext(ctx) != "" {
			c, err := openCart(ctx, mirror)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			serverCart = c
			items = c.Items()
		}

		url, err := svc.InitiateCheckout(ctx, items, identityForCheckout(r))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if serverCart != nil {
			if err := serverCart.Clear(ctx); err != nil && logg != nil {
				logg.Error(ctx, "clear cart after checkout", err)
			}
		}
		responses.WriteSuccess(w, types.CheckoutURL{URL: url})
	}
}

func identityForCheckout(r *http.Request) *checkout.CustomerIdentity {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &checkout.CustomerIdentity{UserID: id, Email: middleware.EmailFromContext(r.Context())}
}
