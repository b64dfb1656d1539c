package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sweetcrumb/storefront/api/responses"
	"github.com/sweetcrumb/storefront/api/validators"
	"github.com/sweetcrumb/storefront/internal/orders"
	pkgerrors "github.com/sweetcrumb/storefront/pkg/errors"
	"github.com/sweetcrumb/storefront/pkg/logger"
	"github.com/sweetcrumb/storefront/pkg/pagination"
)

type OrderLister interface {
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orders.ListResult, error)
}

// OrderList returns one page of the caller's recorded orders, newest first.
// Pass the returned cursor back to fetch the next page.
func OrderList(svc OrderLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", orders.DefaultListLimit, 1, orders.MaxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForUser(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if page == nil {
			page = &orders.ListResult{}
		}
		if page.Orders == nil {
			page.Orders = []orders.OrderDTO{}
		}
		responses.WriteSuccess(w, page)
	}
}
