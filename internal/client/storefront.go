package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/sweetcrumb/storefront/internal/cart"
	"github.com/sweetcrumb/storefront/internal/catalog"
	"github.com/sweetcrumb/storefront/internal/orders"
	"github.com/sweetcrumb/storefront/internal/profiles"
	"github.com/sweetcrumb/storefront/pkg/types"
)

// Product is a catalog entry as the API presents it.
type Product struct {
	catalog.Product
	Price string `json:"price"`
}

func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out struct {
		Products []Product `json:"products"`
	}
	if err := c.do(ctx, request{method: "GET", path: "/products"}, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *Client) Product(ctx context.Context, productID string) (*Product, error) {
	var out struct {
		Product Product `json:"product"`
	}
	if err := c.do(ctx, request{method: "GET", path: "/products/" + url.PathEscape(productID)}, &out); err != nil {
		return nil, err
	}
	return &out.Product, nil
}

type checkoutLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Checkout starts a payment session for items and returns the URL the
// shopper must open. Anonymous shoppers get the API's 401.
func (c *Client) Checkout(ctx context.Context, items []cart.LineItem) (string, error) {
	lines := make([]checkoutLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, checkoutLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	body := map[string]any{"items": lines}
	key := uuid.NewString()

	var out types.CheckoutURL
	call := func(token string) error {
		return c.do(ctx, request{
			method:         "POST",
			path:           "/checkout",
			body:           body,
			bearer:         token,
			idempotencyKey: key,
		}, &out)
	}

	sess, err := c.loadSession()
	if err != nil {
		return "", err
	}
	if sess == nil {
		err = call("")
	} else {
		err = c.authed(ctx, call)
	}
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// Profile returns the shopper's profile or nil when none exists yet.
func (c *Client) Profile(ctx context.Context) (*profiles.ProfileDTO, error) {
	var out struct {
		Profile *profiles.ProfileDTO `json:"profile"`
	}
	err := c.authed(ctx, func(token string) error {
		return c.do(ctx, request{method: "GET", path: "/profile", bearer: token}, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Profile, nil
}

func (c *Client) UpdateProfile(ctx context.Context, input profiles.UpdateInput) (*profiles.ProfileDTO, error) {
	var out struct {
		Profile *profiles.ProfileDTO `json:"profile"`
	}
	err := c.authed(ctx, func(token string) error {
		return c.do(ctx, request{method: "PUT", path: "/profile", body: input, bearer: token}, &out)
	})
	if err != nil {
		return nil, err
	}
	return out.Profile, nil
}

// Orders returns one page of the shopper's recorded orders, newest first.
// limit <= 0 uses the server default; an empty cursor starts at the newest.
func (c *Client) Orders(ctx context.Context, limit int, cursor string) (*orders.ListResult, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out orders.ListResult
	err := c.authed(ctx, func(token string) error {
		return c.do(ctx, request{method: "GET", path: path, bearer: token}, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
