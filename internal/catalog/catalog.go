package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/sweetcrumb/storefront/pkg/enums"
)

// Product is an immutable catalog entry. ExternalPriceRef is the Stripe
// price id the product is billed under.
type Product struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	PackSize         enums.PackSize `json:"pack_size"`
	Flavor           enums.Flavor   `json:"flavor"`
	PriceCents       int64          `json:"price_cents"`
	ExternalPriceRef string         `json:"-"`
}

// Price returns the unit price in dollars.
func (p Product) Price() decimal.Decimal {
	return decimal.New(p.PriceCents, -2)
}

// Catalog resolves product ids. It is built once at boot and never mutated,
// so lookups are safe from any goroutine.
type Catalog struct {
	products []Product
	byID     map[string]Product
}

var defaultProducts = []Product{
	{
		ID:               "cc-6",
		Name:             "Chocolate Chip · 6-Pack",
		Description:      "Classic, buttery chocolate chip morsels.",
		PackSize:         enums.PackSizeHalfDozen,
		Flavor:           enums.FlavorChocolateChip,
		PriceCents:       1200,
		ExternalPriceRef: "price_cc_6",
	},
	{
		ID:               "cc-12",
		Name:             "Chocolate Chip · 12-Pack",
		Description:      "A dozen of the original favorite.",
		PackSize:         enums.PackSizeDozen,
		Flavor:           enums.FlavorChocolateChip,
		PriceCents:       2200,
		ExternalPriceRef: "price_cc_12",
	},
	{
		ID:               "bc-6",
		Name:             "Butterscotch Chip · 6-Pack",
		Description:      "Rich butterscotch and chocolate, caramelized edges.",
		PackSize:         enums.PackSizeHalfDozen,
		Flavor:           enums.FlavorButterscotchChip,
		PriceCents:       1300,
		ExternalPriceRef: "price_bc_6",
	},
	{
		ID:               "bc-12",
		Name:             "Butterscotch Chip · 12-Pack",
		Description:      "A full dozen of signature butterscotch chocolate chip.",
		PackSize:         enums.PackSizeDozen,
		Flavor:           enums.FlavorButterscotchChip,
		PriceCents:       2400,
		ExternalPriceRef: "price_bc_12",
	},
	{
		ID:               "hh-6",
		Name:             "Half & Half · 6-Pack",
		Description:      "3 chocolate chip, 3 butterscotch chocolate chip.",
		PackSize:         enums.PackSizeHalfDozen,
		Flavor:           enums.FlavorHalfHalf,
		PriceCents:       1300,
		ExternalPriceRef: "price_hh_6",
	},
	{
		ID:               "hh-12",
		Name:             "Half & Half · 12-Pack",
		Description:      "6 of each flavor. Best of both.",
		PackSize:         enums.PackSizeDozen,
		Flavor:           enums.FlavorHalfHalf,
		PriceCents:       2400,
		ExternalPriceRef: "price_hh_12",
	},
	{
		ID:               "dough-pint",
		Name:             "Chocolate Chip Cookie Dough Pint",
		Description:      "Ready-to-bake chocolate chip cookie dough, pint size.",
		PackSize:         enums.PackSizeDozen,
		Flavor:           enums.FlavorCookieDough,
		PriceCents:       2000,
		ExternalPriceRef: "price_cc_cdp",
	},
	{
		ID:               "dough-quart",
		Name:             "Chocolate Chip Cookie Dough Quart",
		Description:      "Party-ready quart of chocolate chip cookie dough.",
		PackSize:         enums.PackSizeDozen,
		Flavor:           enums.FlavorCookieDough,
		PriceCents:       3000,
		ExternalPriceRef: "price_cc_cdq",
	},
}

// New builds the bakery catalog. priceOverrides replaces the default price
// ref of the matching product ids; unknown ids are ignored.
func New(priceOverrides map[string]string) *Catalog {
	products := make([]Product, len(defaultProducts))
	copy(products, defaultProducts)

	byID := make(map[string]Product, len(products))
	for i := range products {
		if ref, ok := priceOverrides[products[i].ID]; ok && ref != "" {
			products[i].ExternalPriceRef = ref
		}
		byID[products[i].ID] = products[i]
	}
	return &Catalog{products: products, byID: byID}
}

// Resolve looks a product up by id.
func (c *Catalog) Resolve(productID string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	p, ok := c.byID[productID]
	return p, ok
}

// List returns the products in display order.
func (c *Catalog) List() []Product {
	if c == nil {
		return nil
	}
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// PriceCents returns the unit price of a known product.
func (c *Catalog) PriceCents(productID string) (int64, bool) {
	p, ok := c.Resolve(productID)
	return p.PriceCents, ok
}
