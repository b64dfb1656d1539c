package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetcrumb/storefront/pkg/enums"
)

func TestResolveKnownAndUnknown(t *testing.T) {
	c := New(nil)

	p, ok := c.Resolve("cc-6")
	require.True(t, ok)
	assert.Equal(t, int64(1200), p.PriceCents)
	assert.Equal(t, enums.PackSizeHalfDozen, p.PackSize)
	assert.Equal(t, enums.FlavorChocolateChip, p.Flavor)
	assert.Equal(t, "price_cc_6", p.ExternalPriceRef)

	_, ok = c.Resolve("oatmeal-6")
	assert.False(t, ok)
}

func TestListIsOrderedAndValid(t *testing.T) {
	c := New(nil)
	products := c.List()
	require.Len(t, products, 8)
	assert.Equal(t, "cc-6", products[0].ID)
	assert.Equal(t, "dough-quart", products[7].ID)

	for _, p := range products {
		assert.True(t, p.PackSize.IsValid(), p.ID)
		assert.True(t, p.Flavor.IsValid(), p.ID)
		assert.Positive(t, p.PriceCents, p.ID)
		assert.NotEmpty(t, p.ExternalPriceRef, p.ID)
	}
}

func TestListReturnsCopy(t *testing.T) {
	c := New(nil)
	products := c.List()
	products[0].PriceCents = 1

	p, _ := c.Resolve("cc-6")
	assert.Equal(t, int64(1200), p.PriceCents)
	assert.Equal(t, int64(1200), c.List()[0].PriceCents)
}

func TestPriceOverrides(t *testing.T) {
	c := New(map[string]string{"hh-12": "price_live_hh12", "nope": "price_x"})

	p, _ := c.Resolve("hh-12")
	assert.Equal(t, "price_live_hh12", p.ExternalPriceRef)

	other, _ := c.Resolve("hh-6")
	assert.Equal(t, "price_hh_6", other.ExternalPriceRef)

	fresh := New(nil)
	p, _ = fresh.Resolve("hh-12")
	assert.Equal(t, "price_hh_12", p.ExternalPriceRef, "overrides must not leak between catalogs")
}

func TestPriceInDollars(t *testing.T) {
	p, _ := New(nil).Resolve("dough-quart")
	assert.Equal(t, "30.00", p.Price().StringFixed(2))
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	_, ok := c.Resolve("cc-6")
	assert.False(t, ok)
	assert.Nil(t, c.List())
}
