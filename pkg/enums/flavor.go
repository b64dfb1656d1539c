package enums

import "fmt"

// Flavor identifies the cookie (or dough) variety of a product.
type Flavor string

const (
	FlavorChocolateChip    Flavor = "chocolate_chip"
	FlavorButterscotchChip Flavor = "butterscotch_chip"
	FlavorHalfHalf         Flavor = "half_half"
	FlavorCookieDough      Flavor = "cookie_dough"
)

var validFlavors = []Flavor{
	FlavorChocolateChip,
	FlavorButterscotchChip,
	FlavorHalfHalf,
	FlavorCookieDough,
}

// String implements fmt.Stringer.
func (f Flavor) String() string {
	return string(f)
}

// IsValid reports whether the value is a known Flavor.
func (f Flavor) IsValid() bool {
	for _, candidate := range validFlavors {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFlavor converts raw input into a Flavor.
func ParseFlavor(value string) (Flavor, error) {
	for _, candidate := range validFlavors {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid flavor %q", value)
}
