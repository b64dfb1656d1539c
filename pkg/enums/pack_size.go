package enums

import "fmt"

// PackSize is the number of cookies in a box.
type PackSize int

const (
	PackSizeHalfDozen PackSize = 6
	PackSizeDozen     PackSize = 12
)

// IsValid reports whether the value is a pack size the bakery sells.
func (p PackSize) IsValid() bool {
	return p == PackSizeHalfDozen || p == PackSizeDozen
}

// ParsePackSize converts a raw count into a PackSize.
func ParsePackSize(value int) (PackSize, error) {
	p := PackSize(value)
	if !p.IsValid() {
		return 0, fmt.Errorf("invalid pack size %d", value)
	}
	return p, nil
}
