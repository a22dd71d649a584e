package model

const (
	// MinOSTIndex is the lowest valid OST index
	MinOSTIndex = 0
	// MaxOSTIndex is the highest valid OST index
	MaxOSTIndex = 65535
	// IndexUnset marks an OST index argument that was not provided
	IndexUnset = -1
)

// ValidIndex reports whether idx is within the valid OST index range
func ValidIndex(idx int) bool {
	return idx >= MinOSTIndex && idx <= MaxOSTIndex
}

// StripeInfo is the placement snapshot of one file,
// constructed fresh on every stripe query and never mutated
type StripeInfo struct {
	// Filename the snapshot was taken for
	Filename string
	// Count is the stripe count
	Count int
	// Index is the primary OST index
	Index int
}
