package types

import "fmt"

// ValueBalance is the value_pool singleton: signed running totals of coin
// inflows and outflows for the transparent pool and each shielded pool.
// Each component is constrained to remain non-negative after every block;
// WriteBlock treats a violation as a programming error, not a user error.
type ValueBalance struct {
	Transparent int64 `json:"transparent"`
	Sprout      int64 `json:"sprout"`
	Sapling     int64 `json:"sapling"`
	Orchard     int64 `json:"orchard"`
}

// IsNonNegative reports whether every component is >= 0.
func (v ValueBalance) IsNonNegative() bool {
	return v.Transparent >= 0 && v.Sprout >= 0 && v.Sapling >= 0 && v.Orchard >= 0
}

// IsZero reports whether every component is exactly zero, the state after
// committing only the genesis block.
func (v ValueBalance) IsZero() bool {
	return v == ValueBalance{}
}

// Add returns the component-wise sum of v and delta.
func (v ValueBalance) Add(delta ValueBalance) ValueBalance {
	return ValueBalance{
		Transparent: v.Transparent + delta.Transparent,
		Sprout:      v.Sprout + delta.Sprout,
		Sapling:     v.Sapling + delta.Sapling,
		Orchard:     v.Orchard + delta.Orchard,
	}
}

// String renders the pool totals for diagnostics.
func (v ValueBalance) String() string {
	return fmt.Sprintf("transparent=%d sprout=%d sapling=%d orchard=%d",
		v.Transparent, v.Sprout, v.Sapling, v.Orchard)
}
