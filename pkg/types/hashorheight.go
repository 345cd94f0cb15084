package types

import "fmt"

// HashOrHeight is a sum type identifying a block by either its hash or its
// height. Read accessors on the finalized state accept either form and
// resolve hash to height internally before doing a single point lookup.
type HashOrHeight struct {
	hash     Hash
	height   Height
	isHeight bool
}

// HashOrHeightFromHash builds a HashOrHeight that identifies a block by hash.
func HashOrHeightFromHash(h Hash) HashOrHeight {
	return HashOrHeight{hash: h}
}

// HashOrHeightFromHeight builds a HashOrHeight that identifies a block by
// height.
func HashOrHeightFromHeight(h Height) HashOrHeight {
	return HashOrHeight{height: h, isHeight: true}
}

// IsHeight reports whether this value identifies a block by height rather
// than by hash.
func (hh HashOrHeight) IsHeight() bool {
	return hh.isHeight
}

// Hash returns the hash form. Only valid when IsHeight() is false.
func (hh HashOrHeight) Hash() Hash {
	return hh.hash
}

// Height returns the height form. Only valid when IsHeight() is true.
func (hh HashOrHeight) Height() Height {
	return hh.height
}

// String returns a human-readable representation for logging.
func (hh HashOrHeight) String() string {
	if hh.isHeight {
		return fmt.Sprintf("height(%d)", hh.height)
	}
	return fmt.Sprintf("hash(%s)", hh.hash)
}
