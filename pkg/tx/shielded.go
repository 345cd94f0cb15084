package tx

import "github.com/Klingon-tech/klingnet-chain/pkg/types"

// Note is an already-computed note commitment: a leaf to append to a pool's
// note-commitment tree. Decryption of the note plaintext and verification
// of the zero-knowledge proof that produced it are out of scope here; by
// the time a Transaction reaches WriteBlock both have already happened.
type Note [32]byte

// Nullifier marks a previously shielded note as spent. Its pool-specific
// nullifier set is checked by the consensus verifier before the block
// reaches the finalized state. WriteBlock does not store nullifiers: no
// finalized-state column family holds them.
type Nullifier [32]byte

// ShieldedData carries a transaction's activity against the shielded note
// pools, keyed by pool. A transparent-only transaction has a nil
// ShieldedData.
type ShieldedData struct {
	Sprout  PoolActivity `json:"sprout,omitempty"`
	Sapling PoolActivity `json:"sapling,omitempty"`
	Orchard PoolActivity `json:"orchard,omitempty"`
}

// PoolActivity is one pool's notes produced and nullifiers spent by a
// transaction, along with the pool's signed value delta: positive means
// coins moved from the transparent pool into this shielded pool, negative
// the reverse.
type PoolActivity struct {
	Notes      []Note      `json:"notes,omitempty"`
	Nullifiers []Nullifier `json:"nullifiers,omitempty"`
	ValueDelta int64       `json:"value_delta"`
}

// IsEmpty reports whether the transaction touched this pool at all.
func (p PoolActivity) IsEmpty() bool {
	return len(p.Notes) == 0 && len(p.Nullifiers) == 0 && p.ValueDelta == 0
}

// ValueBalance returns the signed per-pool delta this shielded activity
// contributes to value_pool.
func (s *ShieldedData) ValueBalance() types.ValueBalance {
	if s == nil {
		return types.ValueBalance{}
	}
	return types.ValueBalance{
		Sprout:  s.Sprout.ValueDelta,
		Sapling: s.Sapling.ValueDelta,
		Orchard: s.Orchard.ValueDelta,
	}
}
