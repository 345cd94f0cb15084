// Package nct implements the minimal append-only incremental Merkle trees
// that back the sprout/sapling/orchard note-commitment column families.
// Decryption of note plaintexts and verification of the shielded proofs
// that produced a tx.Note are out of scope; a Tree only folds already
// computed leaves into a root, the way pkg/block.ComputeMerkleRoot folds
// transaction hashes.
package nct

import (
	"encoding/json"

	"github.com/Klingon-tech/klingnet-chain/pkg/crypto"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// emptyRoot is the deterministic root of a pool's tree before any note has
// ever been appended. Genesis commits one of these, unmixed with any
// block's notes, for each of the three pools at height 0.
var emptyRoot = types.Hash{}

// Tree is a pool's note-commitment tree as of some height: its accumulated
// leaves, not just its root, so the next block's Append can extend it.
// Trees are never mutated once stored — WriteBlock always derives the next
// height's tree from a copy.
type Tree struct {
	leaves []tx.Note
}

// Empty returns the tree every pool starts with before genesis.
func Empty() *Tree {
	return &Tree{}
}

// Append returns a new tree with notes added to the leaf set, leaving the
// receiver untouched so prevTrees can be reused by a caller that retries.
func (t *Tree) Append(notes []tx.Note) *Tree {
	if len(notes) == 0 {
		return t
	}
	next := &Tree{leaves: make([]tx.Note, len(t.leaves)+len(notes))}
	copy(next.leaves, t.leaves)
	copy(next.leaves[len(t.leaves):], notes)
	return next
}

// Size returns the number of notes accumulated so far.
func (t *Tree) Size() int {
	return len(t.leaves)
}

// Root folds the leaves pairwise with crypto.HashConcat, duplicating the
// last leaf when the count is odd, the same algorithm
// pkg/block.ComputeMerkleRoot uses for transaction hashes. An empty tree's
// root is the all-zero hash.
func (t *Tree) Root() types.Hash {
	if len(t.leaves) == 0 {
		return emptyRoot
	}
	level := make([]types.Hash, len(t.leaves))
	for i, n := range t.leaves {
		level[i] = types.Hash(n)
	}
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		level = next
	}
	return level[0]
}

// IsEmpty reports whether the tree has never had a note appended, the
// state invariant 8 requires for all three pools at genesis.
func (t *Tree) IsEmpty() bool {
	return len(t.leaves) == 0
}

// treeJSON is the on-disk representation stored per height.
type treeJSON struct {
	Leaves []tx.Note `json:"leaves"`
}

// Marshal encodes the tree for storage in a note-commitment-tree column
// family, keyed by height.
func (t *Tree) Marshal() ([]byte, error) {
	return json.Marshal(treeJSON{Leaves: t.leaves})
}

// Unmarshal decodes a tree previously written by Marshal.
func Unmarshal(data []byte) (*Tree, error) {
	var j treeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	return &Tree{leaves: j.Leaves}, nil
}
