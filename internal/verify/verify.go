// Package verify supplies a thin concrete syncer.Verifier: just enough
// structural validation to keep a malformed or mismatched block from
// ever reaching FinalizedStore. Full consensus rule enforcement
// (proof-of-work targets, proof-of-authority slot assignment, stake
// weight) belongs to an external consensus engine this package is
// deliberately thin in front of, wired in through HeaderChecker.
package verify

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Committer is the subset of the state service a Verifier needs:
// somewhere to hand a structurally sound, consensus-checked block.
type Committer interface {
	CommitBlock(ctx context.Context, blk *block.Block) (types.Hash, error)
}

// HeaderChecker runs consensus-specific header verification (difficulty
// target, validator slot, signature). A nil HeaderChecker is valid and
// causes Verify to skip straight from structural validation to commit.
type HeaderChecker interface {
	VerifyHeader(header *block.Header) error
}

// Verifier implements syncer.Verifier: structural validation, then an
// optional consensus header check, then commit.
type Verifier struct {
	committer Committer
	consensus HeaderChecker
}

// New builds a Verifier. consensus may be nil.
func New(committer Committer, consensus HeaderChecker) *Verifier {
	return &Verifier{committer: committer, consensus: consensus}
}

// Verify checks blk's structure, checks its header against the wired
// consensus engine if any, and commits it on success.
func (v *Verifier) Verify(ctx context.Context, blk *block.Block) (types.Hash, error) {
	if err := validateStructure(blk); err != nil {
		return types.Hash{}, fmt.Errorf("verify: structure: %w", err)
	}
	if v.consensus != nil {
		if err := v.consensus.VerifyHeader(blk.Header); err != nil {
			return types.Hash{}, fmt.Errorf("verify: consensus: %w", err)
		}
	}
	return v.committer.CommitBlock(ctx, blk)
}

// validateStructure checks invariants every block must satisfy
// regardless of consensus engine: a header, at least one transaction
// (coinbase included), and a merkle root that actually matches the
// transactions the header claims to commit to.
func validateStructure(blk *block.Block) error {
	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}
	if len(blk.Transactions) == 0 {
		return fmt.Errorf("block %s has no transactions", blk.Hash())
	}

	txHashes := make([]types.Hash, len(blk.Transactions))
	for i, t := range blk.Transactions {
		txHashes[i] = t.Hash()
	}
	if want, got := block.ComputeMerkleRoot(txHashes), blk.Header.MerkleRoot; want != got {
		return fmt.Errorf("block %s: merkle root mismatch: header has %s, computed %s", blk.Hash(), got, want)
	}
	return nil
}
