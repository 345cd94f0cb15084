// Package stateservice wraps FinalizedStore with the one piece of
// mutable, non-finalized state the Syncer needs a home for: blocks that
// have already passed verification but aren't yet the store's immediate
// next height, because a different prospective tip raced ahead of them.
// Service is the single point of concurrent contact between the Syncer
// and FinalizedStore; it owns all write serialization.
package stateservice

import (
	"context"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingnet-chain/internal/finalizedstate"
	"github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Service implements syncer.StateService and verify.Committer.
type Service struct {
	mu      sync.Mutex
	store   *finalizedstate.Store
	pending map[types.Hash]*block.Block
}

// New wraps store as a Service.
func New(store *finalizedstate.Store) *Service {
	return &Service{
		store:   store,
		pending: make(map[types.Hash]*block.Block),
	}
}

// GetBlockLocator returns a sparse, tip-dense hash list: the committed
// tip, then exponentially receding ancestors (step 1, 2, 4, 8, ...) down
// to and including genesis. On an empty store it returns the all-zero
// sentinel hash, matching FinalizedTipHash's pre-genesis convention —
// the Syncer reads this as "nothing known, bootstrap from genesis."
func (s *Service) GetBlockLocator(ctx context.Context) ([]types.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tipHeight, tipHash, ok := s.store.Tip()
	if !ok {
		return []types.Hash{{}}, nil
	}

	locator := []types.Hash{tipHash}
	height := int64(tipHeight)
	step := int64(1)
	for height > 0 {
		height -= step
		if height < 0 {
			height = 0
		}
		hash, ok := s.store.Hash(types.Height(height))
		if !ok {
			return nil, fmt.Errorf("stateservice: locator step missing height %d below tip %d", height, tipHeight)
		}
		locator = append(locator, hash)
		if height == 0 {
			break
		}
		step *= 2
	}
	return locator, nil
}

// GetDepth reports hash's depth below the committed tip, if hash is known
// at all — either already committed, or verified and waiting in pending
// for the heights below it to fill in.
func (s *Service) GetDepth(ctx context.Context, hash types.Hash) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tipHeight, _, hasTip := s.store.Tip()

	if height, ok := s.store.Height(hash); ok {
		return int64(tipHeight) - int64(height), true, nil
	}
	if blk, ok := s.pending[hash]; ok {
		if !hasTip {
			return 0, true, nil
		}
		return int64(tipHeight) - int64(blk.Height()), true, nil
	}
	return 0, false, nil
}

// CommitBlock records blk as verified, then folds it and every pending
// block it unblocks into FinalizedStore in height order. A block whose
// parent isn't yet the store's tip is held in pending rather than
// rejected: two prospective tips extending different branches can finish
// verification out of order.
func (s *Service) CommitBlock(ctx context.Context, blk *block.Block) (types.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := blk.Hash()
	if _, ok := s.store.Height(hash); ok {
		return hash, nil
	}
	s.pending[hash] = blk

	for {
		next, ok := s.nextCommittable()
		if !ok {
			break
		}
		delete(s.pending, next.Hash())
		if _, err := s.commitLocked(next); err != nil {
			return types.Hash{}, err
		}
	}
	return hash, nil
}

// nextCommittable finds the pending block, if any, that directly extends
// the store's current tip (or is genesis, on an empty store).
func (s *Service) nextCommittable() (*block.Block, bool) {
	tipHeight, tipHash, hasTip := s.store.Tip()
	for _, blk := range s.pending {
		if !hasTip {
			if blk.Header.PrevHash.IsZero() && blk.Height() == types.GenesisHeight {
				return blk, true
			}
			continue
		}
		if blk.Header.PrevHash == tipHash && blk.Height() == tipHeight+1 {
			return blk, true
		}
	}
	return nil, false
}

func (s *Service) commitLocked(blk *block.Block) (types.Hash, error) {
	prevTrees, err := s.prevTrees(blk)
	if err != nil {
		return types.Hash{}, err
	}
	hash, err := s.store.WriteBlock(blk, prevTrees, "sync")
	if err != nil {
		return types.Hash{}, fmt.Errorf("stateservice: commit block %s: %w", blk.Hash(), err)
	}
	log.Sync.Debug().Str("hash", hash.String()).Int("pending", len(s.pending)).Msg("folded block into finalized state")
	return hash, nil
}

// maxLocateBatch caps a single LocateBlocks response, mirroring the
// batch size peer protocols conventionally use for locator responses.
const maxLocateBatch = 500

// LocateBlocks serves the peer-facing FindBlocks query: given a block
// locator, it finds the highest known ancestor and returns the hashes
// that directly follow it, up to stop (inclusive) or maxLocateBatch,
// whichever comes first.
func (s *Service) LocateBlocks(known []types.Hash, stop *types.Hash) []types.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()

	tipHeight, _, hasTip := s.store.Tip()
	if !hasTip {
		return nil
	}

	start := types.GenesisHeight
	for _, h := range known {
		if h.IsZero() {
			continue
		}
		if height, ok := s.store.Height(h); ok && height+1 > start {
			start = height + 1
		}
	}

	hashes := make([]types.Hash, 0, maxLocateBatch)
	for h := start; h <= tipHeight && len(hashes) < maxLocateBatch; h++ {
		hash, ok := s.store.Hash(h)
		if !ok {
			break
		}
		hashes = append(hashes, hash)
		if stop != nil && hash == *stop {
			break
		}
	}
	return hashes
}

// BlockByHash serves the peer-facing BlocksByHash query from committed
// state.
func (s *Service) BlockByHash(hash types.Hash) (*block.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Block(types.HashOrHeightFromHash(hash))
}

// prevTrees looks up the note-commitment trees as of the block
// immediately before blk. WriteBlock ignores this argument for genesis,
// so a lookup miss there is harmless.
func (s *Service) prevTrees(blk *block.Block) (finalizedstate.PrevTrees, error) {
	if blk.Header.PrevHash.IsZero() {
		return finalizedstate.PrevTrees{}, nil
	}
	parent := types.HashOrHeightFromHash(blk.Header.PrevHash)

	sprout, ok := s.store.SproutTree(parent)
	if !ok {
		return finalizedstate.PrevTrees{}, fmt.Errorf("stateservice: missing sprout tree for parent %s", blk.Header.PrevHash)
	}
	sapling, ok := s.store.SaplingTree(parent)
	if !ok {
		return finalizedstate.PrevTrees{}, fmt.Errorf("stateservice: missing sapling tree for parent %s", blk.Header.PrevHash)
	}
	orchard, ok := s.store.OrchardTree(parent)
	if !ok {
		return finalizedstate.PrevTrees{}, fmt.Errorf("stateservice: missing orchard tree for parent %s", blk.Header.PrevHash)
	}
	return finalizedstate.PrevTrees{Sprout: sprout, Sapling: sapling, Orchard: orchard}, nil
}
