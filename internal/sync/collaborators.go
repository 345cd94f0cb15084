package syncer

import (
	"context"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// FindBlocksResult is one peer's answer to a FindBlocks query, or the
// error that peer produced. PeerSet.FindBlocks returns one of these per
// peer it queried so the Syncer can fold partial failures into whatever
// the other peers did return instead of failing the whole round.
type FindBlocksResult struct {
	Hashes []types.Hash
	Err    error
}

// CheckedTip is a prospective chain tip the Syncer is extending: Tip is a
// hash already confirmed unknown to local state, and ExpectedNext is the
// hash that should immediately follow it once downloaded.
type CheckedTip struct {
	Tip          types.Hash
	ExpectedNext types.Hash
}

// PeerSet fans a locator query out to the tip network and collects every
// queried peer's response.
type PeerSet interface {
	// FindBlocks fans a locator query out to up to fanout peers and
	// returns every peer's hash-list response (or error). How long it
	// waits on a slow peer is bounded by the implementation's own
	// per-request deadline.
	FindBlocks(ctx context.Context, known []types.Hash, stop *types.Hash, fanout int) []FindBlocksResult
}

// BlockFetcher downloads one block by hash.
type BlockFetcher interface {
	// BlockByHash acquires a peer slot, then downloads one block with
	// its own internal retry and timeout policy.
	BlockByHash(ctx context.Context, hash types.Hash) (*block.Block, error)
}

// StateService is the Syncer's only concurrent touch-point with
// FinalizedStore; it owns write serialization.
type StateService interface {
	GetBlockLocator(ctx context.Context) ([]types.Hash, error)
	GetDepth(ctx context.Context, hash types.Hash) (depth int64, ok bool, err error)
	CommitBlock(ctx context.Context, blk *block.Block) (types.Hash, error)
}

// Verifier runs consensus validation on a downloaded block, committing
// it on success.
type Verifier interface {
	Verify(ctx context.Context, blk *block.Block) (types.Hash, error)
}
