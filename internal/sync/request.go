package syncer

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// requestBlocks spawns one download+verify task per hash not already in
// state. Hashes are checked against state sequentially, in input order,
// so that a hash several tips agree on only reaches the network once;
// the spawned tasks themselves then complete in arbitrary order.
func (s *Syncer) requestBlocks(ctx context.Context, hashes []types.Hash) error {
	for _, hash := range hashes {
		if s.stateContains(ctx, hash) {
			continue
		}
		h := hash
		s.pending.spawn(ctx, h, func(taskCtx context.Context) error {
			return s.downloadAndVerify(taskCtx, h)
		})
	}
	return nil
}

// downloadAndVerify is the body of one spawned task: download the block,
// then hand it to the verifier, which is responsible for committing it
// to state on success.
func (s *Syncer) downloadAndVerify(ctx context.Context, hash types.Hash) error {
	blk, err := s.fetcher.BlockByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("syncer: download block %s: %w", hash, err)
	}
	if _, err := s.verifier.Verify(ctx, blk); err != nil {
		return fmt.Errorf("syncer: verify block %s: %w", hash, err)
	}
	return nil
}

// stateContains reports whether hash is already committed, used both to
// avoid redundant downloads and to distinguish a raced-but-harmless task
// failure from a real one.
func (s *Syncer) stateContains(ctx context.Context, hash types.Hash) bool {
	_, ok, err := s.state.GetDepth(ctx, hash)
	if err != nil {
		log.Sync.Warn().Err(err).Str("hash", hash.String()).Msg("get_depth failed, treating hash as not in state")
		return false
	}
	return ok
}
