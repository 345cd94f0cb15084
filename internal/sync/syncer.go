// Package syncer implements the tip-following block synchronizer: it
// keeps a node's FinalizedStore caught up with the canonical chain tip
// by repeatedly locating unknown hashes on the peer network, downloading
// and verifying the corresponding blocks, and committing them.
//
// The Syncer is generic over four narrow collaborator interfaces
// (PeerSet, BlockFetcher, StateService, Verifier) so it can be driven by
// fakes in tests and by internal/netadapter/internal/stateservice in
// production, without either depending on libp2p or badger directly.
package syncer

import (
	"context"
	"time"

	"github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Config holds the Syncer's tunables, mirroring config.SyncConfig plus
// the one piece of chain identity the Syncer needs directly: the
// genesis block's hash, which it bootstraps explicitly since a
// locator-based FindBlocks query has no way to address genesis.
type Config struct {
	Fanout               int
	LookaheadLimit       int
	BlockTimeout         time.Duration
	SyncRestartTimeout   time.Duration
	BlockDownloadRetries int
	GenesisHash          types.Hash
}

// Syncer runs the outer sync loop described in package doc. One Syncer
// owns one outer-loop task; per-block download+verify work runs as
// independent tasks tracked by pending.
type Syncer struct {
	peers    PeerSet
	fetcher  BlockFetcher
	state    StateService
	verifier Verifier
	cfg      Config

	pending         *pendingSet
	prospectiveTips []CheckedTip
}

// New builds a Syncer from its collaborators and tunables.
func New(peers PeerSet, fetcher BlockFetcher, state StateService, verifier Verifier, cfg Config) *Syncer {
	return &Syncer{
		peers:    peers,
		fetcher:  fetcher,
		state:    state,
		verifier: verifier,
		cfg:      cfg,
		pending:  newPendingSet(cfg.LookaheadLimit*2 + 16),
	}
}

// Sync runs the outer loop forever, returning only when ctx is canceled.
// Genesis bootstrap is retried until it succeeds or ctx is canceled.
func (s *Syncer) Sync(ctx context.Context) error {
	if err := s.bootstrapGenesis(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.pending.reset()
		s.prospectiveTips = nil

		if err := s.obtainTips(ctx); err != nil {
			log.Sync.Error().Err(err).Msg("obtain_tips failed, backing off")
			if !s.sleepRestart(ctx) {
				return ctx.Err()
			}
			continue
		}

		if !s.drainUntilTipsExhausted(ctx) {
			return ctx.Err()
		}

		if !s.sleepRestart(ctx) {
			return ctx.Err()
		}
	}
}

// drainUntilTipsExhausted runs the body of the outer loop's step 3 until
// prospectiveTips empties out on its own, or a task error forces an
// early restart. Either way the caller backs off and re-enters
// obtain_tips next; the return value only distinguishes that from a
// context cancellation, which propagates instead.
func (s *Syncer) drainUntilTipsExhausted(ctx context.Context) bool {
	for len(s.prospectiveTips) > 0 {
		if ctx.Err() != nil {
			return false
		}

		for {
			res, ok := s.pending.tryNext()
			if !ok {
				break
			}
			if !s.handleResult(ctx, res) {
				return true
			}
		}

		if s.pending.len() > s.cfg.LookaheadLimit {
			res, ok := s.pending.next(ctx)
			if !ok {
				return false
			}
			if !s.handleResult(ctx, res) {
				return true
			}
			continue
		}

		if err := s.extendTips(ctx); err != nil {
			log.Sync.Warn().Err(err).Msg("extend_tips failed, continuing")
		}
	}
	return true
}

// handleResult applies the failure/recovery rule to one finished task:
// success or "already resolved by a racing tip" both continue; any other
// failure signals the caller to tear down and restart the whole sync.
func (s *Syncer) handleResult(ctx context.Context, res downloadResult) bool {
	if res.err == nil {
		return true
	}
	if s.stateContains(ctx, res.hash) {
		log.Sync.Info().Err(res.err).Str("hash", res.hash.String()).
			Msg("download task failed but block was already committed by another tip")
		return true
	}
	log.Sync.Error().Err(res.err).Str("hash", res.hash.String()).
		Msg("download task failed for a block not in state, restarting sync")
	return false
}

// bootstrapGenesis downloads and verifies the configured genesis hash
// before the outer loop starts, retrying indefinitely: locator-based
// FindBlocks cannot address genesis since responses exclude the queried
// block and the genesis hash doubles as the "no match" sentinel.
func (s *Syncer) bootstrapGenesis(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.stateContains(ctx, s.cfg.GenesisHash) {
			return nil
		}

		blk, err := s.fetcher.BlockByHash(ctx, s.cfg.GenesisHash)
		if err == nil {
			_, err = s.verifier.Verify(ctx, blk)
		}
		if err == nil {
			return nil
		}

		log.Sync.Warn().Err(err).Msg("genesis bootstrap failed, retrying")
		if !s.sleepRestart(ctx) {
			return ctx.Err()
		}
	}
}

// sleepRestart waits out the configured restart cooldown, returning
// false if ctx is canceled first.
func (s *Syncer) sleepRestart(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.cfg.SyncRestartTimeout):
		return true
	}
}
