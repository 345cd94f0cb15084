package syncer

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// obtainTipsUnknown applies obtain_tips' response-trimming rule to one
// peer's hash list: drop the defensive trailing hash a peer sometimes
// appends, then return everything from the first hash not already known
// to local state onward. A first-hash mismatch (a peer sometimes
// prepends an unrelated hash) is tolerated — it is simply treated as
// "not in state" like any other unknown hash.
func obtainTipsUnknown(hashes []types.Hash, contains func(types.Hash) bool) []types.Hash {
	if len(hashes) == 0 {
		return nil
	}
	hashes = hashes[:len(hashes)-1]
	for i, h := range hashes {
		if !contains(h) {
			return hashes[i:]
		}
	}
	return nil
}

// extendTipsUnknown applies extend_tips' response-trimming rule: the
// response must either begin with tip.ExpectedNext, or have it as the
// second hash (tolerating one prepended unrelated hash); anything else
// is discarded. The defensive trailing hash is then dropped the same way
// obtain_tips drops one.
func extendTipsUnknown(hashes []types.Hash, tip CheckedTip) []types.Hash {
	var remainder []types.Hash
	switch {
	case len(hashes) >= 1 && hashes[0] == tip.ExpectedNext:
		remainder = hashes[1:]
	case len(hashes) >= 2 && hashes[1] == tip.ExpectedNext:
		remainder = hashes[2:]
	default:
		return nil
	}
	if len(remainder) == 0 {
		return nil
	}
	return remainder[:len(remainder)-1]
}

// buildTip forms a CheckedTip from the final pair of an unknown-hash
// list, or reports false if fewer than two hashes remain.
func buildTip(unknown []types.Hash) (CheckedTip, bool) {
	if len(unknown) < 2 {
		return CheckedTip{}, false
	}
	return CheckedTip{
		Tip:          unknown[len(unknown)-2],
		ExpectedNext: unknown[len(unknown)-1],
	}, true
}

// tipsSubsumeAndAppend inserts candidate into tips, first dropping any
// existing tip whose ExpectedNext appears in unknown — such a tip is
// subsumed by the longer chain segment candidate was built from, and
// keeping both would only schedule the same blocks for download twice.
func tipsSubsumeAndAppend(tips []CheckedTip, unknown []types.Hash, candidate CheckedTip) []CheckedTip {
	inResponse := make(map[types.Hash]struct{}, len(unknown))
	for _, h := range unknown {
		inResponse[h] = struct{}{}
	}
	kept := tips[:0]
	for _, t := range tips {
		if _, subsumed := inResponse[t.ExpectedNext]; subsumed {
			continue
		}
		kept = append(kept, t)
	}
	return append(kept, candidate)
}

// buildTipsFromUnknownLists folds every response's already-trimmed
// unknown-hash list into the combined download set and the next
// generation of prospective tips, applying the "skip if expected_next
// already scheduled, else subsume overlapping tips" rule shared by
// obtain_tips and extend_tips.
func buildTipsFromUnknownLists(unknownLists [][]types.Hash) ([]types.Hash, []CheckedTip) {
	var downloadSet []types.Hash
	seen := make(map[types.Hash]struct{})
	var tips []CheckedTip

	for _, unknown := range unknownLists {
		if candidate, ok := buildTip(unknown); ok {
			if _, dup := seen[candidate.ExpectedNext]; !dup {
				tips = tipsSubsumeAndAppend(tips, unknown, candidate)
			}
		}
		for _, h := range unknown {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				downloadSet = append(downloadSet, h)
			}
		}
	}
	return downloadSet, tips
}

// obtainTips fetches a block locator from the state service, fans it out
// to the tip network, and replaces prospectiveTips with whatever new
// tips the responses reveal, queuing every newly discovered hash for
// download along the way.
func (s *Syncer) obtainTips(ctx context.Context) error {
	locator, err := s.state.GetBlockLocator(ctx)
	if err != nil {
		return fmt.Errorf("syncer: get block locator: %w", err)
	}

	results := s.peers.FindBlocks(ctx, locator, nil, s.cfg.Fanout)

	var unknownLists [][]types.Hash
	for _, res := range results {
		if res.Err != nil {
			log.Sync.Warn().Err(res.Err).Msg("find_blocks failed during tip discovery")
			continue
		}
		unknown := obtainTipsUnknown(res.Hashes, func(h types.Hash) bool { return s.stateContains(ctx, h) })
		if len(unknown) > 0 {
			unknownLists = append(unknownLists, unknown)
		}
	}

	downloadSet, tips := buildTipsFromUnknownLists(unknownLists)
	s.prospectiveTips = tips
	return s.requestBlocks(ctx, downloadSet)
}

// extendTips consumes the entire current prospectiveTips list — "moving
// each tip out" per the algorithm — queries the tip network once per
// tip, and installs whatever new tips those responses yield as the next
// generation, queuing every newly discovered hash for download.
func (s *Syncer) extendTips(ctx context.Context) error {
	tips := s.prospectiveTips
	s.prospectiveTips = nil

	var unknownLists [][]types.Hash
	for _, tip := range tips {
		results := s.peers.FindBlocks(ctx, []types.Hash{tip.Tip}, nil, s.cfg.Fanout)
		for _, res := range results {
			if res.Err != nil {
				log.Sync.Warn().Err(res.Err).Str("tip", tip.Tip.String()).Msg("find_blocks failed extending tip")
				continue
			}
			unknown := extendTipsUnknown(res.Hashes, tip)
			if len(unknown) > 0 {
				unknownLists = append(unknownLists, unknown)
			}
		}
	}

	downloadSet, newTips := buildTipsFromUnknownLists(unknownLists)
	s.prospectiveTips = newTips
	return s.requestBlocks(ctx, downloadSet)
}
