package syncer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func h(n byte) types.Hash {
	var hash types.Hash
	hash[types.HashSize-1] = n
	return hash
}

func TestObtainTipsUnknown_DropsTrailingGarbage(t *testing.T) {
	hashes := []types.Hash{h(1), h(2), h(3), h(99)}
	got := obtainTipsUnknown(hashes, func(types.Hash) bool { return false })

	want := []types.Hash{h(1), h(2), h(3)}
	if !hashSlicesEqual(got, want) {
		t.Fatalf("obtainTipsUnknown = %v, want %v", got, want)
	}

	tip, ok := buildTip(got)
	if !ok || tip != (CheckedTip{Tip: h(2), ExpectedNext: h(3)}) {
		t.Fatalf("buildTip(%v) = (%v, %v)", got, tip, ok)
	}
}

func TestObtainTipsUnknown_SkipsKnownPrefix(t *testing.T) {
	known := map[types.Hash]bool{h(1): true, h(2): true}
	hashes := []types.Hash{h(1), h(2), h(3), h(4), h(99)}

	got := obtainTipsUnknown(hashes, func(x types.Hash) bool { return known[x] })

	want := []types.Hash{h(3), h(4)}
	if !hashSlicesEqual(got, want) {
		t.Fatalf("obtainTipsUnknown = %v, want %v", got, want)
	}
}

func TestExtendTipsUnknown_TolerantOfPrependedHash(t *testing.T) {
	tip := CheckedTip{Tip: h(2), ExpectedNext: h(3)}
	hashes := []types.Hash{h(99), h(3), h(4), h(5), h(100)}

	got := extendTipsUnknown(hashes, tip)

	want := []types.Hash{h(4), h(5)}
	if !hashSlicesEqual(got, want) {
		t.Fatalf("extendTipsUnknown = %v, want %v", got, want)
	}
}

func TestExtendTipsUnknown_DirectMatch(t *testing.T) {
	tip := CheckedTip{Tip: h(2), ExpectedNext: h(3)}
	hashes := []types.Hash{h(3), h(4), h(5), h(100)}

	got := extendTipsUnknown(hashes, tip)

	want := []types.Hash{h(4), h(5)}
	if !hashSlicesEqual(got, want) {
		t.Fatalf("extendTipsUnknown = %v, want %v", got, want)
	}
}

func TestExtendTipsUnknown_DiscardsUnrelatedResponse(t *testing.T) {
	tip := CheckedTip{Tip: h(2), ExpectedNext: h(3)}
	hashes := []types.Hash{h(7), h(8)}

	if got := extendTipsUnknown(hashes, tip); got != nil {
		t.Fatalf("extendTipsUnknown = %v, want nil", got)
	}
}

func TestTipsSubsumeAndAppend_RemovesSubsumedTip(t *testing.T) {
	existing := []CheckedTip{{Tip: h(1), ExpectedNext: h(2)}}
	unknown := []types.Hash{h(2), h(3), h(4)}
	candidate := CheckedTip{Tip: h(3), ExpectedNext: h(4)}

	got := tipsSubsumeAndAppend(existing, unknown, candidate)

	want := []CheckedTip{candidate}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("tipsSubsumeAndAppend = %v, want %v", got, want)
	}
}

func hashSlicesEqual(a, b []types.Hash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPendingSet_LenTracksUnpoppedResults(t *testing.T) {
	ps := newPendingSet(10)
	for i := byte(0); i < 5; i++ {
		ps.spawn(context.Background(), h(i), func(context.Context) error { return nil })
	}
	if got := ps.len(); got != 5 {
		t.Fatalf("len() = %d, want 5", got)
	}
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if _, ok := ps.next(ctx); !ok {
			cancel()
			t.Fatal("next() timed out waiting for a spawned task")
		}
		cancel()
	}
	if got := ps.len(); got != 0 {
		t.Fatalf("len() after draining = %d, want 0", got)
	}
}

func TestPendingSet_ResetAbandonsInFlightTasks(t *testing.T) {
	ps := newPendingSet(4)
	done := make(chan struct{})
	ps.spawn(context.Background(), h(1), func(ctx context.Context) error {
		<-ctx.Done()
		close(done)
		return ctx.Err()
	})

	if got := ps.len(); got != 1 {
		t.Fatalf("len() before reset = %d, want 1", got)
	}

	ps.reset()

	if got := ps.len(); got != 0 {
		t.Fatalf("len() after reset = %d, want 0", got)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("abandoned task never observed cancellation")
	}
}

// --- fakes for an end-to-end Syncer.Sync exercise ---

func fakeHeader(height uint64, prev types.Hash) *block.Header {
	return &block.Header{Version: 1, PrevHash: prev, Height: height, Nonce: height}
}

// buildFakeChain returns n blocks, each linking to the previous by hash,
// starting from an all-zero PrevHash at genesis.
func buildFakeChain(n int) []*block.Block {
	blocks := make([]*block.Block, n)
	prev := types.Hash{}
	for i := 0; i < n; i++ {
		hdr := fakeHeader(uint64(i), prev)
		blk := block.NewBlock(hdr, nil)
		blocks[i] = blk
		prev = blk.Hash()
	}
	return blocks
}

type fakeState struct {
	mu    sync.Mutex
	order []types.Hash
	depth map[types.Hash]int64
}

func newFakeState() *fakeState {
	return &fakeState{depth: make(map[types.Hash]int64)}
}

func (f *fakeState) GetBlockLocator(context.Context) ([]types.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Hash, len(f.order))
	copy(out, f.order)
	return out, nil
}

func (f *fakeState) GetDepth(_ context.Context, hash types.Hash) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.depth[hash]
	return d, ok, nil
}

func (f *fakeState) CommitBlock(_ context.Context, blk *block.Block) (types.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := blk.Hash()
	if _, ok := f.depth[hash]; ok {
		return hash, nil
	}
	wantHeight := len(f.order)
	if int(blk.Height()) != wantHeight {
		return types.Hash{}, fmt.Errorf("fake state: block height %d is not tip+1 (%d)", blk.Height(), wantHeight)
	}
	f.depth[hash] = int64(len(f.order))
	f.order = append(f.order, hash)
	return hash, nil
}

func (f *fakeState) tipHeight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order) - 1
}

type fakeFetcher struct {
	mu     sync.Mutex
	blocks map[types.Hash]*block.Block
}

func newFakeFetcher(chain []*block.Block) *fakeFetcher {
	blocks := make(map[types.Hash]*block.Block, len(chain))
	for _, blk := range chain {
		blocks[blk.Hash()] = blk
	}
	return &fakeFetcher{blocks: blocks}
}

func (f *fakeFetcher) BlockByHash(_ context.Context, hash types.Hash) (*block.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blk, ok := f.blocks[hash]
	if !ok {
		return nil, fmt.Errorf("fake fetcher: unknown block %s", hash)
	}
	return blk, nil
}

type fakeVerifier struct {
	state *fakeState

	mu   sync.Mutex
	fail map[types.Hash]bool
}

func (v *fakeVerifier) Verify(ctx context.Context, blk *block.Block) (types.Hash, error) {
	v.mu.Lock()
	bad := v.fail[blk.Hash()]
	v.mu.Unlock()
	if bad {
		return types.Hash{}, fmt.Errorf("fake verifier rejects %s", blk.Hash())
	}
	return v.state.CommitBlock(ctx, blk)
}

// fakePeerSet simulates a single honest peer that knows the full chain
// and answers every FindBlocks call identically across the fanout,
// always appending one unrelated trailing hash the way a real peer
// sometimes does.
type fakePeerSet struct {
	chain   []types.Hash
	garbage types.Hash
}

func newFakePeerSet(chain []*block.Block) *fakePeerSet {
	hashes := make([]types.Hash, len(chain))
	for i, blk := range chain {
		hashes[i] = blk.Hash()
	}
	return &fakePeerSet{chain: hashes, garbage: h(0xFE)}
}

func (p *fakePeerSet) FindBlocks(_ context.Context, known []types.Hash, _ *types.Hash, fanout int) []FindBlocksResult {
	idx := -1
	for i, chainHash := range p.chain {
		for _, k := range known {
			if chainHash == k && i > idx {
				idx = i
			}
		}
	}

	var hashes []types.Hash
	if idx+1 < len(p.chain) {
		hashes = append(hashes, p.chain[idx+1:]...)
		hashes = append(hashes, p.garbage)
	}

	results := make([]FindBlocksResult, fanout)
	for i := range results {
		results[i] = FindBlocksResult{Hashes: hashes}
	}
	return results
}

func testConfig(genesisHash types.Hash) Config {
	return Config{
		Fanout:               3,
		LookaheadLimit:       4,
		BlockTimeout:         time.Second,
		SyncRestartTimeout:   5 * time.Millisecond,
		BlockDownloadRetries: 3,
		GenesisHash:          genesisHash,
	}
}

// TestSync_LivenessUnderPerfectPeer exercises the genesis-bootstrap path
// together with the main loop: starting from an empty state, Sync must
// eventually commit every block of a short canonical chain, and the tip
// must never move backward while it does.
func TestSync_LivenessUnderPerfectPeer(t *testing.T) {
	chain := buildFakeChain(6)
	state := newFakeState()
	fetcher := newFakeFetcher(chain)
	peers := newFakePeerSet(chain)
	verifier := &fakeVerifier{state: state, fail: map[types.Hash]bool{}}

	s := New(peers, fetcher, state, verifier, testConfig(chain[0].Hash()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Sync(ctx) }()

	deadline := time.After(1500 * time.Millisecond)
	lastHeight := -1
	for {
		height := state.tipHeight()
		if height < lastHeight {
			t.Fatalf("tip height decreased from %d to %d", lastHeight, height)
		}
		lastHeight = height
		if height == len(chain)-1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sync did not reach tip height %d, stuck at %d", len(chain)-1, height)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

// TestSync_RestartsOnUnresolvedVerifierError covers the error-triggered
// restart scenario: a verifier rejection for a hash that is not yet in
// state must cause the syncer to drop its in-flight work and retry,
// without it ever believing the rejected hash was committed.
func TestSync_RestartsOnUnresolvedVerifierError(t *testing.T) {
	chain := buildFakeChain(4)
	badHash := chain[2].Hash()

	state := newFakeState()
	fetcher := newFakeFetcher(chain)
	peers := newFakePeerSet(chain)
	verifier := &fakeVerifier{state: state, fail: map[types.Hash]bool{badHash: true}}

	s := New(peers, fetcher, state, verifier, testConfig(chain[0].Hash()))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = s.Sync(ctx)

	if _, ok, _ := state.GetDepth(context.Background(), badHash); ok {
		t.Fatal("rejected block must never be recorded as committed")
	}
	if height := state.tipHeight(); height >= int(chain[2].Height()) {
		t.Fatalf("tip height = %d, must not pass the rejected block's height %d", height, chain[2].Height())
	}
}
