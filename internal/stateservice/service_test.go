package stateservice

import (
	"context"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/finalizedstate"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func testAddr() types.Address {
	var a types.Address
	a[types.AddressSize-1] = 0x01
	return a
}

func testCoinbase(height uint64, value uint64) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{Signature: []byte{byte(height)}}},
		Outputs: []tx.Output{{Value: value, Script: types.Script{Type: types.ScriptTypeP2PKH, Data: testAddr().Bytes()}}},
	}
}

func testBlock(height uint64, prev types.Hash) *block.Block {
	coinbase := testCoinbase(height, 50)
	txHashes := []types.Hash{coinbase.Hash()}
	hdr := &block.Header{
		Version:    1,
		PrevHash:   prev,
		MerkleRoot: block.ComputeMerkleRoot(txHashes),
		Timestamp:  1700000000 + height,
		Height:     height,
	}
	return block.NewBlock(hdr, []*tx.Transaction{coinbase})
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := finalizedstate.Open(storage.NewMemory())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return New(store)
}

func TestCommitBlock_InOrderCommitsImmediately(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	genesis := testBlock(0, types.Hash{})
	if _, err := svc.CommitBlock(ctx, genesis); err != nil {
		t.Fatalf("commit genesis: %v", err)
	}

	blk1 := testBlock(1, genesis.Hash())
	if _, err := svc.CommitBlock(ctx, blk1); err != nil {
		t.Fatalf("commit block 1: %v", err)
	}

	depth, ok, err := svc.GetDepth(ctx, genesis.Hash())
	if err != nil || !ok {
		t.Fatalf("GetDepth(genesis) = %v, %v, %v", depth, ok, err)
	}
	if depth != 1 {
		t.Errorf("genesis depth = %d, want 1", depth)
	}
}

func TestCommitBlock_OutOfOrderHoldsInPendingThenFolds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	genesis := testBlock(0, types.Hash{})
	blk1 := testBlock(1, genesis.Hash())
	blk2 := testBlock(2, blk1.Hash())

	if _, err := svc.CommitBlock(ctx, genesis); err != nil {
		t.Fatalf("commit genesis: %v", err)
	}

	// blk2 arrives before blk1: it cannot commit yet, but should not error.
	if _, err := svc.CommitBlock(ctx, blk2); err != nil {
		t.Fatalf("commit blk2 out of order: %v", err)
	}
	if _, _, ok := svc.store.Tip(); !ok {
		t.Fatalf("expected tip to exist after genesis")
	}
	if height, _, _ := svc.store.Tip(); height != 0 {
		t.Fatalf("tip height = %d, want 0 (blk2 should still be pending)", height)
	}

	depth, ok, err := svc.GetDepth(ctx, blk2.Hash())
	if err != nil || !ok {
		t.Fatalf("GetDepth(blk2) while pending = %v, %v, %v", depth, ok, err)
	}

	// blk1 arrives: both blk1 and blk2 should now fold into the store.
	if _, err := svc.CommitBlock(ctx, blk1); err != nil {
		t.Fatalf("commit blk1: %v", err)
	}
	height, hash, ok := svc.store.Tip()
	if !ok || height != 2 || hash != blk2.Hash() {
		t.Fatalf("tip = (%d, %s, %v), want (2, %s, true)", height, hash, ok, blk2.Hash())
	}
	if len(svc.pending) != 0 {
		t.Errorf("pending still has %d entries, want 0", len(svc.pending))
	}
}

func TestCommitBlock_DuplicateIsNoop(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	genesis := testBlock(0, types.Hash{})
	if _, err := svc.CommitBlock(ctx, genesis); err != nil {
		t.Fatalf("commit genesis: %v", err)
	}
	if _, err := svc.CommitBlock(ctx, genesis); err != nil {
		t.Fatalf("re-commit genesis: %v", err)
	}
	if height, _, _ := svc.store.Tip(); height != 0 {
		t.Fatalf("tip height = %d, want 0", height)
	}
}

func TestGetBlockLocator_EmptyStoreReturnsSentinel(t *testing.T) {
	svc := newTestService(t)
	locator, err := svc.GetBlockLocator(context.Background())
	if err != nil {
		t.Fatalf("GetBlockLocator() error: %v", err)
	}
	if len(locator) != 1 || !locator[0].IsZero() {
		t.Fatalf("locator = %v, want [zero hash]", locator)
	}
}

func TestGetBlockLocator_IncludesTipAndGenesis(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	prev := types.Hash{}
	var tip *block.Block
	for h := uint64(0); h < 10; h++ {
		blk := testBlock(h, prev)
		if _, err := svc.CommitBlock(ctx, blk); err != nil {
			t.Fatalf("commit height %d: %v", h, err)
		}
		prev = blk.Hash()
		tip = blk
	}

	locator, err := svc.GetBlockLocator(ctx)
	if err != nil {
		t.Fatalf("GetBlockLocator() error: %v", err)
	}
	if locator[0] != tip.Hash() {
		t.Fatalf("locator[0] = %s, want tip hash %s", locator[0], tip.Hash())
	}
	genesisHash, _ := svc.store.Hash(types.GenesisHeight)
	if locator[len(locator)-1] != genesisHash {
		t.Fatalf("locator does not end at genesis: %v", locator)
	}
}

func TestLocateBlocks_ReturnsHashesAfterKnownAncestor(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var blocks []*block.Block
	prev := types.Hash{}
	for h := uint64(0); h < 5; h++ {
		blk := testBlock(h, prev)
		if _, err := svc.CommitBlock(ctx, blk); err != nil {
			t.Fatalf("commit height %d: %v", h, err)
		}
		blocks = append(blocks, blk)
		prev = blk.Hash()
	}

	got := svc.LocateBlocks([]types.Hash{blocks[1].Hash()}, nil)
	want := []types.Hash{blocks[2].Hash(), blocks[3].Hash(), blocks[4].Hash()}
	if len(got) != len(want) {
		t.Fatalf("LocateBlocks() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("LocateBlocks()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestLocateBlocks_StopsAtStopHash(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var blocks []*block.Block
	prev := types.Hash{}
	for h := uint64(0); h < 5; h++ {
		blk := testBlock(h, prev)
		if _, err := svc.CommitBlock(ctx, blk); err != nil {
			t.Fatalf("commit height %d: %v", h, err)
		}
		blocks = append(blocks, blk)
		prev = blk.Hash()
	}

	stop := blocks[2].Hash()
	got := svc.LocateBlocks(nil, &stop)
	if len(got) != 3 || got[len(got)-1] != stop {
		t.Fatalf("LocateBlocks() = %v, want to end at %s", got, stop)
	}
}

func TestBlockByHash_FindsCommittedBlock(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	genesis := testBlock(0, types.Hash{})
	if _, err := svc.CommitBlock(ctx, genesis); err != nil {
		t.Fatalf("commit genesis: %v", err)
	}

	got, ok := svc.BlockByHash(genesis.Hash())
	if !ok || got.Hash() != genesis.Hash() {
		t.Fatalf("BlockByHash() = %v, %v, want genesis", got, ok)
	}

	if _, ok := svc.BlockByHash(types.Hash{0xAB}); ok {
		t.Error("BlockByHash() found an unknown hash")
	}
}

func TestGetDepth_UnknownHashNotOk(t *testing.T) {
	svc := newTestService(t)
	_, ok, err := svc.GetDepth(context.Background(), types.Hash{0xAB})
	if err != nil {
		t.Fatalf("GetDepth() error: %v", err)
	}
	if ok {
		t.Errorf("GetDepth() ok = true for an unknown hash")
	}
}
