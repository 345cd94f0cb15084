package genesis

import (
	"testing"

	"github.com/Klingon-tech/klingnet-chain/config"
)

func TestBlock_DeterministicAcrossAllocOrder(t *testing.T) {
	gen := &config.Genesis{
		Timestamp: 1700000000,
		Alloc: map[string]uint64{
			"1a2b3c4d5e6f7089a1b2c3d4e5f60718293a4b5c": 100,
			"d4e5f60718293a4b5c1a2b3c4d5e6f7089a1b2c3": 200,
		},
	}

	hash1, err := Hash(gen)
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	hash2, err := Hash(gen)
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	if hash1 != hash2 {
		t.Fatalf("Hash() not deterministic: %s != %s", hash1, hash2)
	}
}

func TestBlock_HeightZeroZeroPrevHash(t *testing.T) {
	gen := &config.Genesis{Timestamp: 1700000000, Alloc: map[string]uint64{
		"1a2b3c4d5e6f7089a1b2c3d4e5f60718293a4b5c": 100,
	}}

	blk, err := Block(gen)
	if err != nil {
		t.Fatalf("Block() error: %v", err)
	}
	if blk.Header.Height != 0 {
		t.Errorf("Height = %d, want 0", blk.Header.Height)
	}
	if !blk.Header.PrevHash.IsZero() {
		t.Errorf("PrevHash = %s, want zero", blk.Header.PrevHash)
	}
	if len(blk.Transactions) != 1 || !blk.Transactions[0].IsCoinbase() {
		t.Fatalf("expected a single coinbase transaction")
	}
}

func TestBlock_EmptyAllocStillProducesValidBlock(t *testing.T) {
	gen := &config.Genesis{Timestamp: 1700000000}
	blk, err := Block(gen)
	if err != nil {
		t.Fatalf("Block() error: %v", err)
	}
	if len(blk.Transactions[0].Outputs) != 1 {
		t.Fatalf("expected one placeholder output, got %d", len(blk.Transactions[0].Outputs))
	}
}

func TestBlock_NilGenesisErrors(t *testing.T) {
	if _, err := Block(nil); err == nil {
		t.Fatal("expected error for nil genesis")
	}
}
