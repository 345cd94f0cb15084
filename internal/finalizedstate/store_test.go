package finalizedstate

import (
	"testing"

	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func addrN(n byte) types.Address {
	var a types.Address
	a[types.AddressSize-1] = n
	return a
}

func p2pkhScript(addr types.Address) types.Script {
	return types.Script{Type: types.ScriptTypeP2PKH, Data: addr.Bytes()}
}

func coinbaseTx(height uint64, to types.Address, value uint64) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs: []tx.Input{{
			Signature: []byte{byte(height)},
		}},
		Outputs: []tx.Output{{Value: value, Script: p2pkhScript(to)}},
	}
}

func spendTx(from types.OutPoint, to types.Address, value uint64) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{PrevOut: from, Signature: []byte{0x01}, PubKey: []byte{0x02}}},
		Outputs: []tx.Output{{Value: value, Script: p2pkhScript(to)}},
	}
}

func header(height uint64, prev types.Hash, txs []*tx.Transaction) *block.Header {
	hashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		hashes[i] = t.Hash()
	}
	return &block.Header{
		Version:    1,
		PrevHash:   prev,
		MerkleRoot: block.ComputeMerkleRoot(hashes),
		Timestamp:  uint64(1700000000 + height),
		Height:     height,
		Nonce:      height,
	}
}

func buildBlock(height uint64, prev types.Hash, txs ...*tx.Transaction) *block.Block {
	return block.NewBlock(header(height, prev, txs), txs)
}

func genesisBlock() *block.Block {
	return buildBlock(0, types.Hash{}, coinbaseTx(0, addrN(0xFF), 1000))
}

// testFinalizedStore runs the shared invariant suite against a Store
// backed by db.
func testFinalizedStore(t *testing.T, db storage.DB) {
	t.Helper()

	store, err := Open(db)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if !store.IsEmpty() {
		t.Fatal("fresh store should be empty")
	}
	if got := store.FinalizedTipHash(); !got.IsZero() {
		t.Errorf("FinalizedTipHash() on empty store = %s, want zero", got)
	}

	t.Run("Genesis", func(t *testing.T) {
		genesis := genesisBlock()
		hash, err := store.WriteBlock(genesis, PrevTrees{}, "test")
		if err != nil {
			t.Fatalf("WriteBlock(genesis) error: %v", err)
		}
		if hash != genesis.Hash() {
			t.Errorf("WriteBlock returned %s, want %s", hash, genesis.Hash())
		}

		tipHeight, tipHash, ok := store.Tip()
		if !ok || tipHeight != 0 || tipHash != genesis.Hash() {
			t.Errorf("Tip() = (%d, %s, %v), want (0, %s, true)", tipHeight, tipHash, ok, genesis.Hash())
		}

		got, ok := store.Block(types.HashOrHeightFromHeight(0))
		if !ok {
			t.Fatal("Block(0) not found after genesis commit")
		}
		if got.Hash() != genesis.Hash() {
			t.Errorf("Block(0).Hash() = %s, want %s", got.Hash(), genesis.Hash())
		}

		if pool := store.ValuePool(); !pool.IsZero() {
			t.Errorf("ValuePool() after genesis = %s, want zero", pool)
		}

		sprout, ok := store.SproutTree(types.HashOrHeightFromHeight(0))
		if !ok || !sprout.IsEmpty() {
			t.Error("sprout tree at genesis should be empty")
		}
		sapling, ok := store.SaplingTree(types.HashOrHeightFromHeight(0))
		if !ok || !sapling.IsEmpty() {
			t.Error("sapling tree at genesis should be empty")
		}
		orchard, ok := store.OrchardTree(types.HashOrHeightFromHeight(0))
		if !ok || !orchard.IsEmpty() {
			t.Error("orchard tree at genesis should be empty")
		}

		if _, ok := store.UtxoByOutpoint(types.OutPoint{TxHash: genesis.Transactions[0].Hash(), Index: 0}); ok {
			t.Error("genesis coinbase output must not be indexed as a UTXO")
		}
	})

	t.Run("DuplicateGenesisRejected", func(t *testing.T) {
		genesis := genesisBlock()
		if _, err := store.WriteBlock(genesis, PrevTrees{}, "test"); err == nil {
			t.Error("writing genesis a second time should fail")
		}
	})

	addrA := addrN(0xA1)
	addrB := addrN(0xB2)
	var block1 *block.Block
	var spendOutLoc types.OutputLocation

	t.Run("IntraBlockSpend", func(t *testing.T) {
		_, tipHash, _ := store.Tip()

		cb := coinbaseTx(1, addrA, 1000)
		spend := spendTx(types.OutPoint{TxHash: cb.Hash(), Index: 0}, addrB, 1000)
		block1 = buildBlock(1, tipHash, cb, spend)

		hash, err := store.WriteBlock(block1, PrevTrees{}, "test")
		if err != nil {
			t.Fatalf("WriteBlock(block1) error: %v", err)
		}
		if hash != block1.Hash() {
			t.Fatalf("WriteBlock returned %s, want %s", hash, block1.Hash())
		}

		if _, ok := store.UtxoByOutpoint(types.OutPoint{TxHash: cb.Hash(), Index: 0}); ok {
			t.Error("coinbase output spent within the block should not be a live UTXO")
		}

		spendOutLoc = types.OutputLocation{
			TransactionLocation: types.TransactionLocation{Height: 1, Index: 1},
			Output:              0,
		}
		utxo, ok := store.Utxo(spendOutLoc)
		if !ok {
			t.Fatal("expected live UTXO for spend tx output")
		}
		if utxo.Value != 1000 {
			t.Errorf("utxo.Value = %d, want 1000", utxo.Value)
		}

		balA, ok := store.Balance(addrA)
		if !ok {
			t.Error("addrA should have a balance record (credited then fully spent)")
		} else if balA.Balance != 0 {
			t.Errorf("addrA balance = %d, want 0", balA.Balance)
		}

		balB, ok := store.Balance(addrB)
		if !ok || balB.Balance != 1000 {
			t.Errorf("addrB balance = (%d, %v), want (1000, true)", balB.Balance, ok)
		}

		pool := store.ValuePool()
		if pool.Transparent != 1000 {
			t.Errorf("ValuePool().Transparent = %d, want 1000", pool.Transparent)
		}
	})

	t.Run("BijectionAndTxOrder", func(t *testing.T) {
		tipHeight, _, _ := store.Tip()
		for h := types.Height(0); h <= tipHeight; h++ {
			hash, ok := store.Hash(h)
			if !ok {
				t.Fatalf("Hash(%d) not found", h)
			}
			gotHeight, ok := store.Height(hash)
			if !ok || gotHeight != h {
				t.Errorf("Height(Hash(%d)) = (%d, %v), want (%d, true)", h, gotHeight, ok, h)
			}
		}

		hashes, ok := store.TransactionHashesForBlock(types.HashOrHeightFromHeight(1))
		if !ok || len(hashes) != 2 {
			t.Fatalf("TransactionHashesForBlock(1) = (%v, %v), want 2 hashes", hashes, ok)
		}
		if hashes[0] != block1.Transactions[0].Hash() || hashes[1] != block1.Transactions[1].Hash() {
			t.Error("transaction hashes must be returned in tx-index order")
		}
	})

	t.Run("ValuePoolNonNegative", func(t *testing.T) {
		pool := store.ValuePool()
		if !pool.IsNonNegative() {
			t.Errorf("value pool has a negative component: %s", pool)
		}
	})

	t.Run("HashOrHeightRoundTrip", func(t *testing.T) {
		hash, ok := store.Hash(1)
		if !ok {
			t.Fatal("Hash(1) not found")
		}
		byHash, ok1 := store.Block(types.HashOrHeightFromHash(hash))
		byHeight, ok2 := store.Block(types.HashOrHeightFromHeight(1))
		if !ok1 || !ok2 {
			t.Fatal("Block() lookup failed by hash or height")
		}
		if byHash.Hash() != byHeight.Hash() {
			t.Error("Block(Hash) and Block(Height) disagree")
		}
	})
}

func TestFinalizedStore_Memory(t *testing.T) {
	testFinalizedStore(t, storage.NewMemory())
}

func TestFinalizedStore_Badger(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()
	testFinalizedStore(t, db)
}
