package tx

import (
	"math"
	"testing"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

func TestTransaction_Hash_Deterministic(t *testing.T) {
	txn := &Transaction{
		Version: 1,
		Inputs:  []Input{{PrevOut: types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}}},
		Outputs: []Output{{Value: 1000, Script: types.Script{Type: types.ScriptTypeP2PKH}}},
	}

	h1 := txn.Hash()
	h2 := txn.Hash()
	if h1 != h2 {
		t.Error("Hash() should be deterministic")
	}
	if h1.IsZero() {
		t.Error("Hash() should not be zero")
	}
}

func TestTransaction_Hash_ChangesWithContent(t *testing.T) {
	tx1 := &Transaction{
		Version: 1,
		Inputs:  []Input{{PrevOut: types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}}},
		Outputs: []Output{{Value: 1000, Script: types.Script{Type: types.ScriptTypeP2PKH}}},
	}
	tx2 := &Transaction{
		Version: 1,
		Inputs:  []Input{{PrevOut: types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}}},
		Outputs: []Output{{Value: 2000, Script: types.Script{Type: types.ScriptTypeP2PKH}}},
	}

	if tx1.Hash() == tx2.Hash() {
		t.Error("different transactions should have different hashes")
	}
}

func TestTransaction_Hash_IgnoresSignature(t *testing.T) {
	txn := &Transaction{
		Version: 1,
		Inputs:  []Input{{PrevOut: types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}}},
		Outputs: []Output{{Value: 1000, Script: types.Script{Type: types.ScriptTypeP2PKH}}},
	}

	h1 := txn.Hash()

	txn.Inputs[0].Signature = []byte("some signature")
	txn.Inputs[0].PubKey = []byte("some key")

	h2 := txn.Hash()

	if h1 != h2 {
		t.Error("Hash() should not change when signatures are added")
	}
}

func TestTransaction_Hash_CoinbaseHeightMakesUniqueID(t *testing.T) {
	coinbase := func(height uint32) *Transaction {
		buf := make([]byte, 4)
		buf[0] = byte(height)
		return &Transaction{
			Version: 1,
			Inputs: []Input{{
				PrevOut:   types.OutPoint{},
				Signature: buf,
			}},
			Outputs: []Output{{Value: 5000, Script: types.Script{Type: types.ScriptTypeP2PKH}}},
		}
	}

	h1 := coinbase(1).Hash()
	h2 := coinbase(2).Hash()
	if h1 == h2 {
		t.Error("coinbase transactions at different heights should hash differently")
	}
}

func TestTransaction_IsCoinbase(t *testing.T) {
	coinbase := &Transaction{
		Inputs: []Input{{PrevOut: types.OutPoint{}}},
	}
	if !coinbase.IsCoinbase() {
		t.Error("transaction with a single zero-PrevOut input should be coinbase")
	}

	regular := &Transaction{
		Inputs: []Input{{PrevOut: types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}}},
	}
	if regular.IsCoinbase() {
		t.Error("transaction with a non-zero PrevOut input should not be coinbase")
	}
}

func TestTransaction_TotalOutputValue(t *testing.T) {
	txn := &Transaction{
		Outputs: []Output{
			{Value: 1000},
			{Value: 2000},
			{Value: 3000},
		},
	}
	got, err := txn.TotalOutputValue()
	if err != nil {
		t.Fatalf("TotalOutputValue() error: %v", err)
	}
	if got != 6000 {
		t.Errorf("TotalOutputValue() = %d, want 6000", got)
	}
}

func TestTransaction_TotalOutputValue_Empty(t *testing.T) {
	txn := &Transaction{}
	got, err := txn.TotalOutputValue()
	if err != nil {
		t.Fatalf("TotalOutputValue() error: %v", err)
	}
	if got != 0 {
		t.Errorf("TotalOutputValue() empty = %d, want 0", got)
	}
}

func TestTransaction_TotalOutputValue_Overflow(t *testing.T) {
	txn := &Transaction{
		Outputs: []Output{
			{Value: math.MaxUint64},
			{Value: 1},
		},
	}
	_, err := txn.TotalOutputValue()
	if err == nil {
		t.Error("TotalOutputValue() should return error on overflow")
	}
}
