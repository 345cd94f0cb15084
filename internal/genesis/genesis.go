// Package genesis builds the genesis block from a chain's genesis
// configuration, so callers can obtain both the block FinalizedStore
// expects at height 0 and the hash that identifies the chain on the wire.
package genesis

import (
	"fmt"
	"sort"

	"github.com/Klingon-tech/klingnet-chain/config"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Block builds the genesis block described by gen: height 0, a zero
// PrevHash, and a single coinbase transaction distributing gen.Alloc.
func Block(gen *config.Genesis) (*block.Block, error) {
	if gen == nil {
		return nil, fmt.Errorf("genesis: config is nil")
	}

	coinbase, err := allocCoinbase(gen.Alloc)
	if err != nil {
		return nil, fmt.Errorf("genesis: build coinbase: %w", err)
	}

	txHashes := []types.Hash{coinbase.Hash()}
	hdr := &block.Header{
		Version:    1,
		PrevHash:   types.Hash{},
		MerkleRoot: block.ComputeMerkleRoot(txHashes),
		Timestamp:  gen.Timestamp,
		Height:     0,
	}
	return block.NewBlock(hdr, []*tx.Transaction{coinbase}), nil
}

// Hash returns the identifying hash of the genesis block described by gen.
// This is distinct from (*config.Genesis).Hash, which hashes the
// configuration itself for chain-identity comparisons; this hash is what
// the Syncer and FinalizedStore deal in.
func Hash(gen *config.Genesis) (types.Hash, error) {
	blk, err := Block(gen)
	if err != nil {
		return types.Hash{}, err
	}
	return blk.Hash(), nil
}

// allocCoinbase turns an address -> balance allocation map into a single
// coinbase transaction whose only input has a zero PrevOut. Addresses are sorted so the
// resulting transaction, and therefore the genesis hash, is deterministic.
func allocCoinbase(alloc map[string]uint64) (*tx.Transaction, error) {
	addrs := make([]string, 0, len(alloc))
	for addr := range alloc {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	outputs := make([]tx.Output, 0, len(addrs))
	for _, addrStr := range addrs {
		addr, err := types.HexToAddress(addrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid alloc address %q: %w", addrStr, err)
		}
		outputs = append(outputs, tx.Output{
			Value:  alloc[addrStr],
			Script: types.Script{Type: types.ScriptTypeP2PKH, Data: addr.Bytes()},
		})
	}
	if len(outputs) == 0 {
		outputs = append(outputs, tx.Output{
			Value:  0,
			Script: types.Script{Type: types.ScriptTypeP2PKH, Data: make([]byte, types.AddressSize)},
		})
	}

	return &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{PrevOut: types.OutPoint{}}},
		Outputs: outputs,
	}, nil
}
