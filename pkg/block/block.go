// Package block defines block types and the transaction merkle root.
package block

import (
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Block represents a block in the chain.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock creates a new block with the given header and transactions.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	return &Block{
		Header:       header,
		Transactions: txs,
	}
}

// Hash returns the block's identifying hash, which is its header's hash.
func (b *Block) Hash() types.Hash {
	return b.Header.Hash()
}

// Height returns the block's height.
func (b *Block) Height() types.Height {
	return types.Height(b.Header.Height)
}
