package types

import "fmt"

// OutPoint is the wire-level reference to a transparent output: a
// transaction hash plus the output's index within that transaction.
// FinalizedStore resolves an OutPoint to an OutputLocation via
// out_loc_by_outpoint before it can look up the Utxo itself.
type OutPoint struct {
	TxHash Hash   `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

// IsZero returns true if the outpoint has a zero hash and zero index.
func (o OutPoint) IsZero() bool {
	return o.TxHash.IsZero() && o.Index == 0
}

// String returns "txhash:index" in hex.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash.String(), o.Index)
}
