package finalizedstate

import "github.com/Klingon-tech/klingnet-chain/pkg/types"

// scriptAddress extracts the owning address from a locking script:
// P2PKH and P2SH scripts both carry a 20-byte address as the first
// bytes of Data.
// Scripts this store doesn't recognize as address-bearing don't
// contribute to balance_by_address — only to the UTXO and value-pool
// column families.
func scriptAddress(s types.Script) (types.Address, bool) {
	switch s.Type {
	case types.ScriptTypeP2PKH, types.ScriptTypeP2SH:
		if len(s.Data) >= types.AddressSize {
			var addr types.Address
			copy(addr[:], s.Data[:types.AddressSize])
			return addr, true
		}
	}
	return types.Address{}, false
}
