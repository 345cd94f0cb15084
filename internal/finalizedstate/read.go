package finalizedstate

import (
	"encoding/binary"
	"encoding/json"

	"github.com/Klingon-tech/klingnet-chain/internal/nct"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/tx"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// BlockHeader resolves hh and returns the stored header, or false if
// absent.
func (s *Store) BlockHeader(hh types.HashOrHeight) (*block.Header, bool) {
	height, ok := s.resolve(hh)
	if !ok {
		return nil, false
	}
	data, err := s.db.Get(heightKey(prefixHeaderByHeight, height))
	if err != nil {
		return nil, false
	}
	h, err := unmarshalHeader(data)
	if err != nil {
		invariantViolation("corrupt header at height %d: %v", height, err)
	}
	return h, true
}

// txCount returns the number of transactions stored for height, per the
// tx_count_by_height column family this implementation adds so Block
// doesn't need to probe indices until a miss.
func (s *Store) txCount(height types.Height) (uint16, bool) {
	data, err := s.db.Get(heightKey(prefixTxCountByHeight, height))
	if err != nil {
		return 0, false
	}
	if len(data) != 2 {
		invariantViolation("corrupt tx count at height %d", height)
	}
	return binary.BigEndian.Uint16(data), true
}

// Block resolves hh, fetches its header, and loads every transaction by
// its stored dense index.
func (s *Store) Block(hh types.HashOrHeight) (*block.Block, bool) {
	height, ok := s.resolve(hh)
	if !ok {
		return nil, false
	}
	header, ok := s.BlockHeader(types.HashOrHeightFromHeight(height))
	if !ok {
		return nil, false
	}
	count, ok := s.txCount(height)
	if !ok {
		invariantViolation("header at height %d has no tx count", height)
	}
	txs := make([]*tx.Transaction, 0, count)
	for i := uint16(0); i < count; i++ {
		loc := types.TransactionLocation{Height: height, Index: i}
		t, ok := s.transactionAt(loc)
		if !ok {
			invariantViolation("missing transaction %s within declared count %d", loc, count)
		}
		txs = append(txs, t)
	}
	return block.NewBlock(header, txs), true
}

func (s *Store) transactionAt(loc types.TransactionLocation) (*tx.Transaction, bool) {
	data, err := s.db.Get(txLocKey(prefixTxByLoc, loc))
	if err != nil {
		return nil, false
	}
	var t tx.Transaction
	if err := json.Unmarshal(data, &t); err != nil {
		invariantViolation("corrupt transaction at %s: %v", loc, err)
	}
	return &t, true
}

// Transaction returns a transaction and the height that contains it, by
// transaction hash.
func (s *Store) Transaction(hash types.Hash) (*tx.Transaction, types.Height, bool) {
	loc, ok := s.TransactionLocation(hash)
	if !ok {
		return nil, 0, false
	}
	t, ok := s.transactionAt(loc)
	if !ok {
		invariantViolation("tx_loc_by_hash has %s but tx_by_loc is missing it", hash)
	}
	return t, loc.Height, true
}

// TransactionLocation returns the stored location of a transaction by
// hash.
func (s *Store) TransactionLocation(hash types.Hash) (types.TransactionLocation, bool) {
	data, err := s.db.Get(hashKey(prefixTxLocByHash, hash))
	if err != nil {
		return types.TransactionLocation{}, false
	}
	return decodeTxLoc(data), true
}

// TransactionHashesForBlock resolves hh and returns its transaction
// hashes in tx-index order.
func (s *Store) TransactionHashesForBlock(hh types.HashOrHeight) ([]types.Hash, bool) {
	height, ok := s.resolve(hh)
	if !ok {
		return nil, false
	}
	count, ok := s.txCount(height)
	if !ok {
		invariantViolation("header at height %d has no tx count", height)
	}
	hashes := make([]types.Hash, 0, count)
	for i := uint16(0); i < count; i++ {
		loc := types.TransactionLocation{Height: height, Index: i}
		data, err := s.db.Get(txLocKey(prefixHashByTxLoc, loc))
		if err != nil {
			invariantViolation("missing hash_by_tx_loc entry for %s within declared count %d", loc, count)
		}
		var hash types.Hash
		copy(hash[:], data)
		hashes = append(hashes, hash)
	}
	return hashes, true
}

// treeByHashOrHeight is shared by the three pool-specific tree accessors.
func (s *Store) treeByHashOrHeight(prefix []byte, hh types.HashOrHeight) (*nct.Tree, bool) {
	height, ok := s.resolve(hh)
	if !ok {
		return nil, false
	}
	data, err := s.db.Get(heightKey(prefix, height))
	if err != nil {
		return nil, false
	}
	t, err := nct.Unmarshal(data)
	if err != nil {
		invariantViolation("corrupt note commitment tree at height %d: %v", height, err)
	}
	return t, true
}

// SproutTree returns the sprout note-commitment tree as of hh.
func (s *Store) SproutTree(hh types.HashOrHeight) (*nct.Tree, bool) {
	return s.treeByHashOrHeight(prefixSproutTree, hh)
}

// SaplingTree returns the sapling note-commitment tree as of hh.
func (s *Store) SaplingTree(hh types.HashOrHeight) (*nct.Tree, bool) {
	return s.treeByHashOrHeight(prefixSaplingTree, hh)
}

// OrchardTree returns the orchard note-commitment tree as of hh.
func (s *Store) OrchardTree(hh types.HashOrHeight) (*nct.Tree, bool) {
	return s.treeByHashOrHeight(prefixOrchardTree, hh)
}

// Utxo returns the unspent output at outLoc, if it is still unspent.
func (s *Store) Utxo(outLoc types.OutputLocation) (types.Utxo, bool) {
	data, err := s.db.Get(outLocKey(outLoc))
	if err != nil {
		return types.Utxo{}, false
	}
	var u types.Utxo
	if err := json.Unmarshal(data, &u); err != nil {
		invariantViolation("corrupt utxo at %s: %v", outLoc, err)
	}
	return u, true
}

// UtxoByOutpoint resolves the wire-level OutPoint to its OutputLocation
// and then to the Utxo, if still unspent.
func (s *Store) UtxoByOutpoint(op types.OutPoint) (types.Utxo, types.OutputLocation, bool) {
	data, err := s.db.Get(outpointKey(op))
	if err != nil {
		return types.Utxo{}, types.OutputLocation{}, false
	}
	loc := decodeOutputLoc(data)
	u, ok := s.Utxo(loc)
	return u, loc, ok
}

// Balance returns the aggregate balance and first-credit location for an
// address, if it has ever been credited.
func (s *Store) Balance(addr types.Address) (types.AddressBalanceLocation, bool) {
	data, err := s.db.Get(addressKey(addr))
	if err != nil {
		return types.AddressBalanceLocation{}, false
	}
	var bal types.AddressBalanceLocation
	if err := json.Unmarshal(data, &bal); err != nil {
		invariantViolation("corrupt balance for address %s: %v", addr, err)
	}
	return bal, true
}

// ValuePool returns the current per-pool running totals.
func (s *Store) ValuePool() types.ValueBalance {
	data, err := s.db.Get(keyValuePool)
	if err != nil {
		return types.ValueBalance{}
	}
	var vb types.ValueBalance
	if err := json.Unmarshal(data, &vb); err != nil {
		invariantViolation("corrupt value pool: %v", err)
	}
	return vb
}
