package finalizedstate

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/log"
	"github.com/Klingon-tech/klingnet-chain/internal/nct"
	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// PrevTrees carries the three pools' note-commitment trees as of the
// block immediately before the one being written. WriteBlock derives the
// new per-height trees by appending this block's notes to these.
// Ignored for the genesis block, which always starts from three empty
// trees regardless of what the caller passes.
type PrevTrees struct {
	Sprout  *nct.Tree
	Sapling *nct.Tree
	Orchard *nct.Tree
}

// newOutput pairs a transaction output with the OutputLocation it will
// occupy, used while staging both the UTXO and the address-balance
// updates for a single pass over the block's outputs.
type newOutput struct {
	loc   types.OutputLocation
	value int64
	utxo  types.Utxo
}

// WriteBlock atomically commits blk as the new tip. The caller must have
// already run consensus verification: blk.Height() must equal tip+1, or
// blk must be the genesis block (PrevHash all-zero) with the store empty.
// source identifies where the block came from (e.g. "sync", "rpc") for
// logging only.
//
// Every affected column family is staged into a single storage.Batch; any
// error aborts the whole batch, so WriteBlock never leaves partial state.
func (s *Store) WriteBlock(blk *block.Block, prevTrees PrevTrees, source string) (types.Hash, error) {
	height := blk.Height()
	hash := blk.Hash()
	isGenesis := blk.Header.PrevHash.IsZero()

	tipHeight, tipHash, hasTip := s.tip()
	switch {
	case !hasTip:
		if !isGenesis || height != types.GenesisHeight {
			return types.Hash{}, fmt.Errorf("finalizedstate: first block written must be genesis at height 0, got height %d prevHash=%s", height, blk.Header.PrevHash)
		}
	default:
		if isGenesis {
			return types.Hash{}, fmt.Errorf("finalizedstate: genesis block rejected, store already has tip %d", tipHeight)
		}
		if height != tipHeight+1 {
			return types.Hash{}, fmt.Errorf("finalizedstate: block height %d is not tip+1 (tip=%d)", height, tipHeight)
		}
		if blk.Header.PrevHash != tipHash {
			return types.Hash{}, fmt.Errorf("finalizedstate: block prevHash %s does not match tip hash %s", blk.Header.PrevHash, tipHash)
		}
	}
	if s.ContainsHash(hash) {
		return types.Hash{}, fmt.Errorf("finalizedstate: block %s already written", hash)
	}

	batcherDB, ok := s.db.(storage.Batcher)
	if !ok {
		// Open() already enforced this; a type switch failure here would
		// mean s.db's concrete type changed underneath the Store.
		invariantViolation("database %T lost its Batcher implementation after Open", s.db)
	}
	batch := batcherDB.NewBatch()

	newOutputsByOutpoint := make(map[types.OutPoint]newOutput)
	var newOutputsOrdered []newOutput
	for i, t := range blk.Transactions {
		txHash := t.Hash()
		for oi, out := range t.Outputs {
			loc := types.OutputLocation{
				TransactionLocation: types.TransactionLocation{Height: height, Index: uint16(i)},
				Output:              uint32(oi),
			}
			no := newOutput{
				loc:   loc,
				value: int64(out.Value),
				utxo: types.Utxo{
					Value:         int64(out.Value),
					Script:        out.Script,
					IsCoinbase:    t.IsCoinbase(),
					CreatedHeight: height,
				},
			}
			op := types.OutPoint{TxHash: txHash, Index: uint32(oi)}
			newOutputsByOutpoint[op] = no
			newOutputsOrdered = append(newOutputsOrdered, no)
		}
	}

	type spentUtxo struct {
		op  types.OutPoint
		loc types.OutputLocation
		utx types.Utxo
	}
	var spent []spentUtxo

	if !isGenesis {
		for _, t := range blk.Transactions {
			if t.IsCoinbase() {
				continue
			}
			for _, in := range t.Inputs {
				// Resolve via this block's own new outputs first: an
				// intra-block spend never touches utxo_by_out_loc on disk,
				// since the matching Put and Delete land in the same batch.
				if no, ok := newOutputsByOutpoint[in.PrevOut]; ok {
					spent = append(spent, spentUtxo{op: in.PrevOut, loc: no.loc, utx: no.utxo})
					continue
				}
				utx, loc, ok := s.UtxoByOutpoint(in.PrevOut)
				if !ok {
					invariantViolation("block %s at height %d spends unknown outpoint %s", hash, height, in.PrevOut)
				}
				spent = append(spent, spentUtxo{op: in.PrevOut, loc: loc, utx: utx})
			}
		}
	}

	changedAddrs := make(map[types.Address]struct{})
	for _, no := range newOutputsOrdered {
		if addr, ok := scriptAddress(no.utxo.Script); ok {
			changedAddrs[addr] = struct{}{}
		}
	}
	for _, sp := range spent {
		if addr, ok := scriptAddress(sp.utx.Script); ok {
			changedAddrs[addr] = struct{}{}
		}
	}

	balances := make(map[types.Address]types.AddressBalanceLocation, len(changedAddrs))
	for addr := range changedAddrs {
		if bal, ok := s.Balance(addr); ok {
			balances[addr] = bal
		}
	}

	// --- stage header, hash/height indexes, and every transaction ---

	headerData, err := marshalHeader(blk.Header)
	if err != nil {
		return types.Hash{}, fmt.Errorf("finalizedstate: marshal header: %w", err)
	}
	batch.Put(heightKey(prefixHashByHeight, height), hash.Bytes())
	batch.Put(hashKey(prefixHeightByHash, hash), encodeHeight(height))
	batch.Put(heightKey(prefixHeaderByHeight, height), headerData)

	var countBuf [2]byte
	if len(blk.Transactions) > 1<<16-1 {
		invariantViolation("block %s has %d transactions, exceeds uint16 index range", hash, len(blk.Transactions))
	}
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(blk.Transactions)))
	batch.Put(heightKey(prefixTxCountByHeight, height), countBuf[:])

	for i, t := range blk.Transactions {
		loc := types.TransactionLocation{Height: height, Index: uint16(i)}
		txHash := t.Hash()

		txData, err := json.Marshal(t)
		if err != nil {
			return types.Hash{}, fmt.Errorf("finalizedstate: marshal tx %s: %w", txHash, err)
		}
		batch.Put(txLocKey(prefixTxByLoc, loc), txData)
		batch.Put(txLocKey(prefixHashByTxLoc, loc), txHash.Bytes())
		batch.Put(hashKey(prefixTxLocByHash, txHash), encodeTxLoc(loc))
	}

	if isGenesis {
		empty := nct.Empty()
		emptyData, err := empty.Marshal()
		if err != nil {
			return types.Hash{}, fmt.Errorf("finalizedstate: marshal empty tree: %w", err)
		}
		if !empty.IsEmpty() {
			invariantViolation("nct.Empty() is not empty")
		}
		batch.Put(heightKey(prefixSproutTree, height), emptyData)
		batch.Put(heightKey(prefixSaplingTree, height), emptyData)
		batch.Put(heightKey(prefixOrchardTree, height), emptyData)
	} else {
		for _, no := range newOutputsOrdered {
			data, err := json.Marshal(no.utxo)
			if err != nil {
				return types.Hash{}, fmt.Errorf("finalizedstate: marshal utxo %s: %w", no.loc, err)
			}
			batch.Put(outLocKey(no.loc), data)
		}
		for op, no := range newOutputsByOutpoint {
			batch.Put(outpointKey(op), encodeOutputLoc(no.loc))
		}
		for _, sp := range spent {
			// Always issue the delete even for an intra-block spend: the
			// matching Put happened earlier in this same batch (the new
			// outputs loop above), so Put-then-Delete nets out to "never
			// existed" once the batch commits.
			batch.Delete(outLocKey(sp.loc))
			batch.Delete(outpointKey(sp.op))
		}

		addrDelta := make(map[types.Address]int64, len(changedAddrs))
		firstOutputForAddr := make(map[types.Address]types.OutputLocation)
		for _, no := range newOutputsOrdered {
			addr, ok := scriptAddress(no.utxo.Script)
			if !ok {
				continue
			}
			addrDelta[addr] += no.value
			if _, seen := firstOutputForAddr[addr]; !seen {
				firstOutputForAddr[addr] = no.loc
			}
		}
		for _, sp := range spent {
			addr, ok := scriptAddress(sp.utx.Script)
			if !ok {
				continue
			}
			addrDelta[addr] -= sp.utx.Value
		}
		for addr, delta := range addrDelta {
			prior := balances[addr]
			newBal := types.AddressBalanceLocation{
				Balance:     prior.Balance + delta,
				FirstOutput: prior.FirstOutput,
			}
			if newBal.Balance < 0 {
				invariantViolation("address %s balance would go negative (%d) at block %s", addr, newBal.Balance, hash)
			}
			if prior == (types.AddressBalanceLocation{}) {
				if fo, ok := firstOutputForAddr[addr]; ok {
					newBal.FirstOutput = fo
				}
			}
			data, err := json.Marshal(newBal)
			if err != nil {
				return types.Hash{}, fmt.Errorf("finalizedstate: marshal balance for %s: %w", addr, err)
			}
			batch.Put(addressKey(addr), data)
		}

		sprout, sapling, orchard := prevTrees.Sprout, prevTrees.Sapling, prevTrees.Orchard
		if sprout == nil {
			sprout = nct.Empty()
		}
		if sapling == nil {
			sapling = nct.Empty()
		}
		if orchard == nil {
			orchard = nct.Empty()
		}

		shieldedDelta := types.ValueBalance{}
		for _, t := range blk.Transactions {
			if t.Shielded == nil {
				continue
			}
			sprout = sprout.Append(t.Shielded.Sprout.Notes)
			sapling = sapling.Append(t.Shielded.Sapling.Notes)
			orchard = orchard.Append(t.Shielded.Orchard.Notes)
			shieldedDelta = shieldedDelta.Add(t.Shielded.ValueBalance())
		}
		treesByPrefix := []struct {
			name   string
			prefix []byte
			tree   *nct.Tree
		}{
			{"sprout", prefixSproutTree, sprout},
			{"sapling", prefixSaplingTree, sapling},
			{"orchard", prefixOrchardTree, orchard},
		}
		for _, tp := range treesByPrefix {
			data, err := tp.tree.Marshal()
			if err != nil {
				return types.Hash{}, fmt.Errorf("finalizedstate: marshal %s tree: %w", tp.name, err)
			}
			batch.Put(heightKey(tp.prefix, height), data)
		}

		var transparentDelta int64
		for _, no := range newOutputsOrdered {
			transparentDelta += no.value
		}
		for _, sp := range spent {
			transparentDelta -= sp.utx.Value
		}

		oldPool := s.ValuePool()
		newPool := oldPool.Add(types.ValueBalance{Transparent: transparentDelta}).Add(shieldedDelta)
		if !newPool.IsNonNegative() {
			invariantViolation("value pool would go negative at block %s: %s", hash, newPool)
		}
		poolData, err := json.Marshal(newPool)
		if err != nil {
			return types.Hash{}, fmt.Errorf("finalizedstate: marshal value pool: %w", err)
		}
		batch.Put(keyValuePool, poolData)
	}

	tipData := make([]byte, heightKeyLen+types.HashSize)
	copy(tipData, encodeHeight(height))
	copy(tipData[heightKeyLen:], hash[:])
	batch.Put(keyTip, tipData)

	if err := batch.Commit(); err != nil {
		return types.Hash{}, fmt.Errorf("finalizedstate: commit block %s at height %d: %w", hash, height, err)
	}

	log.FinalizedState.Info().
		Uint64("height", uint64(height)).
		Str("hash", hash.String()).
		Int("txs", len(blk.Transactions)).
		Str("source", source).
		Msg("committed block")

	return hash, nil
}
