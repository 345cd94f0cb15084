package finalizedstate

import (
	"encoding/binary"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// FormatVersion identifies the on-disk key layout and value encoding of
// this package's column families. Bump it whenever a key encoding, value
// encoding, or the set of column families changes — a running node must
// refuse to open a database written by an incompatible version rather
// than silently misinterpret it.
const FormatVersion uint32 = 1

// Column family key prefixes. Every key in the underlying storage.DB is
// one of these prefixes followed by a fixed-width encoded key, so the 15
// logical tables all live in one keyspace without colliding. Listed
// together the way erigon-lib/kv/tables.go lists its table names in one
// place.
var (
	keyFormatVersion       = []byte("fmt/version")
	prefixHashByHeight     = []byte("hh/") // height(8) -> hash(32)
	prefixHeightByHash     = []byte("ht/") // hash(32) -> height(8)
	prefixHeaderByHeight   = []byte("bh/") // height(8) -> header JSON
	prefixTxCountByHeight  = []byte("tc/") // height(8) -> count(2)
	prefixTxByLoc          = []byte("tl/") // height(8)+index(2) -> tx JSON
	prefixHashByTxLoc      = []byte("th/") // height(8)+index(2) -> txhash(32)
	prefixTxLocByHash      = []byte("lt/") // txhash(32) -> height(8)+index(2)
	prefixUtxoByOutLoc     = []byte("uo/") // height(8)+index(2)+output(4) -> utxo JSON
	prefixOutLocByOutpoint = []byte("op/") // txhash(32)+index(4) -> height(8)+index(2)+output(4)
	prefixBalanceByAddress = []byte("ba/") // address(20) -> balance JSON
	prefixSproutTree       = []byte("ns/") // height(8) -> tree bytes
	prefixSaplingTree      = []byte("na/") // height(8) -> tree bytes
	prefixOrchardTree      = []byte("no/") // height(8) -> tree bytes

	keyValuePool = []byte("vp/singleton")

	// keyTip caches (height, hash) of the current tip so Tip()/IsEmpty()
	// are O(1) instead of a reverse scan over hash_by_height. WriteBlock
	// updates it as part of the same atomic batch as everything else.
	keyTip = []byte("tip/singleton")
)

const (
	heightKeyLen   = 8
	txIndexKeyLen  = 2
	outputIndexLen = 4
)

func encodeHeight(h types.Height) []byte {
	buf := make([]byte, heightKeyLen)
	binary.BigEndian.PutUint64(buf, uint64(h))
	return buf
}

func decodeHeight(b []byte) types.Height {
	return types.Height(binary.BigEndian.Uint64(b))
}

func heightKey(prefix []byte, h types.Height) []byte {
	key := make([]byte, len(prefix)+heightKeyLen)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(h))
	return key
}

func hashKey(prefix []byte, hash types.Hash) []byte {
	key := make([]byte, len(prefix)+types.HashSize)
	copy(key, prefix)
	copy(key[len(prefix):], hash[:])
	return key
}

func addressKey(addr types.Address) []byte {
	key := make([]byte, len(prefixBalanceByAddress)+types.AddressSize)
	copy(key, prefixBalanceByAddress)
	copy(key[len(prefixBalanceByAddress):], addr[:])
	return key
}

// encodeTxLoc serializes a TransactionLocation as height(8)||index(2).
func encodeTxLoc(loc types.TransactionLocation) []byte {
	buf := make([]byte, heightKeyLen+txIndexKeyLen)
	binary.BigEndian.PutUint64(buf, uint64(loc.Height))
	binary.BigEndian.PutUint16(buf[heightKeyLen:], loc.Index)
	return buf
}

func decodeTxLoc(b []byte) types.TransactionLocation {
	return types.TransactionLocation{
		Height: types.Height(binary.BigEndian.Uint64(b[:heightKeyLen])),
		Index:  binary.BigEndian.Uint16(b[heightKeyLen : heightKeyLen+txIndexKeyLen]),
	}
}

func txLocKey(prefix []byte, loc types.TransactionLocation) []byte {
	key := make([]byte, len(prefix)+heightKeyLen+txIndexKeyLen)
	copy(key, prefix)
	copy(key[len(prefix):], encodeTxLoc(loc))
	return key
}

// encodeOutputLoc serializes an OutputLocation as
// height(8)||index(2)||output(4).
func encodeOutputLoc(loc types.OutputLocation) []byte {
	buf := make([]byte, heightKeyLen+txIndexKeyLen+outputIndexLen)
	copy(buf, encodeTxLoc(loc.TransactionLocation))
	binary.BigEndian.PutUint32(buf[heightKeyLen+txIndexKeyLen:], loc.Output)
	return buf
}

func decodeOutputLoc(b []byte) types.OutputLocation {
	return types.OutputLocation{
		TransactionLocation: decodeTxLoc(b[:heightKeyLen+txIndexKeyLen]),
		Output:              binary.BigEndian.Uint32(b[heightKeyLen+txIndexKeyLen:]),
	}
}

func outLocKey(loc types.OutputLocation) []byte {
	key := make([]byte, len(prefixUtxoByOutLoc)+heightKeyLen+txIndexKeyLen+outputIndexLen)
	copy(key, prefixUtxoByOutLoc)
	copy(key[len(prefixUtxoByOutLoc):], encodeOutputLoc(loc))
	return key
}

// outpointKey serializes an OutPoint as txhash(32)||index(4).
func outpointKey(op types.OutPoint) []byte {
	key := make([]byte, len(prefixOutLocByOutpoint)+types.HashSize+outputIndexLen)
	copy(key, prefixOutLocByOutpoint)
	off := len(prefixOutLocByOutpoint)
	copy(key[off:], op.TxHash[:])
	binary.BigEndian.PutUint32(key[off+types.HashSize:], op.Index)
	return key
}
