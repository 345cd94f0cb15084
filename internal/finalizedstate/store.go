// Package finalizedstate implements FinalizedStore: the persistent,
// column-oriented store for the canonical best chain. It wraps a
// storage.DB (Badger in production, an in-memory map in tests) and keeps
// ~15 logical column families — block/tx/UTXO/balance/note-commitment-tree
// indexes — consistent across one atomic batch per committed block.
//
// The store has exactly two externally visible states, Empty and
// Populated(tip); every WriteBlock call moves it from one to the next by
// exactly one height. There is no deletion or rollback of finalized data.
package finalizedstate

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-chain/internal/storage"
	"github.com/Klingon-tech/klingnet-chain/pkg/block"
	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Store is the finalized chain state. All methods are safe to call from
// multiple goroutines; writes are expected to be serialized by the
// caller (the state service owns that ordering) but reads never block
// on an in-flight WriteBlock beyond storage.DB's own guarantees.
type Store struct {
	db storage.DB
}

// Open wraps db as a Store, checking (and on a fresh database, stamping)
// FormatVersion. db must implement storage.Batcher; Open returns an error
// otherwise, since without atomic batches a crash mid-write could leave
// column families inconsistent.
func Open(db storage.DB) (*Store, error) {
	if _, ok := db.(storage.Batcher); !ok {
		return nil, fmt.Errorf("finalizedstate: database %T does not support atomic batches", db)
	}

	existing, err := db.Get(keyFormatVersion)
	if err != nil {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], FormatVersion)
		if err := db.Put(keyFormatVersion, buf[:]); err != nil {
			return nil, fmt.Errorf("finalizedstate: stamp format version: %w", err)
		}
		return &Store{db: db}, nil
	}

	if len(existing) != 4 {
		return nil, fmt.Errorf("finalizedstate: corrupt format version marker")
	}
	if got := binary.BigEndian.Uint32(existing); got != FormatVersion {
		return nil, fmt.Errorf("finalizedstate: database format version %d, this binary supports %d", got, FormatVersion)
	}
	return &Store{db: db}, nil
}

// IsEmpty reports whether the store has never committed a block.
func (s *Store) IsEmpty() bool {
	_, _, ok := s.tip()
	return !ok
}

// Tip returns the height and hash of the highest committed block, and
// false if the store is empty.
func (s *Store) Tip() (types.Height, types.Hash, bool) {
	return s.tip()
}

// tip reads the cached tip marker. Rather than an O(log n) binary search
// over hash_by_height's dense key range on every call, the tip is cached
// alongside the format-version marker and refreshed by every WriteBlock;
// see keyTip in cfs.go.
func (s *Store) tip() (types.Height, types.Hash, bool) {
	data, err := s.db.Get(keyTip)
	if err != nil {
		return 0, types.Hash{}, false
	}
	if len(data) != heightKeyLen+types.HashSize {
		invariantViolation("corrupt tip marker: %d bytes", len(data))
	}
	h := decodeHeight(data[:heightKeyLen])
	var hash types.Hash
	copy(hash[:], data[heightKeyLen:])
	return h, hash, true
}

// FinalizedTipHash returns the tip hash, or the all-zero sentinel hash
// when the store is empty. The Syncer anchors its genesis bootstrap and
// its first block locator on this sentinel.
func (s *Store) FinalizedTipHash() types.Hash {
	_, hash, ok := s.tip()
	if !ok {
		return types.Hash{}
	}
	return hash
}

// ContainsHeight reports whether a block is stored at height h.
func (s *Store) ContainsHeight(h types.Height) bool {
	ok, err := s.db.Has(heightKey(prefixHashByHeight, h))
	return err == nil && ok
}

// ContainsHash reports whether a block with the given hash is stored.
func (s *Store) ContainsHash(hash types.Hash) bool {
	ok, err := s.db.Has(hashKey(prefixHeightByHash, hash))
	return err == nil && ok
}

// Hash resolves a height to its block hash, if stored.
func (s *Store) Hash(h types.Height) (types.Hash, bool) {
	data, err := s.db.Get(heightKey(prefixHashByHeight, h))
	if err != nil {
		return types.Hash{}, false
	}
	var hash types.Hash
	copy(hash[:], data)
	return hash, true
}

// Height resolves a block hash to its height, if stored.
func (s *Store) Height(hash types.Hash) (types.Height, bool) {
	data, err := s.db.Get(hashKey(prefixHeightByHash, hash))
	if err != nil {
		return 0, false
	}
	return decodeHeight(data), true
}

// resolve turns a HashOrHeight into a concrete height: resolve
// hash->height first if needed, then every height-keyed accessor is one
// point lookup.
func (s *Store) resolve(hh types.HashOrHeight) (types.Height, bool) {
	if hh.IsHeight() {
		return hh.Height(), s.ContainsHeight(hh.Height())
	}
	return s.Height(hh.Hash())
}

func marshalHeader(h *block.Header) ([]byte, error) {
	return json.Marshal(h)
}

func unmarshalHeader(data []byte) (*block.Header, error) {
	var h block.Header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
