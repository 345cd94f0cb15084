// Package storage provides database abstractions.
package storage

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach iterates over all keys with the given prefix.
	// The callback receives a copy of the key; the value slice is not
	// copied.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch stages a sequence of writes for atomic application. Nothing staged
// in a Batch is visible to readers of the owning DB until Commit succeeds;
// if the caller abandons a Batch without calling Commit, none of its writes
// take effect.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by DBs that can stage an atomic multi-key write.
// FinalizedStore relies on this to commit every column family touched by a
// block in a single transaction.
type Batcher interface {
	NewBatch() Batch
}
