package finalizedstate

import (
	"errors"
	"fmt"
)

// ErrNotFound is the package's sentinel for "missing" as distinct from
// "storage failure." No function in this package currently returns it:
// read accessors on Store return a zero value and false/nil to signal
// absence, since a missing block or transaction is an expected outcome,
// not a failure.
var ErrNotFound = errors.New("finalizedstate: not found")

// invariantViolation panics with a diagnostic. A missing UTXO for an
// input the caller claimed was valid, a value-pool underflow, or a
// genesis note-commitment-tree mismatch are all programming errors, not
// user errors: WriteBlock's caller is contractually required to have
// already verified the block, so reaching one of these means that
// contract was broken upstream.
func invariantViolation(format string, args ...any) {
	panic(fmt.Sprintf("finalizedstate: invariant violation: "+format, args...))
}
