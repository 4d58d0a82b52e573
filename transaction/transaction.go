package transaction

import (
	"errors"
	"sync/atomic"
)

// ErrTransactionAborted surfaces from page requests that could not acquire
// their lock within the deadlock timeout. The transaction is dead once this
// is returned; the client must abort and reissue the whole transaction.
var ErrTransactionAborted = errors.New("transaction aborted")

// TxnID is a process-wide unique transaction token. IDs are allocated on
// begin, consumed by commit or abort and never reused.
type TxnID uint64

// InvalidTxnID is the zero token; pages dirtied by no one carry it.
const InvalidTxnID TxnID = 0

var txnCounter uint64

// NewTxnID allocates the next transaction token.
func NewTxnID() TxnID {
	return TxnID(atomic.AddUint64(&txnCounter, 1))
}
