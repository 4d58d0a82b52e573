// Package wal is the log collaborator the buffer pool writes through. The
// core only needs the write-ahead ordering guarantee: a page update record
// must be forced before the page itself reaches disk. Replay of the log is
// outside the core.
package wal

import (
	"shale/transaction"
	"shale/tuple"
)

// LSN is a log sequence number.
type LSN uint64

const ZeroLSN LSN = 0

type LogManager interface {
	// LogWrite records one page update as a before/after image pair. It does
	// not flush; callers pair it with Force before writing the page.
	LogWrite(tid transaction.TxnID, pid tuple.PageID, before, after []byte) (LSN, error)

	LogCommit(tid transaction.TxnID) (LSN, error)
	LogAbort(tid transaction.TxnID) (LSN, error)
	LogCheckpoint() (LSN, error)

	// Force durably persists every record appended so far.
	Force() error
}

// NoopLM swallows every record. Tests and tools that do not care about
// durability use it.
var NoopLM LogManager = &noopLogManager{}

type noopLogManager struct{}

func (*noopLogManager) LogWrite(transaction.TxnID, tuple.PageID, []byte, []byte) (LSN, error) {
	return ZeroLSN, nil
}

func (*noopLogManager) LogCommit(transaction.TxnID) (LSN, error) { return ZeroLSN, nil }

func (*noopLogManager) LogAbort(transaction.TxnID) (LSN, error) { return ZeroLSN, nil }

func (*noopLogManager) LogCheckpoint() (LSN, error) { return ZeroLSN, nil }

func (*noopLogManager) Force() error { return nil }
