package wal

import (
	"encoding/binary"
	"fmt"
	"io"

	"shale/transaction"
	"shale/tuple"
)

type LogRecordType uint8

const (
	TypeInvalid LogRecordType = iota
	TypeUpdate
	TypeCommit
	TypeAbort
	TypeCheckpoint
)

// LogRecord is one entry of the log file. Update records carry the dirtied
// page's before and after images; the rest only mark transaction or
// checkpoint boundaries.
type LogRecord struct {
	T     LogRecordType
	Lsn   LSN
	TxnID transaction.TxnID

	// for update records
	PageID tuple.PageID
	Before []byte
	After  []byte
}

// serialize frames the record as:
//
//	type u8 | lsn u64 | txn u64 | tableID i64 | pageNo i64 | beforeLen u32 | before | afterLen u32 | after
//
// all big-endian.
func (r *LogRecord) serialize(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, uint8(r.T)); err != nil {
		return err
	}
	for _, v := range []uint64{uint64(r.Lsn), uint64(r.TxnID), uint64(int64(r.PageID.TableID)), uint64(int64(r.PageID.PageNo))} {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}
	for _, img := range [][]byte{r.Before, r.After} {
		if err := binary.Write(w, binary.BigEndian, uint32(len(img))); err != nil {
			return err
		}
		if _, err := w.Write(img); err != nil {
			return err
		}
	}
	return nil
}

// readLogRecord is the inverse of serialize; tools use it to walk a log.
func readLogRecord(r io.Reader) (*LogRecord, error) {
	var t uint8
	if err := binary.Read(r, binary.BigEndian, &t); err != nil {
		return nil, err
	}

	var lsn, txn uint64
	var tableID, pageNo int64
	for _, dst := range []any{&lsn, &txn, &tableID, &pageNo} {
		if err := binary.Read(r, binary.BigEndian, dst); err != nil {
			return nil, fmt.Errorf("truncated log record: %w", err)
		}
	}

	rec := &LogRecord{
		T:      LogRecordType(t),
		Lsn:    LSN(lsn),
		TxnID:  transaction.TxnID(txn),
		PageID: tuple.PageID{TableID: int(tableID), PageNo: int(pageNo)},
	}

	for _, img := range []*[]byte{&rec.Before, &rec.After} {
		var n uint32
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, fmt.Errorf("truncated log record: %w", err)
		}
		if n > 0 {
			buf := make([]byte, n)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("truncated log record: %w", err)
			}
			*img = buf
		}
	}
	return rec, nil
}
