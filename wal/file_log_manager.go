package wal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"shale/transaction"
	"shale/tuple"
)

const logBufSize = 64 * 1024

// FileLogManager appends records to a single log file through a write
// buffer. Force drains the buffer and fsyncs, which is what gives the
// log-before-data ordering its teeth.
type FileLogManager struct {
	mu      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	currLsn LSN
}

var _ LogManager = (*FileLogManager)(nil)

func NewFileLogManager(path string) (*FileLogManager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return &FileLogManager{
		file: f,
		w:    bufio.NewWriterSize(f, logBufSize),
	}, nil
}

func (l *FileLogManager) append(rec *LogRecord) (LSN, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currLsn++
	rec.Lsn = l.currLsn
	if err := rec.serialize(l.w); err != nil {
		return ZeroLSN, fmt.Errorf("append log record: %w", err)
	}
	return rec.Lsn, nil
}

func (l *FileLogManager) LogWrite(tid transaction.TxnID, pid tuple.PageID, before, after []byte) (LSN, error) {
	return l.append(&LogRecord{T: TypeUpdate, TxnID: tid, PageID: pid, Before: before, After: after})
}

func (l *FileLogManager) LogCommit(tid transaction.TxnID) (LSN, error) {
	return l.append(&LogRecord{T: TypeCommit, TxnID: tid})
}

func (l *FileLogManager) LogAbort(tid transaction.TxnID) (LSN, error) {
	return l.append(&LogRecord{T: TypeAbort, TxnID: tid})
}

func (l *FileLogManager) LogCheckpoint() (LSN, error) {
	return l.append(&LogRecord{T: TypeCheckpoint})
}

func (l *FileLogManager) Force() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("flush log buffer: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}

func (l *FileLogManager) Close() error {
	if err := l.Force(); err != nil {
		log.WithError(err).Warn("log force on close failed")
	}
	return l.file.Close()
}

// ReadRecords walks a closed log file front to back. Debugging aid; replay
// is out of scope.
func ReadRecords(path string) ([]*LogRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var recs []*LogRecord
	for {
		rec, err := readLogRecord(r)
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}
