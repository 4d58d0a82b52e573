// Package shaledb wires the engine together: config, catalog, log, buffer
// pool and statistics live on one Database value that is passed in
// explicitly wherever the classic design would reach for a singleton. Tests
// build throwaway databases per test.
package shaledb

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"shale/buffer"
	"shale/catalog"
	"shale/config"
	"shale/execution"
	"shale/heap"
	"shale/stats"
	"shale/transaction"
	"shale/wal"
)

type Database struct {
	opts  *config.Options
	cat   *catalog.Catalog
	logM  wal.LogManager
	pool  *buffer.BufferPool
	stats *stats.Registry
}

// Open builds a database rooted at opts.DataDir. The page size option is
// applied to the process-global before any file is touched.
func Open(opts *config.Options) (*Database, error) {
	if opts == nil {
		opts = config.DefaultOptions()
	}
	if opts.PageSize > 0 {
		config.SetPageSize(opts.PageSize)
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logM, err := wal.NewFileLogManager(filepath.Join(opts.DataDir, "shale.log"))
	if err != nil {
		return nil, err
	}

	cat := catalog.New()
	pool := buffer.New(opts.PoolPages, cat, logM, opts.LockTimeout())

	reg, err := stats.NewRegistry(cat, pool, opts.IOCostPerPage, opts.HistogramBins)
	if err != nil {
		return nil, err
	}

	return &Database{opts: opts, cat: cat, logM: logM, pool: pool, stats: reg}, nil
}

func (d *Database) Options() *config.Options  { return d.opts }
func (d *Database) Catalog() *catalog.Catalog { return d.cat }
func (d *Database) Log() wal.LogManager       { return d.logM }
func (d *Database) Pool() *buffer.BufferPool  { return d.pool }
func (d *Database) Stats() *stats.Registry    { return d.stats }

// ExecContext is the collaborator bundle operators are built against.
func (d *Database) ExecContext() *execution.Context {
	return &execution.Context{Pool: d.pool, Files: d.cat}
}

// LoadSchema loads a textual catalog file, creating heap files in the data
// dir.
func (d *Database) LoadSchema(path string) ([]string, error) {
	return d.cat.LoadSchema(path, d.opts.DataDir, d.pool)
}

// Begin opens a transaction.
func (d *Database) Begin() *Tx {
	return &Tx{id: transaction.NewTxnID(), db: d}
}

// Close flushes the pool, forces the log and closes every table file.
func (d *Database) Close() error {
	if err := d.pool.FlushAllPages(); err != nil {
		return err
	}
	if closer, ok := d.logM.(*wal.FileLogManager); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	for _, id := range d.cat.TableIDs() {
		f, err := d.cat.File(id)
		if err != nil {
			continue
		}
		if hf, ok := f.(*heap.HeapFile); ok {
			if err := hf.Close(); err != nil {
				log.WithError(err).Warn("close heap file failed")
			}
		}
	}
	d.stats.Close()
	return nil
}

// Tx is a transaction handle. The token is allocated on Begin and consumed
// by the first Commit or Abort; the handle is dead afterwards.
type Tx struct {
	id   transaction.TxnID
	db   *Database
	done bool
}

func (tx *Tx) ID() transaction.TxnID { return tx.id }

func (tx *Tx) Commit() error {
	return tx.complete(true)
}

func (tx *Tx) Abort() error {
	return tx.complete(false)
}

func (tx *Tx) complete(commit bool) error {
	if tx.done {
		return fmt.Errorf("transaction %d already completed", tx.id)
	}
	tx.done = true
	return tx.db.pool.TransactionComplete(tx.id, commit)
}
