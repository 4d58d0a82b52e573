package execution

import (
	"shale/storage"
	"shale/transaction"
	"shale/tuple"
)

// SeqScan is the leaf operator: it streams a table's tuples in storage order
// through the heap file iterator, taking shared page locks on behalf of its
// transaction. An alias, when set, prefixes the output column names so the
// same table can appear twice in a tree.
type SeqScan struct {
	opBase
	ctx     *Context
	tid     transaction.TxnID
	tableID int
	alias   string
	file    storage.DbFile
	desc    *tuple.TupleDesc
	iter    storage.DbFileIterator
}

var _ OpIterator = (*SeqScan)(nil)

func NewSeqScan(ctx *Context, tid transaction.TxnID, tableID int, alias string) (*SeqScan, error) {
	f, err := ctx.Files.File(tableID)
	if err != nil {
		return nil, err
	}

	desc := f.TupleDesc()
	if alias != "" {
		desc = desc.Rename(func(n string) string { return alias + "." + n })
	}

	s := &SeqScan{
		ctx:     ctx,
		tid:     tid,
		tableID: tableID,
		alias:   alias,
		file:    f,
		desc:    desc,
	}
	s.fetch = s.fetchNext
	return s, nil
}

func (s *SeqScan) Alias() string { return s.alias }

func (s *SeqScan) Open() error {
	s.iter = s.file.Iterator(s.tid)
	if err := s.iter.Open(); err != nil {
		return err
	}
	s.markOpen()
	return nil
}

func (s *SeqScan) fetchNext() (*tuple.Tuple, error) {
	has, err := s.iter.HasNext()
	if err != nil || !has {
		return nil, err
	}
	return s.iter.Next()
}

func (s *SeqScan) Rewind() error {
	if !s.opened {
		return ErrClosed
	}
	s.next = nil
	return s.iter.Rewind()
}

func (s *SeqScan) Close() error {
	if s.iter != nil {
		s.iter.Close()
	}
	s.markClosed()
	return nil
}

func (s *SeqScan) TupleDesc() *tuple.TupleDesc { return s.desc }
