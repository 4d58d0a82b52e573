package heap

import (
	"errors"

	"shale/storage"
	"shale/transaction"
	"shale/tuple"
)

var errIteratorClosed = errors.New("iterator is not open")

// fileIterator yields every occupied tuple in page-number order, slot order
// within a page. Each page visit goes through the page source with read
// permission, so scans take shared locks like any other reader.
type fileIterator struct {
	file *HeapFile
	tid  transaction.TxnID

	opened  bool
	pageNo  int
	current []*tuple.Tuple
	idx     int
}

var _ storage.DbFileIterator = (*fileIterator)(nil)

func (it *fileIterator) Open() error {
	it.opened = true
	it.pageNo = 0
	it.current = nil
	it.idx = 0
	return it.loadPage()
}

// loadPage pulls the tuples of page it.pageNo, or leaves current nil when
// the file is exhausted. NumPages is re-read every time so tuples inserted
// on freshly extended pages are still visited.
func (it *fileIterator) loadPage() error {
	for it.pageNo < it.file.NumPages() {
		p, err := it.file.pool.GetPage(it.tid, tuple.PageID{TableID: it.file.id, PageNo: it.pageNo}, storage.ReadOnly)
		if err != nil {
			return err
		}
		tuples := p.(*HeapPage).Tuples()
		if len(tuples) > 0 {
			it.current = tuples
			it.idx = 0
			return nil
		}
		it.pageNo++
	}
	it.current = nil
	return nil
}

func (it *fileIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, nil
	}
	if it.current != nil && it.idx < len(it.current) {
		return true, nil
	}
	if it.current != nil {
		it.current = nil
		it.pageNo++
	}

	if err := it.loadPage(); err != nil {
		return false, err
	}
	return it.current != nil, nil
}

func (it *fileIterator) Next() (*tuple.Tuple, error) {
	if !it.opened {
		return nil, errIteratorClosed
	}
	has, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, errors.New("no more tuples")
	}

	t := it.current[it.idx]
	it.idx++
	return t, nil
}

func (it *fileIterator) Rewind() error {
	it.Close()
	return it.Open()
}

func (it *fileIterator) Close() {
	it.opened = false
	it.current = nil
}
