package heap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"

	"shale/common"
	"shale/config"
	"shale/storage"
	"shale/transaction"
	"shale/tuple"
)

var ErrPageOutOfRange = errors.New("page offset past end of file")

// HeapFile stores tuples of a single schema as a sequence of fixed-size
// pages, page N living at byte offset N*pageSize. Tuple mutations go through
// the injected PageSource so every touched page is locked and tracked; only
// the file-extension write bypasses it.
type HeapFile struct {
	mu   sync.Mutex
	file *os.File
	path string
	id   int
	desc *tuple.TupleDesc
	pool storage.PageSource
}

var _ storage.DbFile = (*HeapFile)(nil)

func NewHeapFile(path string, desc *tuple.TupleDesc, pool storage.PageSource) (*HeapFile, error) {
	if path == "" {
		return nil, fmt.Errorf("heap file needs a path")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open heap file %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return &HeapFile{
		file: f,
		path: abs,
		id:   fileID(abs),
		desc: desc,
		pool: pool,
	}, nil
}

// fileID derives the stable table id from the absolute path, so the same
// file resolves to the same id across restarts.
func fileID(absPath string) int {
	return int(xxhash.Sum64String(absPath) & 0x7fffffff)
}

func (hf *HeapFile) ID() int { return hf.id }

func (hf *HeapFile) Path() string { return hf.path }

func (hf *HeapFile) TupleDesc() *tuple.TupleDesc { return hf.desc }

func (hf *HeapFile) Close() error { return hf.file.Close() }

func (hf *HeapFile) size() (int64, error) {
	st, err := hf.file.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (hf *HeapFile) NumPages() int {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	size, err := hf.size()
	if err != nil {
		log.WithError(err).WithField("file", hf.path).Warn("stat failed")
		return 0
	}
	return int(common.CeilDiv(size, int64(config.PageSize())))
}

// ReadPage reads exactly one page worth of bytes at the page's offset. Pages
// past the end of the file do not exist.
func (hf *HeapFile) ReadPage(pid tuple.PageID) (storage.Page, error) {
	if pid.TableID != hf.id {
		return nil, fmt.Errorf("page %v does not belong to table %d", pid, hf.id)
	}
	if pid.PageNo < 0 {
		return nil, fmt.Errorf("page %v: %w", pid, ErrPageOutOfRange)
	}

	hf.mu.Lock()
	defer hf.mu.Unlock()

	size, err := hf.size()
	if err != nil {
		return nil, err
	}
	ps := int64(config.PageSize())
	offset := int64(pid.PageNo) * ps
	if offset+ps > size {
		return nil, fmt.Errorf("page %v: %w", pid, ErrPageOutOfRange)
	}

	buf := make([]byte, ps)
	if _, err := hf.file.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("read page %v: %w", pid, err)
	}
	return NewHeapPage(pid, buf, hf.desc)
}

// WritePage writes the page's bytes at its offset. The buffer pool decides
// when; the heap file never writes a cached page spontaneously.
func (hf *HeapFile) WritePage(p storage.Page) error {
	data, err := p.PageData()
	if err != nil {
		return err
	}

	hf.mu.Lock()
	defer hf.mu.Unlock()

	offset := int64(p.ID().PageNo) * int64(config.PageSize())
	if _, err := hf.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("write page %v: %w", p.ID(), err)
	}
	return nil
}

// InsertTuple walks existing pages in order with write permission and puts t
// into the first one with a free slot. When every page is full it extends
// the file by one empty page, written directly rather than through the
// buffer pool, then acquires the new page and inserts there. The returned
// slice holds exactly the pages modified.
func (hf *HeapFile) InsertTuple(tid transaction.TxnID, t *tuple.Tuple) ([]storage.Page, error) {
	if hf.pool == nil {
		return nil, fmt.Errorf("heap file %d has no page source", hf.id)
	}

	for i := 0; i < hf.NumPages(); i++ {
		p, err := hf.pool.GetPage(tid, tuple.PageID{TableID: hf.id, PageNo: i}, storage.ReadWrite)
		if err != nil {
			return nil, err
		}
		hp := p.(*HeapPage)
		if hp.EmptySlots() == 0 {
			continue
		}
		if err := hp.InsertTuple(t); err != nil {
			return nil, err
		}
		return []storage.Page{hp}, nil
	}

	pageNo, err := hf.extend()
	if err != nil {
		return nil, err
	}

	p, err := hf.pool.GetPage(tid, tuple.PageID{TableID: hf.id, PageNo: pageNo}, storage.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := p.(*HeapPage)
	if err := hp.InsertTuple(t); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

// extend appends one empty page and returns its page number. The append
// happens under the file mutex so two racing inserts get distinct pages.
func (hf *HeapFile) extend() (int, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	size, err := hf.size()
	if err != nil {
		return 0, err
	}
	ps := int64(config.PageSize())
	pageNo := int(common.CeilDiv(size, ps))

	if _, err := hf.file.WriteAt(EmptyPageData(), int64(pageNo)*ps); err != nil {
		return 0, fmt.Errorf("extend heap file %s: %w", hf.path, err)
	}

	log.WithField("file", filepath.Base(hf.path)).WithField("page", pageNo).Debug("heap file extended")
	return pageNo, nil
}

// DeleteTuple resolves t's RecordID, acquires its page with write permission
// and clears the slot.
func (hf *HeapFile) DeleteTuple(tid transaction.TxnID, t *tuple.Tuple) ([]storage.Page, error) {
	if hf.pool == nil {
		return nil, fmt.Errorf("heap file %d has no page source", hf.id)
	}
	rid := t.RecordID()
	if rid == nil {
		return nil, fmt.Errorf("tuple has no record id")
	}
	if rid.PID.TableID != hf.id {
		return nil, fmt.Errorf("tuple belongs to table %d, not %d", rid.PID.TableID, hf.id)
	}

	p, err := hf.pool.GetPage(tid, rid.PID, storage.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := p.(*HeapPage)
	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

func (hf *HeapFile) Iterator(tid transaction.TxnID) storage.DbFileIterator {
	return &fileIterator{file: hf, tid: tid}
}
