package heap

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"shale/config"
	"shale/storage"
	"shale/transaction"
	"shale/tuple"
)

var ErrPageFull = errors.New("no empty slot on page")

// HeapPage is the heap file's page format: a header bitmap with bit i set
// iff slot i is occupied, followed by numSlots fixed-size tuple bodies.
// Concurrent access to a page is prevented by the page lock protocol, not by
// locks of its own.
type HeapPage struct {
	pid    tuple.PageID
	desc   *tuple.TupleDesc
	header []byte
	tuples []*tuple.Tuple

	dirtier     transaction.TxnID
	beforeImage []byte
}

var _ storage.Page = (*HeapPage)(nil)

// SlotCount is the number of tuple slots a page holds: each tuple costs its
// body bytes plus one header bit.
func SlotCount(desc *tuple.TupleDesc) int {
	return (config.PageSize() * 8) / (desc.Size()*8 + 1)
}

func headerSize(slots int) int {
	return (slots + 7) / 8
}

// EmptyPageData returns the byte image of a page with every slot free.
func EmptyPageData() []byte {
	return make([]byte, config.PageSize())
}

// NewHeapPage deserializes one page worth of bytes. The before image is
// captured from the given data; it is refreshed only on commit.
func NewHeapPage(pid tuple.PageID, data []byte, desc *tuple.TupleDesc) (*HeapPage, error) {
	if len(data) != config.PageSize() {
		return nil, fmt.Errorf("page %v: expected %d bytes, got %d", pid, config.PageSize(), len(data))
	}

	slots := SlotCount(desc)
	hp := &HeapPage{
		pid:    pid,
		desc:   desc,
		header: make([]byte, headerSize(slots)),
		tuples: make([]*tuple.Tuple, slots),
	}

	r := bytes.NewReader(data)
	if _, err := io.ReadFull(r, hp.header); err != nil {
		return nil, fmt.Errorf("page %v: read header: %w", pid, err)
	}

	tupleSize := int64(desc.Size())
	for i := 0; i < slots; i++ {
		if !hp.slotUsed(i) {
			if _, err := r.Seek(tupleSize, io.SeekCurrent); err != nil {
				return nil, err
			}
			continue
		}

		t, err := tuple.ParseTuple(desc, r)
		if err != nil {
			return nil, fmt.Errorf("page %v slot %d: %w", pid, i, err)
		}
		t.SetRecordID(&tuple.RecordID{PID: pid, SlotNo: i})
		hp.tuples[i] = t
	}

	hp.beforeImage = append([]byte(nil), data...)
	return hp, nil
}

func (hp *HeapPage) ID() tuple.PageID { return hp.pid }

func (hp *HeapPage) slotUsed(i int) bool {
	return hp.header[i/8]&(1<<(uint(i)%8)) != 0
}

func (hp *HeapPage) setSlot(i int, used bool) {
	if used {
		hp.header[i/8] |= 1 << (uint(i) % 8)
	} else {
		hp.header[i/8] &^= 1 << (uint(i) % 8)
	}
}

func (hp *HeapPage) NumSlots() int { return len(hp.tuples) }

func (hp *HeapPage) EmptySlots() int {
	n := 0
	for i := range hp.tuples {
		if !hp.slotUsed(i) {
			n++
		}
	}
	return n
}

// InsertTuple places t into the first empty slot and assigns its RecordID.
func (hp *HeapPage) InsertTuple(t *tuple.Tuple) error {
	if !hp.desc.TypesMatch(t.Desc()) {
		return fmt.Errorf("page %v: tuple schema does not match table schema", hp.pid)
	}

	for i := range hp.tuples {
		if hp.slotUsed(i) {
			continue
		}
		hp.setSlot(i, true)
		t.SetRecordID(&tuple.RecordID{PID: hp.pid, SlotNo: i})
		hp.tuples[i] = t
		return nil
	}
	return fmt.Errorf("page %v: %w", hp.pid, ErrPageFull)
}

// DeleteTuple clears the slot named by t's RecordID and drops the id from t.
func (hp *HeapPage) DeleteTuple(t *tuple.Tuple) error {
	rid := t.RecordID()
	if rid == nil {
		return fmt.Errorf("page %v: tuple has no record id", hp.pid)
	}
	if rid.PID != hp.pid {
		return fmt.Errorf("tuple belongs to page %v, not %v", rid.PID, hp.pid)
	}
	if rid.SlotNo < 0 || rid.SlotNo >= len(hp.tuples) {
		return fmt.Errorf("page %v: slot %d out of range", hp.pid, rid.SlotNo)
	}
	if !hp.slotUsed(rid.SlotNo) {
		return fmt.Errorf("page %v: slot %d is already empty", hp.pid, rid.SlotNo)
	}

	hp.setSlot(rid.SlotNo, false)
	hp.tuples[rid.SlotNo] = nil
	t.SetRecordID(nil)
	return nil
}

// Tuples returns the occupied tuples in slot order.
func (hp *HeapPage) Tuples() []*tuple.Tuple {
	out := make([]*tuple.Tuple, 0, len(hp.tuples))
	for i, t := range hp.tuples {
		if hp.slotUsed(i) {
			out = append(out, t)
		}
	}
	return out
}

func (hp *HeapPage) PageData() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(config.PageSize())
	buf.Write(hp.header)

	empty := make([]byte, hp.desc.Size())
	for i, t := range hp.tuples {
		if !hp.slotUsed(i) {
			buf.Write(empty)
			continue
		}
		if err := t.Serialize(&buf); err != nil {
			return nil, fmt.Errorf("page %v slot %d: %w", hp.pid, i, err)
		}
	}

	if buf.Len() > config.PageSize() {
		return nil, fmt.Errorf("page %v: serialized to %d bytes", hp.pid, buf.Len())
	}
	buf.Write(make([]byte, config.PageSize()-buf.Len()))
	return buf.Bytes(), nil
}

func (hp *HeapPage) BeforeImage() []byte {
	return append([]byte(nil), hp.beforeImage...)
}

// SetBeforeImage snapshots the current contents as the new rollback point.
// The buffer pool calls this right after a successful commit flush.
func (hp *HeapPage) SetBeforeImage() error {
	data, err := hp.PageData()
	if err != nil {
		return err
	}
	hp.beforeImage = data
	return nil
}

func (hp *HeapPage) MarkDirty(dirty bool, tid transaction.TxnID) {
	if dirty {
		hp.dirtier = tid
	} else {
		hp.dirtier = transaction.InvalidTxnID
	}
}

func (hp *HeapPage) Dirtier() (transaction.TxnID, bool) {
	return hp.dirtier, hp.dirtier != transaction.InvalidTxnID
}
