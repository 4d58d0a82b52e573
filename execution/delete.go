package execution

import (
	"shale/transaction"
	"shale/tuple"
	"shale/types"
)

// Delete reads tuples from its child and removes them from the table they
// live in, through the buffer pool. Like Insert it is single-shot, yielding
// one count tuple and end-of-stream thereafter.
type Delete struct {
	opBase
	ctx    *Context
	tid    transaction.TxnID
	child  OpIterator
	called bool
}

var _ Operator = (*Delete)(nil)

func NewDelete(ctx *Context, tid transaction.TxnID, child OpIterator) *Delete {
	d := &Delete{ctx: ctx, tid: tid, child: child}
	d.fetch = d.fetchNext
	return d
}

func (d *Delete) Open() error {
	if err := d.child.Open(); err != nil {
		return err
	}
	d.markOpen()
	return nil
}

func (d *Delete) fetchNext() (*tuple.Tuple, error) {
	if d.called {
		return nil, nil
	}

	count := int32(0)
	for {
		has, err := d.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		t, err := d.child.Next()
		if err != nil {
			return nil, err
		}
		if err := d.ctx.Pool.DeleteTuple(d.tid, t); err != nil {
			return nil, err
		}
		count++
	}

	d.called = true
	res := tuple.NewTuple(countDesc)
	_ = res.SetField(0, types.NewIntField(count))
	return res, nil
}

func (d *Delete) Rewind() error {
	if !d.opened {
		return ErrClosed
	}
	d.next = nil
	return d.child.Rewind()
}

func (d *Delete) Close() error {
	d.markClosed()
	return d.child.Close()
}

func (d *Delete) TupleDesc() *tuple.TupleDesc { return countDesc }

func (d *Delete) Children() []OpIterator { return []OpIterator{d.child} }

func (d *Delete) SetChildren(children []OpIterator) { d.child = children[0] }
