package execution

import (
	"fmt"

	"shale/transaction"
	"shale/tuple"
	"shale/types"
)

var countDesc = tuple.MustNewTupleDesc([]types.Type{types.IntType}, []string{"count"})

// Insert drains its child on the first pull, routing every tuple through the
// buffer pool into the target table, and yields a single one-field tuple
// with the insert count. The mutation is single-shot: a second pull returns
// end-of-stream rather than re-executing it.
type Insert struct {
	opBase
	ctx     *Context
	tid     transaction.TxnID
	child   OpIterator
	tableID int
	called  bool
}

var _ Operator = (*Insert)(nil)

func NewInsert(ctx *Context, tid transaction.TxnID, child OpIterator, tableID int) (*Insert, error) {
	f, err := ctx.Files.File(tableID)
	if err != nil {
		return nil, err
	}
	if !f.TupleDesc().TypesMatch(child.TupleDesc()) {
		return nil, fmt.Errorf("child schema does not match table %d", tableID)
	}

	ins := &Insert{ctx: ctx, tid: tid, child: child, tableID: tableID}
	ins.fetch = ins.fetchNext
	return ins, nil
}

func (i *Insert) Open() error {
	if err := i.child.Open(); err != nil {
		return err
	}
	i.markOpen()
	return nil
}

func (i *Insert) fetchNext() (*tuple.Tuple, error) {
	if i.called {
		return nil, nil
	}

	count := int32(0)
	for {
		has, err := i.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		t, err := i.child.Next()
		if err != nil {
			return nil, err
		}
		if err := i.ctx.Pool.InsertTuple(i.tid, i.tableID, t); err != nil {
			return nil, err
		}
		count++
	}

	i.called = true
	res := tuple.NewTuple(countDesc)
	_ = res.SetField(0, types.NewIntField(count))
	return res, nil
}

func (i *Insert) Rewind() error {
	if !i.opened {
		return ErrClosed
	}
	i.next = nil
	return i.child.Rewind()
}

func (i *Insert) Close() error {
	i.markClosed()
	return i.child.Close()
}

func (i *Insert) TupleDesc() *tuple.TupleDesc { return countDesc }

func (i *Insert) Children() []OpIterator { return []OpIterator{i.child} }

func (i *Insert) SetChildren(children []OpIterator) { i.child = children[0] }
