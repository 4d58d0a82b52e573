// Package execution holds the pull-based operator pipeline. Operators form a
// tree built leaves-up; a parent opens its children before reading and
// closes them on teardown. Every operator streams tuples through the same
// Open/HasNext/Next/Rewind/Close contract.
package execution

import (
	"errors"

	"shale/buffer"
	"shale/storage"
	"shale/tuple"
)

var (
	ErrClosed  = errors.New("operator is not open")
	ErrNoTuple = errors.New("no more tuples")
)

type OpIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*tuple.Tuple, error)
	Rewind() error
	Close() error
	TupleDesc() *tuple.TupleDesc
}

// Operator is an OpIterator with children exposed by index, so a planner can
// splice subtrees in place. Parents own their children exclusively.
type Operator interface {
	OpIterator
	Children() []OpIterator
	SetChildren(children []OpIterator)
}

// Context carries the collaborators operators need: the page gateway and the
// table registry. Tests wire throwaway contexts.
type Context struct {
	Pool  *buffer.BufferPool
	Files storage.FileResolver
}

// opBase implements the lookahead half of the contract: fetch is the
// operator's own "produce the next tuple or nil" routine, and HasNext/Next
// buffer one tuple between them.
type opBase struct {
	opened bool
	next   *tuple.Tuple
	fetch  func() (*tuple.Tuple, error)
}

func (o *opBase) markOpen() { o.opened = true }

func (o *opBase) markClosed() {
	o.opened = false
	o.next = nil
}

func (o *opBase) HasNext() (bool, error) {
	if !o.opened {
		return false, ErrClosed
	}
	if o.next == nil {
		t, err := o.fetch()
		if err != nil {
			return false, err
		}
		o.next = t
	}
	return o.next != nil, nil
}

func (o *opBase) Next() (*tuple.Tuple, error) {
	has, err := o.HasNext()
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, ErrNoTuple
	}
	t := o.next
	o.next = nil
	return t, nil
}
