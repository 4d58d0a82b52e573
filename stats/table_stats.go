package stats

import (
	"fmt"
	"math"

	"shale/buffer"
	"shale/storage"
	"shale/transaction"
	"shale/types"
	"shale/tuple"
)

// TableStats holds per-column histograms for one table plus the counts that
// feed scan-cost and cardinality estimates. Building takes two passes over
// the table: one for per-field min/max, one to populate the histograms.
type TableStats struct {
	ioCostPerPage int
	ntup          int
	numPages      int
	desc          *tuple.TupleDesc
	intHists      map[int]*IntHistogram
	strHists      map[int]*StringHistogram
}

// fieldValue projects a field onto the histogram integer domain: ints map to
// themselves, strings through the bounded hash.
func fieldValue(f types.Field) (int, error) {
	switch v := f.(type) {
	case types.IntField:
		return int(v.V), nil
	case types.StringField:
		return hashString(v.V), nil
	default:
		return 0, fmt.Errorf("no histogram projection for type %v", f.Type())
	}
}

// NewTableStats scans the file under a fresh read-only transaction, which
// commits once the histograms are built.
func NewTableStats(f storage.DbFile, pool *buffer.BufferPool, ioCostPerPage, bins int) (*TableStats, error) {
	ts := &TableStats{
		ioCostPerPage: ioCostPerPage,
		desc:          f.TupleDesc(),
		intHists:      make(map[int]*IntHistogram),
		strHists:      make(map[int]*StringHistogram),
	}

	tid := transaction.NewTxnID()
	defer func() { _ = pool.TransactionComplete(tid, true) }()

	numFields := ts.desc.NumFields()
	mins := make([]int, numFields)
	maxs := make([]int, numFields)
	for i := range mins {
		mins[i] = math.MaxInt32
		maxs[i] = math.MinInt32
	}

	it := f.Iterator(tid)
	if err := it.Open(); err != nil {
		return nil, err
	}
	defer it.Close()

	for {
		has, err := it.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		t, err := it.Next()
		if err != nil {
			return nil, err
		}
		ts.ntup++
		for i := 0; i < numFields; i++ {
			fld, _ := t.FieldAt(i)
			v, err := fieldValue(fld)
			if err != nil {
				return nil, err
			}
			if v < mins[i] {
				mins[i] = v
			}
			if v > maxs[i] {
				maxs[i] = v
			}
		}
	}

	for i := 0; i < numFields; i++ {
		ft, _ := ts.desc.TypeAt(i)
		switch ft {
		case types.IntType:
			lo, hi := mins[i], maxs[i]
			if ts.ntup == 0 {
				lo, hi = 0, 0
			}
			ts.intHists[i] = NewIntHistogram(bins, lo, hi)
		case types.StringType:
			ts.strHists[i] = NewStringHistogram(bins)
		default:
			return nil, fmt.Errorf("no histogram for type %v", ft)
		}
	}

	if err := it.Rewind(); err != nil {
		return nil, err
	}
	for {
		has, err := it.HasNext()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		t, err := it.Next()
		if err != nil {
			return nil, err
		}
		for i := 0; i < numFields; i++ {
			fld, _ := t.FieldAt(i)
			ft, _ := ts.desc.TypeAt(i)
			switch ft {
			case types.IntType:
				v, _ := fieldValue(fld)
				ts.intHists[i].AddValue(v)
			case types.StringType:
				sf := fld.(types.StringField)
				ts.strHists[i].AddValue(sf.V)
			}
		}
	}

	ts.numPages = f.NumPages()
	return ts, nil
}

// EstimateScanCost is pages times the per-page IO cost; partial last pages
// cost as much as full ones.
func (ts *TableStats) EstimateScanCost() float64 {
	return float64(ts.numPages) * float64(ts.ioCostPerPage)
}

// EstimateTableCardinality is the expected tuple count after a predicate of
// the given selectivity.
func (ts *TableStats) EstimateTableCardinality(selectivity float64) int {
	return int(float64(ts.ntup) * selectivity)
}

func (ts *TableStats) TotalTuples() int { return ts.ntup }

// EstimateSelectivity predicts the fraction of tuples satisfying
// `field op constant`.
func (ts *TableStats) EstimateSelectivity(field int, op types.Op, constant types.Field) (float64, error) {
	ft, err := ts.desc.TypeAt(field)
	if err != nil {
		return 0, err
	}

	switch ft {
	case types.IntType:
		c, ok := constant.(types.IntField)
		if !ok {
			return 0, fmt.Errorf("field %d is int, constant is %v", field, constant.Type())
		}
		return ts.intHists[field].EstimateSelectivity(op, int(c.V))
	case types.StringType:
		c, ok := constant.(types.StringField)
		if !ok {
			return 0, fmt.Errorf("field %d is string, constant is %v", field, constant.Type())
		}
		return ts.strHists[field].EstimateSelectivity(op, c.V)
	default:
		return 0, fmt.Errorf("no histogram for type %v", ft)
	}
}

// AvgSelectivity is the expected selectivity of `field op ?` when the
// constant is unknown.
func (ts *TableStats) AvgSelectivity(field int, op types.Op) (float64, error) {
	ft, err := ts.desc.TypeAt(field)
	if err != nil {
		return 0, err
	}
	switch ft {
	case types.IntType:
		return ts.intHists[field].AvgSelectivity(), nil
	case types.StringType:
		return ts.strHists[field].AvgSelectivity(), nil
	default:
		return 0, fmt.Errorf("no histogram for type %v", ft)
	}
}
