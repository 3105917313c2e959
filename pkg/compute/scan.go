package compute

import (
	"context"

	"github.com/daviszhen/exechash/pkg/util"
)

type JoinType int

const (
	JoinInner JoinType = iota
	JoinSemi
	JoinAnti
	//mark join: one output per probe row with an exists flag
	JoinMark
	JoinLeftOuter
	JoinRightOuter
)

// Residual is the non-equality predicate applied to every chain node of a key
// match. Nil means every key match is a full match.
type Residual func(build []Value, probe *Row) bool

// JoinedRow is one output of the iteration protocol. Build is nil when the
// row carries no build side: semi/anti/mark outputs and the null-extended
// outer row.
type JoinedRow struct {
	Build  []Value
	Probe  *Row
	Exists bool
}

type RowSink interface {
	Push(row *JoinedRow)
}

type RowBuffer struct {
	Rows []*JoinedRow
}

func (buf *RowBuffer) Push(row *JoinedRow) {
	buf.Rows = append(buf.Rows, row)
}

func (buf *RowBuffer) Len() int {
	return len(buf.Rows)
}

// JoinScan drives probe-side rows against a finished build-side table,
// walking duplicate chains head to tail. Matches for one key therefore come
// out in reverse insertion order; accepted behavior, not a defect.
type JoinScan struct {
	_ht       *HashTable
	_joinTyp  JoinType
	_residual Residual
	_dict     *DictAccessor
}

func NewJoinScan(ht *HashTable, joinTyp JoinType, residual Residual) *JoinScan {
	util.AssertFunc(ht.Layout().MultiMap())
	return &JoinScan{
		_ht:       ht,
		_joinTyp:  joinTyp,
		_residual: residual,
	}
}

// UseDict switches the key probe to the dictionary fast path for rows that
// carry a precomputed code.
func (scan *JoinScan) UseDict(da *DictAccessor) {
	scan._dict = da
}

// probeEntry short-circuits NULL keys and keys outside the integral min/max
// range before consulting the table.
func (scan *JoinScan) probeEntry(probe *Row) *Entry {
	for i := range probe.Keys {
		if probe.Keys[i].IsNull {
			return nil
		}
	}
	if !scan._ht.MayContainKeys(probe.Keys) {
		return nil
	}
	if scan._dict != nil && probe.DictCode >= 0 {
		return scan._dict.Lookup(probe.DictCode)
	}
	return scan._ht.Lookup(HashKeys(probe.Keys), probe.Keys)
}

// eachMatch walks the chain and hands every node passing the residual to fn.
// fn returning false stops the walk.
func (scan *JoinScan) eachMatch(ent *Entry, probe *Row, fn func(build []Value) bool) {
	if ent == nil {
		return
	}
	arena := scan._ht._arena
	for idx := ent._head; idx != invalidChain; {
		node := arena.node(idx)
		build := scan._ht.nodeValues(ent, node)
		if scan._residual == nil || scan._residual(build, probe) {
			if !fn(build) {
				return
			}
		}
		idx = node._next
	}
}

// ProbeRow applies the per-join-type consumption logic for one probe row.
func (scan *JoinScan) ProbeRow(probe *Row, sink RowSink) {
	ent := scan.probeEntry(probe)
	switch scan._joinTyp {
	case JoinInner:
		scan.eachMatch(ent, probe, func(build []Value) bool {
			sink.Push(&JoinedRow{Build: build, Probe: probe})
			return true
		})
	case JoinSemi:
		scan.eachMatch(ent, probe, func(build []Value) bool {
			sink.Push(&JoinedRow{Probe: probe})
			return false
		})
	case JoinAnti:
		matched := false
		scan.eachMatch(ent, probe, func(build []Value) bool {
			matched = true
			return false
		})
		if !matched {
			sink.Push(&JoinedRow{Probe: probe})
		}
	case JoinMark:
		exists := false
		scan.eachMatch(ent, probe, func(build []Value) bool {
			exists = true
			return false
		})
		sink.Push(&JoinedRow{Probe: probe, Exists: exists})
	case JoinLeftOuter, JoinRightOuter:
		matched := false
		scan.eachMatch(ent, probe, func(build []Value) bool {
			matched = true
			sink.Push(&JoinedRow{Build: build, Probe: probe})
			return true
		})
		if !matched {
			//standard null extension of the build side
			sink.Push(&JoinedRow{Probe: probe})
		}
	default:
		panic("unknown join type")
	}
}

// ProbeBatch streams a batch through ProbeRow, checking cancellation between
// rows.
func (scan *JoinScan) ProbeBatch(ctx context.Context, rows []*Row, sink RowSink) error {
	for i, row := range rows {
		if i&63 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		scan.ProbeRow(row, sink)
	}
	return nil
}

// BuildJoin folds build-side rows into the table. Rows with any NULL key can
// never match an equality probe and are skipped; the count of skipped rows is
// returned.
func BuildJoin(ht *HashTable, rows []*Row) int {
	util.AssertFunc(ht.Layout().MultiMap())
	skipped := 0
	for _, row := range rows {
		hasNull := false
		for i := range row.Keys {
			if row.Keys[i].IsNull {
				hasNull = true
				break
			}
		}
		if hasNull {
			skipped++
			continue
		}
		ht.InsertRow(row)
	}
	return skipped
}
