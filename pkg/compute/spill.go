package compute

import (
	"context"

	"github.com/tidwall/btree"

	"github.com/daviszhen/exechash/pkg/util"
)

// spillRow is one materialized entry: keys plus partial aggregate states.
// Rows sort by (hash, arrival) so a replay of several dumps streams groups
// with equal hashes together.
type spillRow struct {
	_hash   uint64
	_seq    uint64
	_keys   []Value
	_states []Value
}

func spillRowLess(a, b *spillRow) bool {
	if a._hash != b._hash {
		return a._hash < b._hash
	}
	return a._seq < b._seq
}

// SpillStore is the secondary materialization target when the memory budget
// refuses further growth. A sorted in-process run; the surrounding engine
// swaps in an external sorter when even this must leave memory.
type SpillStore struct {
	_tree *btree.BTreeG[*spillRow]
	_seq  uint64
}

func NewSpillStore() *SpillStore {
	return &SpillStore{
		_tree: btree.NewBTreeG[*spillRow](spillRowLess),
	}
}

// Dump materializes every live entry of a non-multimap table into the store.
// The caller resets the table afterwards.
func (store *SpillStore) Dump(ht *HashTable) int {
	util.AssertFunc(!ht.Layout().MultiMap())
	n := 0
	ht.Each(func(ent *Entry) bool {
		row := &spillRow{
			_hash:   ent.Hash(),
			_seq:    store._seq,
			_keys:   ht.EntryKeys(ent),
			_states: ht.EntryValues(ent),
		}
		store._seq++
		store._tree.Set(row)
		n++
		return true
	})
	return n
}

func (store *SpillStore) Len() int {
	return store._tree.Len()
}

// Replay streams the run in (hash, arrival) order, checking cancellation
// periodically.
func (store *SpillStore) Replay(ctx context.Context, fn func(keys, states []Value) error) error {
	var err error
	i := 0
	store._tree.Scan(func(row *spillRow) bool {
		if i&63 == 0 {
			if err = ctx.Err(); err != nil {
				return false
			}
		}
		i++
		if err = fn(row._keys, row._states); err != nil {
			return false
		}
		return true
	})
	return err
}
