package compute

import (
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/daviszhen/exechash/pkg/common"
	"github.com/daviszhen/exechash/pkg/util"
)

type AggrKind int

const (
	AggrCount AggrKind = iota
	AggrSum
	AggrMin
	AggrMax
)

// AggrSpec is one aggregate over the input payload. ArgIdx indexes the row
// payload values; -1 with AggrCount counts rows, otherwise count skips NULL
// arguments.
type AggrSpec struct {
	Kind   AggrKind
	ArgIdx int
}

// stateDef derives the state field schema of one aggregate.
func stateDef(spec AggrSpec, argDefs []FieldDef) FieldDef {
	if spec.Kind == AggrCount {
		return FieldDef{Typ: common.BigintType()}
	}
	arg := argDefs[spec.ArgIdx]
	typ := arg.Typ
	if spec.Kind == AggrSum {
		switch typ.Id {
		case common.LTID_INTEGER, common.LTID_BIGINT:
			typ = common.BigintType()
		case common.LTID_FLOAT, common.LTID_DOUBLE:
			typ = common.DoubleType()
		}
	}
	//min/sum/max stay NULL until the first non-NULL argument
	return FieldDef{Typ: typ, Nullable: true}
}

// AggrExec owns one hash table and folds input rows into per-group aggregate
// states held in the entry value fields. Under memory pressure the live
// entries move to the spill store and the table restarts small; Finish merges
// the spilled runs back.
type AggrExec struct {
	_layout *EntryLayout
	_specs  []AggrSpec
	_ht     *HashTable
	_spill  *SpillStore
	_dict   *DictAccessor
	_spills int
}

func NewAggrExec(
	cache *LayoutCache,
	keyDefs []FieldDef,
	specs []AggrSpec,
	argDefs []FieldDef,
	opts *util.HashTableOptions,
	budget MemoryBudget,
) *AggrExec {
	stateDefs := make([]FieldDef, len(specs))
	for i, spec := range specs {
		stateDefs[i] = stateDef(spec, argDefs)
	}
	layout := cache.Get(keyDefs, stateDefs, false)
	return &AggrExec{
		_layout: layout,
		_specs:  specs,
		_ht:     NewHashTable(layout, opts, budget),
	}
}

func (exec *AggrExec) Table() *HashTable {
	return exec._ht
}

// UseDict enables the single-string-key fast path. ErrDictTooLarge keeps the
// executor on the full hash path, which is always correct.
func (exec *AggrExec) UseDict(dict Dictionary, sizeCap int) error {
	da, err := NewDictAccessor(exec._ht, dict, sizeCap)
	if err != nil {
		util.Debug("dictionary fast path disabled", zap.Error(err))
		return err
	}
	exec._dict = da
	return nil
}

func (exec *AggrExec) AddRow(row *Row) {
	var ent *Entry
	var inserted bool
	if exec._dict != nil && row.DictCode >= 0 {
		ent, inserted = exec._dict.LookupOrInsert(row.DictCode)
		if !inserted {
			exec._ht._unique = false
			ent._dups++
		}
	} else {
		ent, inserted = exec._ht.InsertRow(row)
	}
	if inserted {
		exec.initStates(ent)
	}
	exec.updateStates(ent, row.Vals)
	if exec._ht.SpillRequested() {
		exec.spillNow()
	}
}

func (exec *AggrExec) initStates(ent *Entry) {
	for i, spec := range exec._specs {
		if spec.Kind == AggrCount {
			zero := NewBigintValue(0)
			exec._ht.SetEntryValue(ent, i, &zero)
			continue
		}
		null := NullValue(exec._layout._valDefs[i].Typ)
		exec._ht.SetEntryValue(ent, i, &null)
	}
}

func (exec *AggrExec) updateStates(ent *Entry, args []Value) {
	for i, spec := range exec._specs {
		switch spec.Kind {
		case AggrCount:
			if spec.ArgIdx >= 0 && args[spec.ArgIdx].IsNull {
				continue
			}
			cur := exec._ht.EntryValue(ent, i)
			cur.I64++
			exec._ht.SetEntryValue(ent, i, &cur)
		case AggrSum:
			arg := args[spec.ArgIdx]
			if arg.IsNull {
				continue
			}
			cur := exec._ht.EntryValue(ent, i)
			next := addToState(&cur, &arg)
			exec._ht.SetEntryValue(ent, i, &next)
		case AggrMin, AggrMax:
			arg := args[spec.ArgIdx]
			if arg.IsNull {
				continue
			}
			cur := exec._ht.EntryValue(ent, i)
			if cur.IsNull ||
				(spec.Kind == AggrMin && lessThan(&arg, &cur)) ||
				(spec.Kind == AggrMax && lessThan(&cur, &arg)) {
				exec._ht.SetEntryValue(ent, i, &arg)
			}
		}
	}
}

// combineStates folds the partial states of one spilled row into a live
// entry. Count adds, sum adds, min/max compare.
func (exec *AggrExec) combineStates(ent *Entry, states []Value) {
	for i, spec := range exec._specs {
		in := states[i]
		switch spec.Kind {
		case AggrCount:
			cur := exec._ht.EntryValue(ent, i)
			cur.I64 += in.I64
			exec._ht.SetEntryValue(ent, i, &cur)
		case AggrSum:
			if in.IsNull {
				continue
			}
			cur := exec._ht.EntryValue(ent, i)
			next := addToState(&cur, &in)
			exec._ht.SetEntryValue(ent, i, &next)
		case AggrMin, AggrMax:
			if in.IsNull {
				continue
			}
			cur := exec._ht.EntryValue(ent, i)
			if cur.IsNull ||
				(spec.Kind == AggrMin && lessThan(&in, &cur)) ||
				(spec.Kind == AggrMax && lessThan(&cur, &in)) {
				exec._ht.SetEntryValue(ent, i, &in)
			}
		}
	}
}

func (exec *AggrExec) spillNow() {
	if exec._spill == nil {
		exec._spill = NewSpillStore()
	}
	n := exec._spill.Dump(exec._ht)
	exec._ht.ResetAfterSpill()
	if exec._dict != nil {
		exec._dict.Reset()
	}
	exec._spills++
	util.Warn("aggregation hash table spilled",
		zap.Int("entries", n),
		zap.Int("spills", exec._spills))
}

// Finish merges the spilled runs back into the table. The merge itself must
// terminate, so growth during the merge ignores the budget and logs instead.
func (exec *AggrExec) Finish(ctx context.Context) error {
	if exec._spill == nil || exec._spill.Len() == 0 {
		return nil
	}
	err := exec._spill.Replay(ctx, func(keys, states []Value) error {
		ent, inserted := exec._ht.LookupOrInsert(HashKeys(keys), keys)
		exec._ht.updateMinMax(keys)
		if inserted {
			exec.initStates(ent)
		} else {
			exec._ht._unique = false
		}
		exec.combineStates(ent, states)
		return nil
	})
	if err != nil {
		return err
	}
	exec._spill = nil
	exec._ht._spillReq = false
	return nil
}

// Spills reports how many times the table restarted under memory pressure.
func (exec *AggrExec) Spills() int {
	return exec._spills
}

// Count is the number of distinct groups held in the table. Only meaningful
// after Finish when spills happened.
func (exec *AggrExec) Count() int {
	return exec._ht.Count()
}

// Scan pulls the per-group state after the input is exhausted. Returning
// false stops the walk.
func (exec *AggrExec) Scan(fn func(keys []Value, states []Value) bool) {
	exec._ht.Each(func(ent *Entry) bool {
		return fn(exec._ht.EntryKeys(ent), exec._ht.EntryValues(ent))
	})
}

func addToState(cur *Value, arg *Value) Value {
	if cur.IsNull {
		return convertToState(cur.Typ, arg)
	}
	res := *cur
	switch cur.Typ.Id {
	case common.LTID_BIGINT:
		res.I64 += arg.I64
	case common.LTID_DOUBLE:
		res.F64 += arg.F64
	case common.LTID_DECIMAL:
		res.Dec.Add(&arg.Dec)
	default:
		panic(fmt.Sprintf("unsupported sum state %v", cur.Typ))
	}
	return res
}

func convertToState(typ common.LType, arg *Value) Value {
	res := Value{Typ: typ}
	switch typ.Id {
	case common.LTID_BIGINT:
		res.I64 = arg.I64
	case common.LTID_DOUBLE:
		res.F64 = arg.F64
	case common.LTID_DECIMAL:
		res.Dec = arg.Dec
	default:
		panic(fmt.Sprintf("unsupported sum state %v", typ))
	}
	return res
}

func lessThan(a, b *Value) bool {
	switch a.Typ.Id {
	case common.LTID_INTEGER, common.LTID_BIGINT:
		return a.I64 < b.I64
	case common.LTID_FLOAT, common.LTID_DOUBLE:
		return a.F64 < b.F64
	case common.LTID_DECIMAL:
		return a.Dec.Less(&b.Dec)
	case common.LTID_VARCHAR, common.LTID_BLOB:
		return bytes.Compare(a.Bytes, b.Bytes) < 0
	default:
		panic(fmt.Sprintf("unsupported type in compare %v", a.Typ))
	}
}
