package compute

import (
	"go.uber.org/zap"

	"github.com/daviszhen/exechash/pkg/util"
)

// bytes charged to the memory budget per slot of the entry reference array
const entryRefSize = 8

const defaultInitCap = 1024

// MemoryBudget is consulted before the entry array grows. A refusal makes the
// table request a spill instead of failing.
type MemoryBudget interface {
	Reserve(sz int) bool
	Release(sz int)
}

type UnlimitedBudget struct{}

func (*UnlimitedBudget) Reserve(sz int) bool {
	return true
}

func (*UnlimitedBudget) Release(sz int) {
}

// FixedBudget caps reservations at a byte limit. One budget per task, not
// safe for sharing across goroutines.
type FixedBudget struct {
	_limit int
	_used  int
}

func NewFixedBudget(limit int) *FixedBudget {
	return &FixedBudget{_limit: limit}
}

func (budget *FixedBudget) Reserve(sz int) bool {
	if budget._used+sz > budget._limit {
		return false
	}
	budget._used += sz
	return true
}

func (budget *FixedBudget) Release(sz int) {
	budget._used -= sz
	util.AssertFunc(budget._used >= 0)
}

func (budget *FixedBudget) Used() int {
	return budget._used
}

// Entry is one live slot: fixed key fields, value fields or a chain head, and
// the precomputed hash. Entries survive rehash by identity, only the slot
// moves.
type Entry struct {
	_hash      uint64
	_fields    []Value
	_nullMasks []uint64
	_head      int32
	_dups      uint64
}

func (ent *Entry) Hash() uint64 {
	return ent._hash
}

// Dups is the number of rows folded into this entry so far.
func (ent *Entry) Dups() uint64 {
	return ent._dups
}

type HashTable struct {
	_layout   *EntryLayout
	_entries  []*Entry
	_bitmask  uint64
	_count    int
	_unique   bool
	_arena    *chainArena
	_minmax   []*MinMax
	_budget   MemoryBudget
	_spillReq bool
	_loadNum  int
	_loadDen  int
	_initCap  int

	//bytes actually granted by the budget. Forced growth past a refusal is
	//not charged, so releases must not assume len(_entries) was.
	_reserved int
}

func NewHashTable(layout *EntryLayout, opts *util.HashTableOptions, budget MemoryBudget) *HashTable {
	if budget == nil {
		budget = &UnlimitedBudget{}
	}
	initCap := defaultInitCap
	loadNum, loadDen := 2, 3
	if opts != nil {
		if opts.InitCap > 0 {
			initCap = opts.InitCap
		}
		if opts.LoadFactorNum > 0 && opts.LoadFactorDen > opts.LoadFactorNum {
			loadNum = opts.LoadFactorNum
			loadDen = opts.LoadFactorDen
		}
	}
	initCap = int(util.NextPowerOfTwo(uint64(max(initCap, 4))))
	util.AssertFunc(budget.Reserve(initCap * entryRefSize))

	ht := &HashTable{
		_layout:   layout,
		_entries:  make([]*Entry, initCap),
		_bitmask:  uint64(initCap - 1),
		_unique:   true,
		_budget:   budget,
		_loadNum:  loadNum,
		_loadDen:  loadDen,
		_initCap:  initCap,
		_reserved: initCap * entryRefSize,
	}
	if layout._multiMap {
		ht._arena = newChainArena()
	}
	ht._minmax = make([]*MinMax, layout.KeyCount())
	for i := 0; i < layout.KeyCount(); i++ {
		if layout.KeyType(i).IsIntegral() {
			ht._minmax[i] = &MinMax{}
		}
	}
	return ht
}

func (ht *HashTable) Layout() *EntryLayout {
	return ht._layout
}

func (ht *HashTable) Count() int {
	return ht._count
}

func (ht *HashTable) Capacity() int {
	return len(ht._entries)
}

// KeysUnique stays true until the first duplicate-key insert.
func (ht *HashTable) KeysUnique() bool {
	return ht._unique
}

func (ht *HashTable) SpillRequested() bool {
	return ht._spillReq
}

// checkKeys guards the layout contract. A mismatch is a compiler bug upstream,
// not recoverable data.
func (ht *HashTable) checkKeys(keys []Value) {
	util.AssertFunc(len(keys) == ht._layout.KeyCount())
	for i := range keys {
		util.AssertFunc(keys[i].Typ.Id == ht._layout.KeyType(i).Id)
	}
}

func (ht *HashTable) newEntry(hash uint64, keys []Value) *Entry {
	ent := &Entry{
		_hash:      hash,
		_fields:    make([]Value, ht._layout.FieldCount()),
		_nullMasks: make([]uint64, ht._layout.MaskWords()),
		_head:      invalidChain,
		_dups:      1,
	}
	for i := range keys {
		ht._layout.storeField(ent._fields, ent._nullMasks, i, &keys[i])
	}
	//value fields start well-formed: NULL when nullable, typed zero otherwise
	for slot := len(keys); slot < ht._layout.FieldCount(); slot++ {
		field := &ht._layout._fields[slot]
		if field._nullable {
			null := NullValue(field._typ)
			ht._layout.storeField(ent._fields, ent._nullMasks, slot, &null)
			continue
		}
		zero := Value{Typ: field._typ}
		if field._typ.IsVarlen() {
			zero.Bytes = []byte{}
		}
		ent._fields[slot] = zero
	}
	return ent
}

func (ht *HashTable) keyMatches(ent *Entry, keys []Value) bool {
	for i := 0; i < ht._layout.KeyCount(); i++ {
		entNull := ht._layout.fieldIsNull(ent._fields, ent._nullMasks, i)
		if keys[i].IsNull != entNull {
			return false
		}
		if keys[i].IsNull {
			continue
		}
		if !keys[i].Equal(&ent._fields[i]) {
			return false
		}
	}
	return true
}

// LookupOrInsert probes from hash & mask with quadratic increments until an
// empty slot or an equal key. On empty it stores a new entry with
// default-initialized value fields and reports inserted; the caller decides
// how to update value fields or the chain.
func (ht *HashTable) LookupOrInsert(hash uint64, keys []Value) (*Entry, bool) {
	ht.checkKeys(keys)
	pos := hash & ht._bitmask
	delta := uint64(1)
	probes := 0
	for {
		ent := ht._entries[pos]
		if ent == nil {
			newEnt := ht.newEntry(hash, keys)
			ht._entries[pos] = newEnt
			ht.handleNewInsert()
			return newEnt, true
		}
		if ent._hash == hash && ht.keyMatches(ent, keys) {
			return ent, false
		}
		pos = (pos + delta) & ht._bitmask
		delta++
		probes++
		if probes > len(ht._entries) {
			//the load factor invariant rules this out
			panic("unbounded probe sequence")
		}
	}
}

// Lookup is the probe-only variant. Nil means the key is guaranteed absent.
func (ht *HashTable) Lookup(hash uint64, keys []Value) *Entry {
	ht.checkKeys(keys)
	pos := hash & ht._bitmask
	delta := uint64(1)
	probes := 0
	for {
		ent := ht._entries[pos]
		if ent == nil {
			return nil
		}
		if ent._hash == hash && ht.keyMatches(ent, keys) {
			return ent
		}
		pos = (pos + delta) & ht._bitmask
		delta++
		probes++
		if probes > len(ht._entries) {
			panic("unbounded probe sequence")
		}
	}
}

// handleNewInsert runs after a new entry was written. It keeps the load
// factor strictly below one: past the threshold the capacity doubles, unless
// the memory budget refuses, which flags a spill instead. Returns whether the
// entry array was replaced so callers refresh cached references.
func (ht *HashTable) handleNewInsert() bool {
	ht._count++
	if ht._count*ht._loadDen <= ht.Capacity()*ht._loadNum {
		return false
	}
	newCap := ht.Capacity() * 2
	charged := newCap * entryRefSize
	if !ht._budget.Reserve(charged) {
		ht._spillReq = true
		if ht._count+1 < ht.Capacity() {
			//degraded probing until the owner materializes the spill
			return false
		}
		//probe termination beats the budget. the owner must spill now.
		util.Warn("growing refused hash table past its budget",
			zap.Int("capacity", newCap))
		charged = 0
	}
	ht.rehash(newCap, charged)
	return true
}

func (ht *HashTable) rehash(newCap, charged int) {
	util.AssertFunc(util.IsPowerOfTwo(uint64(newCap)))
	old := ht._entries
	ht._entries = make([]*Entry, newCap)
	ht._bitmask = uint64(newCap - 1)
	//no duplicates can exist here, equality checks are pointless
	for _, ent := range old {
		if ent == nil {
			continue
		}
		pos := ent._hash & ht._bitmask
		delta := uint64(1)
		for ht._entries[pos] != nil {
			pos = (pos + delta) & ht._bitmask
			delta++
		}
		ht._entries[pos] = ent
	}
	ht._budget.Release(ht._reserved)
	ht._reserved = charged
}

// InsertRow folds one input row in: the key goes through LookupOrInsert, the
// payload either chains (multimap) or bumps the duplicate counter.
func (ht *HashTable) InsertRow(row *Row) (*Entry, bool) {
	hash := HashKeys(row.Keys)
	ent, inserted := ht.LookupOrInsert(hash, row.Keys)
	ht.updateMinMax(row.Keys)
	if ht._layout._multiMap {
		if ent._head != invalidChain {
			ht._unique = false
			ent._dups++
		}
		ent._head = ht._arena.prepend(ent._head, ht._layout, row.Vals)
	} else if !inserted {
		ht._unique = false
		ent._dups++
	}
	return ent, inserted
}

func (ht *HashTable) updateMinMax(keys []Value) {
	for i, mm := range ht._minmax {
		if mm == nil || keys[i].IsNull {
			continue
		}
		mm.Update(keys[i].I64)
	}
}

// MayContainKeys is the integral min/max pre-filter. False proves the key is
// absent without touching the entry array.
func (ht *HashTable) MayContainKeys(keys []Value) bool {
	for i, mm := range ht._minmax {
		if mm == nil || keys[i].IsNull {
			continue
		}
		if !mm.Contains(keys[i].I64) {
			return false
		}
	}
	return true
}

func (ht *HashTable) KeyRange(idx int) *MinMax {
	return ht._minmax[idx]
}

// EntryKeys materializes the key fields with NULLs restored.
func (ht *HashTable) EntryKeys(ent *Entry) []Value {
	keys := make([]Value, ht._layout.KeyCount())
	for i := range keys {
		keys[i] = ht._layout.loadField(ent._fields, ent._nullMasks, i)
	}
	return keys
}

// EntryValues materializes the logical value fields of a non-multimap entry,
// resolving back references into the key fields.
func (ht *HashTable) EntryValues(ent *Entry) []Value {
	util.AssertFunc(!ht._layout._multiMap)
	vals := make([]Value, ht._layout.ValueCount())
	for i := range vals {
		slot := ht._layout.ValueSlot(i)
		if slot < 0 {
			vals[i] = ht._layout.loadField(ent._fields, ent._nullMasks, -slot-1)
			continue
		}
		vals[i] = ht._layout.loadField(ent._fields, ent._nullMasks, slot)
	}
	return vals
}

// SetEntryValue writes one logical value field of a non-multimap entry. Back
// referenced fields are rejected, their bytes live in the key.
func (ht *HashTable) SetEntryValue(ent *Entry, idx int, val *Value) {
	util.AssertFunc(!ht._layout._multiMap)
	slot := ht._layout.ValueSlot(idx)
	util.AssertFunc(slot >= 0)
	ht._layout.storeField(ent._fields, ent._nullMasks, slot, val)
}

func (ht *HashTable) EntryValue(ent *Entry, idx int) Value {
	slot := ht._layout.ValueSlot(idx)
	if slot < 0 {
		return ht._layout.loadField(ent._fields, ent._nullMasks, -slot-1)
	}
	return ht._layout.loadField(ent._fields, ent._nullMasks, slot)
}

// nodeValues materializes the logical value fields of one chain node. Back
// references read from the owning entry's key fields.
func (ht *HashTable) nodeValues(ent *Entry, node *chainNode) []Value {
	vals := make([]Value, ht._layout.ValueCount())
	for i := range vals {
		slot := ht._layout.ValueSlot(i)
		if slot < 0 {
			vals[i] = ht._layout.loadField(ent._fields, ent._nullMasks, -slot-1)
			continue
		}
		vals[i] = ht._layout.loadNodeValue(node, slot)
	}
	return vals
}

// Each visits every live entry. Returning false stops the walk.
func (ht *HashTable) Each(fn func(ent *Entry) bool) {
	for _, ent := range ht._entries {
		if ent == nil {
			continue
		}
		if !fn(ent) {
			return
		}
	}
}

// ResetAfterSpill drops every entry and restarts at the initial capacity.
// The owner has already materialized the live entries elsewhere.
func (ht *HashTable) ResetAfterSpill() {
	ht._budget.Release(ht._reserved)
	ht._reserved = 0
	//the floor reservation is granted again once the old array is released
	if ht._budget.Reserve(ht._initCap * entryRefSize) {
		ht._reserved = ht._initCap * entryRefSize
	}
	ht._entries = make([]*Entry, ht._initCap)
	ht._bitmask = uint64(ht._initCap - 1)
	ht._count = 0
	ht._unique = true
	ht._spillReq = false
	if ht._arena != nil {
		ht._arena.reset()
	}
	for _, mm := range ht._minmax {
		if mm != nil {
			mm.Reset()
		}
	}
}
