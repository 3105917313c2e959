package compute

import (
	"errors"

	"github.com/daviszhen/exechash/pkg/common"
	"github.com/daviszhen/exechash/pkg/util"
)

var ErrDictTooLarge = errors.New("dictionary exceeds the configured size cap")

// Dictionary is the external collaborator mapping the distinct values of one
// string column to stable integer codes in [0, Size()). Code Size() is
// reserved for NULL.
type Dictionary interface {
	Size() int
	Value(code int) []byte
}

// DictAccessor bypasses hashing and probing when the table has exactly one
// string key and a bounded dictionary of the probe column exists: the
// precomputed code indexes an array of entry references directly. Codes are
// unique, so the array never sees a collision.
//
// Slots resolve lazily, once per partition. The accessor must be Reset when
// its table restarts (spill) since entry references go stale then.
type DictAccessor struct {
	_ht       *HashTable
	_dict     Dictionary
	_slots    []*Entry
	_resolved []bool
}

func NewDictAccessor(ht *HashTable, dict Dictionary, sizeCap int) (*DictAccessor, error) {
	layout := ht.Layout()
	util.AssertFunc(layout.KeyCount() == 1)
	util.AssertFunc(layout.KeyType(0).Id == common.LTID_VARCHAR)
	n := dict.Size() + 1
	if sizeCap > 0 && n > sizeCap {
		//recoverable: the caller stays on the full hash path
		return nil, ErrDictTooLarge
	}
	return &DictAccessor{
		_ht:       ht,
		_dict:     dict,
		_slots:    make([]*Entry, n),
		_resolved: make([]bool, n),
	}, nil
}

// NullCode is the reserved last index.
func (da *DictAccessor) NullCode() int32 {
	return int32(da._dict.Size())
}

func (da *DictAccessor) keyForCode(code int32) Value {
	if code == da.NullCode() {
		return NullValue(common.VarcharType())
	}
	return NewBlobishVarchar(da._dict.Value(int(code)))
}

// Lookup probes by code. Nil is a guaranteed non-match, no hash fallback is
// ever needed on the probe side.
func (da *DictAccessor) Lookup(code int32) *Entry {
	util.AssertFunc(code >= 0 && int(code) < len(da._slots))
	if !da._resolved[code] {
		key := da.keyForCode(code)
		keys := []Value{key}
		da._slots[code] = da._ht.Lookup(HashKeys(keys), keys)
		da._resolved[code] = true
	}
	return da._slots[code]
}

// LookupOrInsert is the aggregation build side: a miss falls back to the hash
// path once, the created entry is cached in the slot for the rest of the
// partition.
func (da *DictAccessor) LookupOrInsert(code int32) (*Entry, bool) {
	util.AssertFunc(code >= 0 && int(code) < len(da._slots))
	if da._resolved[code] && da._slots[code] != nil {
		return da._slots[code], false
	}
	key := da.keyForCode(code)
	keys := []Value{key}
	ent, inserted := da._ht.LookupOrInsert(HashKeys(keys), keys)
	da._slots[code] = ent
	da._resolved[code] = true
	return ent, inserted
}

// Reset clears every cached slot. Cheap compared to reallocating per batch.
func (da *DictAccessor) Reset() {
	for i := range da._slots {
		da._slots[i] = nil
		da._resolved[i] = false
	}
}

// NewBlobishVarchar wraps raw dictionary bytes as a varchar key without
// copying.
func NewBlobishVarchar(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{Typ: common.VarcharType(), Bytes: b}
}
