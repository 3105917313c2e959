package compute

import (
	"fmt"
	"strings"

	"github.com/daviszhen/exechash/pkg/common"
	"github.com/daviszhen/exechash/pkg/util"
)

// FieldDef describes one key or value field of the table schema. Expr is the
// normalized text of the originating expression; two fields with the same
// non-empty Expr are the same expression and share one physical slot.
type FieldDef struct {
	Typ      common.LType
	Nullable bool
	Expr     string
}

type layoutField struct {
	_typ      common.LType
	_nullable bool

	//bit position in the null bitmask. word -1 means the field marks NULL
	//with an empty value instead of a bit.
	_maskWord int
	_maskBit  int
}

/*
EntryLayout
physical field order:

	| key fields | unique value fields |
	|------------|---------------------|

value fields whose expression equals a key field expression get no physical
slot. Their entry in the value slot map is a negative back reference into the
key fields. Nullable primitive fields share 64-bit null bitmask words, one bit
per field in physical order, a new word every 64th nullable primitive.
*/
type EntryLayout struct {
	_keyCount  int
	_fields    []layoutField
	_valSlots  []int
	_maskWords int
	_multiMap  bool
	_signature string

	//retained for Explain
	_keyDefs []FieldDef
	_valDefs []FieldDef
}

// matchKeyExpr resolves overlap elimination: the index of the key field with
// the same originating expression and type, or -1.
func matchKeyExpr(keyDefs []FieldDef, def FieldDef) int {
	if def.Expr == "" {
		return -1
	}
	for i, kd := range keyDefs {
		if kd.Expr == def.Expr && kd.Typ.Equal(def.Typ) {
			return i
		}
	}
	return -1
}

func NewEntryLayout(keyDefs, valDefs []FieldDef, multiMap bool) *EntryLayout {
	util.AssertFunc(len(keyDefs) != 0)
	layout := &EntryLayout{
		_keyCount: len(keyDefs),
		_multiMap: multiMap,
		_keyDefs:  util.CopyTo(keyDefs),
		_valDefs:  util.CopyTo(valDefs),
	}

	maskBits := 0
	addField := func(def FieldDef) {
		field := layoutField{
			_typ:      def.Typ,
			_nullable: def.Nullable,
			_maskWord: -1,
		}
		if def.Nullable && def.Typ.IsPrimitive() {
			field._maskWord = maskBits / 64
			field._maskBit = maskBits % 64
			maskBits++
		}
		layout._fields = append(layout._fields, field)
	}

	for _, kd := range keyDefs {
		addField(kd)
	}
	for _, vd := range valDefs {
		if keyIdx := matchKeyExpr(keyDefs, vd); keyIdx >= 0 {
			layout._valSlots = append(layout._valSlots, -(keyIdx + 1))
			continue
		}
		layout._valSlots = append(layout._valSlots, len(layout._fields))
		addField(vd)
	}

	layout._maskWords = (maskBits + 63) / 64
	layout._signature = LayoutSignature(keyDefs, valDefs, multiMap)
	return layout
}

func (layout *EntryLayout) KeyCount() int {
	return layout._keyCount
}

func (layout *EntryLayout) ValueCount() int {
	return len(layout._valSlots)
}

// FieldCount is the physical field count after overlap elimination.
func (layout *EntryLayout) FieldCount() int {
	return len(layout._fields)
}

func (layout *EntryLayout) uniqueValueCount() int {
	return len(layout._fields) - layout._keyCount
}

func (layout *EntryLayout) MaskWords() int {
	return layout._maskWords
}

func (layout *EntryLayout) MultiMap() bool {
	return layout._multiMap
}

func (layout *EntryLayout) Signature() string {
	return layout._signature
}

func (layout *EntryLayout) KeyType(idx int) common.LType {
	util.AssertFunc(idx < layout._keyCount)
	return layout._fields[idx]._typ
}

// ValueSlot maps a logical value field to its physical slot. Negative means
// back reference: the value is key field -(slot+1).
func (layout *EntryLayout) ValueSlot(idx int) int {
	return layout._valSlots[idx]
}

// fieldIsNullAt checks slot's NULL state. fields[at] is the stored value,
// which may sit at a different index than the layout slot in chain nodes.
func (layout *EntryLayout) fieldIsNullAt(fields []Value, at int, masks []uint64, slot int) bool {
	field := &layout._fields[slot]
	if !field._nullable {
		return false
	}
	if field._maskWord >= 0 {
		return masks[field._maskWord]&(uint64(1)<<field._maskBit) != 0
	}
	if field._typ.IsVarlen() {
		return fields[at].Bytes == nil
	}
	return fields[at].Boxed == nil
}

// storeFieldAt normalizes val into fields[at] per layout slot: primitive NULL
// sets the bitmask bit, non-primitive NULL stores the empty value. The stored
// Value never carries IsNull.
func (layout *EntryLayout) storeFieldAt(fields []Value, at int, masks []uint64, slot int, val *Value) {
	field := &layout._fields[slot]
	util.AssertFunc(field._typ.Id == val.Typ.Id)
	if val.IsNull {
		util.AssertFunc(field._nullable)
		fields[at] = Value{Typ: field._typ}
		if field._maskWord >= 0 {
			masks[field._maskWord] |= uint64(1) << field._maskBit
		}
		return
	}
	stored := *val
	stored.IsNull = false
	if field._typ.IsVarlen() && stored.Bytes == nil {
		//non-NULL empty string must stay distinguishable from NULL
		stored.Bytes = []byte{}
	}
	fields[at] = stored
	if field._maskWord >= 0 {
		masks[field._maskWord] &^= uint64(1) << field._maskBit
	}
}

func (layout *EntryLayout) fieldIsNull(fields []Value, masks []uint64, slot int) bool {
	return layout.fieldIsNullAt(fields, slot, masks, slot)
}

func (layout *EntryLayout) storeField(fields []Value, masks []uint64, slot int, val *Value) {
	layout.storeFieldAt(fields, slot, masks, slot, val)
}

func (layout *EntryLayout) loadField(fields []Value, masks []uint64, slot int) Value {
	if layout.fieldIsNull(fields, masks, slot) {
		return NullValue(layout._fields[slot]._typ)
	}
	return fields[slot]
}

// LayoutSignature normalizes (key schema, value schema, multiMap) into the
// cache key. The back reference pattern participates: two schemas with equal
// types but different expression overlap compile differently.
func LayoutSignature(keyDefs, valDefs []FieldDef, multiMap bool) string {
	sb := strings.Builder{}
	writeDef := func(def FieldDef) {
		sb.WriteString(def.Typ.String())
		if def.Nullable {
			sb.WriteByte('?')
		}
	}
	sb.WriteString("K[")
	for i, kd := range keyDefs {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeDef(kd)
	}
	sb.WriteString("]V[")
	for i, vd := range valDefs {
		if i > 0 {
			sb.WriteByte(',')
		}
		if keyIdx := matchKeyExpr(keyDefs, vd); keyIdx >= 0 {
			sb.WriteString(fmt.Sprintf("@%d", keyIdx))
			continue
		}
		writeDef(vd)
	}
	sb.WriteString("]")
	if multiMap {
		sb.WriteString("MM")
	}
	return sb.String()
}
