package compute

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/daviszhen/exechash/pkg/common"
	"github.com/daviszhen/exechash/pkg/util"
)

// Value is the tagged union carrying one field of one row. The layout decides
// which arm is live based on the semantic type.
type Value struct {
	Typ    common.LType
	IsNull bool
	//value
	Bool  bool
	I64   int64
	F64   float64
	Dec   common.Decimal
	Bytes []byte
	Boxed any
}

// Equatable lets nested (struct/list/map) payloads supply their own equality.
// Without it nested values fall back to reflect.DeepEqual.
type Equatable interface {
	EqualTo(o any) bool
}

func NewBooleanValue(b bool) Value {
	return Value{Typ: common.BooleanType(), Bool: b}
}

func NewIntegerValue(v int32) Value {
	return Value{Typ: common.IntegerType(), I64: int64(v)}
}

func NewBigintValue(v int64) Value {
	return Value{Typ: common.BigintType(), I64: v}
}

func NewFloatValue(v float32) Value {
	return Value{Typ: common.FloatType(), F64: float64(v)}
}

func NewDoubleValue(v float64) Value {
	return Value{Typ: common.DoubleType(), F64: v}
}

func NewDecimalValue(dec common.Decimal, width, scale int) Value {
	return Value{Typ: common.DecimalType(width, scale), Dec: dec}
}

// NewVarcharValue keeps the string as raw bytes. Key equality is then a plain
// byte compare without unwrapping.
func NewVarcharValue(s string) Value {
	return Value{Typ: common.VarcharType(), Bytes: []byte(s)}
}

func NewBlobValue(b []byte) Value {
	return Value{Typ: common.BlobType(), Bytes: b}
}

func NewBoxedValue(typ common.LType, v any) Value {
	util.AssertFunc(typ.IsNested())
	return Value{Typ: typ, Boxed: v}
}

func NullValue(typ common.LType) Value {
	return Value{Typ: typ, IsNull: true}
}

func (val *Value) Equal(o *Value) bool {
	if val.IsNull || o.IsNull {
		return val.IsNull == o.IsNull
	}
	if val.Typ.Id != o.Typ.Id {
		return false
	}
	switch val.Typ.Id {
	case common.LTID_BOOLEAN:
		return val.Bool == o.Bool
	case common.LTID_INTEGER, common.LTID_BIGINT:
		return val.I64 == o.I64
	case common.LTID_FLOAT, common.LTID_DOUBLE:
		return val.F64 == o.F64
	case common.LTID_DECIMAL:
		return val.Dec.Equal(&o.Dec)
	case common.LTID_VARCHAR, common.LTID_BLOB:
		return bytes.Equal(val.Bytes, o.Bytes)
	case common.LTID_STRUCT, common.LTID_LIST, common.LTID_MAP:
		if eq, ok := val.Boxed.(Equatable); ok {
			return eq.EqualTo(o.Boxed)
		}
		return reflect.DeepEqual(val.Boxed, o.Boxed)
	default:
		panic(fmt.Sprintf("unsupported type in compare %v", val.Typ))
	}
}

func (val Value) String() string {
	if val.IsNull {
		return "NULL"
	}
	switch val.Typ.Id {
	case common.LTID_BOOLEAN:
		return fmt.Sprintf("%v", val.Bool)
	case common.LTID_INTEGER, common.LTID_BIGINT:
		return fmt.Sprintf("%d", val.I64)
	case common.LTID_FLOAT, common.LTID_DOUBLE:
		return fmt.Sprintf("%v", val.F64)
	case common.LTID_DECIMAL:
		return val.Dec.String()
	case common.LTID_VARCHAR:
		return string(val.Bytes)
	case common.LTID_BLOB:
		return fmt.Sprintf("0x%x", val.Bytes)
	default:
		return fmt.Sprintf("%v", val.Boxed)
	}
}

// Row is one upstream input row: ordered key values, ordered payload values,
// both already typed per the compiled layout. DictCode is the dictionary code
// of the single string key when the upstream dictionary collaborator supplied
// one, -1 otherwise.
type Row struct {
	Keys     []Value
	Vals     []Value
	DictCode int32
}

func NewRow(keys []Value, vals []Value) *Row {
	return &Row{Keys: keys, Vals: vals, DictCode: -1}
}

func NewCodedRow(keys []Value, vals []Value, code int32) *Row {
	return &Row{Keys: keys, Vals: vals, DictCode: code}
}
