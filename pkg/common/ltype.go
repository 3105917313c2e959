package common

import "fmt"

type LTypeId int

const (
	LTID_INVALID LTypeId = 0
	LTID_BOOLEAN LTypeId = 10
	LTID_INTEGER LTypeId = 13
	LTID_BIGINT  LTypeId = 14
	LTID_DECIMAL LTypeId = 21
	LTID_FLOAT   LTypeId = 22
	LTID_DOUBLE  LTypeId = 23
	LTID_VARCHAR LTypeId = 25
	LTID_BLOB    LTypeId = 26
	LTID_UBIGINT LTypeId = 31
	LTID_STRUCT  LTypeId = 100
	LTID_LIST    LTypeId = 101
	LTID_MAP     LTypeId = 102
)

var lTypeIdToStr = map[LTypeId]string{
	LTID_INVALID: "LTID_INVALID",
	LTID_BOOLEAN: "LTID_BOOLEAN",
	LTID_INTEGER: "LTID_INTEGER",
	LTID_BIGINT:  "LTID_BIGINT",
	LTID_DECIMAL: "LTID_DECIMAL",
	LTID_FLOAT:   "LTID_FLOAT",
	LTID_DOUBLE:  "LTID_DOUBLE",
	LTID_VARCHAR: "LTID_VARCHAR",
	LTID_BLOB:    "LTID_BLOB",
	LTID_UBIGINT: "LTID_UBIGINT",
	LTID_STRUCT:  "LTID_STRUCT",
	LTID_LIST:    "LTID_LIST",
	LTID_MAP:     "LTID_MAP",
}

func (id LTypeId) String() string {
	if s, has := lTypeIdToStr[id]; has {
		return s
	}
	return fmt.Sprintf("LTID_%d", int(id))
}

type LType struct {
	Id    LTypeId
	Width int
	Scale int
}

func MakeLType(id LTypeId) LType {
	return LType{Id: id}
}

func BooleanType() LType {
	return MakeLType(LTID_BOOLEAN)
}

func IntegerType() LType {
	return MakeLType(LTID_INTEGER)
}

func BigintType() LType {
	return MakeLType(LTID_BIGINT)
}

func FloatType() LType {
	return MakeLType(LTID_FLOAT)
}

func DoubleType() LType {
	return MakeLType(LTID_DOUBLE)
}

func DecimalType(width, scale int) LType {
	ret := MakeLType(LTID_DECIMAL)
	ret.Width = width
	ret.Scale = scale
	return ret
}

func VarcharType() LType {
	return MakeLType(LTID_VARCHAR)
}

func BlobType() LType {
	return MakeLType(LTID_BLOB)
}

func HashType() LType {
	return MakeLType(LTID_UBIGINT)
}

func StructType() LType {
	return MakeLType(LTID_STRUCT)
}

func ListType() LType {
	return MakeLType(LTID_LIST)
}

func MapType() LType {
	return MakeLType(LTID_MAP)
}

func (typ LType) Equal(o LType) bool {
	return typ.Id == o.Id &&
		typ.Width == o.Width &&
		typ.Scale == o.Scale
}

// IsIntegral covers the types whose key values fit the min/max range tracker.
func (typ LType) IsIntegral() bool {
	switch typ.Id {
	case LTID_INTEGER, LTID_BIGINT:
		return true
	default:
		return false
	}
}

// IsPrimitive covers fixed-size register-resident values. Nullability of
// primitive fields is tracked in the null bitmask. Everything else marks
// NULL with an empty value.
func (typ LType) IsPrimitive() bool {
	switch typ.Id {
	case LTID_BOOLEAN, LTID_INTEGER, LTID_BIGINT,
		LTID_FLOAT, LTID_DOUBLE, LTID_DECIMAL:
		return true
	default:
		return false
	}
}

func (typ LType) IsVarlen() bool {
	switch typ.Id {
	case LTID_VARCHAR, LTID_BLOB:
		return true
	default:
		return false
	}
}

func (typ LType) IsNested() bool {
	switch typ.Id {
	case LTID_STRUCT, LTID_LIST, LTID_MAP:
		return true
	default:
		return false
	}
}

func (typ LType) String() string {
	if typ.Id == LTID_DECIMAL {
		return fmt.Sprintf("%v(%d,%d)", typ.Id, typ.Width, typ.Scale)
	}
	return typ.Id.String()
}

func CopyLTypes(typs ...LType) []LType {
	ret := make([]LType, 0, len(typs))
	ret = append(ret, typs...)
	return ret
}
