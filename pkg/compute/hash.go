package compute

import (
	"fmt"
	"math"

	"github.com/daviszhen/exechash/pkg/common"
	"github.com/daviszhen/exechash/pkg/util"
)

// hashCombineSeed is the additive constant of the Jenkins one-at-a-time style
// combiner. Cheap and good avalanche on register-resident values.
const hashCombineSeed uint64 = 0x9e3779b9

// a NULL key field still participates in bucket distribution. Kept as a
// variable so the uint64 conversion below is a value conversion.
var nullKeySentinel int64 = -1

func murmurhash64(x uint64) uint64 {
	x ^= x >> 32
	x *= 0xd6e8feb86659fd93
	x ^= x >> 32
	x *= 0xd6e8feb86659fd93
	x ^= x >> 32
	return x
}

func murmurhash32(x uint32) uint64 {
	return murmurhash64(uint64(x))
}

// Hash64er lets nested payloads supply their own well-distributed hash.
type Hash64er interface {
	Hash64() uint64
}

// HashValue is the type-specialized hash of one key field. 32-bit and 64-bit
// representations get dedicated mixing, strings and nested values hash their
// bytes.
func HashValue(val *Value) uint64 {
	if val.IsNull {
		return murmurhash64(uint64(nullKeySentinel))
	}
	switch val.Typ.Id {
	case common.LTID_BOOLEAN:
		if val.Bool {
			return murmurhash32(1)
		}
		return murmurhash32(0)
	case common.LTID_INTEGER:
		return murmurhash32(uint32(int32(val.I64)))
	case common.LTID_BIGINT:
		return murmurhash64(uint64(val.I64))
	case common.LTID_FLOAT:
		return murmurhash32(math.Float32bits(float32(val.F64)))
	case common.LTID_DOUBLE:
		return murmurhash64(math.Float64bits(val.F64))
	case common.LTID_DECIMAL:
		//canonical text form, so 1.0 and 1.00 collide as their Cmp does
		return util.HashBytes([]byte(val.Dec.Canonical()))
	case common.LTID_VARCHAR, common.LTID_BLOB:
		return util.HashBytes(val.Bytes)
	case common.LTID_STRUCT, common.LTID_LIST, common.LTID_MAP:
		if h, ok := val.Boxed.(Hash64er); ok {
			return h.Hash64()
		}
		return util.HashBytes([]byte(fmt.Sprintf("%v", val.Boxed)))
	default:
		panic(fmt.Sprintf("unsupported type in hash %v", val.Typ))
	}
}

func CombineHash(h, f uint64) uint64 {
	return (h ^ hashCombineSeed) + f + (h << 6) + (h >> 2)
}

// HashKeys gives the first key column the specialized fast hash and folds the
// rest in with the combiner.
func HashKeys(keys []Value) uint64 {
	util.AssertFunc(len(keys) != 0)
	h := HashValue(&keys[0])
	for i := 1; i < len(keys); i++ {
		h = CombineHash(h, HashValue(&keys[i]))
	}
	return h
}
