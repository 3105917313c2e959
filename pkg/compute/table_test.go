// Copyright 2024-2025 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package compute

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/exechash/pkg/common"
	"github.com/daviszhen/exechash/pkg/util"
)

func smallOpts() *util.HashTableOptions {
	return &util.HashTableOptions{
		InitCap:       4,
		LoadFactorNum: 2,
		LoadFactorDen: 3,
	}
}

func bigintKeyLayout(multiMap bool) *EntryLayout {
	keyDefs := []FieldDef{
		{Typ: common.BigintType(), Expr: "k"},
	}
	valDefs := []FieldDef{
		{Typ: common.BigintType(), Nullable: true, Expr: "v"},
	}
	return NewEntryLayout(keyDefs, valDefs, multiMap)
}

func Test_lookup_or_insert(t *testing.T) {
	ht := NewHashTable(bigintKeyLayout(false), smallOpts(), nil)
	keys := []Value{NewBigintValue(7)}
	hash := HashKeys(keys)

	ent, inserted := ht.LookupOrInsert(hash, keys)
	require.NotNil(t, ent)
	assert.True(t, inserted)
	assert.Equal(t, 1, ht.Count())

	//the same key resolves to the same entry, no second slot
	again, inserted2 := ht.LookupOrInsert(hash, keys)
	assert.False(t, inserted2)
	assert.Same(t, ent, again)
	assert.Equal(t, 1, ht.Count())

	assert.Same(t, ent, ht.Lookup(hash, keys))
	absent := []Value{NewBigintValue(8)}
	assert.Nil(t, ht.Lookup(HashKeys(absent), absent))
}

func Test_rehash_preserves_entries(t *testing.T) {
	ht := NewHashTable(bigintKeyLayout(false), smallOpts(), nil)
	assert.Equal(t, 4, ht.Capacity())

	const n = 100
	ents := make(map[int64]*Entry, n)
	for i := int64(0); i < n; i++ {
		keys := []Value{NewBigintValue(i)}
		ent, inserted := ht.LookupOrInsert(HashKeys(keys), keys)
		assert.True(t, inserted)
		ents[i] = ent
	}
	assert.Equal(t, n, ht.Count())
	assert.Greater(t, ht.Capacity(), 4)
	//load stays strictly below one
	assert.Less(t, ht.Count(), ht.Capacity())

	//entries survive every rehash by identity
	for i := int64(0); i < n; i++ {
		keys := []Value{NewBigintValue(i)}
		assert.Same(t, ents[i], ht.Lookup(HashKeys(keys), keys))
	}
}

func Test_null_key_groups(t *testing.T) {
	keyDefs := []FieldDef{
		{Typ: common.BigintType(), Nullable: true, Expr: "k"},
	}
	valDefs := []FieldDef{
		{Typ: common.BigintType(), Nullable: true, Expr: "v"},
	}
	layout := NewEntryLayout(keyDefs, valDefs, false)
	ht := NewHashTable(layout, smallOpts(), nil)

	null := []Value{NullValue(common.BigintType())}
	ent, inserted := ht.LookupOrInsert(HashKeys(null), null)
	assert.True(t, inserted)
	//NULL equals NULL in grouping
	again, inserted2 := ht.LookupOrInsert(HashKeys(null), null)
	assert.False(t, inserted2)
	assert.Same(t, ent, again)

	//NULL never matches a value even when the hashes collide
	val := []Value{NewBigintValue(0)}
	other, inserted3 := ht.LookupOrInsert(HashKeys(val), val)
	assert.True(t, inserted3)
	assert.NotSame(t, ent, other)

	keys := ht.EntryKeys(ent)
	assert.True(t, keys[0].IsNull)
}

func Test_entry_values_backref(t *testing.T) {
	keyDefs := []FieldDef{
		{Typ: common.BigintType(), Expr: "k"},
	}
	valDefs := []FieldDef{
		{Typ: common.BigintType(), Expr: "k"},
		{Typ: common.BigintType(), Nullable: true, Expr: "v"},
	}
	layout := NewEntryLayout(keyDefs, valDefs, false)
	ht := NewHashTable(layout, smallOpts(), nil)

	keys := []Value{NewBigintValue(42)}
	ent, _ := ht.LookupOrInsert(HashKeys(keys), keys)
	v := NewBigintValue(9)
	ht.SetEntryValue(ent, 1, &v)

	vals := ht.EntryValues(ent)
	require.Len(t, vals, 2)
	//value 0 reads through the back reference into the key
	assert.Equal(t, int64(42), vals[0].I64)
	assert.Equal(t, int64(9), vals[1].I64)

	//writing through a back reference is a contract violation
	assert.Panics(t, func() {
		bad := NewBigintValue(1)
		ht.SetEntryValue(ent, 0, &bad)
	})
}

func Test_new_entry_default_values(t *testing.T) {
	keyDefs := []FieldDef{
		{Typ: common.BigintType(), Expr: "k"},
	}
	valDefs := []FieldDef{
		{Typ: common.DoubleType(), Nullable: true, Expr: "a"},
		{Typ: common.BigintType(), Expr: "b"},
		{Typ: common.VarcharType(), Expr: "c"},
	}
	layout := NewEntryLayout(keyDefs, valDefs, false)
	ht := NewHashTable(layout, smallOpts(), nil)

	keys := []Value{NewBigintValue(1)}
	ent, inserted := ht.LookupOrInsert(HashKeys(keys), keys)
	require.True(t, inserted)

	//an entry is readable before any state was written
	vals := ht.EntryValues(ent)
	require.Len(t, vals, 3)
	assert.True(t, vals[0].IsNull)
	assert.Equal(t, common.LTID_DOUBLE, vals[0].Typ.Id)
	assert.False(t, vals[1].IsNull)
	assert.Equal(t, common.LTID_BIGINT, vals[1].Typ.Id)
	assert.Equal(t, int64(0), vals[1].I64)
	assert.Equal(t, common.LTID_VARCHAR, vals[2].Typ.Id)
	assert.NotNil(t, vals[2].Bytes)
	assert.Len(t, vals[2].Bytes, 0)
}

func Test_dup_counter(t *testing.T) {
	ht := NewHashTable(bigintKeyLayout(false), smallOpts(), nil)
	row := NewRow([]Value{NewBigintValue(1)}, []Value{NewBigintValue(0)})
	ent, _ := ht.InsertRow(row)
	assert.True(t, ht.KeysUnique())
	assert.Equal(t, uint64(1), ent.Dups())

	ht.InsertRow(row)
	ht.InsertRow(row)
	assert.False(t, ht.KeysUnique())
	assert.Equal(t, uint64(3), ent.Dups())
	assert.Equal(t, 1, ht.Count())
}

func Test_minmax_prefilter(t *testing.T) {
	ht := NewHashTable(bigintKeyLayout(false), smallOpts(), nil)
	//empty table proves every key absent
	assert.False(t, ht.MayContainKeys([]Value{NewBigintValue(1)}))

	for _, k := range []int64{10, 20, 30} {
		row := NewRow([]Value{NewBigintValue(k)}, []Value{NewBigintValue(0)})
		ht.InsertRow(row)
	}
	mm := ht.KeyRange(0)
	require.NotNil(t, mm)
	assert.True(t, mm.Valid())
	assert.Equal(t, int64(10), mm.Min())
	assert.Equal(t, int64(30), mm.Max())

	assert.False(t, ht.MayContainKeys([]Value{NewBigintValue(9)}))
	assert.False(t, ht.MayContainKeys([]Value{NewBigintValue(31)}))
	//inside the range stays a maybe: 15 was never inserted
	assert.True(t, ht.MayContainKeys([]Value{NewBigintValue(15)}))
	assert.Nil(t, ht.Lookup(HashKeys([]Value{NewBigintValue(15)}), []Value{NewBigintValue(15)}))
}

func Test_budget_refusal_requests_spill(t *testing.T) {
	//room for the floor array only
	budget := NewFixedBudget(4*entryRefSize + 8)
	ht := NewHashTable(bigintKeyLayout(false), smallOpts(), budget)
	assert.Equal(t, 4*entryRefSize, budget.Used())

	for i := int64(0); i < 3; i++ {
		keys := []Value{NewBigintValue(i)}
		ht.LookupOrInsert(HashKeys(keys), keys)
	}
	assert.True(t, ht.SpillRequested())

	ht.ResetAfterSpill()
	assert.False(t, ht.SpillRequested())
	assert.Equal(t, 0, ht.Count())
	assert.Equal(t, 4, ht.Capacity())
	assert.True(t, ht.KeysUnique())
	assert.Equal(t, 4*entryRefSize, budget.Used())
	assert.False(t, ht.MayContainKeys([]Value{NewBigintValue(0)}))
}

func Test_each_visits_all(t *testing.T) {
	ht := NewHashTable(bigintKeyLayout(false), smallOpts(), nil)
	seen := map[int64]bool{}
	for i := int64(0); i < 17; i++ {
		keys := []Value{NewBigintValue(i)}
		ht.LookupOrInsert(HashKeys(keys), keys)
	}
	ht.Each(func(ent *Entry) bool {
		seen[ht.EntryKeys(ent)[0].I64] = true
		return true
	})
	assert.Len(t, seen, 17)
}

func Test_check_keys_rejects_wrong_schema(t *testing.T) {
	ht := NewHashTable(bigintKeyLayout(false), smallOpts(), nil)
	bad := []Value{NewVarcharValue("x")}
	assert.Panics(t, func() {
		ht.LookupOrInsert(HashKeys(bad), bad)
	})
	assert.Panics(t, func() {
		two := []Value{NewBigintValue(1), NewBigintValue(2)}
		ht.Lookup(HashKeys(two), two)
	})
}

func Test_varchar_keys(t *testing.T) {
	keyDefs := []FieldDef{
		{Typ: common.VarcharType(), Expr: "s"},
	}
	valDefs := []FieldDef{
		{Typ: common.BigintType(), Nullable: true, Expr: "v"},
	}
	layout := NewEntryLayout(keyDefs, valDefs, false)
	ht := NewHashTable(layout, smallOpts(), nil)

	for i := 0; i < 50; i++ {
		keys := []Value{NewVarcharValue(fmt.Sprintf("key-%d", i))}
		_, inserted := ht.LookupOrInsert(HashKeys(keys), keys)
		assert.True(t, inserted)
	}
	for i := 0; i < 50; i++ {
		keys := []Value{NewVarcharValue(fmt.Sprintf("key-%d", i))}
		assert.NotNil(t, ht.Lookup(HashKeys(keys), keys))
	}
	assert.Equal(t, 50, ht.Count())

	//the empty string is a regular key
	empty := []Value{NewVarcharValue("")}
	_, inserted := ht.LookupOrInsert(HashKeys(empty), empty)
	assert.True(t, inserted)
	_, inserted = ht.LookupOrInsert(HashKeys(empty), empty)
	assert.False(t, inserted)
}
