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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_spill_dump_replay(t *testing.T) {
	ht := NewHashTable(bigintKeyLayout(false), smallOpts(), nil)
	for i := int64(0); i < 10; i++ {
		keys := []Value{NewBigintValue(i)}
		ent, _ := ht.LookupOrInsert(HashKeys(keys), keys)
		v := NewBigintValue(i * 100)
		ht.SetEntryValue(ent, 0, &v)
	}

	store := NewSpillStore()
	n := store.Dump(ht)
	assert.Equal(t, 10, n)
	assert.Equal(t, 10, store.Len())
	ht.ResetAfterSpill()

	//a second dump of a fresh batch lands in the same run
	keys := []Value{NewBigintValue(3)}
	ent, _ := ht.LookupOrInsert(HashKeys(keys), keys)
	v := NewBigintValue(999)
	ht.SetEntryValue(ent, 0, &v)
	store.Dump(ht)
	assert.Equal(t, 11, store.Len())

	got := map[int64][]int64{}
	var hashes []uint64
	err := store.Replay(context.Background(), func(keys, states []Value) error {
		got[keys[0].I64] = append(got[keys[0].I64], states[0].I64)
		hashes = append(hashes, HashKeys(keys))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 10)
	//both partial states of key 3 replay, older first
	assert.Equal(t, []int64{300, 999}, got[3])
	//the run streams in hash order so equal groups are adjacent
	for i := 1; i < len(hashes); i++ {
		assert.LessOrEqual(t, hashes[i-1], hashes[i])
	}
}

func Test_spill_replay_cancellation(t *testing.T) {
	ht := NewHashTable(bigintKeyLayout(false), smallOpts(), nil)
	for i := int64(0); i < 5; i++ {
		keys := []Value{NewBigintValue(i)}
		ht.LookupOrInsert(HashKeys(keys), keys)
	}
	store := NewSpillStore()
	store.Dump(ht)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := store.Replay(ctx, func(keys, states []Value) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}
