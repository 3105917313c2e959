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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviszhen/exechash/pkg/common"
)

func Test_hash_equal_values_hash_equal(t *testing.T) {
	a := NewBigintValue(42)
	b := NewBigintValue(42)
	assert.Equal(t, HashValue(&a), HashValue(&b))

	s1 := NewVarcharValue("hello")
	s2 := NewVarcharValue("hello")
	assert.Equal(t, HashValue(&s1), HashValue(&s2))

	n1 := NullValue(common.BigintType())
	n2 := NullValue(common.BigintType())
	assert.Equal(t, HashValue(&n1), HashValue(&n2))
}

func Test_hash_decimal_trailing_zeros(t *testing.T) {
	d1, err := common.ParseDecimal("1.0")
	require.NoError(t, err)
	d2, err := common.ParseDecimal("1.00")
	require.NoError(t, err)
	v1 := NewDecimalValue(d1, 15, 2)
	v2 := NewDecimalValue(d2, 15, 2)
	//values that compare equal must hash equal
	require.True(t, v1.Equal(&v2))
	assert.Equal(t, HashValue(&v1), HashValue(&v2))
}

func Test_hash_null_sentinel(t *testing.T) {
	n := NullValue(common.BigintType())
	assert.Equal(t, murmurhash64(uint64(nullKeySentinel)), HashValue(&n))
	//the sentinel is type independent
	s := NullValue(common.VarcharType())
	assert.Equal(t, HashValue(&n), HashValue(&s))
}

func Test_hash_combine_order_sensitive(t *testing.T) {
	a := NewBigintValue(1)
	b := NewBigintValue(2)
	h1 := HashKeys([]Value{a, b})
	h2 := HashKeys([]Value{b, a})
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, h1, HashKeys([]Value{a, b}))
}

func Test_hash_float_double_spread(t *testing.T) {
	seen := map[uint64]bool{}
	for i := 0; i < 100; i++ {
		v := NewDoubleValue(float64(i) * 0.5)
		seen[HashValue(&v)] = true
	}
	//a weak hash would collapse these
	assert.Greater(t, len(seen), 95)
}

func Test_hash_empty_vs_null_string(t *testing.T) {
	empty := NewVarcharValue("")
	null := NullValue(common.VarcharType())
	assert.NotEqual(t, HashValue(&empty), HashValue(&null))
}
