package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_next_power_of_two(t *testing.T) {
	assert.Equal(t, uint64(1), NextPowerOfTwo(1))
	assert.Equal(t, uint64(2), NextPowerOfTwo(2))
	assert.Equal(t, uint64(4), NextPowerOfTwo(3))
	assert.Equal(t, uint64(4), NextPowerOfTwo(4))
	assert.Equal(t, uint64(8), NextPowerOfTwo(5))
	assert.Equal(t, uint64(1024), NextPowerOfTwo(1000))
	assert.Equal(t, uint64(1<<31), NextPowerOfTwo(1<<31-1))
}

func Test_is_power_of_two(t *testing.T) {
	assert.True(t, IsPowerOfTwo(1))
	assert.True(t, IsPowerOfTwo(2))
	assert.True(t, IsPowerOfTwo(1024))
	assert.False(t, IsPowerOfTwo(3))
	assert.False(t, IsPowerOfTwo(1023))
}

func Test_hash_bytes(t *testing.T) {
	a := HashBytes([]byte("hello world"))
	b := HashBytes([]byte("hello world"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, HashBytes([]byte("hello worlc")))
	//length participates in the seed
	assert.NotEqual(t, HashBytes([]byte{}), HashBytes([]byte{0}))

	//cross the 8 byte block boundary
	long := make([]byte, 25)
	for i := range long {
		long[i] = byte(i)
	}
	c := HashBytes(long)
	long[24]++
	assert.NotEqual(t, c, HashBytes(long))
}

func Test_config_fill_default(t *testing.T) {
	cfg := &Config{}
	cfg.FillDefault()
	assert.Equal(t, 1024, cfg.HashTable.InitCap)
	assert.Equal(t, 2, cfg.HashTable.LoadFactorNum)
	assert.Equal(t, 3, cfg.HashTable.LoadFactorDen)
	assert.Greater(t, cfg.HashTable.DictSizeCap, 0)
	assert.Greater(t, cfg.Bench.Rows, 0)
	assert.Greater(t, cfg.Bench.Partitions, 0)

	//explicit settings survive
	cfg2 := &Config{}
	cfg2.HashTable.InitCap = 16
	cfg2.FillDefault()
	assert.Equal(t, 16, cfg2.HashTable.InitCap)
}
