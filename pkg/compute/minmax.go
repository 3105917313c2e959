package compute

// MinMax tracks the running (min, max) of one integral key field across every
// insert. The join iteration protocol uses it to skip probe rows whose key
// cannot be present.
type MinMax struct {
	_min  int64
	_max  int64
	_init bool
}

func (mm *MinMax) Update(v int64) {
	if !mm._init {
		mm._min = v
		mm._max = v
		mm._init = true
		return
	}
	if v < mm._min {
		mm._min = v
	}
	if v > mm._max {
		mm._max = v
	}
}

// Contains is false for the empty tracker: nothing was inserted, nothing can
// match.
func (mm *MinMax) Contains(v int64) bool {
	return mm._init && v >= mm._min && v <= mm._max
}

func (mm *MinMax) Valid() bool {
	return mm._init
}

func (mm *MinMax) Min() int64 {
	return mm._min
}

func (mm *MinMax) Max() int64 {
	return mm._max
}

func (mm *MinMax) Reset() {
	mm._init = false
}
