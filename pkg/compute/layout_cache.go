package compute

import (
	"strings"

	"github.com/huandu/go-clone"
	treemap "github.com/liyue201/gostl/ds/map"

	"github.com/daviszhen/exechash/pkg/util"
)

// LayoutCache memoizes compiled layouts per (key schema, value schema,
// multiMap) signature. One cache is shared by every operator instance of a
// query plan, so repeated fragments with the same physical schema skip the
// compiler.
type LayoutCache struct {
	_lock    *util.ReentryLock
	_layouts *treemap.Map[string, *EntryLayout]
}

func NewLayoutCache() *LayoutCache {
	cmp := func(a, b string) int {
		return strings.Compare(a, b)
	}
	return &LayoutCache{
		_lock:    util.NewReentryLock(),
		_layouts: treemap.New[string, *EntryLayout](cmp),
	}
}

func (cache *LayoutCache) Get(keyDefs, valDefs []FieldDef, multiMap bool) *EntryLayout {
	sig := LayoutSignature(keyDefs, valDefs, multiMap)
	cache._lock.Lock()
	defer cache._lock.Unlock()
	if got, err := cache._layouts.Get(sig); err == nil && got != nil {
		return got
	}
	//detach the defs from the caller before retaining them in the layout
	layout := NewEntryLayout(
		clone.Clone(keyDefs).([]FieldDef),
		clone.Clone(valDefs).([]FieldDef),
		multiMap)
	cache._layouts.Insert(sig, layout)
	return layout
}

func (cache *LayoutCache) Size() int {
	cache._lock.Lock()
	defer cache._lock.Unlock()
	return cache._layouts.Size()
}
