package compute

import (
	"github.com/daviszhen/exechash/pkg/util"
)

const invalidChain int32 = -1

// chainNode holds the value fields of one duplicate-key row plus the next
// link. Nodes live in the arena, next is an index, so duplicate rows cost no
// individual allocations and cycles cannot form.
type chainNode struct {
	_vals  []Value
	_masks []uint64
	_next  int32
}

type chainArena struct {
	_nodes []chainNode
}

func newChainArena() *chainArena {
	return &chainArena{}
}

// prepend pushes a new node at the chain head. Traversal order is therefore
// the reverse of insertion order.
func (arena *chainArena) prepend(head int32, layout *EntryLayout, vals []Value) int32 {
	util.AssertFunc(len(vals) == layout.ValueCount())
	node := chainNode{
		_vals:  make([]Value, layout.uniqueValueCount()),
		_masks: make([]uint64, layout.MaskWords()),
		_next:  head,
	}
	for i := range vals {
		slot := layout.ValueSlot(i)
		if slot < 0 {
			//owned by the key fields of the entry
			continue
		}
		layout.storeNodeValue(&node, slot, &vals[i])
	}
	arena._nodes = append(arena._nodes, node)
	return int32(len(arena._nodes) - 1)
}

func (arena *chainArena) node(idx int32) *chainNode {
	return &arena._nodes[idx]
}

func (arena *chainArena) len() int {
	return len(arena._nodes)
}

func (arena *chainArena) reset() {
	arena._nodes = arena._nodes[:0]
}

// node arrays hold only the unique value fields, shifted down by keyCount
func (layout *EntryLayout) storeNodeValue(node *chainNode, slot int, val *Value) {
	util.AssertFunc(slot >= layout._keyCount)
	layout.storeFieldAt(node._vals, slot-layout._keyCount, node._masks, slot, val)
}

func (layout *EntryLayout) loadNodeValue(node *chainNode, slot int) Value {
	util.AssertFunc(slot >= layout._keyCount)
	if layout.fieldIsNullAt(node._vals, slot-layout._keyCount, node._masks, slot) {
		return NullValue(layout._fields[slot]._typ)
	}
	return node._vals[slot-layout._keyCount]
}
