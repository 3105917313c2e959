package compute

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// Explain renders the physical layout for plan output and debugging.
func (layout *EntryLayout) Explain() string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("entry layout %s", layout._signature))

	keys := tree.AddBranch("keys")
	for i := 0; i < layout._keyCount; i++ {
		keys.AddNode(layout.fieldLine(i, layout._keyDefs[i].Expr))
	}

	vals := tree.AddBranch("values")
	for i, slot := range layout._valSlots {
		if slot < 0 {
			vals.AddNode(fmt.Sprintf("%d: ref key[%d]", i, -slot-1))
			continue
		}
		vals.AddNode(layout.fieldLine(slot, layout._valDefs[i].Expr))
	}

	tree.AddMetaNode(fmt.Sprintf("%d words", layout._maskWords), "null bitmask")
	if layout._multiMap {
		tree.AddNode("multimap")
	}
	return tree.String()
}

func (layout *EntryLayout) fieldLine(slot int, expr string) string {
	field := &layout._fields[slot]
	line := fmt.Sprintf("%d: %v", slot, field._typ)
	if field._nullable {
		if field._maskWord >= 0 {
			line += fmt.Sprintf(" null@w%db%d", field._maskWord, field._maskBit)
		} else {
			line += " null@value"
		}
	}
	if expr != "" {
		line += " <" + expr + ">"
	}
	return line
}
