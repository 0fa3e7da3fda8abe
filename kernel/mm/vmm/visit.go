package vmm

import (
	"ailiceos/kernel/mm"
	"ailiceos/kernel/mm/pmm"
)

// MappingVisitor is invoked for each present leaf entry. Returning false
// stops the visit.
type MappingVisitor func(page mm.Page, mapping Mapping) bool

// VisitMappings calls visitor for every present 4K leaf in the hierarchy in
// ascending virtual address order. Huge page entries are reported once with
// the FlagHugePage bit set and the page of their first address.
func (pt *PageTable) VisitMappings(visitor MappingVisitor) {
	pt.visitTable(pt.root, 0, 0, visitor)
}

func (pt *PageTable) visitTable(table pmm.FrameIndex, level uint8, base uintptr, visitor MappingVisitor) bool {
	for index := uintptr(0); index < entriesPerTable; index++ {
		ref := entryRef{arena: pt.arena, table: table, index: index}
		pte := ref.load()
		if !pte.HasFlags(FlagPresent) {
			continue
		}

		virtAddr := canonical(base | index<<pageLevelShifts[level])
		if level == pageLevels-1 || pte.HasFlags(FlagHugePage) {
			if !visitor(mm.PageFromAddress(virtAddr), Mapping{Frame: pte.Frame(), Flags: pte.Flags()}) {
				return false
			}
			continue
		}

		if !pt.visitTable(pt.arena.Adopt(pte.Frame()), level+1, virtAddr, visitor) {
			return false
		}
	}

	return true
}
