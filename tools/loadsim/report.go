package main

import (
	"ailiceos/bootinfo"
	"ailiceos/efi"
	"ailiceos/kernel/mm"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// writeReport prints the memory map the kernel received.
func writeReport(w io.Writer, info *bootinfo.BootInfo, phys mm.PhysicalMemory) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "START\tEND\tPAGES\tSIZE\tTYPE\n")

	var total, usable uint64
	info.VisitMemRegions(phys, func(desc *efi.MemoryDescriptor) bool {
		size := desc.NumberOfPages << mm.PageShift
		fmt.Fprintf(tw, "0x%012x\t0x%012x\t%d\t%s\t%s\n",
			desc.PhysicalStart, desc.PhysicalStart+size, desc.NumberOfPages, humanize.IBytes(size), desc.Type)

		total += size
		if desc.Type.Usable() {
			usable += size
		}
		return true
	})

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "%d descriptor(s), %s total, %s reusable by the kernel\n",
		info.MemoryMap.Len, humanize.IBytes(total), humanize.IBytes(usable))
	return err
}
