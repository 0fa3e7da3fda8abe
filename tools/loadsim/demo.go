package main

import (
	"ailiceos/kernel/image/elftest"
	"debug/elf"
)

// Demo kernel layout, linked in the upper half like a real kernel.
const (
	demoTextAddr   = 0xffffffff80000000
	demoRodataAddr = 0xffffffff80001000
	demoDataAddr   = 0xffffffff80002000
)

// demoKernel returns a small executable that idles forever.
func demoKernel() []byte {
	text := []byte{
		0xfa,       // cli
		0xf4,       // hlt
		0xeb, 0xfd, // jmp hlt
	}

	return elftest.Build(elftest.Image{
		Entry: demoTextAddr,
		Segments: []elftest.Segment{
			{VirtAddr: demoTextAddr, Flags: elf.PF_R | elf.PF_X, Data: text},
			{VirtAddr: demoRodataAddr, Flags: elf.PF_R, Data: []byte("I'm from Kernel!\x00")},
			{VirtAddr: demoDataAddr, Flags: elf.PF_R | elf.PF_W, Data: make([]byte, 64), MemSize: 0x4000},
		},
	})
}
