//go:build !kernel

package main

import (
	"ailiceos/efi"
	"ailiceos/kernel/loader"
)

// bootServices is set by the firmware entry trampoline before main runs. It
// binds the UEFI boot services table to the efi.BootServices interface.
var bootServices efi.BootServices

// main is the loader entry point invoked by the trampoline once the Go
// runtime is usable. It loads the kernel and jumps to it; it never returns.
func main() {
	loader.Boot(bootServices, loader.DefaultConfig())
}
