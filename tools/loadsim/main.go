// Command loadsim runs the loader against a simulated UEFI machine and
// reports the handoff the kernel would receive.
package main

import (
	"ailiceos/bootinfo"
	"ailiceos/efi/efisim"
	"ailiceos/kernel/kfmt"
	"ailiceos/kernel/kmain"
	"ailiceos/kernel/loader"
	"ailiceos/kernel/mm"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// kernelPrefix marks console lines printed by the stub kernel.
const kernelPrefix = "kernel| "

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[loadsim] error: %s\n", err.Error())
	os.Exit(1)
}

// run parses args, boots the simulated machine and writes all console
// output followed by the memory map report to out.
func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("loadsim", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		configPath = fs.String("config", "", "YAML machine description")
		ram        = fs.String("ram", "", "simulated RAM size, e.g. 64MiB")
		kernelFile = fs.String("kernel", "", "host path of the kernel image (default: built-in demo kernel)")
		races      = fs.Int("exit-races", -1, "number of ExitBootServices calls that lose a race")
		failAt     = fs.Int("fail-alloc-at", -1, "fail the n-th and later page allocations")
		noACPI     = fs.Bool("no-acpi", false, "do not publish an ACPI RSDP")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := defaultMachineConfig()
	if *configPath != "" {
		if err := loadMachineConfig(*configPath, &cfg); err != nil {
			return err
		}
	}

	// flags override the config file
	if *ram != "" {
		cfg.RAM = *ram
	}
	if *kernelFile != "" {
		cfg.Kernel = *kernelFile
	}
	if *races >= 0 {
		cfg.ExitRaces = *races
	}
	if *failAt >= 0 {
		cfg.FailAllocationAt = *failAt
	}
	if *noACPI {
		cfg.ACPI = false
	}

	kernelImage := demoKernel()
	if cfg.Kernel != "" {
		var err error
		if kernelImage, err = os.ReadFile(cfg.Kernel); err != nil {
			return err
		}
	}

	fwCfg, err := cfg.firmwareConfig(kernelImage)
	if err != nil {
		return err
	}

	fw, err := efisim.New(fwCfg)
	if err != nil {
		return err
	}
	defer fw.Close()

	// The simulated kernel cannot execute; run the stub kernel's report
	// on the boot info instead. Its lines are tagged so they stand apart
	// from the loader's.
	var info *bootinfo.BootInfo
	fw.OnJump(func(_, arg uintptr) {
		decoded := bootinfo.Decode(fw.FrameBytes(mm.FrameFromAddress(arg)))
		info = &decoded

		loaderSink := kfmt.OutputSink()
		kfmt.SetOutputSink(&kfmt.PrefixWriter{Sink: out, Prefix: []byte(kernelPrefix)})
		kmain.Run(info, fw)
		kfmt.SetOutputSink(loaderSink)
	})

	defer kfmt.SetOutputSink(nil)
	if kerr := loader.Run(fw, fw, fw, out, cfg.loaderConfig()); kerr != loader.ErrEntryReturned {
		return kerr
	}

	fmt.Fprintln(out)
	return writeReport(out, info, fw)
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		exit(err)
	}
}
