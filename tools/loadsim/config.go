package main

import (
	"ailiceos/efi"
	"ailiceos/efi/efisim"
	"ailiceos/kernel/loader"
	"ailiceos/kernel/mm"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// regionConfig is a firmware reservation in the machine description.
type regionConfig struct {
	Start uint64 `yaml:"start"`
	Size  string `yaml:"size"`
	Type  string `yaml:"type"`
}

// machineConfig describes the simulated machine and the boot to run on it.
type machineConfig struct {
	RAM            string         `yaml:"ram"`
	DescriptorSize uint64         `yaml:"descriptor_size"`
	ACPI           bool           `yaml:"acpi"`
	Reserved       []regionConfig `yaml:"reserved"`

	// Kernel is a host path to the kernel image. The built-in demo
	// kernel is used when empty.
	Kernel     string `yaml:"kernel"`
	KernelPath string `yaml:"kernel_path"`

	MemoryMapSlack   uint64 `yaml:"memory_map_slack"`
	ExitRaces        int    `yaml:"exit_races"`
	FailAllocationAt int    `yaml:"fail_allocation_at"`
}

func defaultMachineConfig() machineConfig {
	return machineConfig{
		RAM:            "64MiB",
		DescriptorSize: efisim.DefaultDescriptorSize,
		ACPI:           true,
		Reserved: []regionConfig{
			{Start: 0, Size: "64KiB", Type: efi.ReservedMemoryType.String()},
			{Start: 0xa0000, Size: "384KiB", Type: efi.MemoryMappedIO.String()},
		},
		KernelPath:     loader.DefaultKernelPath,
		MemoryMapSlack: loader.DefaultMemoryMapSlack,
	}
}

// readMachineConfig overlays the YAML document in r onto cfg.
func readMachineConfig(r io.Reader, cfg *machineConfig) error {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("decode machine config: %w", err)
	}
	return nil
}

func loadMachineConfig(path string, cfg *machineConfig) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return readMachineConfig(file, cfg)
}

// loaderConfig returns the loader settings for the boot.
func (c *machineConfig) loaderConfig() loader.Config {
	cfg := loader.DefaultConfig()
	cfg.KernelPath = c.KernelPath
	cfg.MemoryMapSlack = c.MemoryMapSlack
	return cfg
}

// firmwareConfig translates the description into an efisim configuration
// with kernelImage stored on the boot volume.
func (c *machineConfig) firmwareConfig(kernelImage []byte) (efisim.Config, error) {
	ramSize, err := parsePageSize("ram", c.RAM)
	if err != nil {
		return efisim.Config{}, err
	}

	cfg := efisim.Config{
		RAMSize:          ramSize,
		DescriptorSize:   c.DescriptorSize,
		ACPI:             c.ACPI,
		Files:            map[string][]byte{c.KernelPath: kernelImage},
		ExitRaces:        c.ExitRaces,
		FailAllocationAt: c.FailAllocationAt,
	}

	for index, region := range c.Reserved {
		size, err := parsePageSize(fmt.Sprintf("reserved[%d].size", index), region.Size)
		if err != nil {
			return efisim.Config{}, err
		}

		memType, ok := efi.ParseMemoryType(region.Type)
		if !ok {
			return efisim.Config{}, fmt.Errorf("reserved[%d].type: unknown memory type %q", index, region.Type)
		}

		cfg.Reserved = append(cfg.Reserved, efisim.Region{
			Start: region.Start,
			Pages: size >> mm.PageShift,
			Type:  memType,
		})
	}

	return cfg, nil
}

// parsePageSize parses a human readable size that must be a non-zero
// multiple of the page size.
func parsePageSize(field, value string) (uint64, error) {
	size, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}

	if size == 0 || size%uint64(mm.PageSize) != 0 {
		return 0, fmt.Errorf("%s: %s is not a multiple of %s", field, value, humanize.IBytes(uint64(mm.PageSize)))
	}
	return size, nil
}
