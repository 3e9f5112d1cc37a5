// Package telemetry reads the host-wide resource figures the monitor polls.
// Memory is system-wide on purpose: sibling load or leaks elsewhere endanger
// the host just as much as the supervised run does.
package telemetry

import "github.com/shirou/gopsutil/v4/mem"

// MemStats is a system-wide memory snapshot, in bytes.
type MemStats struct {
	RamUsed   uint64
	RamTotal  uint64
	SwapUsed  uint64
	SwapTotal uint64
}

type MemorySource interface {
	Read() (MemStats, error)
}

type sysMemSource struct{}

// NewSystemSource reads RAM and swap figures from the OS.
func NewSystemSource() MemorySource { return sysMemSource{} }

func (sysMemSource) Read() (MemStats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemStats{}, err
	}
	sw, err := mem.SwapMemory()
	if err != nil {
		return MemStats{}, err
	}
	return MemStats{
		RamUsed:   vm.Used,
		RamTotal:  vm.Total,
		SwapUsed:  sw.Used,
		SwapTotal: sw.Total,
	}, nil
}

// AccelSource is an open accelerator telemetry handle. Close must be called
// exactly once when sampling ends.
type AccelSource interface {
	MemoryUsed() (uint64, error)
	Close()
}

// AccelOpener tries to reach accelerator telemetry. An error means the
// telemetry is unavailable; callers treat that as a valid outcome, not a
// failure of the run.
type AccelOpener func() (AccelSource, error)
