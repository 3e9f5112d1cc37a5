package supervisor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/slambench/runner/internal/repository/dto"
	"github.com/slambench/runner/internal/telemetry"
	"golang.org/x/sys/unix"
)

const bytesPerGb = float64(1 << 30)

// monitorOutcome is written only by the monitor goroutine and read only
// after join, so no locking is needed.
type monitorOutcome struct {
	RamPeakGb  float64
	SwapPeakGb float64
	GpuPeakGb  *float64

	Breached bool
	// Diagnostics in emission order, drained by the aggregator.
	Comments []string
}

type monitor struct {
	mem             telemetry.MemorySource
	accel           telemetry.AccelOpener
	interval        time.Duration
	maxRamFraction  float64
	maxSwapFraction float64
	terminate       func(dto.ProcessHandle)

	stop chan struct{}
	done chan struct{}
	out  monitorOutcome
}

func newMonitor(mem telemetry.MemorySource, accel telemetry.AccelOpener, interval time.Duration, terminate func(dto.ProcessHandle)) *monitor {
	return &monitor{
		mem:             mem,
		accel:           accel,
		interval:        interval,
		maxRamFraction:  MaxRamFraction,
		maxSwapFraction: MaxSwapFraction,
		terminate:       terminate,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// run samples system memory until the process exits, a threshold is
// breached, or stop is closed.
func (m *monitor) run(handle dto.ProcessHandle) {
	defer close(m.done)

	var gpu telemetry.AccelSource
	if m.accel != nil {
		if src, err := m.accel(); err == nil {
			gpu = src
		}
	}
	var gpuBase float64
	gpuSeen := false
	if gpu != nil {
		defer gpu.Close()
		if used, err := gpu.MemoryUsed(); err == nil {
			gpuBase = float64(used) / bytesPerGb
			gpuSeen = true
		}
	}

	base, err := m.mem.Read()
	if err != nil {
		// Without a baseline no incremental peak makes sense.
		return
	}
	ramBase := float64(base.RamUsed) / bytesPerGb
	swapBase := float64(base.SwapUsed) / bytesPerGb

	var ramPeak, swapPeak, gpuPeak float64
	defer func() {
		m.out.RamPeakGb = ramPeak
		m.out.SwapPeakGb = swapPeak
		if gpuSeen {
			peak := gpuPeak
			m.out.GpuPeakGb = &peak
		}
	}()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
		}
		if !processAlive(handle.Pid) {
			return
		}

		cur, err := m.mem.Read()
		if err != nil {
			continue
		}
		ramUsed := float64(cur.RamUsed) / bytesPerGb
		ramTotal := float64(cur.RamTotal) / bytesPerGb
		swapUsed := float64(cur.SwapUsed) / bytesPerGb
		swapTotal := float64(cur.SwapTotal) / bytesPerGb

		var ramRatio, swapRatio float64
		if ramTotal > 0 {
			ramRatio = ramUsed / ramTotal
		}
		if swapTotal > 0 {
			swapRatio = swapUsed / swapTotal
		}

		if ramRatio > m.maxRamFraction {
			msg := fmt.Sprintf("RAM threshold exceeded: %.1f/%.1f GB (> %.0f%%)", ramUsed, ramTotal, m.maxRamFraction*100)
			m.breach(msg, handle)
			return
		}
		if swapRatio > m.maxSwapFraction {
			msg := fmt.Sprintf("Swap threshold exceeded: %.1f/%.1f GB (> %.0f%%)", swapUsed, swapTotal, m.maxSwapFraction*100)
			m.breach(msg, handle)
			return
		}

		ramPeak = max(ramPeak, ramUsed-ramBase)
		swapPeak = max(swapPeak, swapUsed-swapBase)
		if gpu != nil {
			if used, err := gpu.MemoryUsed(); err == nil {
				gpuPeak = max(gpuPeak, float64(used)/bytesPerGb-gpuBase)
			}
		}
	}
}

func (m *monitor) breach(msg string, handle dto.ProcessHandle) {
	slog.Error(msg)
	m.out.Breached = true
	m.out.Comments = append(m.out.Comments, msg+". Process killed.")
	m.terminate(handle)
}

// requestStop tells the monitor the process has been waited on.
func (m *monitor) requestStop() { close(m.stop) }

// join blocks until the monitor goroutine has finished. Outcome fields must
// not be read before join returns.
func (m *monitor) join() *monitorOutcome {
	<-m.done
	return &m.out
}

// processAlive probes with signal 0. EPERM still means the process exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
