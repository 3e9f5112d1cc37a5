package supervisor

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/slambench/runner/internal/repository/dto"
	"github.com/slambench/runner/internal/telemetry"
	"golang.org/x/sys/unix"
)

var quietStats = telemetry.MemStats{
	RamUsed:   8 << 30,
	RamTotal:  32 << 30,
	SwapUsed:  0,
	SwapTotal: 8 << 30,
}

type stubMem struct {
	stats telemetry.MemStats
}

func (s stubMem) Read() (telemetry.MemStats, error) { return s.stats, nil }

// seqMem replays a fixed sequence of snapshots, repeating the last one.
// Only the monitor goroutine reads it, so no locking.
type seqMem struct {
	seq []telemetry.MemStats
	idx int
}

func (s *seqMem) Read() (telemetry.MemStats, error) {
	st := s.seq[min(s.idx, len(s.seq)-1)]
	s.idx++
	return st, nil
}

type fakeAccel struct {
	used   []uint64
	idx    int
	closed int
}

func (f *fakeAccel) MemoryUsed() (uint64, error) {
	u := f.used[min(f.idx, len(f.used)-1)]
	f.idx++
	return u, nil
}

func (f *fakeAccel) Close() { f.closed++ }

func noAccel() (telemetry.AccelSource, error) {
	return nil, fmt.Errorf("no accelerator present")
}

func spawnSleep(t *testing.T) (dto.ProcessHandle, func()) {
	t.Helper()
	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to spawn sleep: %v", err)
	}
	go cmd.Wait()
	h := dto.ProcessHandle{Pid: cmd.Process.Pid, Pgid: cmd.Process.Pid}
	return h, func() { _ = unix.Kill(-h.Pgid, unix.SIGKILL) }
}

func joinWithin(t *testing.T, mon *monitor, d time.Duration) *monitorOutcome {
	t.Helper()
	outCh := make(chan *monitorOutcome, 1)
	go func() { outCh <- mon.join() }()
	select {
	case out := <-outCh:
		return out
	case <-time.After(d):
		t.Fatal("monitor did not finish in time")
		return nil
	}
}

func TestMonitorRamBreach(t *testing.T) {
	handle, cleanup := spawnSleep(t)
	defer cleanup()

	src := stubMem{telemetry.MemStats{RamUsed: 97 << 30, RamTotal: 100 << 30, SwapUsed: 0, SwapTotal: 8 << 30}}
	term := newTerminator(200 * time.Millisecond)
	killed := make(chan struct{}, 1)

	mon := newMonitor(src, noAccel, 20*time.Millisecond, func(h dto.ProcessHandle) {
		killed <- struct{}{}
		term.Terminate(h)
	})
	go mon.run(handle)

	out := joinWithin(t, mon, 2*time.Second)
	if !out.Breached {
		t.Fatal("expected a breach")
	}
	if len(out.Comments) != 1 || !strings.Contains(out.Comments[0], "RAM threshold exceeded") {
		t.Fatalf("unexpected comments: %v", out.Comments)
	}
	if !strings.HasSuffix(out.Comments[0], ". Process killed.") {
		t.Fatalf("comment is missing the kill note: %q", out.Comments[0])
	}
	select {
	case <-killed:
	default:
		t.Fatal("termination was not requested")
	}
}

func TestMonitorSwapBreach(t *testing.T) {
	handle, cleanup := spawnSleep(t)
	defer cleanup()

	// RAM is fine, swap is past 80%.
	src := stubMem{telemetry.MemStats{RamUsed: 8 << 30, RamTotal: 100 << 30, SwapUsed: 9 << 30, SwapTotal: 10 << 30}}
	term := newTerminator(200 * time.Millisecond)

	mon := newMonitor(src, noAccel, 20*time.Millisecond, term.Terminate)
	go mon.run(handle)

	out := joinWithin(t, mon, 2*time.Second)
	if !out.Breached {
		t.Fatal("expected a breach")
	}
	if len(out.Comments) != 1 || !strings.Contains(out.Comments[0], "Swap threshold exceeded") {
		t.Fatalf("unexpected comments: %v", out.Comments)
	}
}

func TestMonitorIncrementalPeaks(t *testing.T) {
	handle, cleanup := spawnSleep(t)
	defer cleanup()

	// Baseline 10 GB used, then 12 and 11: the peak is 2 GB over
	// baseline, never the raw 12.
	src := &seqMem{seq: []telemetry.MemStats{
		{RamUsed: 10 << 30, RamTotal: 32 << 30, SwapUsed: 1 << 30, SwapTotal: 8 << 30},
		{RamUsed: 12 << 30, RamTotal: 32 << 30, SwapUsed: 2 << 30, SwapTotal: 8 << 30},
		{RamUsed: 11 << 30, RamTotal: 32 << 30, SwapUsed: 1 << 30, SwapTotal: 8 << 30},
	}}
	mon := newMonitor(src, noAccel, 20*time.Millisecond, func(dto.ProcessHandle) {
		t.Error("termination must not be requested below the thresholds")
	})
	go mon.run(handle)

	time.Sleep(150 * time.Millisecond)
	mon.requestStop()
	out := joinWithin(t, mon, time.Second)

	if out.Breached {
		t.Fatal("unexpected breach")
	}
	if out.RamPeakGb < 0 || out.SwapPeakGb < 0 {
		t.Fatalf("peaks must be non-negative: ram=%f swap=%f", out.RamPeakGb, out.SwapPeakGb)
	}
	if diff := out.RamPeakGb - 2.0; diff < -1e-9 || diff > 1e-9 {
		t.Fatalf("ram peak = %f, want 2.0", out.RamPeakGb)
	}
	if diff := out.SwapPeakGb - 1.0; diff < -1e-9 || diff > 1e-9 {
		t.Fatalf("swap peak = %f, want 1.0", out.SwapPeakGb)
	}
}

func TestMonitorGpuUnavailable(t *testing.T) {
	handle, cleanup := spawnSleep(t)
	defer cleanup()

	mon := newMonitor(stubMem{quietStats}, noAccel, 20*time.Millisecond, nil)
	go mon.run(handle)

	time.Sleep(60 * time.Millisecond)
	mon.requestStop()
	out := joinWithin(t, mon, time.Second)

	if out.GpuPeakGb != nil {
		t.Fatalf("gpu peak = %v, want unavailable", *out.GpuPeakGb)
	}
}

func TestMonitorGpuPeak(t *testing.T) {
	handle, cleanup := spawnSleep(t)
	defer cleanup()

	accel := &fakeAccel{used: []uint64{1 << 30, 3 << 30, 2 << 30}}
	opener := func() (telemetry.AccelSource, error) { return accel, nil }

	mon := newMonitor(stubMem{quietStats}, opener, 20*time.Millisecond, nil)
	go mon.run(handle)

	time.Sleep(150 * time.Millisecond)
	mon.requestStop()
	out := joinWithin(t, mon, time.Second)

	if out.GpuPeakGb == nil {
		t.Fatal("gpu peak missing despite available telemetry")
	}
	if diff := *out.GpuPeakGb - 2.0; diff < -1e-9 || diff > 1e-9 {
		t.Fatalf("gpu peak = %f, want 2.0", *out.GpuPeakGb)
	}
	if accel.closed != 1 {
		t.Fatalf("telemetry handle closed %d times, want exactly once", accel.closed)
	}
}

func TestMonitorProcessVanished(t *testing.T) {
	cmd := exec.Command("true")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to spawn: %v", err)
	}
	pid := cmd.Process.Pid
	cmd.Wait()

	mon := newMonitor(stubMem{quietStats}, noAccel, 20*time.Millisecond, func(dto.ProcessHandle) {
		t.Error("termination must not be requested for a vanished process")
	})
	go mon.run(dto.ProcessHandle{Pid: pid, Pgid: pid})

	out := joinWithin(t, mon, 2*time.Second)
	if out.Breached {
		t.Fatal("unexpected breach")
	}
	if len(out.Comments) != 0 {
		t.Fatalf("unexpected comments: %v", out.Comments)
	}
}
