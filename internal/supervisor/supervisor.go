// Package supervisor runs one baseline command at a time under wall-clock
// and host-resource limits. Two goroutines exist per run: the control flow
// (spawn, wait with timeout, terminate on expiry) and the monitor (periodic
// sampling, terminate on breach). They share the read-only process handle
// and a write-once outcome read only after the monitor is joined.
package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/slambench/runner/internal/repository/dto"
	"github.com/slambench/runner/internal/telemetry"
	"github.com/slambench/runner/pkg/shell"
)

// Threshold policy is a harness property, not a per-run knob.
const (
	MaxRamFraction  = 0.95
	MaxSwapFraction = 0.80

	DefaultSampleInterval = 10 * time.Second
	DefaultKillGrace      = 5 * time.Second
)

type Config struct {
	// SampleInterval trades detection latency for overhead. System-wide
	// memory moves slowly next to the multi-minute runs this harness
	// supervises, so the 10s default keeps the monitor near-free while
	// still catching growth well before the host is in trouble.
	SampleInterval time.Duration
	// KillGrace is how long a terminated group gets to exit on SIGTERM
	// before SIGKILL.
	KillGrace time.Duration
}

type Supervisor struct {
	cfg   Config
	mem   telemetry.MemorySource
	accel telemetry.AccelOpener
	term  *terminator
}

func New(cfg Config) *Supervisor {
	return NewWithSources(cfg, telemetry.NewSystemSource(), telemetry.OpenNVML)
}

func NewWithSources(cfg Config, mem telemetry.MemorySource, accel telemetry.AccelOpener) *Supervisor {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultKillGrace
	}
	return &Supervisor{
		cfg:   cfg,
		mem:   mem,
		accel: accel,
		term:  newTerminator(cfg.KillGrace),
	}
}

// Execute runs one supervised baseline run to completion. Failing to spawn
// the command is returned as an error; everything else, including timeouts,
// breaches and a missing artifact, is folded into the RunResult.
func (s *Supervisor) Execute(req *dto.RunRequest) (*dto.RunResult, error) {
	logFile, err := os.Create(req.LogFilePath())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create log file")
	}
	defer logFile.Close()

	cmd, err := shell.NewGroupCommand(req.Command, logFile)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	handle := dto.ProcessHandle{Pid: cmd.Pid(), Pgid: cmd.Pgid()}
	slog.Info("baseline started", "pid", handle.Pid, "log", req.LogFilePath())

	if req.MaxFileSize > 0 {
		if err := shell.ApplyFileLimits(handle.Pid, req.MaxFileSize); err != nil {
			slog.Warn("failed to apply file limits", "pid", handle.Pid, "error", err)
		}
	}

	mon := newMonitor(s.mem, s.accel, s.cfg.SampleInterval, s.term.Terminate)
	go mon.run(handle)

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	timedOut := false
	timeoutComment := ""
	select {
	case <-waitDone:
	case <-time.After(req.Timeout):
		slog.Error(fmt.Sprintf("Process took too long > %s", req.Timeout))
		timeoutComment = fmt.Sprintf("Process took too long > %s. Process killed.", req.Timeout)
		timedOut = true
		s.term.Terminate(handle)
		<-waitDone
	}

	// The monitor must be joined before its outcome or comments are read.
	mon.requestStop()
	out := mon.join()

	return finalize(req, out, timedOut, timeoutComment), nil
}
