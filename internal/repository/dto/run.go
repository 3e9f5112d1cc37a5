package dto

import (
	"fmt"
	"path/filepath"
	"time"
)

// RunRequest describes one supervised baseline run. Command construction,
// dataset handling and evaluation all belong to the caller; the runner only
// needs a ready-to-run command line and the output conventions.
type RunRequest struct {
	// Fully formed command line. Split with shell quoting rules before
	// exec, no shell is involved.
	Command string
	// Folder receiving the run log and the expected artifact.
	ExpFolder string
	RunIndex  int
	Timeout   time.Duration
	// Basename of the trajectory artifact, e.g. "KeyFrameTrajectory".
	ArtifactBaseName string
	// Cap on files the baseline may create, in bytes. 0 means no cap.
	MaxFileSize int64
}

// LogFilePath is where the baseline's stdout and stderr end up.
func (r *RunRequest) LogFilePath() string {
	return filepath.Join(r.ExpFolder, fmt.Sprintf("system_output_%05d.txt", r.RunIndex))
}

// ArtifactPath is the file whose existence decides whether the run
// succeeded. Exit codes do not.
func (r *RunRequest) ArtifactPath() string {
	return filepath.Join(r.ExpFolder, fmt.Sprintf("%05d_%s.csv", r.RunIndex, r.ArtifactBaseName))
}

// ProcessHandle identifies the spawned baseline and its process group.
// Read-only after spawn.
type ProcessHandle struct {
	Pid  int
	Pgid int
}

type RunResult struct {
	Success  bool
	Comments string
	// Peaks are incremental: maximum observed usage minus the pre-launch
	// baseline, in GB. Pre-existing host load does not count.
	RamPeakGb  float64
	SwapPeakGb float64
	// Nil when no accelerator telemetry was available for the run.
	GpuPeakGb *float64

	TimedOut       bool
	ResourceKilled bool
	ArtifactFound  bool
}
