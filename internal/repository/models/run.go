package models

import "github.com/google/uuid"

type RunStatus int8

const (
	RunStatusCreated RunStatus = iota
	RunStatusRunning
	RunStatusCompletedOk
	RunStatusTimeout
	RunStatusResourceKilled
	RunStatusMissingArtifact
)

// RunJob is the queue message requesting one supervised run.
type RunJob struct {
	Id               uuid.UUID `json:"id"`
	Command          string    `json:"command"`
	ExpFolder        string    `json:"exp_folder"`
	RunIndex         int       `json:"run_index"`
	TimeoutMs        int64     `json:"timeout_ms"`
	ArtifactBaseName string    `json:"artifact_base_name"`
	MaxFileSize      int64     `json:"max_file_size,omitempty"`
}

// RunReport is published after the run ends, whatever the outcome.
type RunReport struct {
	Id         uuid.UUID `json:"id"`
	Status     RunStatus `json:"status"`
	Success    bool      `json:"success"`
	Comments   string    `json:"comments"`
	RamPeakGb  float64   `json:"ram_peak_gb"`
	SwapPeakGb float64   `json:"swap_peak_gb"`
	GpuPeakGb  *float64  `json:"gpu_peak_gb"`
	Archived   []string  `json:"archived,omitempty"`
}
