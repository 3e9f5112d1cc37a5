package mappers

import (
	"github.com/slambench/runner/internal/repository/dto"
	"github.com/slambench/runner/internal/repository/models"
)

func RunResultToReport(job *models.RunJob, result *dto.RunResult, archived []string) *models.RunReport {
	return &models.RunReport{
		Id:         job.Id,
		Status:     statusOf(result),
		Success:    result.Success,
		Comments:   result.Comments,
		RamPeakGb:  result.RamPeakGb,
		SwapPeakGb: result.SwapPeakGb,
		GpuPeakGb:  result.GpuPeakGb,
		Archived:   archived,
	}
}

// statusOf reports the single failure reason recorded for the run. When the
// timeout and a breach raced, the timeout is the one reported.
func statusOf(result *dto.RunResult) models.RunStatus {
	switch {
	case result.TimedOut:
		return models.RunStatusTimeout
	case result.ResourceKilled:
		return models.RunStatusResourceKilled
	case !result.ArtifactFound:
		return models.RunStatusMissingArtifact
	default:
		return models.RunStatusCompletedOk
	}
}
