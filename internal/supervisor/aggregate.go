package supervisor

import (
	"os"
	"strings"

	"github.com/slambench/runner/internal/repository/dto"
)

// finalize merges the monitor outcome with the control-flow verdict and the
// artifact check. Presence of a usable artifact, not the exit status,
// decides success.
func finalize(req *dto.RunRequest, out *monitorOutcome, timedOut bool, timeoutComment string) *dto.RunResult {
	comments := make([]string, 0, len(out.Comments)+1)
	if timeoutComment != "" {
		comments = append(comments, timeoutComment)
	}
	comments = append(comments, out.Comments...)

	_, statErr := os.Stat(req.ArtifactPath())
	artifactFound := statErr == nil

	return &dto.RunResult{
		Success:        !timedOut && !out.Breached && artifactFound,
		Comments:       strings.Join(comments, "\n"),
		RamPeakGb:      out.RamPeakGb,
		SwapPeakGb:     out.SwapPeakGb,
		GpuPeakGb:      out.GpuPeakGb,
		TimedOut:       timedOut,
		ResourceKilled: out.Breached,
		ArtifactFound:  artifactFound,
	}
}
