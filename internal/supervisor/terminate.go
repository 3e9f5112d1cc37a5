package supervisor

import (
	"log/slog"
	"time"

	"github.com/slambench/runner/internal/repository/dto"
	"golang.org/x/sys/unix"
)

// terminator escalates from SIGTERM to SIGKILL against a whole process
// group. Safe to invoke any number of times for the same handle; a group
// that is already gone is not an error.
type terminator struct {
	grace time.Duration
	probe time.Duration
}

func newTerminator(grace time.Duration) *terminator {
	return &terminator{grace: grace, probe: 100 * time.Millisecond}
}

// Terminate signals the whole group, not just the leader: baselines commonly
// fork helper processes that must die together.
func (t *terminator) Terminate(h dto.ProcessHandle) {
	_ = unix.Kill(-h.Pgid, unix.SIGTERM)

	deadline := time.Now().Add(t.grace)
	for time.Now().Before(deadline) && groupAlive(h.Pgid) {
		time.Sleep(t.probe)
	}
	if groupAlive(h.Pgid) {
		_ = unix.Kill(-h.Pgid, unix.SIGKILL)
	}
	slog.Error("Process killed.")
}

func groupAlive(pgid int) bool {
	err := unix.Kill(-pgid, 0)
	return err == nil || err == unix.EPERM
}
