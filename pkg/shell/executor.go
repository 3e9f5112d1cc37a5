package shell

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/criyle/go-sandbox/pkg/rlimit"
	"github.com/google/shlex"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Command wraps an exec.Cmd placed in its own process group, so the whole
// group can be signalled independently of the harness's group.
type Command struct {
	Cmd *exec.Cmd
}

// NewGroupCommand parses commandLine with shell quoting rules and prepares a
// process-group leader with stdout and stderr redirected into logFile.
func NewGroupCommand(commandLine string, logFile *os.File) (*Command, error) {
	argv, err := shlex.Split(commandLine)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse command line")
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command line")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return &Command{Cmd: cmd}, nil
}

func (c *Command) Start() error {
	if err := c.Cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to spawn command")
	}
	return nil
}

func (c *Command) Pid() int { return c.Cmd.Process.Pid }

// Pgid of the spawned group. With Setpgid the leader's pid is the group id.
func (c *Command) Pgid() int { return c.Cmd.Process.Pid }

func (c *Command) Wait() error { return c.Cmd.Wait() }

// ApplyFileLimits caps what the spawned process may write or open. The
// limits are applied after spawn via prlimit, so no fork hooks are needed.
func ApplyFileLimits(pid int, maxFileSize int64) error {
	rl := rlimit.RLimits{OpenFile: 2048}
	if maxFileSize > 0 {
		rl.FileSize = uint64(maxFileSize)
	}
	for _, r := range rl.PrepareRLimit() {
		lim := unix.Rlimit{Cur: r.Rlim.Cur, Max: r.Rlim.Max}
		if err := unix.Prlimit(pid, r.Res, &lim, nil); err != nil {
			return errors.Wrap(err, "failed to apply rlimit")
		}
	}
	return nil
}
