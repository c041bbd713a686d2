package executor

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup puts the child in its own process group and makes
// context cancellation kill the whole group, so the 45s ceiling (or a
// stop signal) cannot leave an orphaned grandchild running past the
// command's own process. This is also the POSIX analogue of "must not
// inherit a visible window": the child leaves the daemon's foreground
// process group, so terminal-generated signals such as Ctrl-C are not
// delivered to it. It stays in the same session and keeps the controlling
// terminal.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
}
