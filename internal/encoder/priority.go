package encoder

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// lowPriorityNice is the niceness delta applied to the encoder child when
// LowPriority is requested, so a background encode does not starve the
// decoder thread or an interactive shell sharing the same CPU.
const lowPriorityNice = 10

// AfterStart lowers the scheduling priority of cmd's already-started child
// process when low is true. Errors are non-fatal: a process that could not
// be reniced still encodes correctly, just at default priority.
func AfterStart(cmd *exec.Cmd, low bool) error {
	if !low || cmd.Process == nil {
		return nil
	}
	return unix.Setpriority(unix.PRIO_PROCESS, cmd.Process.Pid, lowPriorityNice)
}

// KillGroup sends SIGKILL to cmd's whole process group (cmd was started
// with Setpgid, so its PID doubles as its PGID). Used when a context is
// cancelled mid-encode so an orphaned SvtAv1EncApp (or anything it forked)
// does not keep running after the pipeline gives up on it.
func KillGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = unix.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
