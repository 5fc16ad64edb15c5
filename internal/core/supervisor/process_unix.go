//go:build unix

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

type systemTable struct{}

func (systemTable) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	// EPERM: the process exists but belongs to someone else.
	return err == nil || errors.Is(err, unix.EPERM)
}

func (systemTable) Terminate(pid int) error {
	return signalPid(pid, unix.SIGTERM)
}

func (systemTable) Kill(pid int) error {
	return signalPid(pid, unix.SIGKILL)
}

func signalPid(pid int, sig unix.Signal) error {
	// kill(-1) and kill(0) address process groups, never a single process.
	if pid <= 1 {
		return os.ErrProcessDone
	}
	if err := unix.Kill(pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	return nil
}

// detach puts the child in its own session so it outlives the CLI and is not
// hit by the terminal's Ctrl-C.
func detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
}
