//go:build unix

package procreg

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func configure(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// The negative pid addresses the whole group so whisper-cli worker
// children go down with it.
func terminate(p *os.Process) error {
	return signalGroup(p, unix.SIGTERM)
}

func kill(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

func signalGroup(p *os.Process, sig unix.Signal) error {
	err := unix.Kill(-p.Pid, sig)
	if err == unix.ESRCH {
		return os.ErrProcessDone
	}
	return err
}
