//go:build !unix

package procreg

import (
	"os"
	"os/exec"
)

func configure(*exec.Cmd) {}

func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}
