//go:build !unix

package invoke

import "os/exec"

func setProcessGroup(*exec.Cmd) {}

func signalTerm(cmd *exec.Cmd) {
	signalKill(cmd)
}

func signalKill(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
