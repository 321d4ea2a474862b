//go:build unix

package launcher

import (
	"os/exec"
	"syscall"
)

// detach puts the deploy script in its own process group so that signals
// sent to the service (Ctrl-C, systemd stop) do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
