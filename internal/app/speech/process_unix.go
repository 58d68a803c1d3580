//go:build unix

package speech

import (
	"os"
	"syscall"
)

// pauseProcess stops the process with SIGSTOP.
func pauseProcess(p *os.Process) error {
	return p.Signal(syscall.SIGSTOP)
}

// resumeProcess continues the process with SIGCONT.
func resumeProcess(p *os.Process) error {
	return p.Signal(syscall.SIGCONT)
}
