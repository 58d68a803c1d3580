//go:build !unix

package speech

import "os"

// Only unix can suspend a child process with signals.
func pauseProcess(p *os.Process) error {
	return ErrUnsupported
}

func resumeProcess(p *os.Process) error {
	return ErrUnsupported
}
