//go:build windows

package commands

import (
	"errors"
	"fmt"
	"os"
)

// stopProcess terminates the daemon on Windows. There is no SIGTERM
// here; graceful mode sends os.Interrupt and force mode kills outright.
func stopProcess(process *os.Process, pid int, force bool) error {
	var err error
	if force {
		fmt.Printf("Killing process %d...\n", pid)
		err = process.Kill()
	} else {
		fmt.Printf("Sending interrupt to process %d...\n", pid)
		err = process.Signal(os.Interrupt)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrProcessDone):
		return errProcessDone
	default:
		return fmt.Errorf("failed to stop process %d: %w", pid, err)
	}
}
