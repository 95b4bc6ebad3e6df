package app

import (
	"fmt"
	"os"
	"syscall"
)

// Restart replaces the current process with a fresh copy of the binary
func Restart() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	return syscall.Exec(exe, os.Args, os.Environ())
}
