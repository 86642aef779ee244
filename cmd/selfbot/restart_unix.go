//go:build unix

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// restart replaces the process image with a fresh copy of the binary.
func restart() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	return unix.Exec(exe, os.Args, os.Environ())
}
