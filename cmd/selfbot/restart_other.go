//go:build !unix

package main

import (
	"fmt"
	"os"
	"os/exec"
)

// restart starts a new copy of the binary and lets this one exit.
func restart() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Env = os.Environ()
	return cmd.Start()
}
