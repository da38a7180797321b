// Package command runs the external tools PortSlayer depends on (ss, kill,
// pkexec, fuser) and reports how they exited.
package command

import (
	"errors"
	"os/exec"
	"strings"
)

// Result is what a finished child process left behind.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success reports a zero exit status.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// StderrText returns stderr trimmed of surrounding whitespace.
func (r Result) StderrText() string {
	return strings.TrimSpace(string(r.Stderr))
}

// Runner starts a program and waits for it.
//
// A non-nil error means the program could not be started at all
// (missing binary, exec failure). A program that ran and exited
// non-zero is reported through Result.ExitCode with a nil error.
type Runner interface {
	Run(name string, args ...string) (Result, error)
}

// Exec is the Runner backed by os/exec.
type Exec struct{}

func (Exec) Run(name string, args ...string) (Result, error) {
	var stdout, stderr strings.Builder
	cmd := exec.Command(name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: []byte(stdout.String()),
		Stderr: []byte(stderr.String()),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, err
	}
}

// Available reports whether name resolves to an executable on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
