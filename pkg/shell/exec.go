package shell

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
)

// We prefer to return stderr over the process exit code
type ExitErrorVerbose struct {
	E exec.ExitError
}

func (e ExitErrorVerbose) Error() string {
	if len(e.E.Stderr) != 0 {
		return strings.TrimSpace(string(e.E.Stderr))
	}
	return e.E.Error()
}

func (e ExitErrorVerbose) Unwrap() error {
	return &e.E
}

// Run runs a program and returns its stdout
func Run(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", ExitErrorVerbose{*exitErr}
		}
		return "", err
	}
	return string(out), nil
}

// Command describes a long running program whose output is passed through to the caller
type Command struct {
	Dir    string // Working directory. Empty = current directory.
	Name   string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

// String returns the command line, for logging
func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Stream runs the command to completion, copying its output to Stdout and Stderr as it is produced
func (c *Command) Stream(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return cmd.Run()
}
