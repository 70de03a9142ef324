package main

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes external commands. The committer only ever talks to
// git through this interface, which keeps it testable without a repository.
type CommandRunner interface {
	// Run executes name with args in the runner's directory and returns
	// trimmed stdout.
	Run(name string, args ...string) (string, error)
	// RunInput is Run with data piped to the command's stdin.
	RunInput(input string, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec, capturing stderr so failures carry
// the actual git diagnostic instead of just an exit code.
type ExecRunner struct {
	Dir string
}

func NewExecRunner(dir string) *ExecRunner {
	return &ExecRunner{Dir: dir}
}

func (r *ExecRunner) Run(name string, args ...string) (string, error) {
	return r.RunInput("", name, args...)
}

func (r *ExecRunner) RunInput(input string, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = r.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s %s: %s", name, strings.Join(args, " "), msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}
