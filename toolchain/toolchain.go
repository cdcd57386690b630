// Package toolchain runs the external EDA and compiler tools. Every
// invocation is an explicit process with captured output and an exit code.
package toolchain

//go:generate mockgen -source=toolchain.go -package=toolchain -destination=toolchain_mock.go

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Command is one external tool invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory.
	Dir string
	// Env holds KEY=VALUE pairs added to the runner's environment.
	Env []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Output is stdout followed by stderr.
func (r *Result) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Runner runs commands. A non-zero exit status is reported in the Result,
// not as an error; errors mean the command could not be run or waited on.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// BuildError is a toolchain failure. Diagnostics holds the tool's output.
type BuildError struct {
	Stage       string
	Command     string
	ExitCode    int
	Diagnostics string
	Err         error
}

// DefaultTailLines is the number of diagnostic lines in a BuildError
// message.
const DefaultTailLines = 20

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Stage)
	if e.Command != "" {
		msg += fmt.Sprintf(" running %q", e.Command)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	} else {
		msg += fmt.Sprintf(": exit status %d", e.ExitCode)
	}
	if tail := e.Tail(DefaultTailLines); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

// Tail returns the last n non-empty lines of the diagnostics.
func (e *BuildError) Tail(n int) string {
	lines := strings.Split(strings.TrimRight(e.Diagnostics, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return ""
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Check runs cmd and maps a failure to start or a non-zero exit onto a
// *BuildError for stage.
func Check(ctx context.Context, r Runner, stage string, cmd Command) (*Result, error) {
	res, err := r.Run(ctx, cmd)
	if err != nil {
		berr := &BuildError{Stage: stage, Command: cmd.String(), ExitCode: -1, Err: err}
		if res != nil {
			berr.Diagnostics = res.Output()
		}
		return res, berr
	}
	if res.ExitCode != 0 {
		return res, &BuildError{
			Stage:       stage,
			Command:     cmd.String(),
			ExitCode:    res.ExitCode,
			Diagnostics: res.Output(),
		}
	}
	return res, nil
}
