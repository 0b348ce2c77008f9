// Package process runs external commands with captured output and kills the
// whole process tree when the context ends.
package process

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Command describes one invocation of an external binary.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
}

func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Name, c.Args)
}

// Result holds what the process wrote before it exited.
type Result struct {
	Stdout string
	Stderr string
}

// Runner abstracts command execution so callers can be tested without a
// real subprocess.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	// WaitDelay bounds how long Run waits for output pipes after the process
	// was killed. Zero means 5 seconds.
	WaitDelay time.Duration
}

// Run starts the command and waits for it. When ctx ends first the process
// group is killed and ctx.Err() is part of the returned error.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		killProcessGroup(cmd.Process.Pid)
		return cmd.Process.Kill()
	}
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s: %w", err, ctxErr)
		}
		return res, err
	}
	return res, nil
}
