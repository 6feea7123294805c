package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Command is one external tool invocation. Args are passed to the process
// as discrete argv elements; no shell ever parses them.
type Command struct {
	Name string
	Args []string
	// Env entries (KEY=VALUE) are appended to the inherited environment.
	Env []string
	Dir string
	// Stdin, when set, is a file fed to the process on standard input.
	Stdin string
	// Stdout, when set, is a file that receives standard output.
	Stdout string
}

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	Dir      string   `json:"dir,omitempty"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, cmd Command) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, c Command) (commandResult, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if c.Stdin != "" {
		in, err := os.Open(c.Stdin)
		if err != nil {
			return commandResult{ExitCode: -1}, fmt.Errorf("open stdin %s: %w", c.Stdin, err)
		}
		defer in.Close()
		cmd.Stdin = in
	}

	var out *os.File
	if c.Stdout != "" {
		f, err := os.Create(c.Stdout)
		if err != nil {
			return commandResult{ExitCode: -1}, fmt.Errorf("create stdout %s: %w", c.Stdout, err)
		}
		out = f
		cmd.Stdout = f
	}

	err := cmd.Run()
	if out != nil {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close stdout %s: %w", c.Stdout, cerr)
		}
	}

	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// run executes c, emits its log and returns it alongside the error.
func (p *Pipeline) run(ctx context.Context, req Request, c Command) (CommandLog, error) {
	res, err := p.runner.Run(ctx, c)
	log := CommandLog{
		Command:  c.Name,
		Args:     c.Args,
		Dir:      c.Dir,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	emitLog(req.OnLog, log)
	return log, err
}
