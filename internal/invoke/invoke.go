// Package invoke runs a single shell command with a bounded wait.
//
// A Shell hands the command text to a shell program ("sh -c" by default)
// using the caller's environment and working directory. Invoke always
// returns within the timeout plus a short termination grace: on expiry the
// process group receives SIGTERM and, if still alive after the grace,
// SIGKILL. A timeout is reported as an *Error just like a non-zero exit.
package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode"
)

// DefaultTermGrace is how long a timed-out command may take to exit after
// SIGTERM before it is killed.
const DefaultTermGrace = 2 * time.Second

// Shell invokes commands through a shell program.
type Shell struct {
	Program   string
	Args      []string
	TermGrace time.Duration
}

// NewShell creates a Shell running "<program> <args...> <command>".
// An empty program selects "sh -c".
func NewShell(program string, args ...string) *Shell {
	if program == "" {
		program = "sh"
		if len(args) == 0 {
			args = []string{"-c"}
		}
	}
	return &Shell{
		Program:   program,
		Args:      append([]string(nil), args...),
		TermGrace: DefaultTermGrace,
	}
}

// Error describes a failed invocation: non-zero exit, timeout or a process
// that could not be started.
type Error struct {
	Command  string
	ExitCode int // -1 when the process did not exit normally
	Stderr   string
	TimedOut bool
	Timeout  time.Duration
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("command timed out after %s", e.Timeout)
	case e.ExitCode > 0:
		return fmt.Sprintf("command exited with code %d", e.ExitCode)
	case e.Err != nil:
		return fmt.Sprintf("command failed: %v", e.Err)
	}
	return "command failed"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// FailureText is the text recorded for a failed command: its stderr when
// non-blank, otherwise the error message.
func FailureText(err error) string {
	var ie *Error
	if errors.As(err, &ie) {
		if s := trimTrailing(ie.Stderr); s != "" {
			return s
		}
	}
	return err.Error()
}

// Invoke runs command and returns its stdout with trailing whitespace
// trimmed. Any failure is returned as *Error.
func (s *Shell) Invoke(ctx context.Context, command string, timeout time.Duration) (string, error) {
	args := append(append([]string(nil), s.Args...), command)
	cmd := exec.Command(s.Program, args...)
	setProcessGroup(cmd)
	cmd.WaitDelay = s.grace()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", &Error{
			Command:  command,
			ExitCode: -1,
			Err:      fmt.Errorf("start %s: %w", s.Program, err),
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var runErr error
	timedOut := false
	select {
	case runErr = <-done:
	case <-timer.C:
		timedOut = true
		runErr = s.terminate(cmd, done)
	case <-ctx.Done():
		s.terminate(cmd, done)
		return "", &Error{Command: command, ExitCode: -1, Stderr: stderr.String(), Err: ctx.Err()}
	}

	if timedOut {
		return "", &Error{
			Command:  command,
			ExitCode: -1,
			Stderr:   stderr.String(),
			TimedOut: true,
			Timeout:  timeout,
		}
	}
	if errors.Is(runErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		// The shell exited 0 but a background child kept stdout open.
		return trimTrailing(stdout.String()), nil
	}
	if runErr != nil {
		ie := &Error{Command: command, ExitCode: -1, Stderr: stderr.String(), Err: runErr}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			ie.ExitCode = exitErr.ExitCode()
		}
		return "", ie
	}
	return trimTrailing(stdout.String()), nil
}

// terminate stops a running command: SIGTERM to its process group, then
// SIGKILL once the grace period passes.
func (s *Shell) terminate(cmd *exec.Cmd, done <-chan error) error {
	signalTerm(cmd)
	grace := time.NewTimer(s.grace())
	defer grace.Stop()
	select {
	case err := <-done:
		return err
	case <-grace.C:
		signalKill(cmd)
		return <-done
	}
}

func (s *Shell) grace() time.Duration {
	if s.TermGrace <= 0 {
		return DefaultTermGrace
	}
	return s.TermGrace
}

func trimTrailing(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
