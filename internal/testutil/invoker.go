package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/csvrunner/internal/invoke"
)

// Response is a scripted result for one command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int  // non-zero makes the call fail
	TimedOut bool // fails like an expired timeout
}

// Call is one recorded invocation.
type Call struct {
	Command string
	Timeout time.Duration
}

// ScriptedInvoker answers commands from a script instead of running them.
//
// Commands without a script entry fail with exit code 127, mimicking a
// shell that cannot find the program. Responses can be replaced between
// runs with Set to model an environment that changes.
//
// Thread-safety: all methods are safe for concurrent use.
type ScriptedInvoker struct {
	mu     sync.Mutex
	script map[string]Response
	calls  []Call
}

// NewScriptedInvoker creates an invoker with an empty script.
func NewScriptedInvoker() *ScriptedInvoker {
	return &ScriptedInvoker{script: make(map[string]Response)}
}

// Set scripts the response for command.
func (s *ScriptedInvoker) Set(command string, r Response) *ScriptedInvoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script[command] = r
	return s
}

// Invoke records the call and returns the scripted response.
func (s *ScriptedInvoker) Invoke(_ context.Context, command string, timeout time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Command: command, Timeout: timeout})
	r, ok := s.script[command]
	if !ok {
		return "", &invoke.Error{
			Command:  command,
			ExitCode: 127,
			Stderr:   fmt.Sprintf("sh: %s: not found\n", command),
		}
	}
	if r.TimedOut {
		return "", &invoke.Error{Command: command, ExitCode: -1, Stderr: r.Stderr, TimedOut: true, Timeout: timeout}
	}
	if r.ExitCode != 0 {
		return "", &invoke.Error{Command: command, ExitCode: r.ExitCode, Stderr: r.Stderr}
	}
	return r.Stdout, nil
}

// Calls returns the recorded invocations in order.
func (s *ScriptedInvoker) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Commands returns the command text of every recorded call in order.
func (s *ScriptedInvoker) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Command
	}
	return out
}

// Count returns how many times command was invoked.
func (s *ScriptedInvoker) Count(command string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Command == command {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls but keeps the script.
func (s *ScriptedInvoker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}
