package agents

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
)

// SubprocessInvoker invokes an agent running as a long-lived child process
// that reads one JSON request per line on stdin and writes one JSON response
// per line on stdout.
type SubprocessInvoker struct {
	mu      sync.Mutex
	name    string
	path    string
	args    []string
	cmd     *exec.Cmd
	encoder *json.Encoder
	scanner *bufio.Scanner
}

// NewSubprocessInvoker prepares (but does not start) a subprocess invoker
// for the executable at path.
func NewSubprocessInvoker(name, path string, args ...string) *SubprocessInvoker {
	return &SubprocessInvoker{name: name, path: path, args: args}
}

// Invoke starts the subprocess on first use and keeps it running across
// calls, writing req as a single JSON line and reading the matching response
// line. The subprocess is restarted automatically if a prior call left it
// dead. If ctx ends while a call is in flight, the subprocess is killed and
// the next call starts a new one.
func (s *SubprocessInvoker) Invoke(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureStarted(ctx); err != nil {
		return Response{}, fmt.Errorf("agents: start subprocess %s: %w", s.name, err)
	}
	cmd := s.cmd
	stop := context.AfterFunc(ctx, func() { _ = cmd.Process.Kill() })
	defer stop()

	if err := s.encoder.Encode(req); err != nil {
		_ = s.cmd.Process.Kill()
		s.cmd = nil
		return Response{}, fmt.Errorf("agents: write request to %s: %w", s.name, err)
	}

	if !s.scanner.Scan() {
		err := s.scanner.Err()
		_ = s.cmd.Process.Kill()
		s.cmd = nil
		if err == nil {
			return Response{}, fmt.Errorf("agents: subprocess %s closed stdout", s.name)
		}
		return Response{}, fmt.Errorf("agents: read response from %s: %w", s.name, err)
	}

	var resp Response
	if err := json.Unmarshal(s.scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("agents: decode response from %s: %w", s.name, err)
	}
	return resp, nil
}

func (s *SubprocessInvoker) ensureStarted(ctx context.Context) error {
	if s.cmd != nil && s.cmd.ProcessState == nil {
		return nil
	}

	cmd := exec.Command(s.path, s.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	s.cmd = cmd
	s.encoder = json.NewEncoder(stdin)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	s.scanner = scanner
	return nil
}

// Close terminates the subprocess if it is running.
func (s *SubprocessInvoker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	return s.cmd.Process.Kill()
}
