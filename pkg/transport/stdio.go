package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/logging"
)

// NewStdioConnection returns a connection over the process's own standard
// streams: it reads stdin and writes stdout. Logs must go to stderr.
func NewStdioConnection(handler Handler, opts ...Option) *Connection {
	return NewConnection(handler, os.Stdout, os.Stdin, opts...)
}

// ProcessConfig describes a peer launched as a subprocess
type ProcessConfig struct {
	Command string
	Args    []string
	// Env is appended to the current environment
	Env []string
	Dir string

	// Stderr receives the child's stderr. When nil it is logged line by line.
	Stderr io.Writer
	Logger logging.Logger

	// StopTimeout is how long Stop waits after closing stdin before killing
	StopTimeout time.Duration
}

// Process is a peer running as a child process. Its stdin and stdout form
// the stream of a Connection.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger logging.Logger
	stderr *logging.LineWriter

	timeout  time.Duration
	waitOnce sync.Once
	waitErr  error
	exited   chan struct{}
}

// StartProcess launches the configured command
func StartProcess(ctx context.Context, cfg ProcessConfig) (*Process, error) {
	if cfg.Command == "" {
		return nil, errors.New("process command is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.String("command", cfg.Command))

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}

	p := &Process{
		cmd:     cmd,
		logger:  logger,
		timeout: cfg.StopTimeout,
		exited:  make(chan struct{}),
	}
	if p.timeout <= 0 {
		p.timeout = 5 * time.Second
	}

	if cfg.Stderr != nil {
		cmd.Stderr = cfg.Stderr
	} else {
		p.stderr = logging.NewLineWriter(logger, logging.InfoLevel, logging.String("stream", "stderr"))
		cmd.Stderr = p.stderr
	}

	var err error
	if p.stdin, err = cmd.StdinPipe(); err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	// cmd.StdoutPipe would be closed by Wait before the last lines are
	// read, so the read end is ours
	stdout, childOut, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stdout = childOut
	p.stdout = stdout
	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = childOut.Close()
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}
	_ = childOut.Close()
	logger.Info("Process started", logging.Int("pid", cmd.Process.Pid))

	go func() {
		_ = p.Wait()
	}()
	return p, nil
}

// Stdin is the stream the connection writes to
func (p *Process) Stdin() io.WriteCloser {
	return p.stdin
}

// Stdout is the stream the connection reads from. It reaches EOF once the
// process has exited and its output is drained; the reader closes it.
func (p *Process) Stdout() io.ReadCloser {
	return p.stdout
}

// Connect returns a connection speaking to the process
func (p *Process) Connect(handler Handler, opts ...Option) *Connection {
	return NewConnection(handler, p.stdin, p.stdout, opts...)
}

// Wait blocks until the process exits and returns its exit error
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		if p.stderr != nil {
			_ = p.stderr.Close()
		}
		if p.waitErr != nil {
			p.logger.WithError(p.waitErr).Info("Process exited")
		} else {
			p.logger.Info("Process exited")
		}
		close(p.exited)
	})
	<-p.exited
	return p.waitErr
}

// Exited is closed once the process has exited
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Stop closes the process's stdin and waits for it to exit, killing it
// when it does not exit within the stop timeout or before ctx is done
func (p *Process) Stop(ctx context.Context) error {
	_ = p.stdin.Close()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-p.exited:
		return p.exitError()
	case <-timer.C:
	case <-ctx.Done():
	}

	p.logger.Warn("Process did not exit, killing")
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill: %w", err)
	}
	<-p.exited
	return p.exitError()
}

func (p *Process) exitError() error {
	var exitErr *exec.ExitError
	if errors.As(p.waitErr, &exitErr) {
		return nil
	}
	return p.waitErr
}
