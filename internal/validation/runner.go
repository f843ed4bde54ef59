package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"drone-flight/registry/internal/logging"

	"golang.org/x/sync/semaphore"
)

var (
	ErrTimeout        = errors.New("validator timed out")
	ErrEmptyOutput    = errors.New("validator produced no output")
	ErrInvalidOutput  = errors.New("validator output is not a single JSON document")
	ErrOutputTooLarge = errors.New("validator output exceeded limit")
)

// ProcessError reports a validator that exited non-zero.
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("validator exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("validator exited with code %d: %s", e.ExitCode, msg)
}

type RunnerConfig struct {
	Command        string
	Args           []string
	Dir            string
	Env            []string
	Timeout        time.Duration
	MaxOutputBytes int
	MaxConcurrent  int
}

// Runner executes the external validator once per request: the flight JSON
// goes to stdin, stdin is closed, and exactly one JSON document is read back
// from stdout after the process exits.
type Runner struct {
	cfg RunnerConfig
	sem *semaphore.Weighted
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 1 << 20
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Runner{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Run feeds input to a fresh validator process and returns its document.
func (r *Runner) Run(ctx context.Context, input []byte) (json.RawMessage, error) {
	if r.cfg.Command == "" {
		return nil, fmt.Errorf("validator command is not configured")
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for validator slot: %w", err)
	}
	defer r.sem.Release(1)

	execCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.cfg.Command, r.cfg.Args...)
	cmd.Dir = r.cfg.Dir
	if len(r.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), r.cfg.Env...)
	}
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = time.Second

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: r.cfg.MaxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: r.cfg.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			logging.Warn("Validator killed after timeout",
				"command", r.cfg.Command,
				"timeout", r.cfg.Timeout.String(),
			)
			return nil, fmt.Errorf("%w after %s", ErrTimeout, r.cfg.Timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logging.Warn("Validator exited with failure",
				"exit_code", exitErr.ExitCode(),
				"duration_ms", elapsed.Milliseconds(),
				"stderr", strings.TrimSpace(stderrBuf.String()),
			)
			return nil, &ProcessError{ExitCode: exitErr.ExitCode(), Stderr: stderrBuf.String()}
		}
		return nil, fmt.Errorf("failed to run validator: %w", err)
	}

	if stdout.truncated {
		return nil, fmt.Errorf("%w (%d bytes)", ErrOutputTooLarge, r.cfg.MaxOutputBytes)
	}
	if stderrBuf.Len() > 0 {
		logging.Debug("Validator wrote to stderr", "stderr", strings.TrimSpace(stderrBuf.String()))
	}

	logging.Debug("Validator finished", "duration_ms", elapsed.Milliseconds(), "bytes", stdoutBuf.Len())
	return decodeDocument(stdoutBuf.Bytes())
}

// decodeDocument accepts exactly one JSON value, surrounded only by
// whitespace.
func decodeDocument(out []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, ErrEmptyOutput
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var doc json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidOutput)
	}
	if bytes.Equal(doc, []byte("null")) {
		return nil, fmt.Errorf("%w: null", ErrInvalidOutput)
	}
	return doc, nil
}

// limitedWriter keeps at most max bytes and drops the rest.
type limitedWriter struct {
	w         io.Writer
	max       int
	written   int
	truncated bool
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	remaining := l.max - l.written
	if remaining <= 0 {
		l.truncated = true
		return len(p), nil
	}
	chunk := p
	if len(chunk) > remaining {
		chunk = chunk[:remaining]
		l.truncated = true
	}
	n, err := l.w.Write(chunk)
	l.written += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}
