// Package agent runs the external analysis agent on an assembled triage
// document.
package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

var (
	// ErrNotInstalled is returned when the agent binary is not on PATH.
	ErrNotInstalled = errors.New("analysis agent is not installed")
	// ErrNestedSession is returned when the caller is itself running inside an
	// agent session.
	ErrNestedSession = errors.New("already running inside an agent session; refusing to start another")
	// ErrOutputLimitExceeded is returned when the agent writes more than the
	// configured output cap.
	ErrOutputLimitExceeded = errors.New("agent output limit exceeded")
	// ErrRateLimited is returned when the agent failed with a quota message.
	ErrRateLimited = errors.New("analysis agent was rate limited")
)

const (
	// PromptPlaceholder in an argument is replaced by the prompt text.
	PromptPlaceholder = "{prompt}"

	DefaultBinary    = "copilot"
	DefaultTimeout   = 10 * time.Minute
	DefaultOutputCap = 4 << 20
)

// limitedBuffer is a bytes.Buffer that errors on overflow.
type limitedBuffer struct {
	bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.Len()+len(p) > b.limit {
		return 0, ErrOutputLimitExceeded
	}
	return b.Buffer.Write(p)
}

// Client invokes the agent CLI.
type Client struct {
	binaryPath string
	args       []string
	timeout    time.Duration
	outputCap  int
	logger     *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithBinaryPath sets the agent executable.
func WithBinaryPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.binaryPath = path
		}
	}
}

// WithArgs sets the argument template. Arguments containing PromptPlaceholder
// receive the prompt.
func WithArgs(args ...string) Option {
	return func(c *Client) {
		c.args = append([]string(nil), args...)
	}
}

// WithTimeout sets the command timeout. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithOutputCap limits how many bytes of stdout are kept.
func WithOutputCap(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.outputCap = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new agent client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		binaryPath: DefaultBinary,
		args:       []string{"-p", PromptPlaceholder},
		timeout:    DefaultTimeout,
		outputCap:  DefaultOutputCap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Binary returns the configured executable name.
func (c *Client) Binary() string {
	return c.binaryPath
}

// IsInstalled checks if the agent binary is available.
func (c *Client) IsInstalled() bool {
	path, err := exec.LookPath(c.binaryPath)
	return err == nil && path != ""
}

// Request is one analysis invocation.
type Request struct {
	Prompt   string
	Document string
	// ParentSessionActive is set when the caller already runs inside an agent.
	ParentSessionActive bool
}

// Response is the agent's cleaned output.
type Response struct {
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
}

// Analyze runs the agent with the prompt and pipes the document on stdin.
func (c *Client) Analyze(ctx context.Context, req Request) (*Response, error) {
	if req.ParentSessionActive {
		return nil, ErrNestedSession
	}
	if !c.IsInstalled() {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, c.binaryPath)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args, placed := c.buildArgs(req.Prompt)
	stdin := req.Document
	if !placed && req.Prompt != "" {
		stdin = req.Prompt + "\n\n" + req.Document
	}

	cmd := exec.CommandContext(ctx, c.binaryPath, args...)
	cmd.Stdin = strings.NewReader(stdin)
	stdout := &limitedBuffer{limit: c.outputCap}
	stderr := &limitedBuffer{limit: 64 << 10}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	c.logger.Debug("starting analysis agent", "binary", c.binaryPath, "args", len(args), "input_bytes", len(stdin))
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("agent timed out after %v", c.timeout)
		}
		if errors.Is(err, ErrOutputLimitExceeded) {
			return nil, fmt.Errorf("%w (%d bytes)", ErrOutputLimitExceeded, c.outputCap)
		}
		combined := stripANSICodes(stdout.String() + "\n" + stderr.String())
		if looksRateLimited(combined) {
			return nil, ErrRateLimited
		}
		return nil, fmt.Errorf("agent failed: %w (stderr: %s)", err, strings.TrimSpace(stripANSICodes(stderr.String())))
	}

	c.logger.Debug("analysis agent finished", "duration", elapsed, "output_bytes", stdout.Len())
	return &Response{
		Output:   strings.TrimSpace(stripANSICodes(stdout.String())),
		Duration: elapsed,
	}, nil
}

// buildArgs substitutes the prompt into the argument template and reports
// whether any placeholder was found.
func (c *Client) buildArgs(prompt string) ([]string, bool) {
	out := make([]string, len(c.args))
	placed := false
	for i, a := range c.args {
		if strings.Contains(a, PromptPlaceholder) {
			placed = true
			a = strings.ReplaceAll(a, PromptPlaceholder, prompt)
		}
		out[i] = a
	}
	return out, placed
}
