// Package bridge writes database subsets by running the external GF3D
// subset tool, one process per request.
package bridge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/gf3d/gf3dserver/internal/gfdb"
	"github.com/gf3d/gf3dserver/internal/provider/resilience"
)

// DefaultCommand is the subset tool invoked when none is configured.
var DefaultCommand = []string{"gf3d-subset"}

// maxStderr bounds how much of the tool's stderr is kept.
const maxStderr = 64 << 10

// Predefined errors for bridge calls.
var (
	// ErrNoCommand is returned when the bridge has no command to run.
	ErrNoCommand = errors.New("no subset command configured")

	// ErrNoOutput is returned when the tool exits cleanly without writing the output file.
	ErrNoOutput = errors.New("subset tool did not write an output file")

	// ErrCallerGone is returned when the caller's context ends before the tool
	// finishes. It does not count against the breaker.
	ErrCallerGone = errors.New("subset request cancelled by caller")
)

// ToolError is returned when the subset tool exits with a non-zero status.
// Stderr holds the tool's own diagnostics, usually the library traceback.
type ToolError struct {
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(lastLine(e.Stderr))
	if msg == "" {
		return fmt.Sprintf("subset tool exited with status %d", e.ExitCode)
	}
	return fmt.Sprintf("subset tool exited with status %d: %s", e.ExitCode, msg)
}

// Traceback returns the tool's stderr.
func (e *ToolError) Traceback() string {
	return e.Stderr
}

// Config holds configuration for the bridge.
type Config struct {
	// Command is the executable and leading arguments.
	// Default: DefaultCommand
	Command []string

	// Timeout bounds a single subset run.
	// Default: 10 minutes
	Timeout time.Duration

	// Breaker guards process launches. If nil, a default breaker is created.
	Breaker *resilience.Breaker

	// Logger for bridge operations.
	Logger zerolog.Logger
}

// Bridge implements gfdb.SubsetWriter on top of an external process.
type Bridge struct {
	command []string
	timeout time.Duration
	breaker *resilience.Breaker
	logger  zerolog.Logger
}

// BreakerName is the name of the default breaker.
const BreakerName = "subset-tool"

// New creates a Bridge.
func New(cfg Config) *Bridge {
	command := cfg.Command
	if len(command) == 0 {
		command = DefaultCommand
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = NewBreaker(cfg.Logger)
	}
	return &Bridge{
		command: command,
		timeout: timeout,
		breaker: breaker,
		logger:  cfg.Logger,
	}
}

// NewBreaker returns a breaker that only counts failures to run the tool,
// not errors reported by the tool itself. State changes are logged to logger.
func NewBreaker(logger zerolog.Logger) *resilience.Breaker {
	cfg := resilience.DefaultCircuitBreakerConfig(BreakerName)
	cfg.IsFailure = IsLaunchFailure
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("circuit breaker state changed")
	}
	return resilience.NewBreaker(cfg)
}

// IsLaunchFailure reports whether err means the tool could not run to completion.
func IsLaunchFailure(err error) bool {
	if err == nil {
		return false
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return false
	}
	return !errors.Is(err, ErrNoOutput) && !errors.Is(err, ErrCallerGone)
}

// Breaker returns the breaker guarding the tool.
func (b *Bridge) Breaker() *resilience.Breaker {
	return b.breaker
}

// Args returns the arguments passed to the tool for a subset query.
func Args(outfile string, q gfdb.SubsetQuery) []string {
	args := []string{
		"--output", outfile,
		"--latitude", formatFloat(q.Latitude),
		"--longitude", formatFloat(q.Longitude),
		"--depth", formatFloat(q.Depth),
		"--radius", formatFloat(q.Radius),
		"--ngll", strconv.Itoa(q.NGLL),
	}
	if q.Fortran {
		args = append(args, "--fortran")
	}
	if q.Duration != nil {
		args = append(args, "--duration", formatFloat(*q.Duration))
	}
	return args
}

// WriteSubset runs the tool with the station files on stdin, one per line.
func (b *Bridge) WriteSubset(ctx context.Context, stationFiles []string, outfile string, q gfdb.SubsetQuery) error {
	if len(b.command) == 0 || b.command[0] == "" {
		return errors.WithStack(ErrNoCommand)
	}

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	args := append(append([]string{}, b.command[1:]...), Args(outfile, q)...)

	start := time.Now()
	err := b.breaker.Execute(func() error {
		return b.run(ctx, runCtx, args, stationFiles)
	})
	if err != nil {
		event := b.logger.Error()
		if errors.Is(err, ErrCallerGone) {
			event = b.logger.Info()
		}
		event.
			Err(err).
			Str("command", b.command[0]).
			Int("station_files", len(stationFiles)).
			Dur("duration", time.Since(start)).
			Msg("subset tool failed")
		return err
	}

	if _, statErr := os.Stat(outfile); statErr != nil {
		return errors.Wrap(ErrNoOutput, statErr.Error())
	}

	b.logger.Info().
		Str("command", b.command[0]).
		Int("station_files", len(stationFiles)).
		Dur("duration", time.Since(start)).
		Msg("subset written")
	return nil
}

// run executes the tool under ctx, which is derived from caller. Only a
// timeout of ctx itself is reported as the bridge's failure.
func (b *Bridge) run(caller, ctx context.Context, args, stationFiles []string) error {
	cmd := exec.CommandContext(ctx, b.command[0], args...) //nolint:gosec // command comes from deployment configuration
	cmd.Stdin = strings.NewReader(strings.Join(stationFiles, "\n") + "\n")

	stderr := &tailBuffer{limit: maxStderr}
	cmd.Stderr = stderr
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if callerErr := caller.Err(); callerErr != nil {
		return errors.Wrapf(ErrCallerGone, "subset tool %s: %v", b.command[0], callerErr)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrapf(ctxErr, "subset tool %s", b.command[0])
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return errors.WithStack(&ToolError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   stderr.String(),
		})
	}
	return errors.Wrapf(err, "run subset tool %s", b.command[0])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) > t.limit {
		p = p[len(p)-t.limit:]
	}
	if over := t.buf.Len() + len(p) - t.limit; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
