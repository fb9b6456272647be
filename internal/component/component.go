package component

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/ragcore/internal/logging"
)

// Reserved output keys
const (
	KeyCreatedTime = "_created_time"
	KeyElapsedTime = "_elapsed_time"
	KeyError       = "_ERROR"

	// KeyResult receives a component's default output on failure
	KeyResult = "result"
)

const (
	// ProgressDone is reported when an invocation succeeds
	ProgressDone = 1.0
	// ProgressFailed is reported when an invocation fails
	ProgressFailed = -1.0

	// DefaultTimeout bounds a single invocation
	DefaultTimeout = 10 * time.Minute
)

// ErrTimeout is reported when an invocation exceeds its budget
var ErrTimeout = errors.New("component execution timed out")

// Outputs is the key/value result of one invocation
type Outputs map[string]any

// Error returns the recorded failure message, if any
func (o Outputs) Error() (string, bool) {
	msg, ok := o[KeyError].(string)
	return msg, ok
}

// Elapsed returns the recorded invocation duration
func (o Outputs) Elapsed() time.Duration {
	secs, _ := o[KeyElapsedTime].(float64)
	return time.Duration(secs * float64(time.Second))
}

// ProgressFunc receives progress in [0, 1], or ProgressFailed, with a message
type ProgressFunc func(progress float64, msg string)

// Component is one transformation stage run under the execution contract
type Component interface {
	Name() string
	Invoke(ctx context.Context, inv *Invocation) error
}

// Defaulter is implemented by components configured with a substitute
// output to publish instead of an error
type Defaulter interface {
	DefaultOutput() (any, bool)
}

// Invocation carries the inputs of one run and collects its outputs. Once the
// runner seals it, late writes from an abandoned run are discarded.
type Invocation struct {
	ID     string
	Inputs map[string]any

	mu       sync.Mutex
	outputs  Outputs
	sealed   bool
	progress ProgressFunc
}

// Input returns an input value
func (inv *Invocation) Input(key string) (any, bool) {
	v, ok := inv.Inputs[key]
	return v, ok
}

// SetOutput records an output value
func (inv *Invocation) SetOutput(key string, value any) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.sealed {
		return
	}
	inv.outputs[key] = value
}

// Progress reports intermediate progress
func (inv *Invocation) Progress(progress float64, msg string) {
	inv.mu.Lock()
	sealed := inv.sealed
	inv.mu.Unlock()
	if !sealed && inv.progress != nil {
		inv.progress(progress, msg)
	}
}

func (inv *Invocation) seal() {
	inv.mu.Lock()
	inv.sealed = true
	inv.mu.Unlock()
}

// put writes an output regardless of the seal
func (inv *Invocation) put(key string, value any) {
	inv.mu.Lock()
	inv.outputs[key] = value
	inv.mu.Unlock()
}

func (inv *Invocation) snapshot() Outputs {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return maps.Clone(inv.outputs)
}

// PanicError wraps a value recovered from a panicking component
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("component panicked: %v", e.Value)
}

// Unwrap exposes a panic value that is itself an error
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Runner executes components under the execution contract: every failure
// is absorbed into the returned Outputs instead of propagating
type Runner struct {
	timeout  time.Duration
	progress ProgressFunc
	logger   *zap.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithTimeout sets the per-invocation timeout
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithProgress sets the progress callback
func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) { r.progress = fn }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = logging.OrNop(l).Named("component") }
}

// NewRunner creates a runner with DefaultTimeout
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Invoke runs c once. On success progress reaches ProgressDone; on failure
// the outputs carry either c's default output or KeyError, and progress
// reports ProgressFailed. KeyCreatedTime and KeyElapsedTime are always set.
func (r *Runner) Invoke(ctx context.Context, c Component, inputs map[string]any) Outputs {
	start := time.Now()
	inv := &Invocation{
		ID:       uuid.NewString(),
		Inputs:   inputs,
		outputs:  Outputs{KeyCreatedTime: start},
		progress: r.progress,
	}
	logger := r.logger.With(
		zap.String("component", c.Name()),
		zap.String("invocation", inv.ID))

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.run(ctx, c, inv, logger)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		// The run is abandoned; it observes ctx and winds down on its own
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
		} else {
			err = fmt.Errorf("component execution cancelled: %w", ctx.Err())
		}
	}
	inv.seal()

	if err != nil {
		msg := err.Error()
		if d, ok := c.(Defaulter); ok {
			if v, set := d.DefaultOutput(); set {
				inv.put(KeyResult, v)
			} else {
				inv.put(KeyError, msg)
			}
		} else {
			inv.put(KeyError, msg)
		}
		logger.Error("component failed", zap.Error(err))
		r.report(ProgressFailed, msg)
	} else {
		r.report(ProgressDone, fmt.Sprintf("%s done", c.Name()))
	}

	elapsed := time.Since(start)
	inv.put(KeyElapsedTime, elapsed.Seconds())
	logger.Debug("component finished",
		zap.Duration("elapsed", elapsed),
		zap.Bool("failed", err != nil))
	return inv.snapshot()
}

func (r *Runner) run(ctx context.Context, c Component, inv *Invocation, logger *zap.Logger) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("component panicked",
				zap.Any("panic", p),
				zap.Stack("stack"))
			err = &PanicError{Value: p}
		}
	}()
	return c.Invoke(ctx, inv)
}

func (r *Runner) report(progress float64, msg string) {
	if r.progress != nil {
		r.progress(progress, msg)
	}
}
