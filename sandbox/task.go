package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/podhmo/lispcore/callstack"
	"github.com/podhmo/lispcore/hygiene"
	"github.com/podhmo/lispcore/namespace"
	"github.com/podhmo/lispcore/object"
	"github.com/tevino/abool/v2"
)

// Task is the state of one logical thread of script execution: the current
// namespace, the installed interceptor, the hygiene episodes and the logical
// call stack. A Task runs one unit of work at a time and may be reused for
// many units; RunSandboxed re-initializes it around each one.
type Task struct {
	id          string
	run         string
	namespace   string
	interceptor Interceptor
	policy      Policy

	hygiene     *hygiene.Engine
	stack       *callstack.Stack
	interrupted *abool.AtomicBool
	busy        *abool.AtomicBool
	logger      *slog.Logger
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithDefaultPolicy sets the policy applied when no interceptor is installed.
func WithDefaultPolicy(p Policy) TaskOption {
	return func(t *Task) { t.policy = p }
}

// WithMaxCallDepth sets the logical call stack limit.
func WithMaxCallDepth(n int) TaskOption {
	return func(t *Task) { t.stack = callstack.New(n) }
}

// WithLogger sets the logger used for sandbox events.
func WithLogger(logger *slog.Logger) TaskOption {
	return func(t *Task) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTask creates an idle task with no interceptor installed.
func NewTask(opts ...TaskOption) *Task {
	t := &Task{
		id:          uuid.NewString(),
		namespace:   namespace.UserNamespace,
		policy:      PolicyDeny,
		hygiene:     hygiene.New(),
		stack:       callstack.New(callstack.DefaultMaxDepth),
		interrupted: abool.NewBool(false),
		busy:        abool.NewBool(false),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	return t
}

// ID identifies the task for its whole life.
func (t *Task) ID() string { return t.id }

// RunID identifies the unit of work in progress, or is empty when idle. Only
// the goroutine running the unit may call it.
func (t *Task) RunID() string { return t.run }

// Namespace returns the current namespace.
func (t *Task) Namespace() string { return t.namespace }

// SetNamespace switches the current namespace. Callers validate the name.
func (t *Task) SetNamespace(ns string) {
	if ns == "" {
		ns = namespace.UserNamespace
	}
	t.namespace = ns
}

// Interceptor returns the installed interceptor, or nil.
func (t *Task) Interceptor() Interceptor { return t.interceptor }

// Policy returns the default policy.
func (t *Task) Policy() Policy { return t.policy }

// Hygiene returns the task's macro hygiene engine.
func (t *Task) Hygiene() *hygiene.Engine { return t.hygiene }

// CallStack returns the task's logical call stack.
func (t *Task) CallStack() *callstack.Stack { return t.stack }

// Logger returns the task logger.
func (t *Task) Logger() *slog.Logger { return t.logger }

// Interrupt asks the unit of work in progress to stop. It is safe to call
// from any goroutine and touches nothing but the interrupt flag; the request
// is observed between primitive calls.
func (t *Task) Interrupt() {
	t.interrupted.Set()
	t.logger.Debug("interrupt requested", "task", t.id)
}

// Busy reports whether a unit of work is running on the task.
func (t *Task) Busy() bool { return t.busy.IsSet() }

// Interrupted reports whether an interrupt is pending.
func (t *Task) Interrupted() bool { return t.interrupted.IsSet() }

// CheckInterrupt fails with an InterruptedError naming fn when an interrupt is
// pending or ctx is done.
func (t *Task) CheckInterrupt(ctx context.Context, fn string) error {
	if t.interrupted.IsSet() {
		return object.NewInterruptedError(fn)
	}
	if err := ctx.Err(); err != nil {
		e := object.NewInterruptedError(fn)
		e.Cause = err
		return e
	}
	return nil
}

// Gate consults the installed interceptor, or the default policy when none
// is installed. A refusal is returned as a SandboxDeniedError.
func (t *Task) Gate(ctx context.Context, req Request) error {
	var err error
	if t.interceptor != nil {
		err = t.interceptor.Check(ctx, req)
	} else if t.policy != PolicyAllow {
		err = ErrDenied
	}
	if err == nil {
		return nil
	}
	t.logger.Warn("sandbox denied", "task", t.id, "run", t.run, "capability", req.Capability.String(), "target", req.Target, "function", req.Function)

	var e *object.Error
	if errors.As(err, &e) && e.Kind == object.SandboxDeniedKind {
		return e
	}
	denied := object.NewSandboxDeniedError(req.Capability.String(), req.Target)
	if req.Function != "" {
		denied.Message += " in " + req.Function
	}
	denied.Cause = err
	return denied
}

// clear drops everything a unit of work may have left behind.
func (t *Task) clear() {
	t.run = ""
	t.namespace = namespace.UserNamespace
	t.interceptor = nil
	t.hygiene.Reset()
	t.stack.Reset()
	t.interrupted.UnSet()
}
