// Package sandbox runs units of script work under a capability interceptor.
//
// Every primitive that can reach outside the interpreter (files, processes,
// the network, host interop) calls Gate before acting. The gate consults the
// interceptor installed on the current Task, or the Task's default policy if
// there is none. RunSandboxed guarantees that the interceptor and the rest of
// the Task state never outlive the unit of work they were installed for,
// which is what makes reusing Tasks across unrelated units safe.
package sandbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/podhmo/lispcore/object"
)

type taskKey struct{}

// WithTask returns a context carrying t.
func WithTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, taskKey{}, t)
}

// TaskFrom returns the Task carried by ctx, or nil.
func TaskFrom(ctx context.Context) *Task {
	t, _ := ctx.Value(taskKey{}).(*Task)
	return t
}

// UnitOfWork is one sandboxed evaluation. ctx carries the Task.
type UnitOfWork func(ctx context.Context) error

// ErrTaskBusy is returned by RunSandboxed when the task is already running a
// unit of work.
var ErrTaskBusy = errors.New("sandbox: task is already running a unit of work")

// RunSandboxed clears t, installs interceptor, runs unit and, on every exit
// path including a panic, uninstalls the interceptor and clears t again. A
// nil interceptor leaves the default policy in charge. Panics are re-raised
// after the teardown. A task runs one unit at a time: a nested or concurrent
// call on a busy task fails with ErrTaskBusy and leaves the running unit's
// state alone.
func RunSandboxed(ctx context.Context, t *Task, interceptor Interceptor, unit UnitOfWork) error {
	if !t.busy.SetToIf(false, true) {
		t.logger.Warn("sandbox busy", "task", t.id)
		return ErrTaskBusy
	}
	defer t.busy.UnSet()

	t.clear()
	t.interceptor = interceptor
	t.run = uuid.NewString()
	t.logger.Debug("sandbox installed", "task", t.id, "run", t.run, "interceptor", interceptor != nil)

	defer func() {
		t.logger.Debug("sandbox teardown", "task", t.id, "run", t.run)
		t.clear()
	}()
	return unit(WithTask(ctx, t))
}

// Gate checks req against the Task carried by ctx. Without a Task there is
// no sandbox to ask and the request is denied.
func Gate(ctx context.Context, req Request) error {
	t := TaskFrom(ctx)
	if t == nil {
		e := object.NewSandboxDeniedError(req.Capability.String(), req.Target)
		e.Message += " outside a sandboxed task"
		return e
	}
	return t.Gate(ctx, req)
}

// CheckInterrupt checks the Task carried by ctx, falling back to ctx alone.
func CheckInterrupt(ctx context.Context, fn string) error {
	if t := TaskFrom(ctx); t != nil {
		return t.CheckInterrupt(ctx, fn)
	}
	if err := ctx.Err(); err != nil {
		e := object.NewInterruptedError(fn)
		e.Cause = err
		return e
	}
	return nil
}
