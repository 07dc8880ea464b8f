// Package lisptest runs scripts from Go tests.
package lisptest

import (
	"bytes"
	"context"
	"testing"

	"github.com/podhmo/lispcore"
	"github.com/podhmo/lispcore/object"
)

// Result provides access to the results of a script execution.
type Result struct {
	Value  object.Object
	Stdout string
	Interp *lispcore.Interpreter
}

// Get retrieves a global value by name, as Interpreter.Lookup does.
func (r *Result) Get(name string) (object.Object, bool) {
	return r.Interp.Lookup(name)
}

func run(t testing.TB, src string, opts []lispcore.Option) (*Result, error) {
	t.Helper()
	var stdout bytes.Buffer
	opts = append([]lispcore.Option{lispcore.WithStdout(&stdout), lispcore.WithConfig(lispcore.DefaultConfig())}, opts...)
	interp, err := lispcore.New(opts...)
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	res, err := interp.EvalString(context.Background(), "test.lisp", src)
	r := &Result{Stdout: stdout.String(), Interp: interp}
	if res != nil {
		r.Value = res.Value
	}
	return r, err
}

// Run evaluates src on a fresh interpreter and fails the test on error.
// The interpreter starts from DefaultConfig, so the environment of the test
// process does not leak in; later options override it.
func Run(t testing.TB, src string, opts ...lispcore.Option) *Result {
	t.Helper()
	r, err := run(t, src, opts)
	if err != nil {
		if e := object.AsError(err); e != nil {
			t.Fatalf("evaluation failed: %s", e.Inspect())
		}
		t.Fatalf("evaluation failed: %v", err)
	}
	return r
}

// RunError evaluates src and fails the test unless evaluation fails.
func RunError(t testing.TB, src string, opts ...lispcore.Option) *object.Error {
	t.Helper()
	_, err := run(t, src, opts)
	if err == nil {
		t.Fatalf("evaluation of %q succeeded, want an error", src)
	}
	return object.AsError(err)
}
