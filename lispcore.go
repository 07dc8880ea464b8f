// Package lispcore embeds the scripting runtime in a Go program.
//
// An Interpreter owns the shared state of a runtime (globals, namespaces,
// type and service registries) and one Task on which EvalString and
// EvalFile run their units of work. Programs that evaluate scripts in
// parallel use a worker.Pool over Interpreter.Evaluator instead.
package lispcore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/podhmo/lispcore/evaluator"
	"github.com/podhmo/lispcore/namespace"
	"github.com/podhmo/lispcore/object"
	"github.com/podhmo/lispcore/reader"
	"github.com/podhmo/lispcore/registry"
	"github.com/podhmo/lispcore/sandbox"
	"github.com/podhmo/lispcore/scope"
)

// Interpreter is the main entry point for running scripts.
type Interpreter struct {
	mu          sync.Mutex
	config      Config
	eval        *evaluator.Evaluator
	env         *scope.Environment
	task        *sandbox.Task
	interceptor sandbox.Interceptor

	stdout    io.Writer
	stderr    io.Writer
	logger    *slog.Logger
	args      []string
	globals   map[string]any
	discovery registry.Discovery
}

// Option is a functional option for configuring the Interpreter.
type Option func(*Interpreter)

// WithConfig replaces the settings otherwise loaded from the environment.
func WithConfig(c Config) Option {
	return func(i *Interpreter) {
		i.config = c
	}
}

// WithStdout sets the standard output for the interpreter.
func WithStdout(w io.Writer) Option {
	return func(i *Interpreter) {
		i.stdout = w
	}
}

// WithStderr sets the standard error for the interpreter.
func WithStderr(w io.Writer) Option {
	return func(i *Interpreter) {
		i.stderr = w
	}
}

// WithLogger sets the logger for the interpreter and its task.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) {
		i.logger = logger
	}
}

// WithInterceptor sets the capability gate installed around every
// evaluation. Without one the default policy decides.
func WithInterceptor(interceptor sandbox.Interceptor) Option {
	return func(i *Interpreter) {
		i.interceptor = interceptor
	}
}

// WithDefaultPolicy overrides Config.DefaultPolicy.
func WithDefaultPolicy(p sandbox.Policy) Option {
	return func(i *Interpreter) {
		i.config.DefaultPolicy = p
	}
}

// WithMaxCallDepth overrides Config.MaxCallDepth.
func WithMaxCallDepth(n int) Option {
	return func(i *Interpreter) {
		i.config.MaxCallDepth = n
	}
}

// WithRunMode overrides Config.RunMode.
func WithRunMode(mode string) Option {
	return func(i *Interpreter) {
		i.config.RunMode = mode
	}
}

// WithArgs sets the value scripts see as *args*.
func WithArgs(args ...string) Option {
	return func(i *Interpreter) {
		i.args = args
	}
}

// WithServiceDiscovery installs the fallback consulted when a service is
// not registered statically.
func WithServiceDiscovery(d registry.Discovery) Option {
	return func(i *Interpreter) {
		i.discovery = d
	}
}

// WithGlobals allows injecting Go values into the user namespace.
// The map key is the variable name in the script.
func WithGlobals(globals map[string]any) Option {
	return func(i *Interpreter) {
		if i.globals == nil {
			i.globals = make(map[string]any, len(globals))
		}
		for k, v := range globals {
			i.globals[k] = v
		}
	}
}

// New creates an interpreter. Settings not given as options come from
// LoadConfig.
func New(options ...Option) (*Interpreter, error) {
	i := &Interpreter{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	loaded, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	i.config = loaded
	for _, opt := range options {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.New(slog.NewJSONHandler(i.stderr, &slog.HandlerOptions{Level: i.config.LogLevel}))
	}

	i.eval = evaluator.New(evaluator.Config{
		RunMode: i.config.RunMode,
		Args:    i.args,
		Stdout:  i.stdout,
		Stderr:  i.stderr,
		Logger:  i.logger,
	})
	if i.discovery != nil {
		i.eval.Services().SetDiscovery(i.discovery)
	}
	i.env = i.eval.NewEnvironment()
	i.task = sandbox.NewTask(i.TaskOptions()...)

	for name, value := range i.globals {
		if err := i.Define(name, value); err != nil {
			return nil, fmt.Errorf("defining global %q: %w", name, err)
		}
	}
	return i, nil
}

// TaskOptions returns the options for creating further tasks that behave
// like the interpreter's own, e.g. for a worker.Pool.
func (i *Interpreter) TaskOptions() []sandbox.TaskOption {
	return []sandbox.TaskOption{
		sandbox.WithDefaultPolicy(i.config.DefaultPolicy),
		sandbox.WithMaxCallDepth(i.config.MaxCallDepth),
		sandbox.WithLogger(i.logger),
	}
}

// Config returns the effective settings.
func (i *Interpreter) Config() Config { return i.config }

// Evaluator returns the underlying evaluator.
func (i *Interpreter) Evaluator() *evaluator.Evaluator { return i.eval }

// Types returns the custom type registry.
func (i *Interpreter) Types() *registry.Types { return i.eval.Types() }

// Services returns the service registry.
func (i *Interpreter) Services() *registry.Services { return i.eval.Services() }

// RegisterGoFunc makes fn callable from scripts through go-call.
func (i *Interpreter) RegisterGoFunc(name string, fn any) error {
	return i.eval.Interop().Register(name, fn)
}

// RegisterPrimitive adds a builtin guarded by capability c.
func (i *Interpreter) RegisterPrimitive(name string, c sandbox.Capability, fn object.BuiltinFunction) error {
	return i.eval.RegisterPrimitive(name, c, fn)
}

// Define binds name, qualified into the user namespace unless it already
// names one, to the script value of value.
func (i *Interpreter) Define(name string, value any) error {
	sym := object.ParseSymbol(name)
	if !sym.IsQualified() {
		sym = sym.WithNamespace(namespace.UserNamespace)
	}
	_, err := i.env.Define(sym, evaluator.ToObject(value))
	return err
}

// Lookup returns the global value of name. Unqualified names are looked up
// in the user namespace and then among the builtins.
func (i *Interpreter) Lookup(name string) (object.Object, bool) {
	sym := object.ParseSymbol(name)
	if !sym.IsQualified() {
		if v, ok := i.env.Lookup(sym.WithNamespace(namespace.UserNamespace)); ok {
			return v, true
		}
	}
	return i.env.Lookup(sym)
}

// Interrupt asks the evaluation in progress to stop.
func (i *Interpreter) Interrupt() {
	i.task.Interrupt()
}

// EvalString reads src and evaluates every form in it as one sandboxed unit
// of work, starting in the user namespace.
func (i *Interpreter) EvalString(ctx context.Context, filename, src string) (*Result, error) {
	return i.evalSource(ctx, filename, src, namespace.UserNamespace)
}

// EvalFile evaluates the script at path. The namespace is derived from the
// file name, so scripts/math_utils.lisp starts in math-utils.
func (i *Interpreter) EvalFile(ctx context.Context, path string) (*Result, error) {
	ns, err := namespace.FromFile(path)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	return i.evalSource(ctx, path, string(src), ns)
}

func (i *Interpreter) evalSource(ctx context.Context, filename, src, ns string) (*Result, error) {
	forms, err := reader.Read(filename, src)
	if err != nil {
		return nil, err
	}
	if _, err := i.eval.Namespaces().Define(ns); err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	var value object.Object
	err = sandbox.RunSandboxed(ctx, i.task, i.interceptor, func(ctx context.Context) error {
		sandbox.TaskFrom(ctx).SetNamespace(ns)
		var err error
		value, err = i.eval.EvalForms(ctx, forms, i.env)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Result{Value: value}, nil
}
