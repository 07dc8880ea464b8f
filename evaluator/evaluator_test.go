package evaluator

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/podhmo/lispcore/object"
	"github.com/podhmo/lispcore/reader"
	"github.com/podhmo/lispcore/sandbox"
	"github.com/podhmo/lispcore/trampoline"
)

// testRun reads src and evaluates it as one sandboxed unit of work.
func testRun(t *testing.T, e *Evaluator, interceptor sandbox.Interceptor, src string, opts ...sandbox.TaskOption) (object.Object, error) {
	t.Helper()
	return testRunContext(context.Background(), t, e, interceptor, src, opts...)
}

func testRunContext(ctx context.Context, t *testing.T, e *Evaluator, interceptor sandbox.Interceptor, src string, opts ...sandbox.TaskOption) (object.Object, error) {
	t.Helper()
	forms, err := reader.Read("test.lisp", src)
	if err != nil {
		t.Fatalf("failed to read source: %v", err)
	}
	var result object.Object
	err = sandbox.RunSandboxed(ctx, sandbox.NewTask(opts...), interceptor, func(ctx context.Context) error {
		var err error
		result, err = e.EvalForms(ctx, forms, e.NewEnvironment())
		return err
	})
	return result, err
}

// testEval evaluates src on a fresh evaluator and fails the test on error.
func testEval(t *testing.T, src string) object.Object {
	t.Helper()
	result, err := testRun(t, New(Config{}), nil, src)
	if err != nil {
		t.Fatalf("unexpected error for %q: %v", src, err)
	}
	return result
}

func TestEval(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"integer", "5", "5"},
		{"defconst over a def", "(def x 1) (defconst x 2) x", "2"},
		{"closure shares set! on captured locals", "(let [a 1 f (fn [] a)] (set! a 2) (f))", "2"},
		{"string", `"hi"`, `"hi"`},
		{"arithmetic", "(+ 1 (* 2 3) (- 4))", "3"},
		{"float promotion", "(/ 7 2.0)", "3.5"},
		{"integer division truncates", "(/ 7 2)", "3"},
		{"mod", "(mod -7 3)", "2"},
		{"comparison", "(< 1 2 3)", "true"},
		{"vector elements evaluate", "[(+ 1 1) :k]", "[2 :k]"},
		{"quote", "'(a b)", "(a b)"},
		{"if false", "(if false 1)", "nil"},
		{"if nil is falsey", "(if nil 1 2)", "2"},
		{"if zero is truthy", "(if 0 1 2)", "1"},
		{"do", "(do 1 2 3)", "3"},
		{"def then resolve", "(def x 10) (+ x 1)", "11"},
		{"def returns qualified symbol", "(def x 10)", "user/x"},
		{"qualified reference", "(def x 10) user/x", "10"},
		{"let sequential", "(let [x 1 y (+ x 1)] y)", "2"},
		{"let first binding wins", "(let [x 1 x 2] x)", "1"},
		{"let shadows global", "(def s 1) [(let [s 2] s) s]", "[2 1]"},
		{"set! global", "(def c 1) (set! c 2) c", "2"},
		{"set! local", "(let [c 1] (set! c 5) c)", "5"},
		{"closure", "(def add (fn [a] (fn [b] (+ a b)))) ((add 2) 3)", "5"},
		{"defn", "(defn sq [x] (* x x)) (sq 7)", "49"},
		{"variadic", "(defn f [a & more] [a more]) (f 1 2 3)", "[1 (2 3)]"},
		{"destructuring params", "((fn [[a b] & more] (+ a b (count more))) [1 2] 3 4)", "5"},
		{"named fn self reference", "((fn fact [n] (if (= n 0) 1 (* n (fact (- n 1))))) 5)", "120"},
		{"fn recur", "((fn [n acc] (if (= n 0) acc (recur (- n 1) (* acc n)))) 5 1)", "120"},
		{"loop destructuring", "(loop [[x & xs] [1 2 3] acc 0] (if (nil? x) acc (recur xs (+ acc x))))", "6"},
		{"recur through let", "(loop [i 0] (let [j (+ i 1)] (if (< j 3) (recur j) j)))", "3"},
		{"keyword lookup", "(:a {:a 1 :b 2})", "1"},
		{"keyword fallback", "(:z {:a 1} :none)", ":none"},
		{"seq builtins", "[(first [1 2]) (rest '(1 2)) (cons 0 [1]) (conj [1] 2) (nth [1 2 3] 2)]", "[1 (2) (0 1) [1 2] 3]"},
		{"str", `(str "a" 1 nil :k)`, `"a1:k"`},
		{"type-of", "[(type-of 1) (type-of \"s\")]", "[:integer :string]"},
		{"current namespace", "*ns*", "user"},
		{"run mode", "*run-mode*", `"script"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testEval(t, tt.input)
			if got.Inspect() != tt.want {
				t.Errorf("Eval(%q) = %s, want %s", tt.input, got.Inspect(), tt.want)
			}
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    object.ErrorKind
		message string
	}{
		{"unresolved", "missing", object.UnresolvedSymbolKind, "missing"},
		{"define special form", "(def if 1)", object.ReservedNameKind, "if"},
		{"bind reserved name", "(let [recur 1] recur)", object.ReservedNameKind, "recur"},
		{"shadow system var", "(fn [*ns*] 1)", object.ReservedNameKind, "*ns*"},
		{"redefine builtin", "(def + 1)", object.NotOverwritableKind, "+"},
		{"set! constant", "(defconst k 1) (set! k 2)", object.NotOverwritableKind, "k"},
		{"redefine constant", "(defconst k 1) (defconst k 2)", object.NotOverwritableKind, "k"},
		{"def after defconst over a def", "(def x 1) (defconst x 2) (def x 3)", object.NotOverwritableKind, "x"},
		{"set! after defconst over a def", "(def x 1) (defconst x 2) (set! x 3)", object.NotOverwritableKind, "x"},
		{"set! unbound", "(set! nope 1)", object.UnresolvedSymbolKind, "nope"},
		{"closure sees only earlier let bindings", "(let [f (fn [] y) y 5] (f))", object.UnresolvedSymbolKind, "y"},
		{"arity", "((fn [a] a))", object.ArityKind, "got=0, want=1"},
		{"recur arity", "(loop [i 0] (recur 1 2))", object.ArityKind, "got=2, want=1"},
		{"recur not in tail position", "(loop [i 0] (+ 1 (recur i)))", object.ScriptErrorKind, "tail position"},
		{"recur in loop init", "(loop [i (recur 1)] i)", object.ScriptErrorKind, "tail position"},
		{"stray unquote", "(unquote x)", object.ScriptErrorKind, "outside syntax-quote"},
		{"not a function", "(1 2)", object.ScriptErrorKind, "not a function"},
		{"division by zero", "(/ 1 0)", object.ScriptErrorKind, "division by zero"},
		{"odd binding vector", "(let [x] x)", object.ScriptErrorKind, "even number"},
		{"reserved namespace", "(ns lisp)", object.ReservedNameKind, "lisp"},
		{"unknown type", "(new nothing 1)", object.ScriptErrorKind, "unknown type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testRun(t, New(Config{}), nil, tt.input)
			if err == nil {
				t.Fatalf("Eval(%q) succeeded, want %v", tt.input, tt.kind)
			}
			if got := object.KindOf(err); got != tt.kind {
				t.Errorf("kind = %v, want %v (%v)", got, tt.kind, err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("message %q does not contain %q", err.Error(), tt.message)
			}
		})
	}
}

func TestEval_ErrorLocationAndCallStack(t *testing.T) {
	src := "(defn inner []\n  (undefined-thing))\n(defn outer [] (inner))\n(outer)"
	_, err := testRun(t, New(Config{}), nil, src)
	if err == nil {
		t.Fatal("expected an error")
	}
	rerr := object.AsError(err)
	if rerr.Location != "File <test.lisp> (2,4)" {
		t.Errorf("Location = %q", rerr.Location)
	}
	var names []string
	for _, f := range rerr.CallStack {
		names = append(names, f.Function)
	}
	if strings.Join(names, ",") != "outer,inner" {
		t.Errorf("CallStack = %v, want [outer inner]", names)
	}

	out := rerr.Inspect()
	for _, want := range []string{"UnresolvedSymbolError", "undefined-thing", "in inner", "in outer"} {
		if !strings.Contains(out, want) {
			t.Errorf("Inspect() does not mention %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "in inner") > strings.Index(out, "in outer") {
		t.Errorf("Inspect() must print the most recent frame first:\n%s", out)
	}
}

func TestEval_LoopRunsInConstantStack(t *testing.T) {
	got := testEval(t, "(loop [i 0 acc 0] (if (= i 200000) acc (recur (+ i 1) (+ acc i))))")
	if got.Inspect() != "19999900000" {
		t.Errorf("loop sum = %s", got.Inspect())
	}

	got = testEval(t, "(defn count-down [n] (if (= n 0) :done (recur (- n 1)))) (count-down 200000)")
	if got.Inspect() != ":done" {
		t.Errorf("fn recur = %s", got.Inspect())
	}
}

func TestEval_StackDepthExceeded(t *testing.T) {
	src := "(defn deep [n] (if (= n 0) 0 (+ 1 (deep (- n 1)))))"
	e := New(Config{})

	got, err := testRun(t, e, nil, src+" (deep 10)", sandbox.WithMaxCallDepth(20))
	if err != nil {
		t.Fatalf("(deep 10) unexpected error: %v", err)
	}
	if got.Inspect() != "10" {
		t.Errorf("(deep 10) = %s", got.Inspect())
	}

	_, err = testRun(t, e, nil, src+" (deep 100)", sandbox.WithMaxCallDepth(20))
	if !errors.Is(err, object.ErrStackDepthExceeded) {
		t.Fatalf("(deep 100) = %v, want StackDepthExceeded", err)
	}
	if !object.AsError(err).Fatal {
		t.Errorf("StackDepthExceeded must be fatal")
	}
}

func TestEval_RecurHook(t *testing.T) {
	var steps []trampoline.Step
	e := New(Config{RecurHook: func(s trampoline.Step) { steps = append(steps, s) }})
	got, err := testRun(t, e, nil, "(loop [i 0] (if (< i 3) (recur (+ i 1)) i))")
	if err != nil {
		t.Fatal(err)
	}
	if got.Inspect() != "3" {
		t.Errorf("loop = %s", got.Inspect())
	}
	if len(steps) != 3 {
		t.Errorf("hook observed %d steps, want 3", len(steps))
	}
}

func TestEval_Macros(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"unless", "(defmacro unless [c & body] `(if ~c nil (do ~@body))) (unless false 1 2)", "2"},
		{"placeholder avoids capture", "(defmacro add10 [a] `(let [x# 10] (+ x# ~a))) (let [x 1] (add10 x))", "11"},
		{"placeholder is stable within one expansion", "(defmacro twice [v] `(let [t# ~v] (+ t# t#))) (twice 4)", "8"},
		{"fresh symbols per expansion", "(defmacro g [] `(quote x#)) (= (g) (g))", "false"},
		{"free symbols resolve in the defining namespace",
			"(defn helper [] 42) (defmacro call-helper [] `(helper)) (ns other) (user/call-helper)", "42"},
		{"splice vector", "(defmacro sum [& xs] `(+ ~@xs)) (sum 1 2 3)", "6"},
		{"gensym", "(= (gensym) (gensym))", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testEval(t, tt.input)
			if got.Inspect() != tt.want {
				t.Errorf("Eval(%q) = %s, want %s", tt.input, got.Inspect(), tt.want)
			}
		})
	}
}

func TestMacroexpand(t *testing.T) {
	e := New(Config{})
	if _, err := testRun(t, e, nil, "(defmacro with-tmp [v] `(let [tmp# ~v] tmp#))"); err != nil {
		t.Fatal(err)
	}
	form, err := reader.ReadOne("test.lisp", "(with-tmp 5)")
	if err != nil {
		t.Fatal(err)
	}

	expand := func() *object.List {
		t.Helper()
		expanded, err := e.Macroexpand(context.Background(), form, e.NewEnvironment())
		if err != nil {
			t.Fatalf("Macroexpand() unexpected error: %v", err)
		}
		list, ok := expanded.(*object.List)
		if !ok || len(list.Elements) != 3 {
			t.Fatalf("unexpected expansion %s", expanded.Inspect())
		}
		return list
	}

	first := expand()
	binding := first.Elements[1].(*object.Vector).Elements[0].(*object.Symbol)
	body := first.Elements[2].(*object.Symbol)
	if !binding.Equal(body) {
		t.Errorf("one placeholder must resolve to one symbol within an expansion: %s vs %s", binding, body)
	}
	if !strings.HasPrefix(binding.Name, "tmp") || strings.HasSuffix(binding.Name, "#") {
		t.Errorf("unexpected generated symbol %s", binding)
	}
	if pos := object.PositionOf(first); pos.File != "test.lisp" || pos.Line != 1 {
		t.Errorf("expansion must carry the call-site position, got %v", pos)
	}

	second := expand()
	if binding.Equal(second.Elements[2].(*object.Symbol)) {
		t.Errorf("separate expansions must not share generated symbols")
	}
}

func TestEval_Namespaces(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ns switches *ns*", "(ns app.core) *ns*", "app.core"},
		{"definitions are qualified", "(ns app) (def x 1)", "app/x"},
		{"use imports", "(ns lib) (defn sq [x] (* x x)) (ns app (:use lib)) (sq 4)", "16"},
		{"qualified access", "(ns lib) (def v 7) (ns app) lib/v", "7"},
		{"functions run in their namespace", "(ns lib) (def base 100) (defn f [x] (+ base x)) (ns app) (lib/f 1)", "101"},
		{"builtins stay visible", "(ns app) (+ 1 2)", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testEval(t, tt.input)
			if got.Inspect() != tt.want {
				t.Errorf("Eval(%q) = %s, want %s", tt.input, got.Inspect(), tt.want)
			}
		})
	}

	// a fresh unit of work starts in the user namespace again
	e := New(Config{})
	if _, err := testRun(t, e, nil, "(ns elsewhere)"); err != nil {
		t.Fatal(err)
	}
	got, err := testRun(t, e, nil, "*ns*")
	if err != nil {
		t.Fatal(err)
	}
	if got.Inspect() != "user" {
		t.Errorf("*ns* leaked across units of work: %s", got.Inspect())
	}
}

func TestEval_SystemVars(t *testing.T) {
	e := New(Config{RunMode: "test", Args: []string{"a", "b"}})
	got, err := testRun(t, e, nil, "[*run-mode* *args*]")
	if err != nil {
		t.Fatal(err)
	}
	if want := `["test" ["a" "b"]]`; got.Inspect() != want {
		t.Errorf("system vars = %s, want %s", got.Inspect(), want)
	}
}

func TestEval_Types(t *testing.T) {
	e := New(Config{})
	got, err := testRun(t, e, nil, `
(deftype point [x y])
(def p (->point 1 2))
[(point? p) (point? 1) (:x p) (:y (new point 3 4)) (type-of p)]`)
	if err != nil {
		t.Fatal(err)
	}
	if want := "[true false 1 4 :point]"; got.Inspect() != want {
		t.Errorf("records = %s, want %s", got.Inspect(), want)
	}
	if _, ok := e.Types().Lookup(&object.Keyword{Name: "point"}); !ok {
		t.Errorf("deftype must register the type")
	}

	_, err = testRun(t, e, nil, "(new point 1)")
	if !errors.Is(err, object.ErrArity) {
		t.Errorf("(new point 1) = %v, want ArityError", err)
	}
}

func TestEval_Println(t *testing.T) {
	var out bytes.Buffer
	e := New(Config{Stdout: &out})
	if _, err := testRun(t, e, nil, `(println "hello" 1 :k)`); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hello 1 :k\n" {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestEval_Interrupt(t *testing.T) {
	e := New(Config{})
	if err := e.RegisterBuiltin("stop!", func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		sandbox.TaskFrom(ctx).Interrupt()
		return object.NIL, nil
	}); err != nil {
		t.Fatal(err)
	}
	_, err := testRun(t, e, nil, "(do (stop!) (loop [i 0] (recur (+ i 1))))")
	if !errors.Is(err, object.ErrInterrupted) {
		t.Fatalf("interrupted loop = %v, want InterruptedError", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = testRunContext(ctx, t, e, nil, "(+ 1 2)")
	if !errors.Is(err, object.ErrInterrupted) || !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context = %v, want InterruptedError caused by context.Canceled", err)
	}
}

func TestEval_ApplyFromGo(t *testing.T) {
	e := New(Config{})
	_, err := testRun(t, e, nil, "(defn add [a b] (+ a b))")
	if err != nil {
		t.Fatal(err)
	}
	fn, ok := e.NewEnvironment().Lookup(object.ParseSymbol("user/add"))
	if !ok {
		t.Fatal("user/add not defined")
	}
	got, err := e.Apply(context.Background(), fn, &object.Integer{Value: 2}, &object.Integer{Value: 3})
	if err != nil {
		t.Fatal(err)
	}
	if got.Inspect() != "5" {
		t.Errorf("Apply() = %s", got.Inspect())
	}
}
