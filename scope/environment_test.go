package scope

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/lispcore/namespace"
	"github.com/podhmo/lispcore/object"
)

func sym(name string) *object.Symbol { return object.ParseSymbol(name) }

func integer(v int64) *object.Integer { return &object.Integer{Value: v} }

func TestEnvironment_DefineAndResolve(t *testing.T) {
	env := NewEnvironment()
	expected := &object.String{Value: "hello"}
	if _, err := env.Define(sym("user/greeting"), expected); err != nil {
		t.Fatalf("Define() unexpected error: %v", err)
	}

	val, err := env.Resolve(sym("user/greeting"))
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if val != expected {
		t.Errorf("Resolve() returned wrong value. want=%+v, got=%+v", expected, val)
	}
}

func TestEnvironment_ResolveFromUnrelatedFrame(t *testing.T) {
	env := NewEnvironment()
	env.Define(sym("x"), integer(1))

	if err := env.PushLocalFrame(object.Binding{Symbol: sym("y"), Value: integer(2)}); err != nil {
		t.Fatal(err)
	}
	defer env.PopLocalFrame()

	val, err := env.Resolve(sym("x"))
	if err != nil {
		t.Fatalf("Resolve() from local frame failed: %v", err)
	}
	if val.(*object.Integer).Value != 1 {
		t.Errorf("Resolve(x) = %s, want 1", val.Inspect())
	}
}

func TestEnvironment_Shadowing(t *testing.T) {
	env := NewEnvironment()
	env.Define(sym("s"), integer(1))

	_, err := env.WithLocalFrame([]object.Binding{{Symbol: sym("s"), Value: integer(2)}}, func() (object.Object, error) {
		val, err := env.Resolve(sym("s"))
		if err != nil {
			return nil, err
		}
		if val.(*object.Integer).Value != 2 {
			t.Errorf("inside frame Resolve(s) = %s, want 2", val.Inspect())
		}
		return val, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	val, _ := env.Resolve(sym("s"))
	if val.(*object.Integer).Value != 1 {
		t.Errorf("after pop Resolve(s) = %s, want 1", val.Inspect())
	}
	if env.Depth() != 0 {
		t.Errorf("Depth() = %d after WithLocalFrame, want 0", env.Depth())
	}
}

func TestEnvironment_FramePoppedOnError(t *testing.T) {
	env := NewEnvironment()
	boom := errors.New("boom")
	_, err := env.WithLocalFrame([]object.Binding{{Symbol: sym("a"), Value: integer(1)}}, func() (object.Object, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithLocalFrame() error = %v", err)
	}
	if env.Depth() != 0 {
		t.Errorf("frame leaked on error, Depth() = %d", env.Depth())
	}

	func() {
		defer func() { recover() }()
		env.WithLocalFrame([]object.Binding{{Symbol: sym("a"), Value: integer(1)}}, func() (object.Object, error) {
			panic("unexpected")
		})
	}()
	if env.Depth() != 0 {
		t.Errorf("frame leaked on panic, Depth() = %d", env.Depth())
	}
}

func TestEnvironment_DuplicateBindingFirstMatchWins(t *testing.T) {
	env := NewEnvironment()
	err := env.PushLocalFrame(
		object.Binding{Symbol: sym("x"), Value: integer(1)},
		object.Binding{Symbol: sym("x"), Value: integer(2)},
	)
	if err != nil {
		t.Fatal(err)
	}
	val, _ := env.Resolve(sym("x"))
	if val.(*object.Integer).Value != 1 {
		t.Errorf("duplicate binding lookup = %s, want the earliest binding (1)", val.Inspect())
	}
}

func TestEnvironment_Unresolved(t *testing.T) {
	env := NewEnvironment()
	_, err := env.Resolve(sym("missing"))
	if !errors.Is(err, object.ErrUnresolvedSymbol) {
		t.Errorf("Resolve(missing) = %v, want UnresolvedSymbolError", err)
	}
}

func TestEnvironment_ReservedNames(t *testing.T) {
	env := NewEnvironment()
	for _, name := range namespace.ReservedNames() {
		if _, err := env.Define(sym(name), integer(1)); !errors.Is(err, object.ErrReservedName) {
			t.Errorf("Define(%q) = %v, want ReservedNameError", name, err)
		}
		if err := env.PushLocalFrame(object.Binding{Symbol: sym(name), Value: integer(1)}); !errors.Is(err, object.ErrReservedName) {
			t.Errorf("PushLocalFrame(%q) = %v, want ReservedNameError", name, err)
		}
	}
	if env.Globals().Len() != 0 {
		t.Errorf("reserved names must never acquire a global Var, got %v", env.Globals().Names())
	}
}

func TestEnvironment_Set(t *testing.T) {
	env := NewEnvironment()
	env.Define(sym("counter"), integer(0))
	env.DefineConst(sym("limit"), integer(10))

	if err := env.Set(sym("counter"), integer(5)); err != nil {
		t.Fatalf("Set(counter) unexpected error: %v", err)
	}
	if v, _ := env.Resolve(sym("counter")); v.(*object.Integer).Value != 5 {
		t.Errorf("counter = %s, want 5", v.Inspect())
	}

	if err := env.Set(sym("limit"), integer(11)); !errors.Is(err, object.ErrNotOverwritable) {
		t.Errorf("Set(limit) = %v, want NotOverwritableError", err)
	}
	if _, err := env.DefineConst(sym("limit"), integer(12)); !errors.Is(err, object.ErrNotOverwritable) {
		t.Errorf("redefining a constant = %v, want NotOverwritableError", err)
	}

	env.PushLocalFrame(object.Binding{Symbol: sym("counter"), Value: integer(100)})
	if err := env.Set(sym("counter"), integer(101)); err != nil {
		t.Fatal(err)
	}
	env.PopLocalFrame()
	if v, _ := env.Resolve(sym("counter")); v.(*object.Integer).Value != 5 {
		t.Errorf("set! must hit the nearest binding only; global counter = %s", v.Inspect())
	}

	if err := env.Set(sym("nope"), integer(1)); !errors.Is(err, object.ErrUnresolvedSymbol) {
		t.Errorf("Set(nope) = %v, want UnresolvedSymbolError", err)
	}
}

func TestEnvironment_ChildOwnsFrames(t *testing.T) {
	parent := NewEnvironment()
	parent.PushLocalFrame(object.Binding{Symbol: sym("a"), Value: integer(1)})
	child := parent.Child()
	parent.PopLocalFrame()
	parent.PushLocalFrame(object.Binding{Symbol: sym("a"), Value: integer(99)})

	val, err := child.Resolve(sym("a"))
	if err != nil {
		t.Fatal(err)
	}
	if val.(*object.Integer).Value != 1 {
		t.Errorf("child frame stack was disturbed by parent, a = %s", val.Inspect())
	}

	child.Define(sym("shared"), integer(7))
	if _, err := parent.Resolve(sym("shared")); err != nil {
		t.Errorf("child must share the parent's global table: %v", err)
	}
}

func TestEnvironment_ChildSeesBindingsAtCaptureTime(t *testing.T) {
	env := NewEnvironment()
	if err := env.PushLocalFrame(object.Binding{Symbol: sym("a"), Value: integer(1)}); err != nil {
		t.Fatal(err)
	}
	child := env.Child()
	if err := env.Bind(object.Binding{Symbol: sym("b"), Value: integer(2)}); err != nil {
		t.Fatal(err)
	}

	if _, err := child.Resolve(sym("b")); !errors.Is(err, object.ErrUnresolvedSymbol) {
		t.Errorf("child Resolve(b) = %v, want UnresolvedSymbolError", err)
	}
	if err := env.Set(sym("a"), integer(10)); err != nil {
		t.Fatal(err)
	}
	if v, err := child.Resolve(sym("a")); err != nil || v.(*object.Integer).Value != 10 {
		t.Errorf("child Resolve(a) = %v, %v; want 10", v, err)
	}

	// binding into a captured frame leaves the owner untouched
	if err := child.Bind(object.Binding{Symbol: sym("c"), Value: integer(3)}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Resolve(sym("c")); !errors.Is(err, object.ErrUnresolvedSymbol) {
		t.Errorf("owner Resolve(c) = %v, want UnresolvedSymbolError", err)
	}
	if _, err := child.Resolve(sym("b")); !errors.Is(err, object.ErrUnresolvedSymbol) {
		t.Errorf("after Bind child Resolve(b) = %v, want UnresolvedSymbolError", err)
	}
}

func TestGlobals_ConcurrentReadWrite(t *testing.T) {
	env := NewEnvironment()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			local := NewEnvironmentWithGlobals(env.Globals())
			for i := 0; i < 200; i++ {
				name := sym(fmt.Sprintf("ns%d/v%d", w, i%10))
				if _, err := local.Define(name, integer(int64(i))); err != nil {
					t.Error(err)
					return
				}
				if _, err := local.Resolve(name); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	if got := env.Globals().Len(); got != 80 {
		t.Errorf("Len() = %d, want 80", got)
	}
}

func TestDestructure(t *testing.T) {
	pattern := object.NewVector(sym("a"), object.NewVector(sym("b"), sym("c")), sym("&"), sym("rest"))
	if err := ValidatePattern(pattern); err != nil {
		t.Fatalf("ValidatePattern() unexpected error: %v", err)
	}
	value := object.NewList(integer(1), object.NewVector(integer(2)), integer(3), integer(4))

	bindings, err := Destructure(pattern, value)
	if err != nil {
		t.Fatalf("Destructure() unexpected error: %v", err)
	}

	got := map[string]string{}
	var order []string
	for _, b := range bindings {
		got[b.Symbol.Name] = b.Value.Inspect()
		order = append(order, b.Symbol.Name)
	}
	want := map[string]string{"a": "1", "b": "2", "c": "nil", "rest": "(3 4)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Destructure() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "rest"}, order); diff != "" {
		t.Errorf("binding order mismatch (-want +got):\n%s", diff)
	}
}

func TestValidatePattern_Errors(t *testing.T) {
	tests := []struct {
		name    string
		pattern object.Object
		kind    object.ErrorKind
	}{
		{"reserved", sym("recur"), object.ReservedNameKind},
		{"nested reserved", object.NewVector(sym("a"), object.NewVector(sym("def"))), object.ReservedNameKind},
		{"qualified", sym("user/x"), object.ScriptErrorKind},
		{"dangling rest", object.NewVector(sym("a"), sym("&")), object.ScriptErrorKind},
		{"literal", integer(1), object.ScriptErrorKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePattern(tt.pattern)
			if err == nil {
				t.Fatalf("ValidatePattern(%s) = nil", tt.pattern.Inspect())
			}
			if got := object.KindOf(err); got != tt.kind {
				t.Errorf("kind = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestEnvironment_Bind(t *testing.T) {
	env := NewEnvironment()
	if err := env.PushLocalFrame(); err != nil {
		t.Fatal(err)
	}
	if err := env.Bind(object.Binding{Symbol: sym("a"), Value: integer(1)}); err != nil {
		t.Fatal(err)
	}
	a, _ := env.Resolve(sym("a"))
	if err := env.Bind(object.Binding{Symbol: sym("b"), Value: a}); err != nil {
		t.Fatal(err)
	}
	if v, err := env.Resolve(sym("b")); err != nil || v.(*object.Integer).Value != 1 {
		t.Errorf("Resolve(b) = %v, %v; want 1", v, err)
	}
	if env.Depth() != 1 {
		t.Errorf("Bind must reuse the innermost frame, Depth() = %d", env.Depth())
	}
	if err := env.Bind(object.Binding{Symbol: sym("recur"), Value: integer(1)}); !errors.Is(err, object.ErrReservedName) {
		t.Errorf("Bind(recur) = %v, want ReservedNameError", err)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Bind without a frame must panic")
		}
	}()
	NewEnvironment().Bind(object.Binding{Symbol: sym("x"), Value: integer(1)})
}
