package namespace

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/lispcore/object"
)

func TestValidateNotReserved(t *testing.T) {
	for _, name := range ReservedNames() {
		t.Run(name, func(t *testing.T) {
			err := ValidateNotReserved(object.NewSymbol(name))
			if !errors.Is(err, object.ErrReservedName) {
				t.Errorf("ValidateNotReserved(%q) = %v, want ReservedNameError", name, err)
			}
		})
	}

	if err := ValidateNotReserved(object.ParseSymbol("lisp/foo")); !errors.Is(err, object.ErrReservedName) {
		t.Errorf("definitions into the core namespace must be rejected, got %v", err)
	}
	if err := ValidateNotReserved(object.ParseSymbol("user/foo")); err != nil {
		t.Errorf("ValidateNotReserved(user/foo) = %v", err)
	}
}

func TestReservedNames_ContainsSystemVars(t *testing.T) {
	for _, name := range []string{"def", "*ns*", "recur", "*args*", "*run-mode*"} {
		if !IsReserved(name) {
			t.Errorf("IsReserved(%q) = false", name)
		}
	}
	if IsReserved("inc") {
		t.Errorf("IsReserved(inc) = true")
	}
}

func TestRegistry_Qualify(t *testing.T) {
	r := NewRegistry()
	r.AddCore("+", "println")

	tests := []struct {
		name    string
		sym     *object.Symbol
		current string
		want    string
	}{
		{"already qualified", object.ParseSymbol("other/f"), "app", "other/f"},
		{"special form", object.NewSymbol("if"), "app", "if"},
		{"core name", object.NewSymbol("+"), "app", "+"},
		{"plain", object.NewSymbol("f"), "app", "app/f"},
		{"no current namespace", object.NewSymbol("f"), "", "user/f"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Qualify(tt.sym, tt.current)
			if got.String() != tt.want {
				t.Errorf("Qualify(%s, %q) = %s, want %s", tt.sym, tt.current, got, tt.want)
			}
		})
	}

	orig := object.NewSymbol("f")
	_ = r.Qualify(orig, "app")
	if orig.IsQualified() {
		t.Errorf("Qualify must not modify its argument")
	}

	q := r.Qualify(object.ParseSymbol("other/f"), "app")
	if s, ok := q.Meta()[MetaNamespace].(*object.String); !ok || s.Value != "other" {
		t.Errorf("qualified symbols must carry namespace metadata, got %v", q.Meta())
	}
}

func TestRegistry_Define(t *testing.T) {
	r := NewRegistry()
	ns, err := r.Define("app.core")
	if err != nil {
		t.Fatalf("Define() unexpected error: %v", err)
	}
	ns.Import("helper")
	ns.Import("helper")
	if !ns.Imports("helper") {
		t.Errorf("Imports(helper) = false")
	}
	if diff := cmp.Diff([]string{"helper"}, ns.Imported()); diff != "" {
		t.Errorf("Imported() mismatch (-want +got):\n%s", diff)
	}

	again, _ := r.Define("app.core")
	if again != ns {
		t.Errorf("Define must return the existing namespace")
	}

	if _, err := r.Define(CoreNamespace); !errors.Is(err, object.ErrReservedName) {
		t.Errorf("Define(core) = %v, want ReservedNameError", err)
	}

	if diff := cmp.Diff([]string{"app.core", "lisp", "user"}, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromFile(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantErr  bool
	}{
		{"", UserNamespace, false},
		{"unknown", UserNamespace, false},
		{"<unknown>", UserNamespace, false},
		{"scripts/math_utils.lisp", "math-utils", false},
		{"/abs/path/app.lsp", "app", false},
		{"notes.txt", "notes.txt", false},
		{"lisp.lisp", "", true},
		{"system.lisp", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, err := FromFile(tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromFile(%q) error = %v, wantErr %v", tt.filename, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FromFile(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
