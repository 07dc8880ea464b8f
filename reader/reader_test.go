package reader

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/podhmo/lispcore/object"
)

func TestRead_Inspect(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"1 -2 +3 1.5 \"hi\\n\"", []string{"1", "-2", "3", "1.5", `"hi\n"`}},
		{"nil true false :kw", []string{"nil", "true", "false", ":kw"}},
		{"(+ 1 [2 3] {:a 1})", []string{"(+ 1 [2 3] {:a 1})"}},
		{"; comment\n(a, b) ; trailing", []string{"(a b)"}},
		{"'x `(a ~b ~@c)", []string{"(quote x)", "(syntax-quote (a (unquote b) (unquote-splicing c)))"}},
		{"user/f a# - ->point point?", []string{"user/f", "a#", "-", "->point", "point?"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			forms, err := Read("t.lisp", tt.input)
			if err != nil {
				t.Fatalf("Read() unexpected error: %v", err)
			}
			var got []string
			for _, f := range forms {
				got = append(got, f.Inspect())
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Read() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRead_Positions(t *testing.T) {
	src := "(def x 1)\n\n  (defn f [a]\n    (g a))"
	forms, err := Read("app.lisp", src)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		obj  object.Object
		want object.Position
	}{
		{"first list", forms[0], object.Position{File: "app.lisp", Line: 1, Col: 1}},
		{"second list", forms[1], object.Position{File: "app.lisp", Line: 3, Col: 3}},
		{"symbol", forms[1].(*object.List).Elements[1], object.Position{File: "app.lisp", Line: 3, Col: 9}},
		{"vector", forms[1].(*object.List).Elements[2], object.Position{File: "app.lisp", Line: 3, Col: 11}},
		{"nested call", forms[1].(*object.List).Elements[3], object.Position{File: "app.lisp", Line: 4, Col: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, object.PositionOf(tt.obj)); diff != "" {
				t.Errorf("PositionOf() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	sym := forms[0].(*object.List).Elements[1].(*object.Symbol)
	if sym.Name != "x" || sym.IsQualified() {
		t.Errorf("symbol = %s", sym)
	}
}

func TestRead_UnknownFile(t *testing.T) {
	form, err := ReadOne("", "(x)")
	if err != nil {
		t.Fatal(err)
	}
	if got := object.PositionOf(form).File; got != object.UnknownFile {
		t.Errorf("file = %q, want %q", got, object.UnknownFile)
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"(a b", "File <e.lisp> (1,1)"},
		{"\n  (a]", "File <e.lisp> (2,5)"},
		{")", "File <e.lisp> (1,1)"},
		{"x \"abc", "File <e.lisp> (1,3)"},
		{"{:a}", "File <e.lisp> (1,1)"},
		{"'", "File <e.lisp> (1,1)"},
		{"1x", "File <e.lisp> (1,1)"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Read("e.lisp", tt.input)
			if !errors.Is(err, object.ErrScript) {
				t.Fatalf("Read(%q) = %v, want ScriptError", tt.input, err)
			}
			if got := object.AsError(err).Location; got != tt.want {
				t.Errorf("Location = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	toks, err := Tokenize("t.lisp", "(f\n ~@xs)")
	if err != nil {
		t.Fatal(err)
	}
	want := []object.Token{
		{Text: "(", File: "t.lisp", Line: 1, Col: 1},
		{Text: "f", File: "t.lisp", Line: 1, Col: 2},
		{Text: "~@", File: "t.lisp", Line: 2, Col: 2},
		{Text: "xs", File: "t.lisp", Line: 2, Col: 4},
		{Text: ")", File: "t.lisp", Line: 2, Col: 6},
	}
	if diff := cmp.Diff(want, toks); diff != "" {
		t.Errorf("Tokenize() mismatch (-want +got):\n%s", diff)
	}
}
