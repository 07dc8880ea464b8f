package namespace

import (
	"sort"

	"github.com/ahrtr/gocontainer/set"
	"github.com/podhmo/lispcore/object"
)

// Namespace names known to the runtime.
const (
	CoreNamespace = "lisp"
	UserNamespace = "user"
)

// System vars resolved from the executing task rather than the global table.
const (
	CurrentNamespaceVar = "*ns*"
	ArgsVar             = "*args*"
	RunModeVar          = "*run-mode*"
)

// SpecialForms lists the names the evaluator dispatches on directly.
var SpecialForms = []string{
	"quote", "syntax-quote", "unquote", "unquote-splicing",
	"def", "defconst", "set!", "let", "loop", "recur",
	"fn", "defn", "defmacro", "if", "do", "ns", "deftype", "new",
}

var (
	reservedNames      = set.New()
	reservedNamespaces = set.New()
	specialForms       = set.New()
)

func init() {
	for _, name := range SpecialForms {
		reservedNames.Add(name)
		specialForms.Add(name)
	}
	for _, name := range []string{CurrentNamespaceVar, ArgsVar, RunModeVar} {
		reservedNames.Add(name)
	}
	for _, name := range []string{CoreNamespace, "lisp.core", "system"} {
		reservedNamespaces.Add(name)
	}
}

// IsReserved reports whether name is a special form or system var. The set
// is fixed at init and only read afterwards.
func IsReserved(name string) bool {
	return reservedNames.Contains(name)
}

// IsSpecialForm reports whether name is dispatched by the evaluator itself.
func IsSpecialForm(name string) bool {
	return specialForms.Contains(name)
}

// IsReservedNamespace reports whether scripts may not define into ns.
func IsReservedNamespace(ns string) bool {
	return reservedNamespaces.Contains(ns)
}

// ReservedNames returns the reserved symbol names, sorted.
func ReservedNames() []string {
	names := append([]string{CurrentNamespaceVar, ArgsVar, RunModeVar}, SpecialForms...)
	sort.Strings(names)
	return names
}

// ValidateNotReserved fails with a ReservedNameError when sym names a
// reserved symbol or lives in a reserved namespace. It is called at every
// definition and binding site.
func ValidateNotReserved(sym *object.Symbol) error {
	if IsReserved(sym.Name) {
		return object.NewReservedNameError(sym.Name)
	}
	if sym.Namespace != "" && IsReservedNamespace(sym.Namespace) {
		return object.NewReservedNameError(sym.String())
	}
	return nil
}
