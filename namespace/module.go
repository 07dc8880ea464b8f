package namespace

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/podhmo/lispcore/object"
	"golang.org/x/mod/module"
)

// ScriptSuffixes are the file suffixes stripped when deriving a namespace.
var ScriptSuffixes = []string{".lisp", ".lsp", ".lc"}

// FromFile derives a namespace name from a script file name. The unknown-file
// sentinel (or an empty name) maps to the user namespace. Names that collide
// with reserved modules are rejected.
func FromFile(filename string) (string, error) {
	if filename == "" || filename == object.UnknownFile || filename == "<"+object.UnknownFile+">" {
		return UserNamespace, nil
	}

	base := filepath.Base(filepath.ToSlash(filename))
	if err := module.CheckFilePath(base); err != nil {
		return "", fmt.Errorf("invalid script file name %q: %w", filename, err)
	}

	name := base
	for _, suffix := range ScriptSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}
	name = strings.ReplaceAll(name, "_", "-")
	if name == "" {
		return "", fmt.Errorf("invalid script file name %q: empty module name", filename)
	}
	if IsReservedNamespace(name) || IsReserved(name) {
		return "", object.NewReservedNameError(name)
	}
	return name, nil
}
