package object

import "fmt"

// Metadata keys recognized by the runtime.
const (
	MetaFile     = "file"
	MetaLine     = "line"
	MetaColumn   = "column"
	MetaDoc      = "doc"
	MetaArglists = "arglists"
	MetaTag      = "tag"
)

// Defaults used when a value carries no position.
const (
	UnknownFile = "unknown"
	DefaultLine = 1
	DefaultCol  = 1
)

// Meta is the metadata attached to symbols and collections. A Meta is never
// modified after it has been attached; use With to derive a new one.
type Meta map[string]Object

// With returns a copy of m with key set to value.
func (m Meta) With(key string, value Object) Meta {
	out := make(Meta, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

// Token is the unit the reader emits.
type Token struct {
	Text string
	File string
	Line int
	Col  int
}

func (t Token) String() string {
	return fmt.Sprintf("%q at %s:%d:%d", t.Text, t.File, t.Line, t.Col)
}

// Position is a resolved source coordinate.
type Position struct {
	File string
	Line int
	Col  int
}

// IsValid reports whether every component is present.
func (p Position) IsValid() bool {
	return p.File != "" && p.Line > 0 && p.Col > 0
}

// OrDefault fills missing components with the unknown defaults.
func (p Position) OrDefault() Position {
	if p.File == "" {
		p.File = UnknownFile
	}
	if p.Line <= 0 {
		p.Line = DefaultLine
	}
	if p.Col <= 0 {
		p.Col = DefaultCol
	}
	return p
}

func (p Position) String() string {
	p = p.OrDefault()
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// PositionFromToken copies the coordinates of tok. The token itself is never
// retained.
func PositionFromToken(tok Token) Position {
	return Position{File: tok.File, Line: tok.Line, Col: tok.Col}
}

// PositionMeta builds the metadata entries for pos.
func PositionMeta(pos Position) Meta {
	return Meta{
		MetaFile:   &String{Value: pos.File},
		MetaLine:   &Integer{Value: int64(pos.Line)},
		MetaColumn: &Integer{Value: int64(pos.Col)},
	}
}

// WithPosition returns obj with pos merged into its metadata. Values that
// cannot carry metadata are returned unchanged.
func WithPosition(obj Object, pos Position) Object {
	md, ok := obj.(Metadata)
	if !ok {
		return obj
	}
	m := md.Meta()
	for k, v := range PositionMeta(pos) {
		m = m.With(k, v)
	}
	return md.WithMeta(m)
}

// PositionOf extracts the position recorded on obj. Missing components are
// left zero; callers use OrDefault when rendering.
func PositionOf(obj Object) Position {
	md, ok := obj.(Metadata)
	if !ok {
		return Position{}
	}
	m := md.Meta()
	var pos Position
	if s, ok := m[MetaFile].(*String); ok {
		pos.File = s.Value
	}
	if i, ok := m[MetaLine].(*Integer); ok {
		pos.Line = int(i.Value)
	}
	if i, ok := m[MetaColumn].(*Integer); ok {
		pos.Col = int(i.Value)
	}
	return pos
}

// CopyPosition returns dst carrying the position of src, used when a derived
// value (a macro expansion, for instance) must report its origin. dst is
// returned unchanged when src has no position or already carries one.
func CopyPosition(dst, src Object) Object {
	pos := PositionOf(src)
	if pos == (Position{}) {
		return dst
	}
	if PositionOf(dst) != (Position{}) {
		return dst
	}
	return WithPosition(dst, pos)
}
