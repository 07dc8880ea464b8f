// Package reader turns source text into runtime values. Every list, vector
// and symbol it produces carries the file, line and column of its first
// token as metadata.
package reader

import (
	"strconv"
	"strings"

	"github.com/podhmo/lispcore/object"
)

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

var macroNames = map[tokenKind]string{
	tokQuote:           "quote",
	tokSyntaxQuote:     "syntax-quote",
	tokUnquote:         "unquote",
	tokUnquoteSplicing: "unquote-splicing",
}

// Read parses every form in src. file names the source in positions.
func Read(file, src string) ([]object.Object, error) {
	p := &parser{lexer: newLexer(file, src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var forms []object.Object
	for p.cur.kind != tokEOF {
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, nil
}

// ReadOne parses src, which must hold exactly one form.
func ReadOne(file, src string) (object.Object, error) {
	forms, err := Read(file, src)
	if err != nil {
		return nil, err
	}
	if len(forms) != 1 {
		return nil, object.NewScriptError(object.Position{File: file, Line: 1, Col: 1}, "expected one form, got %d", len(forms))
	}
	return forms[0], nil
}

type parser struct {
	lexer *lexer
	cur   token
}

func (p *parser) advance() error {
	tok, err := p.lexer.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) parseForm() (object.Object, error) {
	tok := p.cur
	pos := object.PositionFromToken(tok.Token)
	switch tok.kind {
	case tokEOF:
		return nil, object.NewScriptError(pos, "unexpected end of input")
	case tokClose:
		return nil, object.NewScriptError(pos, "unexpected %s", tok.Text)
	case tokOpen:
		return p.parseCollection(tok)
	case tokQuote, tokSyntaxQuote, tokUnquote, tokUnquoteSplicing:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.kind == tokEOF {
			return nil, object.NewScriptError(pos, "%s must be followed by a form", tok.Text)
		}
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		head := object.WithPosition(object.NewSymbol(macroNames[tok.kind]), pos)
		return object.WithPosition(object.NewList(head, form), pos), nil
	case tokString:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &object.String{Value: tok.Text}, nil
	default:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return atom(tok.Token)
	}
}

func (p *parser) parseCollection(open token) (object.Object, error) {
	pos := object.PositionFromToken(open.Token)
	want := closers[open.Text]
	if err := p.advance(); err != nil {
		return nil, err
	}

	var elems []object.Object
	for {
		switch p.cur.kind {
		case tokEOF:
			return nil, object.NewScriptError(pos, "unterminated %s, expected %s", open.Text, want)
		case tokClose:
			if p.cur.Text != want {
				return nil, object.NewScriptError(object.PositionFromToken(p.cur.Token), "mismatched %s, expected %s", p.cur.Text, want)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			return collection(open.Text, elems, pos)
		}
		form, err := p.parseForm()
		if err != nil {
			return nil, err
		}
		elems = append(elems, form)
	}
}

func collection(open string, elems []object.Object, pos object.Position) (object.Object, error) {
	switch open {
	case "[":
		return object.WithPosition(object.NewVector(elems...), pos), nil
	case "{":
		if len(elems)%2 != 0 {
			return nil, object.NewScriptError(pos, "map literal needs an even number of forms, got %d", len(elems))
		}
		m := object.NewMap()
		for i := 0; i < len(elems); i += 2 {
			m.Put(elems[i], elems[i+1])
		}
		return m, nil
	default:
		return object.WithPosition(object.NewList(elems...), pos), nil
	}
}

func atom(tok object.Token) (object.Object, error) {
	text := tok.Text
	switch text {
	case "nil":
		return object.NIL, nil
	case "true":
		return object.TRUE, nil
	case "false":
		return object.FALSE, nil
	}

	if looksNumeric(text) {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return &object.Integer{Value: i}, nil
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return &object.Float{Value: f}, nil
		}
		return nil, object.NewScriptError(object.PositionFromToken(tok), "invalid number: %s", text)
	}

	if strings.HasPrefix(text, ":") {
		if len(text) == 1 {
			return nil, object.NewScriptError(object.PositionFromToken(tok), "empty keyword")
		}
		return &object.Keyword{Name: text[1:]}, nil
	}
	return object.WithPosition(object.ParseSymbol(text), object.PositionFromToken(tok)), nil
}

func looksNumeric(text string) bool {
	s := strings.TrimLeft(text, "+-")
	if len(text)-len(s) > 1 || s == "" {
		return false
	}
	return s[0] >= '0' && s[0] <= '9'
}
