package reader

import (
	"strings"
	"unicode"

	"github.com/podhmo/lispcore/object"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokOpen
	tokClose
	tokQuote
	tokSyntaxQuote
	tokUnquote
	tokUnquoteSplicing
	tokString
	tokAtom
)

type token struct {
	kind tokenKind
	object.Token
}

type lexer struct {
	file string
	src  []rune
	pos  int
	line int
	col  int
}

func newLexer(file, src string) *lexer {
	if file == "" {
		file = object.UnknownFile
	}
	return &lexer{file: file, src: []rune(src), line: 1, col: 1}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) advance() rune {
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.peek()
		switch {
		case c == ';':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		case c == ',' || unicode.IsSpace(c):
			l.advance()
		default:
			return
		}
	}
}

func isDelimiter(c rune) bool {
	switch c {
	case '(', ')', '[', ']', '{', '}', '"', ';', ',':
		return true
	}
	return unicode.IsSpace(c)
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	tok := token{Token: object.Token{File: l.file, Line: l.line, Col: l.col}}
	if l.pos >= len(l.src) {
		tok.kind = tokEOF
		return tok, nil
	}

	c := l.advance()
	tok.Text = string(c)
	switch c {
	case '(', '[', '{':
		tok.kind = tokOpen
	case ')', ']', '}':
		tok.kind = tokClose
	case '\'':
		tok.kind = tokQuote
	case '`':
		tok.kind = tokSyntaxQuote
	case '~':
		tok.kind = tokUnquote
		if l.peek() == '@' {
			l.advance()
			tok.kind = tokUnquoteSplicing
			tok.Text = "~@"
		}
	case '"':
		s, err := l.readString(tok.Token)
		if err != nil {
			return tok, err
		}
		tok.kind = tokString
		tok.Text = s
	default:
		var sb strings.Builder
		sb.WriteRune(c)
		for l.pos < len(l.src) && !isDelimiter(l.peek()) {
			sb.WriteRune(l.advance())
		}
		tok.kind = tokAtom
		tok.Text = sb.String()
	}
	return tok, nil
}

func (l *lexer) readString(start object.Token) (string, error) {
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", object.NewScriptError(object.PositionFromToken(start), "unterminated string")
		}
		c := l.advance()
		switch c {
		case '"':
			return sb.String(), nil
		case '\\':
			if l.pos >= len(l.src) {
				return "", object.NewScriptError(object.PositionFromToken(start), "unterminated string")
			}
			switch e := l.advance(); e {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			default:
				sb.WriteRune(e)
			}
		default:
			sb.WriteRune(c)
		}
	}
}

// Tokenize splits src into tokens carrying their file, line and column.
// String tokens hold the unescaped contents.
func Tokenize(file, src string) ([]object.Token, error) {
	l := newLexer(file, src)
	var toks []object.Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			return toks, nil
		}
		toks = append(toks, tok.Token)
	}
}
