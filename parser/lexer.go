package parser

import "fmt"

type tokenKind int

const (
	tEOF tokenKind = iota
	tIdent
	tNumber
	tString

	// keywords
	tPublic
	tWitness
	tLet
	tMut
	tFn
	tIf
	tElse
	tFor
	tIn
	tWhile
	tForever
	tPrint
	tReturn
	tBreak
	tContinue
	tTrue
	tFalse
	tNil
	tProve

	// punctuation / operators
	tPlus
	tMinus
	tStar
	tSlash
	tPercent
	tCaret
	tAssign
	tEq
	tNeq
	tLt
	tLe
	tGt
	tGe
	tAndAnd
	tOrOr
	tBang
	tLParen
	tRParen
	tLBrace
	tRBrace
	tLBracket
	tRBracket
	tComma
	tColon
	tSemicolon
	tDotDot
)

var keywords = map[string]tokenKind{
	"public":   tPublic,
	"witness":  tWitness,
	"let":      tLet,
	"mut":      tMut,
	"fn":       tFn,
	"if":       tIf,
	"else":     tElse,
	"for":      tFor,
	"in":       tIn,
	"while":    tWhile,
	"forever":  tForever,
	"print":    tPrint,
	"return":   tReturn,
	"break":    tBreak,
	"continue": tContinue,
	"true":     tTrue,
	"false":    tFalse,
	"nil":      tNil,
	"prove":    tProve,
}

type token struct {
	kind tokenKind
	text string
	span Span
}

// SyntaxError is a lexing or parsing failure at a source position.
type SyntaxError struct {
	Span Span
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Span.Line, e.Span.Col, e.Msg)
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) errorf(span Span, format string, args ...interface{}) {
	panic(&SyntaxError{Span: span, Msg: fmt.Sprintf(format, args...)})
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch c := l.peekByte(); {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && l.peekByteAt(1) == '/':
			for l.pos < len(l.src) && l.peekByte() != '\n' {
				l.advance()
			}
		case c == '/' && l.peekByteAt(1) == '*':
			span := l.here()
			l.advance()
			l.advance()
			for {
				if l.pos >= len(l.src) {
					l.errorf(span, "unterminated block comment")
				}
				if l.peekByte() == '*' && l.peekByteAt(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *lexer) here() Span {
	return Span{Line: l.line, Col: l.col}
}

func isLetter(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// next scans the next token.
func (l *lexer) next() token {
	l.skipSpace()
	span := l.here()
	if l.pos >= len(l.src) {
		return token{kind: tEOF, span: span}
	}

	c := l.peekByte()
	switch {
	case isLetter(c):
		start := l.pos
		for l.pos < len(l.src) && (isLetter(l.peekByte()) || isDigit(l.peekByte())) {
			l.advance()
		}
		text := l.src[start:l.pos]
		if kw, ok := keywords[text]; ok {
			return token{kind: kw, text: text, span: span}
		}
		return token{kind: tIdent, text: text, span: span}

	case isDigit(c):
		start := l.pos
		for l.pos < len(l.src) && isDigit(l.peekByte()) {
			l.advance()
		}
		// Decimal literal, unless the dot starts a range (1..n).
		if l.peekByte() == '.' && l.peekByteAt(1) != '.' {
			l.advance()
			for l.pos < len(l.src) && isDigit(l.peekByte()) {
				l.advance()
			}
		}
		return token{kind: tNumber, text: l.src[start:l.pos], span: span}

	case c == '"':
		l.advance()
		start := l.pos
		for {
			if l.pos >= len(l.src) {
				l.errorf(span, "unterminated string literal")
			}
			if l.peekByte() == '"' {
				break
			}
			l.advance()
		}
		text := l.src[start:l.pos]
		l.advance()
		return token{kind: tString, text: text, span: span}
	}

	l.advance()
	two := func(next byte, ifTwo, ifOne tokenKind) token {
		if l.peekByte() == next {
			l.advance()
			return token{kind: ifTwo, span: span}
		}
		return token{kind: ifOne, span: span}
	}

	switch c {
	case '+':
		return token{kind: tPlus, span: span}
	case '-':
		return token{kind: tMinus, span: span}
	case '*':
		return token{kind: tStar, span: span}
	case '/':
		return token{kind: tSlash, span: span}
	case '%':
		return token{kind: tPercent, span: span}
	case '^':
		return token{kind: tCaret, span: span}
	case '=':
		return two('=', tEq, tAssign)
	case '!':
		return two('=', tNeq, tBang)
	case '<':
		return two('=', tLe, tLt)
	case '>':
		return two('=', tGe, tGt)
	case '&':
		if l.peekByte() == '&' {
			l.advance()
			return token{kind: tAndAnd, span: span}
		}
		l.errorf(span, "unexpected character %q", "&")
	case '|':
		if l.peekByte() == '|' {
			l.advance()
			return token{kind: tOrOr, span: span}
		}
		l.errorf(span, "unexpected character %q", "|")
	case '(':
		return token{kind: tLParen, span: span}
	case ')':
		return token{kind: tRParen, span: span}
	case '{':
		return token{kind: tLBrace, span: span}
	case '}':
		return token{kind: tRBrace, span: span}
	case '[':
		return token{kind: tLBracket, span: span}
	case ']':
		return token{kind: tRBracket, span: span}
	case ',':
		return token{kind: tComma, span: span}
	case ':':
		return token{kind: tColon, span: span}
	case ';':
		return token{kind: tSemicolon, span: span}
	case '.':
		if l.peekByte() == '.' {
			l.advance()
			return token{kind: tDotDot, span: span}
		}
		l.errorf(span, "unexpected character %q", ".")
	}
	l.errorf(span, "unexpected character %q", string(c))
	return token{} // unreachable
}
