package parser

import (
	"fmt"
	"strconv"
)

// Parse parses a full source file.
func Parse(src string) (prog *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*SyntaxError); ok {
				prog, err = nil, se
				return
			}
			panic(r)
		}
	}()

	p := newParser(src)
	prog = &Program{}
	for p.peek().kind != tEOF {
		prog.Stmts = append(prog.Stmts, p.parseStmt())
	}
	return prog, nil
}

type parser struct {
	toks []token
	cur  int
}

func newParser(src string) *parser {
	l := newLexer(src)
	var toks []token
	for {
		t := l.next()
		toks = append(toks, t)
		if t.kind == tEOF {
			break
		}
	}
	return &parser{toks: toks}
}

func (p *parser) peek() token {
	return p.toks[p.cur]
}

func (p *parser) peekAt(off int) token {
	if p.cur+off >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.cur+off]
}

func (p *parser) advance() token {
	t := p.toks[p.cur]
	if t.kind != tEOF {
		p.cur++
	}
	return t
}

func (p *parser) accept(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, what string) token {
	t := p.peek()
	if t.kind != kind {
		p.errorf(t.span, "expected %s", what)
	}
	return p.advance()
}

func (p *parser) errorf(span Span, format string, args ...interface{}) {
	panic(&SyntaxError{Span: span, Msg: fmt.Sprintf(format, args...)})
}

// ----------------------------------------------------------------------
// Statements
// ----------------------------------------------------------------------

func (p *parser) parseStmt() Stmt {
	t := p.peek()
	var s Stmt
	switch t.kind {
	case tPublic:
		p.advance()
		s = &PublicDecl{Inputs: p.parseInputDecls(), Span: t.span}
	case tWitness:
		p.advance()
		s = &WitnessDecl{Inputs: p.parseInputDecls(), Span: t.span}
	case tLet:
		p.advance()
		name := p.expect(tIdent, "identifier after let").text
		p.expect(tAssign, "'=' in let binding")
		s = &LetStmt{Name: name, Value: p.parseExpr(), Span: t.span}
	case tMut:
		p.advance()
		name := p.expect(tIdent, "identifier after mut").text
		p.expect(tAssign, "'=' in mut binding")
		s = &MutStmt{Name: name, Value: p.parseExpr(), Span: t.span}
	case tFn:
		// `fn name(...)` is a declaration; `fn (...)` is a closure literal
		// in expression position.
		if p.peekAt(1).kind == tIdent {
			s = p.parseFnDecl()
		} else {
			s = p.parseExprStmt()
		}
	case tPrint:
		p.advance()
		p.expect(tLParen, "'(' after print")
		args := p.parseArgs()
		s = &PrintStmt{Args: args, Span: t.span}
	case tReturn:
		p.advance()
		var val Expr
		if k := p.peek().kind; k != tSemicolon && k != tRBrace && k != tEOF {
			val = p.parseExpr()
		}
		s = &ReturnStmt{Value: val, Span: t.span}
	case tBreak:
		p.advance()
		s = &BreakStmt{Span: t.span}
	case tContinue:
		p.advance()
		s = &ContinueStmt{Span: t.span}
	case tFor:
		s = p.parseFor()
	case tWhile:
		p.advance()
		cond := p.parseExpr()
		s = &WhileStmt{Cond: cond, Body: p.parseBlock(), Span: t.span}
	case tForever:
		p.advance()
		s = &ForeverStmt{Body: p.parseBlock(), Span: t.span}
	default:
		s = p.parseExprStmt()
	}
	p.accept(tSemicolon)
	return s
}

func (p *parser) parseExprStmt() Stmt {
	span := p.peek().span
	x := p.parseExpr()
	if p.peek().kind == tAssign {
		p.advance()
		return &AssignStmt{Target: x, Value: p.parseExpr(), Span: span}
	}
	return &ExprStmt{X: x, Span: span}
}

func (p *parser) parseInputDecls() []InputDecl {
	var decls []InputDecl
	for {
		t := p.expect(tIdent, "input name")
		d := InputDecl{Name: t.text, Span: t.span}
		if p.accept(tLBracket) {
			n := p.expect(tNumber, "array size")
			size, err := strconv.Atoi(n.text)
			if err != nil || size <= 0 {
				p.errorf(n.span, "invalid array size %q", n.text)
			}
			d.Size = size
			p.expect(tRBracket, "']' after array size")
		}
		decls = append(decls, d)
		if !p.accept(tComma) {
			return decls
		}
	}
}

func (p *parser) parseFnDecl() Stmt {
	t := p.expect(tFn, "fn")
	name := p.expect(tIdent, "function name").text
	params := p.parseParams()
	return &FnDecl{Name: name, Params: params, Body: p.parseBlock(), Span: t.span}
}

func (p *parser) parseParams() []string {
	p.expect(tLParen, "'(' before parameters")
	var params []string
	if p.peek().kind != tRParen {
		for {
			params = append(params, p.expect(tIdent, "parameter name").text)
			if !p.accept(tComma) {
				break
			}
		}
	}
	p.expect(tRParen, "')' after parameters")
	return params
}

func (p *parser) parseFor() Stmt {
	t := p.expect(tFor, "for")
	name := p.expect(tIdent, "loop variable").text
	p.expect(tIn, "'in' in for loop")
	from := p.parseExpr()
	var to Expr
	if p.accept(tDotDot) {
		to = p.parseExpr()
	}
	return &ForStmt{Name: name, From: from, To: to, Body: p.parseBlock(), Span: t.span}
}

func (p *parser) parseBlock() *BlockExpr {
	t := p.expect(tLBrace, "'{'")
	b := &BlockExpr{Span: t.span}
	for p.peek().kind != tRBrace {
		if p.peek().kind == tEOF {
			p.errorf(t.span, "unterminated block")
		}
		b.Stmts = append(b.Stmts, p.parseStmt())
	}
	p.advance()
	return b
}

// ----------------------------------------------------------------------
// Expressions (precedence climbing)
// ----------------------------------------------------------------------

func (p *parser) parseExpr() Expr {
	return p.parseOr()
}

func (p *parser) parseOr() Expr {
	x := p.parseAnd()
	for p.peek().kind == tOrOr {
		span := p.advance().span
		x = &BinaryExpr{Op: OpOr, L: x, R: p.parseAnd(), Span: span}
	}
	return x
}

func (p *parser) parseAnd() Expr {
	x := p.parseCmp()
	for p.peek().kind == tAndAnd {
		span := p.advance().span
		x = &BinaryExpr{Op: OpAnd, L: x, R: p.parseCmp(), Span: span}
	}
	return x
}

var cmpOps = map[tokenKind]BinOp{
	tEq:  OpEq,
	tNeq: OpNeq,
	tLt:  OpLt,
	tLe:  OpLe,
	tGt:  OpGt,
	tGe:  OpGe,
}

func (p *parser) parseCmp() Expr {
	x := p.parseAdd()
	for {
		op, ok := cmpOps[p.peek().kind]
		if !ok {
			return x
		}
		span := p.advance().span
		x = &BinaryExpr{Op: op, L: x, R: p.parseAdd(), Span: span}
	}
}

func (p *parser) parseAdd() Expr {
	x := p.parseMul()
	for {
		switch p.peek().kind {
		case tPlus:
			span := p.advance().span
			x = &BinaryExpr{Op: OpAdd, L: x, R: p.parseMul(), Span: span}
		case tMinus:
			span := p.advance().span
			x = &BinaryExpr{Op: OpSub, L: x, R: p.parseMul(), Span: span}
		default:
			return x
		}
	}
}

func (p *parser) parseMul() Expr {
	x := p.parsePow()
	for {
		switch p.peek().kind {
		case tStar:
			span := p.advance().span
			x = &BinaryExpr{Op: OpMul, L: x, R: p.parsePow(), Span: span}
		case tSlash:
			span := p.advance().span
			x = &BinaryExpr{Op: OpDiv, L: x, R: p.parsePow(), Span: span}
		case tPercent:
			span := p.advance().span
			x = &BinaryExpr{Op: OpMod, L: x, R: p.parsePow(), Span: span}
		default:
			return x
		}
	}
}

func (p *parser) parsePow() Expr {
	x := p.parseUnary()
	if p.peek().kind == tCaret {
		span := p.advance().span
		// right-associative
		return &BinaryExpr{Op: OpPow, L: x, R: p.parsePow(), Span: span}
	}
	return x
}

func (p *parser) parseUnary() Expr {
	switch t := p.peek(); t.kind {
	case tMinus:
		p.advance()
		return &UnaryExpr{Op: OpNeg, X: p.parseUnary(), Span: t.span}
	case tBang:
		p.advance()
		return &UnaryExpr{Op: OpNot, X: p.parseUnary(), Span: t.span}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() Expr {
	x := p.parsePrimary()
	for p.peek().kind == tLBracket {
		span := p.advance().span
		idx := p.parseExpr()
		p.expect(tRBracket, "']' after index")
		x = &IndexExpr{X: x, Index: idx, Span: span}
	}
	return x
}

func (p *parser) parseArgs() []Expr {
	var args []Expr
	if p.peek().kind != tRParen {
		for {
			args = append(args, p.parseExpr())
			if !p.accept(tComma) {
				break
			}
		}
	}
	p.expect(tRParen, "')' after arguments")
	return args
}

func (p *parser) parsePrimary() Expr {
	t := p.peek()
	switch t.kind {
	case tNumber:
		p.advance()
		return &NumberLit{Text: t.text, Span: t.span}
	case tString:
		p.advance()
		return &StringLit{Value: t.text, Span: t.span}
	case tTrue:
		p.advance()
		return &BoolLit{Value: true, Span: t.span}
	case tFalse:
		p.advance()
		return &BoolLit{Value: false, Span: t.span}
	case tNil:
		p.advance()
		return &NilLit{Span: t.span}
	case tIdent:
		p.advance()
		if p.peek().kind == tLParen {
			p.advance()
			return &CallExpr{Name: t.text, Args: p.parseArgs(), Span: t.span}
		}
		return &Ident{Name: t.text, Span: t.span}
	case tLParen:
		p.advance()
		x := p.parseExpr()
		p.expect(tRParen, "')'")
		return x
	case tLBracket:
		p.advance()
		lit := &ListLit{Span: t.span}
		if p.peek().kind != tRBracket {
			for {
				lit.Elems = append(lit.Elems, p.parseExpr())
				if !p.accept(tComma) {
					break
				}
			}
		}
		p.expect(tRBracket, "']' after list")
		return lit
	case tLBrace:
		if p.looksLikeMap() {
			return p.parseMapLit()
		}
		return p.parseBlock()
	case tIf:
		return p.parseIf()
	case tFn:
		p.advance()
		params := p.parseParams()
		return &FnLit{Params: params, Body: p.parseBlock(), Span: t.span}
	case tProve:
		p.advance()
		return &ProveExpr{Body: p.parseBlock(), Span: t.span}
	}
	p.errorf(t.span, "unexpected token")
	return nil // unreachable
}

// looksLikeMap distinguishes `{ key: value }` from a block: a literal or
// identifier immediately followed by ':'.
func (p *parser) looksLikeMap() bool {
	k := p.peekAt(1).kind
	if k != tIdent && k != tString && k != tNumber {
		return false
	}
	return p.peekAt(2).kind == tColon
}

func (p *parser) parseMapLit() Expr {
	t := p.expect(tLBrace, "'{'")
	lit := &MapLit{Span: t.span}
	for p.peek().kind != tRBrace {
		lit.Keys = append(lit.Keys, p.parsePrimary())
		p.expect(tColon, "':' in map literal")
		lit.Values = append(lit.Values, p.parseExpr())
		if !p.accept(tComma) {
			break
		}
	}
	p.expect(tRBrace, "'}' after map literal")
	return lit
}

func (p *parser) parseIf() Expr {
	t := p.expect(tIf, "if")
	cond := p.parseExpr()
	then := p.parseBlock()
	out := &IfExpr{Cond: cond, Then: then, Span: t.span}
	if p.accept(tElse) {
		if p.peek().kind == tIf {
			out.Else = p.parseIf()
		} else {
			out.Else = p.parseBlock()
		}
	}
	return out
}
