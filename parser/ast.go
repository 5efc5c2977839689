// Package parser contains the lexer, AST and recursive descent parser for
// the circuit language fragment. The parser is deliberately permissive:
// constructs the circuit compiler cannot express (mutation, printing,
// unbounded loops, closures) still parse, so that lowering can reject them
// with a precise error instead of a generic syntax failure.
package parser

// Span is a source position, 1-based.
type Span struct {
	Line int
	Col  int
}

// Node is implemented by every AST node.
type Node interface {
	Pos() Span
}

// Program is a parsed source file.
type Program struct {
	Stmts []Stmt
}

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// InputDecl is one entry of a public/witness declaration; Size > 0 means an
// array input written name[N].
type InputDecl struct {
	Name string
	Size int
	Span Span
}

type (
	// LetStmt binds a name to a value: let x = e
	LetStmt struct {
		Name  string
		Value Expr
		Span  Span
	}

	// MutStmt declares a mutable binding (rejected by lowering).
	MutStmt struct {
		Name  string
		Value Expr
		Span  Span
	}

	// AssignStmt is target = value (rejected by lowering).
	AssignStmt struct {
		Target Expr
		Value  Expr
		Span   Span
	}

	// PublicDecl declares public inputs.
	PublicDecl struct {
		Inputs []InputDecl
		Span   Span
	}

	// WitnessDecl declares private witness inputs.
	WitnessDecl struct {
		Inputs []InputDecl
		Span   Span
	}

	// FnDecl declares a named function.
	FnDecl struct {
		Name   string
		Params []string
		Body   *BlockExpr
		Span   Span
	}

	// PrintStmt is print(...) (rejected by lowering).
	PrintStmt struct {
		Args []Expr
		Span Span
	}

	// ReturnStmt returns from a function body.
	ReturnStmt struct {
		Value Expr // may be nil
		Span  Span
	}

	// BreakStmt and ContinueStmt are loop controls (rejected by lowering).
	BreakStmt struct {
		Span Span
	}
	ContinueStmt struct {
		Span Span
	}

	// ForStmt is either `for x in a..b { }` (To != nil) or
	// `for x in arr { }` (To == nil, From is the iterated expression).
	ForStmt struct {
		Name string
		From Expr
		To   Expr
		Body *BlockExpr
		Span Span
	}

	// WhileStmt is a conditional loop (always rejected by lowering).
	WhileStmt struct {
		Cond Expr
		Body *BlockExpr
		Span Span
	}

	// ForeverStmt is an infinite loop (always rejected by lowering).
	ForeverStmt struct {
		Body *BlockExpr
		Span Span
	}

	// ExprStmt is an expression evaluated for its effects.
	ExprStmt struct {
		X    Expr
		Span Span
	}
)

func (s *LetStmt) Pos() Span      { return s.Span }
func (s *MutStmt) Pos() Span      { return s.Span }
func (s *AssignStmt) Pos() Span   { return s.Span }
func (s *PublicDecl) Pos() Span   { return s.Span }
func (s *WitnessDecl) Pos() Span  { return s.Span }
func (s *FnDecl) Pos() Span       { return s.Span }
func (s *PrintStmt) Pos() Span    { return s.Span }
func (s *ReturnStmt) Pos() Span   { return s.Span }
func (s *BreakStmt) Pos() Span    { return s.Span }
func (s *ContinueStmt) Pos() Span { return s.Span }
func (s *ForStmt) Pos() Span      { return s.Span }
func (s *WhileStmt) Pos() Span    { return s.Span }
func (s *ForeverStmt) Pos() Span  { return s.Span }
func (s *ExprStmt) Pos() Span     { return s.Span }

func (*LetStmt) stmtNode()      {}
func (*MutStmt) stmtNode()      {}
func (*AssignStmt) stmtNode()   {}
func (*PublicDecl) stmtNode()   {}
func (*WitnessDecl) stmtNode()  {}
func (*FnDecl) stmtNode()       {}
func (*PrintStmt) stmtNode()    {}
func (*ReturnStmt) stmtNode()   {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*ForStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()    {}
func (*ForeverStmt) stmtNode()  {}
func (*ExprStmt) stmtNode()     {}

// BinOp is a binary operator.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binOpNames = [...]string{"+", "-", "*", "/", "%", "^", "==", "!=", "<", "<=", ">", ">=", "&&", "||"}

func (op BinOp) String() string { return binOpNames[op] }

// UnOp is a unary prefix operator.
type UnOp int

const (
	OpNeg UnOp = iota
	OpNot
)

func (op UnOp) String() string {
	if op == OpNeg {
		return "-"
	}
	return "!"
}

type (
	// NumberLit keeps the literal text; lowering decides whether it is a
	// valid field integer (decimals are rejected there, with a span).
	NumberLit struct {
		Text string
		Span Span
	}

	BoolLit struct {
		Value bool
		Span  Span
	}

	StringLit struct {
		Value string
		Span  Span
	}

	NilLit struct {
		Span Span
	}

	Ident struct {
		Name string
		Span Span
	}

	BinaryExpr struct {
		Op   BinOp
		L, R Expr
		Span Span
	}

	UnaryExpr struct {
		Op   UnOp
		X    Expr
		Span Span
	}

	// CallExpr is name(args...); callees are always plain identifiers.
	CallExpr struct {
		Name string
		Args []Expr
		Span Span
	}

	IndexExpr struct {
		X     Expr
		Index Expr
		Span  Span
	}

	// IfExpr is if c {A} else {B}; Else is a *BlockExpr, a chained *IfExpr,
	// or nil.
	IfExpr struct {
		Cond Expr
		Then *BlockExpr
		Else Expr
		Span Span
	}

	// BlockExpr is { stmts }; in value position its value is the trailing
	// expression statement.
	BlockExpr struct {
		Stmts []Stmt
		Span  Span
	}

	ListLit struct {
		Elems []Expr
		Span  Span
	}

	// MapLit is { k: v, ... } (rejected by lowering).
	MapLit struct {
		Keys   []Expr
		Values []Expr
		Span   Span
	}

	// FnLit is an anonymous function (rejected by lowering).
	FnLit struct {
		Params []string
		Body   *BlockExpr
		Span   Span
	}

	// ProveExpr is prove { ... } (rejected by lowering: no nested proofs).
	ProveExpr struct {
		Body *BlockExpr
		Span Span
	}
)

func (e *NumberLit) Pos() Span  { return e.Span }
func (e *BoolLit) Pos() Span    { return e.Span }
func (e *StringLit) Pos() Span  { return e.Span }
func (e *NilLit) Pos() Span     { return e.Span }
func (e *Ident) Pos() Span      { return e.Span }
func (e *BinaryExpr) Pos() Span { return e.Span }
func (e *UnaryExpr) Pos() Span  { return e.Span }
func (e *CallExpr) Pos() Span   { return e.Span }
func (e *IndexExpr) Pos() Span  { return e.Span }
func (e *IfExpr) Pos() Span     { return e.Span }
func (e *BlockExpr) Pos() Span  { return e.Span }
func (e *ListLit) Pos() Span    { return e.Span }
func (e *MapLit) Pos() Span     { return e.Span }
func (e *FnLit) Pos() Span      { return e.Span }
func (e *ProveExpr) Pos() Span  { return e.Span }

func (*NumberLit) exprNode()  {}
func (*BoolLit) exprNode()    {}
func (*StringLit) exprNode()  {}
func (*NilLit) exprNode()     {}
func (*Ident) exprNode()      {}
func (*BinaryExpr) exprNode() {}
func (*UnaryExpr) exprNode()  {}
func (*CallExpr) exprNode()   {}
func (*IndexExpr) exprNode()  {}
func (*IfExpr) exprNode()     {}
func (*BlockExpr) exprNode()  {}
func (*ListLit) exprNode()    {}
func (*MapLit) exprNode()     {}
func (*FnLit) exprNode()      {}
func (*ProveExpr) exprNode()  {}
