package ir

import (
	"strconv"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/achronyme/zkc/field"
	"github.com/achronyme/zkc/parser"
)

// MaxUnrollIterations caps loop unrolling. It is the only resource guard in
// the compiler: attacker-supplied source cannot force unbounded work.
const MaxUnrollIterations = 10000

// value is what a name binds to in the lowering environment: a scalar SSA
// variable or a fixed-size array of them. For values whose concrete integer
// is known at lowering time (literals, unrolled loop indices, len), c holds
// it so that array indices and exponents can be resolved.
type value struct {
	v     Var
	arr   []Var
	isArr bool
	c     *uint64
}

func scalar(v Var) value { return value{v: v} }

func constVal(v Var, c uint64) value {
	return value{v: v, c: &c}
}

type lowering struct {
	prog *Program
	env  map[string]value
	fns  map[string]*parser.FnDecl
	// inFlight holds function names currently being inlined, for
	// direct/mutual recursion detection.
	inFlight map[string]bool
	declared map[string]bool

	selfContained bool
	publics       []string
	witnesses     []string
}

func newLowering() *lowering {
	return &lowering{
		prog:     NewProgram(),
		env:      make(map[string]value),
		fns:      make(map[string]*parser.FnDecl),
		inFlight: make(map[string]bool),
		declared: make(map[string]bool),
	}
}

// LowerCircuit lowers source with explicit input declaration lists. Names
// may use the array form "name[N]", which expands to wires name[0] ..
// name[N-1]. Public inputs are declared before witnesses so the wire layout
// keeps all public wires first.
func LowerCircuit(source string, public, witness []string) (*Program, error) {
	prog, err := parser.Parse(source)
	if err != nil {
		if se, ok := err.(*parser.SyntaxError); ok {
			return nil, &Error{Code: ErrParse, Msg: se.Msg, Span: &se.Span}
		}
		return nil, &Error{Code: ErrParse, Msg: err.Error()}
	}

	l := newLowering()
	for _, spec := range public {
		name, size, err := splitDeclName(spec)
		if err != nil {
			return nil, err
		}
		if err := l.declareInput(name, size, Public, parser.Span{}); err != nil {
			return nil, err
		}
	}
	for _, spec := range witness {
		name, size, err := splitDeclName(spec)
		if err != nil {
			return nil, err
		}
		if err := l.declareInput(name, size, Witness, parser.Span{}); err != nil {
			return nil, err
		}
	}

	for _, s := range prog.Stmts {
		if err := l.lowerStmt(s); err != nil {
			return nil, err
		}
	}
	return l.prog, nil
}

// LowerSelfContained lowers source whose inputs are declared in-line with
// public/witness statements. Declarations are collected in a first pass and
// all public wires are emitted before any witness wire, regardless of
// textual order; remaining statements are lowered in source order in a
// second pass. Returns the expanded public and witness wire name lists.
func LowerSelfContained(source string) (*Program, []string, []string, error) {
	prog, err := parser.Parse(source)
	if err != nil {
		if se, ok := err.(*parser.SyntaxError); ok {
			return nil, nil, nil, &Error{Code: ErrParse, Msg: se.Msg, Span: &se.Span}
		}
		return nil, nil, nil, &Error{Code: ErrParse, Msg: err.Error()}
	}

	l := newLowering()
	l.selfContained = true

	// Pass 1: all public inputs, then all witnesses.
	for _, s := range prog.Stmts {
		if d, ok := s.(*parser.PublicDecl); ok {
			for _, in := range d.Inputs {
				if err := l.declareInput(in.Name, in.Size, Public, in.Span); err != nil {
					return nil, nil, nil, err
				}
			}
		}
	}
	for _, s := range prog.Stmts {
		if d, ok := s.(*parser.WitnessDecl); ok {
			for _, in := range d.Inputs {
				if err := l.declareInput(in.Name, in.Size, Witness, in.Span); err != nil {
					return nil, nil, nil, err
				}
			}
		}
	}

	// Pass 2: everything else, in source order.
	for _, s := range prog.Stmts {
		switch s.(type) {
		case *parser.PublicDecl, *parser.WitnessDecl:
			continue
		}
		if err := l.lowerStmt(s); err != nil {
			return nil, nil, nil, err
		}
	}
	return l.prog, l.publics, l.witnesses, nil
}

// splitDeclName parses "name" or "name[N]".
func splitDeclName(spec string) (string, int, error) {
	open := strings.IndexByte(spec, '[')
	if open < 0 {
		return spec, 0, nil
	}
	if !strings.HasSuffix(spec, "]") {
		return "", 0, &Error{Code: ErrParse, Msg: "malformed input declaration " + strconv.Quote(spec)}
	}
	size, err := strconv.Atoi(spec[open+1 : len(spec)-1])
	if err != nil || size <= 0 {
		return "", 0, &Error{Code: ErrParse, Msg: "malformed input declaration " + strconv.Quote(spec)}
	}
	return spec[:open], size, nil
}

func (l *lowering) declareInput(name string, size int, vis Visibility, span parser.Span) error {
	if l.declared[name] {
		return errAt(ErrDuplicateInput, span, "input `%s` declared twice", name)
	}
	l.declared[name] = true

	record := func(wire string) {
		if vis == Public {
			l.publics = append(l.publics, wire)
		} else {
			l.witnesses = append(l.witnesses, wire)
		}
	}

	if size == 0 {
		v := l.emitInput(name, vis)
		l.env[name] = scalar(v)
		record(name)
		return nil
	}
	arr := make([]Var, size)
	for i := 0; i < size; i++ {
		wire := name + "[" + strconv.Itoa(i) + "]"
		arr[i] = l.emitInput(wire, vis)
		record(wire)
	}
	l.env[name] = value{arr: arr, isArr: true}
	return nil
}

// ----------------------------------------------------------------------
// Emission helpers
// ----------------------------------------------------------------------

func (l *lowering) emit(in Instruction) Var {
	in.Result = l.prog.NewVar()
	l.prog.Instructions = append(l.prog.Instructions, in)
	return in.Result
}

func (l *lowering) emitInput(name string, vis Visibility) Var {
	v := l.emit(Instruction{Op: OpInput, Name: name, Visibility: vis})
	l.prog.VarNames[v] = name
	return v
}

func (l *lowering) emitConst(val fr.Element) Var {
	return l.emit(Instruction{Op: OpConst, Value: val})
}

func (l *lowering) emitConstUint(c uint64) Var {
	var val fr.Element
	val.SetUint64(c)
	return l.emitConst(val)
}

func (l *lowering) cloneEnv() map[string]value {
	saved := make(map[string]value, len(l.env))
	for k, v := range l.env {
		saved[k] = v
	}
	return saved
}

// ----------------------------------------------------------------------
// Statements
// ----------------------------------------------------------------------

func (l *lowering) lowerStmt(s parser.Stmt) error {
	switch s := s.(type) {
	case *parser.LetStmt:
		val, err := l.lowerExpr(s.Value)
		if err != nil {
			return err
		}
		if !val.isArr {
			if _, named := l.prog.VarNames[val.v]; !named {
				l.prog.VarNames[val.v] = s.Name
			}
		}
		l.env[s.Name] = val
		return nil

	case *parser.PublicDecl:
		return l.lowerInlineDecl(s.Inputs, Public, s.Span)
	case *parser.WitnessDecl:
		return l.lowerInlineDecl(s.Inputs, Witness, s.Span)

	case *parser.FnDecl:
		l.fns[s.Name] = s
		return nil

	case *parser.ForStmt:
		return l.lowerFor(s)

	case *parser.WhileStmt:
		return errAt(ErrUnboundedLoop, s.Span, "while loops cannot be unrolled into a circuit")
	case *parser.ForeverStmt:
		return errAt(ErrUnboundedLoop, s.Span, "forever loops cannot be unrolled into a circuit")

	case *parser.MutStmt:
		return errAt(ErrUnsupportedOperation, s.Span, "mutable bindings are not allowed in circuits")
	case *parser.AssignStmt:
		return errAt(ErrUnsupportedOperation, s.Span, "assignment is not allowed in circuits")
	case *parser.PrintStmt:
		return errAt(ErrUnsupportedOperation, s.Span, "print is not available in circuits")
	case *parser.ReturnStmt:
		return errAt(ErrUnsupportedOperation, s.Span, "return is only allowed as the final statement of a function")
	case *parser.BreakStmt:
		return errAt(ErrUnsupportedOperation, s.Span, "break is not allowed in circuits")
	case *parser.ContinueStmt:
		return errAt(ErrUnsupportedOperation, s.Span, "continue is not allowed in circuits")

	case *parser.ExprStmt:
		if b, ok := s.X.(*parser.BlockExpr); ok {
			return l.lowerBlockStmts(b)
		}
		_, err := l.lowerExpr(s.X)
		return err
	}
	return errAt(ErrUnsupportedOperation, s.Pos(), "unsupported statement")
}

func (l *lowering) lowerInlineDecl(inputs []parser.InputDecl, vis Visibility, span parser.Span) error {
	if l.selfContained {
		// Already declared during pass 1 at the top level; anything reaching
		// here is nested, which would break the wire-order guarantee.
		return errAt(ErrUnsupportedOperation, span, "input declarations must be top-level statements")
	}
	for _, in := range inputs {
		if err := l.declareInput(in.Name, in.Size, vis, in.Span); err != nil {
			return err
		}
	}
	return nil
}

// lowerBlockStmts lowers a block in statement position (no value needed).
func (l *lowering) lowerBlockStmts(b *parser.BlockExpr) error {
	saved := l.cloneEnv()
	defer func() { l.env = saved }()
	for _, s := range b.Stmts {
		if err := l.lowerStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowering) lowerFor(s *parser.ForStmt) error {
	if s.To == nil {
		// for x in arr
		it, err := l.lowerExpr(s.From)
		if err != nil {
			return err
		}
		if !it.isArr {
			return errAt(ErrTypeMismatch, s.Span, "for-in requires an array")
		}
		if len(it.arr) > MaxUnrollIterations {
			return errAt(ErrUnboundedLoop, s.Span,
				"loop unrolls to %d iterations, above the cap of %d", len(it.arr), MaxUnrollIterations)
		}
		saved := l.cloneEnv()
		for _, elem := range it.arr {
			l.env = saved
			saved = l.cloneEnv()
			l.env[s.Name] = scalar(elem)
			for _, st := range s.Body.Stmts {
				if err := l.lowerStmt(st); err != nil {
					return err
				}
			}
		}
		l.env = saved
		return nil
	}

	from, ok := l.constIntOf(s.From)
	if !ok {
		return errAt(ErrUnboundedLoop, s.From.Pos(), "for-range bounds must be integer literals")
	}
	to, ok := l.constIntOf(s.To)
	if !ok {
		return errAt(ErrUnboundedLoop, s.To.Pos(), "for-range bounds must be integer literals")
	}
	if to > from && to-from > MaxUnrollIterations {
		return errAt(ErrUnboundedLoop, s.Span,
			"loop unrolls to %d iterations, above the cap of %d", to-from, MaxUnrollIterations)
	}

	saved := l.cloneEnv()
	for i := from; i < to; i++ {
		l.env = saved
		saved = l.cloneEnv()
		l.env[s.Name] = constVal(l.emitConstUint(i), i)
		for _, st := range s.Body.Stmts {
			if err := l.lowerStmt(st); err != nil {
				return err
			}
		}
	}
	l.env = saved
	return nil
}

// constIntOf resolves an expression to a compile-time integer without
// emitting instructions: literals and bindings with a known constant.
func (l *lowering) constIntOf(e parser.Expr) (uint64, bool) {
	switch e := e.(type) {
	case *parser.NumberLit:
		if strings.ContainsRune(e.Text, '.') {
			return 0, false
		}
		n, err := strconv.ParseUint(e.Text, 10, 64)
		return n, err == nil
	case *parser.Ident:
		if v, ok := l.env[e.Name]; ok && v.c != nil {
			return *v.c, true
		}
	}
	return 0, false
}

// ----------------------------------------------------------------------
// Expressions
// ----------------------------------------------------------------------

func (l *lowering) lowerExpr(e parser.Expr) (value, error) {
	switch e := e.(type) {
	case *parser.NumberLit:
		return l.lowerNumber(e)

	case *parser.BoolLit:
		var val fr.Element
		c := uint64(0)
		if e.Value {
			val.SetOne()
			c = 1
		}
		v := l.emitConst(val)
		l.prog.VarTypes[v] = TypeBool
		return constVal(v, c), nil

	case *parser.StringLit:
		return value{}, errAt(ErrTypeNotConstrainable, e.Span, "strings cannot appear in circuits")
	case *parser.NilLit:
		return value{}, errAt(ErrTypeNotConstrainable, e.Span, "nil cannot appear in circuits")
	case *parser.MapLit:
		return value{}, errAt(ErrTypeNotConstrainable, e.Span, "maps cannot appear in circuits")
	case *parser.FnLit:
		return value{}, errAt(ErrUnsupportedOperation, e.Span, "closures are not allowed in circuits")
	case *parser.ProveExpr:
		return value{}, errAt(ErrUnsupportedOperation, e.Span, "prove blocks cannot be nested inside a circuit")

	case *parser.Ident:
		if v, ok := l.env[e.Name]; ok {
			return v, nil
		}
		if _, ok := l.fns[e.Name]; ok {
			return value{}, errAt(ErrUnsupportedOperation, e.Span, "functions are not first-class values")
		}
		return value{}, errAt(ErrUndeclaredVariable, e.Span, "`%s` is not declared", e.Name)

	case *parser.UnaryExpr:
		return l.lowerUnary(e)

	case *parser.BinaryExpr:
		return l.lowerBinary(e)

	case *parser.CallExpr:
		return l.lowerCall(e)

	case *parser.IndexExpr:
		return l.lowerIndex(e)

	case *parser.IfExpr:
		return l.lowerIf(e)

	case *parser.BlockExpr:
		return l.lowerBlockValue(e)

	case *parser.ListLit:
		arr := make([]Var, len(e.Elems))
		for i, el := range e.Elems {
			v, err := l.scalarExpr(el)
			if err != nil {
				return value{}, err
			}
			arr[i] = v
		}
		return value{arr: arr, isArr: true}, nil
	}
	return value{}, errAt(ErrUnsupportedOperation, e.Pos(), "unsupported expression")
}

func (l *lowering) lowerNumber(e *parser.NumberLit) (value, error) {
	if strings.ContainsRune(e.Text, '.') {
		return value{}, errAt(ErrTypeNotConstrainable, e.Span,
			"decimal literal %s: circuits compute over field integers only", e.Text)
	}
	val, ok := field.FromDecimal(e.Text)
	if !ok {
		return value{}, errAt(ErrTypeNotConstrainable, e.Span, "invalid number literal %q", e.Text)
	}
	v := l.emitConst(val)
	if n, err := strconv.ParseUint(e.Text, 10, 64); err == nil {
		return constVal(v, n), nil
	}
	return scalar(v), nil
}

// scalarExpr lowers e and requires a scalar result.
func (l *lowering) scalarExpr(e parser.Expr) (Var, error) {
	v, err := l.lowerExpr(e)
	if err != nil {
		return 0, err
	}
	if v.isArr {
		return 0, errAt(ErrTypeMismatch, e.Pos(), "expected a scalar, got an array")
	}
	return v.v, nil
}

func (l *lowering) arrayExpr(e parser.Expr) ([]Var, error) {
	v, err := l.lowerExpr(e)
	if err != nil {
		return nil, err
	}
	if !v.isArr {
		return nil, errAt(ErrTypeMismatch, e.Pos(), "expected an array, got a scalar")
	}
	return v.arr, nil
}

// lowerUnary cancels chained -/! pairs at lowering time, emitting at most
// one instruction.
func (l *lowering) lowerUnary(e *parser.UnaryExpr) (value, error) {
	op := e.Op
	odd := true
	inner := e.X
	for {
		u, ok := inner.(*parser.UnaryExpr)
		if !ok || u.Op != op {
			break
		}
		odd = !odd
		inner = u.X
	}
	v, err := l.lowerExpr(inner)
	if err != nil {
		return value{}, err
	}
	if v.isArr {
		return value{}, errAt(ErrTypeMismatch, e.Span, "unary %s needs a scalar", op)
	}
	if !odd {
		return v, nil
	}
	code := OpNeg
	if op == parser.OpNot {
		code = OpNot
	}
	return scalar(l.emit(Instruction{Op: code, X: v.v})), nil
}

func (l *lowering) lowerBinary(e *parser.BinaryExpr) (value, error) {
	if e.Op == parser.OpMod {
		return value{}, errAt(ErrUnsupportedOperation, e.Span,
			"modulo has no field encoding; use range checks and division instead")
	}
	if e.Op == parser.OpPow {
		return l.lowerPow(e)
	}

	x, err := l.scalarExpr(e.L)
	if err != nil {
		return value{}, err
	}
	y, err := l.scalarExpr(e.R)
	if err != nil {
		return value{}, err
	}

	var op OpCode
	switch e.Op {
	case parser.OpAdd:
		op = OpAdd
	case parser.OpSub:
		op = OpSub
	case parser.OpMul:
		op = OpMul
	case parser.OpDiv:
		op = OpDiv
	case parser.OpAnd:
		op = OpAnd
	case parser.OpOr:
		op = OpOr
	case parser.OpEq:
		op = OpIsEq
	case parser.OpNeq:
		op = OpIsNeq
	case parser.OpLt:
		op = OpIsLt
	case parser.OpLe:
		op = OpIsLe
	case parser.OpGt:
		// a > b ≡ b < a
		op, x, y = OpIsLt, y, x
	case parser.OpGe:
		op, x, y = OpIsLe, y, x
	default:
		return value{}, errAt(ErrUnsupportedOperation, e.Span, "operator %s not supported", e.Op)
	}
	return scalar(l.emit(Instruction{Op: op, X: x, Y: y})), nil
}

// lowerPow implements ^k by square-and-multiply. The exponent must be a
// compile-time constant; each step reuses the Mul cost rule.
func (l *lowering) lowerPow(e *parser.BinaryExpr) (value, error) {
	base, err := l.scalarExpr(e.L)
	if err != nil {
		return value{}, err
	}
	k, ok := l.constIntOf(e.R)
	if !ok {
		return value{}, errAt(ErrUnsupportedOperation, e.R.Pos(), "exponent must be a constant integer")
	}
	if k == 0 {
		var one fr.Element
		one.SetOne()
		return scalar(l.emitConst(one)), nil
	}

	cur := base
	var acc Var
	accSet := false
	for k > 0 {
		if k&1 == 1 {
			if !accSet {
				acc, accSet = cur, true
			} else {
				acc = l.emit(Instruction{Op: OpMul, X: acc, Y: cur})
			}
		}
		k >>= 1
		if k > 0 {
			cur = l.emit(Instruction{Op: OpMul, X: cur, Y: cur})
		}
	}
	return scalar(acc), nil
}

func (l *lowering) lowerIndex(e *parser.IndexExpr) (value, error) {
	arr, err := l.arrayExpr(e.X)
	if err != nil {
		return value{}, err
	}
	idx, ok := l.constIntOf(e.Index)
	if !ok {
		// The index may still be a lowered constant binding; fall back to
		// lowering it to check for a tracked constant.
		v, lerr := l.lowerExpr(e.Index)
		if lerr != nil {
			return value{}, lerr
		}
		if v.c == nil {
			return value{}, errAt(ErrIndexOutOfBounds, e.Span, "array index must be a compile-time constant")
		}
		idx = *v.c
	}
	if idx >= uint64(len(arr)) {
		return value{}, errAt(ErrIndexOutOfBounds, e.Span, "index %d out of bounds for array of length %d", idx, len(arr))
	}
	return scalar(arr[idx]), nil
}

func (l *lowering) lowerIf(e *parser.IfExpr) (value, error) {
	cond, err := l.scalarExpr(e.Cond)
	if err != nil {
		return value{}, err
	}
	// Both branches are always lowered and their constraints emitted:
	// circuits are branch-free, selection happens via Mux over both results.
	thenV, err := l.lowerBlockValue(e.Then)
	if err != nil {
		return value{}, err
	}
	if e.Else == nil {
		return value{}, errAt(ErrUnsupportedOperation, e.Span, "if expressions need an else branch")
	}
	elseV, err := l.lowerExpr(e.Else)
	if err != nil {
		return value{}, err
	}
	if thenV.isArr || elseV.isArr {
		return value{}, errAt(ErrTypeMismatch, e.Span, "if branches must produce scalars")
	}
	return scalar(l.emit(Instruction{Op: OpMux, X: cond, Y: thenV.v, Z: elseV.v})), nil
}

func (l *lowering) lowerBlockValue(b *parser.BlockExpr) (value, error) {
	if len(b.Stmts) == 0 {
		return value{}, errAt(ErrTypeMismatch, b.Span, "empty block has no value")
	}
	saved := l.cloneEnv()
	defer func() { l.env = saved }()

	for _, s := range b.Stmts[:len(b.Stmts)-1] {
		if err := l.lowerStmt(s); err != nil {
			return value{}, err
		}
	}
	last, ok := b.Stmts[len(b.Stmts)-1].(*parser.ExprStmt)
	if !ok {
		return value{}, errAt(ErrTypeMismatch, b.Span, "block used as a value must end in an expression")
	}
	return l.lowerExpr(last.X)
}

// ----------------------------------------------------------------------
// Calls: builtins and user function inlining
// ----------------------------------------------------------------------

func (l *lowering) lowerCall(e *parser.CallExpr) (value, error) {
	switch e.Name {
	case "assert_eq":
		if err := l.checkArity(e, 2); err != nil {
			return value{}, err
		}
		x, err := l.scalarExpr(e.Args[0])
		if err != nil {
			return value{}, err
		}
		y, err := l.scalarExpr(e.Args[1])
		if err != nil {
			return value{}, err
		}
		return scalar(l.emit(Instruction{Op: OpAssertEq, X: x, Y: y})), nil

	case "assert":
		if err := l.checkArity(e, 1); err != nil {
			return value{}, err
		}
		x, err := l.scalarExpr(e.Args[0])
		if err != nil {
			return value{}, err
		}
		return scalar(l.emit(Instruction{Op: OpAssert, X: x})), nil

	case "poseidon":
		if err := l.checkArity(e, 2); err != nil {
			return value{}, err
		}
		x, err := l.scalarExpr(e.Args[0])
		if err != nil {
			return value{}, err
		}
		y, err := l.scalarExpr(e.Args[1])
		if err != nil {
			return value{}, err
		}
		return scalar(l.emit(Instruction{Op: OpPoseidon, X: x, Y: y})), nil

	case "mux":
		if err := l.checkArity(e, 3); err != nil {
			return value{}, err
		}
		c, err := l.scalarExpr(e.Args[0])
		if err != nil {
			return value{}, err
		}
		t, err := l.scalarExpr(e.Args[1])
		if err != nil {
			return value{}, err
		}
		f, err := l.scalarExpr(e.Args[2])
		if err != nil {
			return value{}, err
		}
		return scalar(l.emit(Instruction{Op: OpMux, X: c, Y: t, Z: f})), nil

	case "range_check":
		if err := l.checkArity(e, 2); err != nil {
			return value{}, err
		}
		x, err := l.scalarExpr(e.Args[0])
		if err != nil {
			return value{}, err
		}
		bits, ok := l.constIntOf(e.Args[1])
		if !ok || bits == 0 || bits > field.MaxRangeBits {
			return value{}, errAt(ErrUnsupportedOperation, e.Args[1].Pos(),
				"range_check bits must be a constant between 1 and %d", field.MaxRangeBits)
		}
		return scalar(l.emit(Instruction{Op: OpRangeCheck, X: x, Bits: uint32(bits)})), nil

	case "len":
		if err := l.checkArity(e, 1); err != nil {
			return value{}, err
		}
		arr, err := l.arrayExpr(e.Args[0])
		if err != nil {
			return value{}, err
		}
		n := uint64(len(arr))
		return constVal(l.emitConstUint(n), n), nil

	case "poseidon_many":
		if len(e.Args) == 0 {
			return value{}, errAt(ErrWrongArgumentCount, e.Span, "poseidon_many needs at least one argument")
		}
		var elems []Var
		if len(e.Args) == 1 {
			if v, err := l.lowerExpr(e.Args[0]); err != nil {
				return value{}, err
			} else if v.isArr {
				elems = v.arr
			} else {
				elems = []Var{v.v}
			}
		} else {
			for _, a := range e.Args {
				v, err := l.scalarExpr(a)
				if err != nil {
					return value{}, err
				}
				elems = append(elems, v)
			}
		}
		if len(elems) == 0 {
			return value{}, errAt(ErrWrongArgumentCount, e.Span, "poseidon_many needs at least one element")
		}
		if len(elems) == 1 {
			zero := l.emitConstUint(0)
			return scalar(l.emit(Instruction{Op: OpPoseidon, X: elems[0], Y: zero})), nil
		}
		acc := l.emit(Instruction{Op: OpPoseidon, X: elems[0], Y: elems[1]})
		for _, next := range elems[2:] {
			acc = l.emit(Instruction{Op: OpPoseidon, X: acc, Y: next})
		}
		return scalar(acc), nil

	case "merkle_verify":
		return l.lowerMerkleVerify(e)
	}

	return l.inlineCall(e)
}

// lowerMerkleVerify folds a Merkle authentication path:
//
//	cur = mux(dir[i], poseidon(path[i], cur), poseidon(cur, path[i]))
//
// then asserts cur == root. Direction bits feed Mux selectors unchecked;
// callers range_check them like any other selector.
func (l *lowering) lowerMerkleVerify(e *parser.CallExpr) (value, error) {
	if err := l.checkArity(e, 4); err != nil {
		return value{}, err
	}
	root, err := l.scalarExpr(e.Args[0])
	if err != nil {
		return value{}, err
	}
	leaf, err := l.scalarExpr(e.Args[1])
	if err != nil {
		return value{}, err
	}
	path, err := l.arrayExpr(e.Args[2])
	if err != nil {
		return value{}, err
	}
	dir, err := l.arrayExpr(e.Args[3])
	if err != nil {
		return value{}, err
	}
	if len(path) != len(dir) {
		return value{}, errAt(ErrArrayLengthMismatch, e.Span,
			"merkle_verify path has %d levels but dir has %d", len(path), len(dir))
	}

	cur := leaf
	for i := range path {
		left := l.emit(Instruction{Op: OpPoseidon, X: path[i], Y: cur})
		right := l.emit(Instruction{Op: OpPoseidon, X: cur, Y: path[i]})
		cur = l.emit(Instruction{Op: OpMux, X: dir[i], Y: left, Z: right})
	}
	return scalar(l.emit(Instruction{Op: OpAssertEq, X: cur, Y: root})), nil
}

func (l *lowering) checkArity(e *parser.CallExpr, want int) error {
	if len(e.Args) != want {
		return errAt(ErrWrongArgumentCount, e.Span, "%s expects %d argument(s), got %d", e.Name, want, len(e.Args))
	}
	return nil
}

// inlineCall re-lowers the callee body with parameters bound to the
// argument SSA variables in a fresh scope. Function bodies see only their
// parameters (and other functions), never caller locals.
func (l *lowering) inlineCall(e *parser.CallExpr) (value, error) {
	fn, ok := l.fns[e.Name]
	if !ok {
		return value{}, errAt(ErrUndeclaredVariable, e.Span, "unknown function `%s`", e.Name)
	}
	if l.inFlight[e.Name] {
		return value{}, errAt(ErrRecursiveFunction, e.Span, "function `%s` calls itself (directly or mutually)", e.Name)
	}
	if len(e.Args) != len(fn.Params) {
		return value{}, errAt(ErrWrongArgumentCount, e.Span,
			"%s expects %d argument(s), got %d", e.Name, len(fn.Params), len(e.Args))
	}

	args := make([]value, len(e.Args))
	for i, a := range e.Args {
		v, err := l.lowerExpr(a)
		if err != nil {
			return value{}, err
		}
		args[i] = v
	}

	saved := l.env
	l.env = make(map[string]value, len(fn.Params))
	for i, p := range fn.Params {
		l.env[p] = args[i]
	}
	l.inFlight[e.Name] = true
	defer func() {
		l.env = saved
		delete(l.inFlight, e.Name)
	}()

	body := fn.Body.Stmts
	if len(body) == 0 {
		return value{}, errAt(ErrTypeMismatch, fn.Span, "function `%s` has an empty body", fn.Name)
	}
	for _, s := range body[:len(body)-1] {
		if err := l.lowerStmt(s); err != nil {
			return value{}, err
		}
	}
	switch last := body[len(body)-1].(type) {
	case *parser.ReturnStmt:
		if last.Value == nil {
			return value{}, errAt(ErrTypeMismatch, last.Span, "function `%s` returns no value", fn.Name)
		}
		return l.lowerExpr(last.Value)
	case *parser.ExprStmt:
		return l.lowerExpr(last.X)
	}
	return value{}, errAt(ErrTypeMismatch, fn.Span, "function `%s` body must end in an expression or return", fn.Name)
}
