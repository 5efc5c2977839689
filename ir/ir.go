// Package ir defines the SSA intermediate representation produced by
// lowering and consumed by the R1CS and Plonkish backends.
//
// A program is a flat, append-only instruction list. Every instruction
// defines exactly one variable; variables are assigned once and only
// reference earlier instructions, so the list is a DAG in instruction
// order. There are no phi nodes: circuits have no divergent control flow.
package ir

import "github.com/consensys/gnark-crypto/ecc/bn254/fr"

// Var names one SSA value. Vars are allocated monotonically by
// Program.NewVar and never reused.
type Var uint32

// Visibility fixes which wire section an input lands in.
type Visibility uint8

const (
	Public Visibility = iota
	Witness
)

func (v Visibility) String() string {
	if v == Public {
		return "public"
	}
	return "witness"
}

// OpCode discriminates Instruction variants.
type OpCode uint8

const (
	OpConst OpCode = iota
	OpInput
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpMux
	OpAssertEq
	OpAssert
	OpPoseidon
	OpRangeCheck
	OpNot
	OpAnd
	OpOr
	OpIsEq
	OpIsNeq
	OpIsLt
	OpIsLe
	opMax
)

var opNames = [opMax]string{
	"const", "input", "add", "sub", "mul", "div", "neg", "mux",
	"assert_eq", "assert", "poseidon", "range_check",
	"not", "and", "or", "is_eq", "is_neq", "is_lt", "is_le",
}

func (op OpCode) String() string {
	if op < opMax {
		return opNames[op]
	}
	return "invalid"
}

// Instruction is a flat tagged record. Which fields are meaningful depends
// on Op:
//
//	Const:      Result, Value
//	Input:      Result, Name, Visibility
//	Neg/Not:    Result, X
//	Assert:     Result, X
//	RangeCheck: Result, X, Bits
//	Mux:        Result, X (selector), Y (if true), Z (if false)
//	all others: Result, X, Y
type Instruction struct {
	Op     OpCode
	Result Var

	X, Y, Z Var

	Value      fr.Element
	Name       string
	Visibility Visibility
	Bits       uint32
}

// Operands returns the variables this instruction reads.
func (in *Instruction) Operands() []Var {
	switch in.Op {
	case OpConst, OpInput:
		return nil
	case OpNeg, OpNot, OpAssert, OpRangeCheck:
		return []Var{in.X}
	case OpMux:
		return []Var{in.X, in.Y, in.Z}
	default:
		return []Var{in.X, in.Y}
	}
}

// HasSideEffects reports whether the instruction must survive dead-code
// elimination regardless of whether its result is read.
func (in *Instruction) HasSideEffects() bool {
	switch in.Op {
	case OpInput, OpAssert, OpAssertEq, OpRangeCheck:
		return true
	}
	return false
}

// Type is optional per-variable type metadata recorded by lowering.
type Type uint8

const (
	TypeField Type = iota
	TypeBool
)

// Program is an IR program: the instruction list plus the variable
// allocator and optional name/type metadata used for diagnostics and
// boolean provenance seeding.
type Program struct {
	Instructions []Instruction
	NextVar      Var
	VarNames     map[Var]string
	VarTypes     map[Var]Type
}

func NewProgram() *Program {
	return &Program{
		VarNames: make(map[Var]string),
		VarTypes: make(map[Var]Type),
	}
}

// NewVar allocates a fresh SSA variable.
func (p *Program) NewVar() Var {
	v := p.NextVar
	p.NextVar++
	return v
}

// NameOf returns the recorded name for v, or "v<N>".
func (p *Program) NameOf(v Var) string {
	if name, ok := p.VarNames[v]; ok {
		return name
	}
	return "v" + uitoa(uint32(v))
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
