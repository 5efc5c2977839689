package ir

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantFoldFullConstants(t *testing.T) {
	prog := mustLower(t, "assert_eq(x, (2 + 3) * 4 / 10)", []string{"x"}, nil)
	Optimize(prog)

	// Everything but the input, the folded constant and the assertion
	// collapses.
	require.Len(t, prog.Instructions, 3)
	assert.Equal(t, 0, countOps(prog, OpAdd))
	assert.Equal(t, 0, countOps(prog, OpMul))
	assert.Equal(t, 0, countOps(prog, OpDiv))

	var want fr.Element
	want.SetUint64(2)
	for i := range prog.Instructions {
		if prog.Instructions[i].Op == OpConst {
			assert.True(t, prog.Instructions[i].Value.Equal(&want))
		}
	}
}

func TestConstantFoldIdentities(t *testing.T) {
	cases := []string{
		"assert_eq(x + 0, y)",
		"assert_eq(0 + x, y)",
		"assert_eq(x - 0, y)",
		"assert_eq(x * 1, y)",
		"assert_eq(1 * x, y)",
		"assert_eq(x / 1, y)",
	}
	for _, src := range cases {
		prog := mustLower(t, src, []string{"x", "y"}, nil)
		Optimize(prog)
		require.Len(t, prog.Instructions, 3, "source: %s", src)

		// The assertion now reads the input directly.
		last := prog.Instructions[len(prog.Instructions)-1]
		require.Equal(t, OpAssertEq, last.Op)
		assert.Equal(t, "x", prog.NameOf(last.X), "source: %s", src)
	}
}

func TestConstantFoldZeroAbsorbs(t *testing.T) {
	prog := mustLower(t, "assert_eq(x * 0, y)", []string{"x", "y"}, nil)
	Optimize(prog)
	assert.Equal(t, 0, countOps(prog, OpMul))
	assert.Equal(t, 1, countOps(prog, OpConst))

	prog = mustLower(t, "assert_eq(0 / x, y)", []string{"x", "y"}, nil)
	Optimize(prog)
	assert.Equal(t, 0, countOps(prog, OpDiv))
}

func TestConstantFoldKeepsConstZeroDivisor(t *testing.T) {
	prog := mustLower(t, "assert_eq(x / 0, y)", []string{"x", "y"}, nil)
	Optimize(prog)
	// Left for the backend to reject.
	assert.Equal(t, 1, countOps(prog, OpDiv))
}

func TestConstantFoldMux(t *testing.T) {
	prog := mustLower(t, "assert_eq(mux(1, a, b), y)", []string{"a", "b", "y"}, nil)
	Optimize(prog)
	assert.Equal(t, 0, countOps(prog, OpMux))
	last := prog.Instructions[len(prog.Instructions)-1]
	assert.Equal(t, "a", prog.NameOf(last.X))

	prog = mustLower(t, "assert_eq(mux(0, a, b), y)", []string{"a", "b", "y"}, nil)
	Optimize(prog)
	last = prog.Instructions[len(prog.Instructions)-1]
	assert.Equal(t, "b", prog.NameOf(last.X))

	// Equal arms need no selector at all.
	prog = mustLower(t, "assert_eq(mux(c, a, a), y)", []string{"c", "a", "y"}, nil)
	Optimize(prog)
	assert.Equal(t, 0, countOps(prog, OpMux))
}

func TestConstantFoldComparisons(t *testing.T) {
	prog := mustLower(t, "assert(3 < 5)", nil, nil)
	Optimize(prog)
	assert.Equal(t, 0, countOps(prog, OpIsLt))

	values, err := Evaluate(prog, nil)
	require.NoError(t, err)
	_ = values
}

func TestConstantFoldRangeCheck(t *testing.T) {
	prog := mustLower(t, "assert_eq(range_check(200, 8), y)", []string{"y"}, nil)
	Optimize(prog)
	assert.Equal(t, 0, countOps(prog, OpRangeCheck))

	// A constant that does not fit must stay and fail at evaluation.
	prog = mustLower(t, "assert_eq(range_check(300, 8), y)", []string{"y"}, nil)
	Optimize(prog)
	assert.Equal(t, 1, countOps(prog, OpRangeCheck))
}

func TestEliminateKeepsSideEffects(t *testing.T) {
	src := `
let dead = a * b
let alive = a + b
range_check(a, 16)
assert_eq(alive, c)
`
	prog := mustLower(t, src, []string{"a", "b", "c"}, nil)
	before := len(prog.Instructions)
	Eliminate(prog)

	assert.Less(t, len(prog.Instructions), before)
	assert.Equal(t, 0, countOps(prog, OpMul))
	assert.Equal(t, 1, countOps(prog, OpAdd))
	assert.Equal(t, 1, countOps(prog, OpRangeCheck))
	assert.Equal(t, 1, countOps(prog, OpAssertEq))
	// Inputs survive even when dead.
	assert.Equal(t, 3, countOps(prog, OpInput))
}

func TestEliminateTransitiveChains(t *testing.T) {
	src := `
let t1 = a + 1
let t2 = t1 * 2
let t3 = t2 - 3
assert_eq(a, b)
`
	prog := mustLower(t, src, []string{"a", "b"}, nil)
	Eliminate(prog)
	assert.Equal(t, 0, countOps(prog, OpAdd))
	assert.Equal(t, 0, countOps(prog, OpMul))
	assert.Equal(t, 0, countOps(prog, OpSub))
}

func TestOptimizePreservesSemantics(t *testing.T) {
	src := `
let y = x * 1 + 0
let z = mux(1, y, x + 999)
assert_eq(z * 2 / 2, x)
`
	prog := mustLower(t, src, []string{"x"}, nil)
	_, err := Evaluate(prog, inputsOf(map[string]uint64{"x": 7}))
	require.NoError(t, err)

	Optimize(prog)
	_, err = Evaluate(prog, inputsOf(map[string]uint64{"x": 7}))
	require.NoError(t, err)
}

func TestProvenBoolean(t *testing.T) {
	src := `
let lt = a < b
let eq = a == b
let both = lt && eq
let either = lt || eq
let neither = !lt
let picked = mux(a, lt, eq)
let raw = a + b
assert_eq(raw, picked)
assert(both)
assert(either)
assert(neither)
`
	prog := mustLower(t, src, []string{"a", "b"}, nil)
	proven := ProvenBoolean(prog)

	byName := map[string]Var{}
	for v, n := range prog.VarNames {
		byName[n] = v
	}

	for _, name := range []string{"lt", "eq", "both", "either", "neither", "picked"} {
		v, ok := byName[name]
		require.True(t, ok, name)
		assert.True(t, proven.Test(uint(v)), "%s should be proven boolean", name)
	}
	assert.False(t, proven.Test(uint(byName["raw"])))
	assert.False(t, proven.Test(uint(byName["a"])))
}

func TestProvenBooleanOneBitRangeCheck(t *testing.T) {
	prog := mustLower(t, "assert_eq(range_check(d, 1), d)", []string{"d"}, nil)
	proven := ProvenBoolean(prog)

	for i := range prog.Instructions {
		if prog.Instructions[i].Op == OpRangeCheck {
			assert.True(t, proven.Test(uint(prog.Instructions[i].Result)))
		}
	}
}
