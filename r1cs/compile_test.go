package r1cs

import (
	"errors"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/zkc/ir"
	"github.com/achronyme/zkc/poseidon"
)

func compileSource(t *testing.T, src string, public, witness []string) *Compiler {
	t.Helper()
	prog, err := ir.LowerCircuit(src, public, witness)
	require.NoError(t, err)
	c := NewCompiler()
	require.NoError(t, c.Compile(prog))
	return c
}

func witnessFor(t *testing.T, c *Compiler, kv map[string]uint64) []fr.Element {
	t.Helper()
	inputs := make(map[string]fr.Element, len(kv))
	for k, v := range kv {
		inputs[k] = elem(v)
	}
	w, err := c.GenerateWitness(inputs)
	require.NoError(t, err)
	return w
}

// Constraint costs are measured on unoptimized IR so the encoding itself,
// not a prior folding pass, is what is being checked.
func TestConstraintCosts(t *testing.T) {
	cases := []struct {
		src  string
		want int
	}{
		{"a + b", 0},
		{"a - b", 0},
		{"-a", 0},
		{"a * b", 1},
		{"a * 3", 0},
		{"3 * a", 0},
		{"a / b", 2},
		{"a / 3", 0},
		{"a ^ 3", 2},
		{"assert_eq(a, b)", 1},
		{"assert(a)", 1},
		{"mux(a, b, a + b)", 1},
		{"mux(a, b, b + 1)", 0}, // arm difference is constant
		{"mux(3, a, b)", 0},     // constant selector
		{"!a", 0},
		{"a && b", 1},
		{"a || b", 1},
		{"a == b", 2},
		{"a != b", 2},
		{"range_check(a, 8)", 9},
		{"range_check(a, 64)", 65},
	}
	for _, tc := range cases {
		c := compileSource(t, tc.src, []string{"a", "b"}, nil)
		assert.Equal(t, tc.want, c.CS.NbConstraints(), "source: %s", tc.src)
	}
}

func TestDivisionByConstantZero(t *testing.T) {
	prog, err := ir.LowerCircuit("a / 0", []string{"a"}, nil)
	require.NoError(t, err)
	c := NewCompiler()
	err = c.Compile(prog)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDivisionByConstantZero)
}

func TestPoseidonConstraintCount(t *testing.T) {
	c := compileSource(t, "poseidon(l, r)", []string{"l", "r"}, nil)
	assert.Equal(t, 360, c.CS.NbConstraints())
}

func TestWireLayout(t *testing.T) {
	c := compileSource(t, "assert_eq(x * y, z)", []string{"z"}, []string{"x", "y"})

	// Wire 0 is the constant one, wire 1 the lone public input.
	assert.Equal(t, 1, c.CS.NbPublicInputs())
	assert.Equal(t, []string{"z"}, c.PublicInputs)
	assert.Equal(t, []string{"x", "y"}, c.Witnesses)
}

func TestPublicInputAfterWitnessRejected(t *testing.T) {
	// Hand-built program with a witness wire allocated before a public one;
	// lowering never produces this ordering.
	prog := ir.NewProgram()
	w := prog.NewVar()
	prog.Instructions = append(prog.Instructions,
		ir.Instruction{Op: ir.OpInput, Result: w, Name: "w", Visibility: ir.Witness})
	p := prog.NewVar()
	prog.Instructions = append(prog.Instructions,
		ir.Instruction{Op: ir.OpInput, Result: p, Name: "p", Visibility: ir.Public})

	c := NewCompiler()
	err := c.Compile(prog)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPublicInputAfterWitness)
}

func TestWitnessSatisfiesSystem(t *testing.T) {
	c := compileSource(t, "assert_eq(x * y, z)", []string{"z"}, []string{"x", "y"})
	w := witnessFor(t, c, map[string]uint64{"x": 6, "y": 7, "z": 42})
	assert.NoError(t, c.CS.Verify(w))
}

func TestBadWitnessReportsFailingConstraint(t *testing.T) {
	c := compileSource(t, "assert_eq(x * y, z)", []string{"z"}, []string{"x", "y"})
	w := witnessFor(t, c, map[string]uint64{"x": 6, "y": 7, "z": 43})

	err := c.CS.Verify(w)
	require.Error(t, err)
	var uc *UnsatisfiedConstraintError
	require.True(t, errors.As(err, &uc))
	// Constraint 0 is x*y=prod; the equality with z is constraint 1.
	assert.Equal(t, 1, uc.Index)
}

func TestCompileWithWitnessRejectsBadInputsEagerly(t *testing.T) {
	prog, err := ir.LowerCircuit("assert_eq(x * y, z)", []string{"z"}, []string{"x", "y"})
	require.NoError(t, err)

	inputs := map[string]fr.Element{"x": elem(6), "y": elem(7), "z": elem(43)}
	c := NewCompiler()
	_, err = c.CompileWithWitness(prog, inputs)
	require.Error(t, err)
	var ee *ir.EvalError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, ir.EvalAssertEqFailed, ee.Kind)
	// Nothing was compiled.
	assert.Equal(t, 0, c.CS.NbConstraints())
}

func TestDivisionGadget(t *testing.T) {
	c := compileSource(t, "assert_eq(a / b, q)", []string{"a", "b", "q"}, nil)
	assert.Equal(t, 3, c.CS.NbConstraints())

	// 7/2 in the field: q = 7 * inverse(2)
	var q, two fr.Element
	q.SetUint64(7)
	two.SetUint64(2)
	q.Div(&q, &two)

	inputs := map[string]fr.Element{"a": elem(7), "b": elem(2), "q": q}
	w, err := c.GenerateWitness(inputs)
	require.NoError(t, err)
	assert.NoError(t, c.CS.Verify(w))

	_, err = c.GenerateWitness(map[string]fr.Element{"a": elem(7), "b": elem(0), "q": q})
	assert.Error(t, err)
}

func TestIsEqGadget(t *testing.T) {
	c := compileSource(t, "assert(a == b)", []string{"a", "b"}, nil)

	w := witnessFor(t, c, map[string]uint64{"a": 5, "b": 5})
	assert.NoError(t, c.CS.Verify(w))

	w = witnessFor(t, c, map[string]uint64{"a": 5, "b": 6})
	assert.Error(t, c.CS.Verify(w))
}

func TestIsNeqGadget(t *testing.T) {
	c := compileSource(t, "assert(a != b)", []string{"a", "b"}, nil)

	w := witnessFor(t, c, map[string]uint64{"a": 5, "b": 6})
	assert.NoError(t, c.CS.Verify(w))

	w = witnessFor(t, c, map[string]uint64{"a": 5, "b": 5})
	assert.Error(t, c.CS.Verify(w))
}

func TestComparisonUnbounded(t *testing.T) {
	c := compileSource(t, "assert(a < b)", []string{"a", "b"}, nil)
	// Two implicit 252-bit range proofs, the 253-bit comparator, one assert.
	want := 2*(252+1) + (253 + 1) + 1
	assert.Equal(t, want, c.CS.NbConstraints())

	w := witnessFor(t, c, map[string]uint64{"a": 3, "b": 5})
	assert.NoError(t, c.CS.Verify(w))

	w = witnessFor(t, c, map[string]uint64{"a": 5, "b": 3})
	assert.Error(t, c.CS.Verify(w))

	w = witnessFor(t, c, map[string]uint64{"a": 5, "b": 5})
	assert.Error(t, c.CS.Verify(w))
}

func TestComparisonUsesRangeBounds(t *testing.T) {
	src := `
range_check(a, 8)
range_check(b, 8)
assert(a < b)
`
	c := compileSource(t, src, []string{"a", "b"}, nil)
	// Two 8-bit range checks, a 9-bit comparator, one assert.
	want := 2*(8+1) + (9 + 1) + 1
	assert.Equal(t, want, c.CS.NbConstraints())

	w := witnessFor(t, c, map[string]uint64{"a": 200, "b": 201})
	assert.NoError(t, c.CS.Verify(w))

	w = witnessFor(t, c, map[string]uint64{"a": 201, "b": 200})
	assert.Error(t, c.CS.Verify(w))
}

func TestIsLeIncludesEquality(t *testing.T) {
	src := `
range_check(a, 16)
range_check(b, 16)
assert(a <= b)
`
	c := compileSource(t, src, []string{"a", "b"}, nil)

	for _, tc := range []struct {
		a, b uint64
		ok   bool
	}{
		{7, 7, true},
		{7, 8, true},
		{8, 7, false},
	} {
		w := witnessFor(t, c, map[string]uint64{"a": tc.a, "b": tc.b})
		err := c.CS.Verify(w)
		if tc.ok {
			assert.NoError(t, err, "a=%d b=%d", tc.a, tc.b)
		} else {
			assert.Error(t, err, "a=%d b=%d", tc.a, tc.b)
		}
	}
}

func TestRangeCheckSkippedForProvenBoolean(t *testing.T) {
	// The comparison result is structurally boolean; its range check must
	// vanish.
	src := `
let lt = a < b
range_check(lt, 1)
assert(lt)
`
	withCheck := compileSource(t, src, []string{"a", "b"}, nil)
	without := compileSource(t, "let lt = a < b\nassert(lt)", []string{"a", "b"}, nil)
	assert.Equal(t, without.CS.NbConstraints(), withCheck.CS.NbConstraints())
}

func TestMuxSelectorNotBooleanConstrained(t *testing.T) {
	// The mux encoding is linear in the selector: no hidden boolean check
	// is inserted, so a selector of 2 scales the arm difference by 2.
	c := compileSource(t, "assert_eq(mux(c, t, f), r)", []string{"c", "t", "f", "r"}, nil)
	assert.Equal(t, 2, c.CS.NbConstraints())

	w := witnessFor(t, c, map[string]uint64{"c": 2, "t": 1, "f": 0, "r": 2})
	assert.NoError(t, c.CS.Verify(w))
}

func TestPoseidonWitness(t *testing.T) {
	c := compileSource(t, "assert_eq(poseidon(l, r), h)", []string{"h"}, []string{"l", "r"})

	params := poseidon.NewParameters()
	h := params.Hash(elem(11), elem(22))

	inputs := map[string]fr.Element{"l": elem(11), "r": elem(22), "h": h}
	w, err := c.GenerateWitness(inputs)
	require.NoError(t, err)
	assert.NoError(t, c.CS.Verify(w))

	inputs["h"] = elem(999)
	w, err = c.GenerateWitness(inputs)
	require.NoError(t, err)
	assert.Error(t, c.CS.Verify(w))
}

func TestPoseidonChainedHashes(t *testing.T) {
	// The second hash consumes the first's output wire directly; no
	// materialization constraints are added between them.
	c := compileSource(t, "poseidon(poseidon(a, b), c)", []string{"a", "b", "c"}, nil)
	assert.Equal(t, 720, c.CS.NbConstraints())

	params := poseidon.NewParameters()
	w := witnessFor(t, c, map[string]uint64{"a": 1, "b": 2, "c": 3})
	require.NoError(t, c.CS.Verify(w))

	want := params.Hash(params.Hash(elem(1), elem(2)), elem(3))
	// The final output wire is the last one the second hash allocated
	// before its two trailing state wires.
	found := false
	for _, v := range w {
		if v.Equal(&want) {
			found = true
			break
		}
	}
	assert.True(t, found)
}

func TestGenerateWitnessMissingInput(t *testing.T) {
	c := compileSource(t, "assert_eq(a, b)", []string{"a"}, []string{"b"})
	_, err := c.GenerateWitness(map[string]fr.Element{"a": elem(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
}
