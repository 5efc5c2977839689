package ir

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/zkc/poseidon"
)

func inputsOf(kv map[string]uint64) map[string]fr.Element {
	m := make(map[string]fr.Element, len(kv))
	for k, v := range kv {
		var e fr.Element
		e.SetUint64(v)
		m[k] = e
	}
	return m
}

func mustLower(t *testing.T, src string, public, witness []string) *Program {
	t.Helper()
	prog, err := LowerCircuit(src, public, witness)
	require.NoError(t, err)
	return prog
}

func resultOf(t *testing.T, prog *Program, inputs map[string]fr.Element) fr.Element {
	t.Helper()
	values, err := Evaluate(prog, inputs)
	require.NoError(t, err)
	// The last instruction's result is the value of the final expression.
	last := prog.Instructions[len(prog.Instructions)-1]
	return values[last.Result]
}

func TestEvaluateArithmetic(t *testing.T) {
	prog := mustLower(t, "let y = (a + b) * a - b\ny / a", []string{"a", "b"}, nil)
	got := resultOf(t, prog, inputsOf(map[string]uint64{"a": 3, "b": 5}))

	// ((3+5)*3 - 5) / 3 = 19/3 in the field
	var want, three fr.Element
	want.SetUint64(19)
	three.SetUint64(3)
	want.Div(&want, &three)
	assert.True(t, got.Equal(&want))
}

func TestEvaluateDivisionByZero(t *testing.T) {
	prog := mustLower(t, "a / b", []string{"a", "b"}, nil)
	_, err := Evaluate(prog, inputsOf(map[string]uint64{"a": 1, "b": 0}))
	require.Error(t, err)
	ee, ok := err.(*EvalError)
	require.True(t, ok)
	assert.Equal(t, EvalDivisionByZero, ee.Kind)
	assert.Equal(t, "b", ee.Name)
}

func TestEvaluateMuxSelectsOnExactOne(t *testing.T) {
	prog := mustLower(t, "mux(c, t, f)", []string{"c", "t", "f"}, nil)

	got := resultOf(t, prog, inputsOf(map[string]uint64{"c": 1, "t": 10, "f": 20}))
	assert.Equal(t, uint64(10), got.Uint64())

	got = resultOf(t, prog, inputsOf(map[string]uint64{"c": 0, "t": 10, "f": 20}))
	assert.Equal(t, uint64(20), got.Uint64())

	// Any non-one selector takes the false arm; no error is raised.
	got = resultOf(t, prog, inputsOf(map[string]uint64{"c": 7, "t": 10, "f": 20}))
	assert.Equal(t, uint64(20), got.Uint64())
}

func TestEvaluateBooleansAndComparisons(t *testing.T) {
	prog := mustLower(t, "(a < b) && !(a == b)", []string{"a", "b"}, nil)
	got := resultOf(t, prog, inputsOf(map[string]uint64{"a": 2, "b": 9}))
	assert.Equal(t, uint64(1), got.Uint64())

	got = resultOf(t, prog, inputsOf(map[string]uint64{"a": 9, "b": 2}))
	assert.Equal(t, uint64(0), got.Uint64())

	prog = mustLower(t, "(a <= b) || (a != b)", []string{"a", "b"}, nil)
	got = resultOf(t, prog, inputsOf(map[string]uint64{"a": 4, "b": 4}))
	assert.Equal(t, uint64(1), got.Uint64())
}

func TestEvaluateAssertFailureNamesVariable(t *testing.T) {
	prog := mustLower(t, "assert(ok)", []string{"ok"}, nil)
	_, err := Evaluate(prog, inputsOf(map[string]uint64{"ok": 2}))
	require.Error(t, err)
	ee := err.(*EvalError)
	assert.Equal(t, EvalAssertFailed, ee.Kind)
	assert.Equal(t, "ok", ee.Name)

	prog = mustLower(t, "assert_eq(a * b, c)", []string{"a", "b", "c"}, nil)
	_, err = Evaluate(prog, inputsOf(map[string]uint64{"a": 6, "b": 7, "c": 43}))
	require.Error(t, err)
	assert.Equal(t, EvalAssertEqFailed, err.(*EvalError).Kind)

	_, err = Evaluate(prog, inputsOf(map[string]uint64{"a": 6, "b": 7, "c": 42}))
	assert.NoError(t, err)
}

func TestEvaluateRangeCheck(t *testing.T) {
	prog := mustLower(t, "range_check(x, 8)", []string{"x"}, nil)

	_, err := Evaluate(prog, inputsOf(map[string]uint64{"x": 255}))
	assert.NoError(t, err)

	_, err = Evaluate(prog, inputsOf(map[string]uint64{"x": 256}))
	require.Error(t, err)
	assert.Equal(t, EvalRangeCheckFailed, err.(*EvalError).Kind)
}

func TestEvaluateMissingInput(t *testing.T) {
	prog := mustLower(t, "assert_eq(a, b)", []string{"a"}, []string{"b"})
	_, err := Evaluate(prog, inputsOf(map[string]uint64{"a": 1}))
	require.Error(t, err)
	ee := err.(*EvalError)
	assert.Equal(t, EvalMissingInput, ee.Kind)
	assert.Equal(t, "b", ee.Name)
}

func TestEvaluatePoseidonMatchesNative(t *testing.T) {
	prog := mustLower(t, "poseidon(l, r)", []string{"l", "r"}, nil)
	inputs := inputsOf(map[string]uint64{"l": 11, "r": 22})
	got := resultOf(t, prog, inputs)

	want := poseidon.NewParameters().Hash(inputs["l"], inputs["r"])
	assert.True(t, got.Equal(&want))
}

func TestEvaluateMerkleRoundTrip(t *testing.T) {
	params := poseidon.NewParameters()

	var leaf, sib fr.Element
	leaf.SetUint64(5)
	sib.SetUint64(9)
	root := params.Hash(sib, leaf) // leaf on the right: dir = 1

	prog := mustLower(t, "merkle_verify(root, leaf, path, dir)",
		[]string{"root"}, []string{"leaf", "path[1]", "dir[1]"})

	inputs := map[string]fr.Element{
		"root":    root,
		"leaf":    leaf,
		"path[0]": sib,
	}
	var one fr.Element
	one.SetOne()
	inputs["dir[0]"] = one

	_, err := Evaluate(prog, inputs)
	assert.NoError(t, err)

	inputs["dir[0]"] = fr.Element{}
	_, err = Evaluate(prog, inputs)
	require.Error(t, err)
	assert.Equal(t, EvalAssertEqFailed, err.(*EvalError).Kind)
}
