package zkc

import (
	"fmt"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/zkc/ir"
	"github.com/achronyme/zkc/poseidon"
)

func elem(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

func TestCompileEndToEnd(t *testing.T) {
	res, w, err := CompileWithWitness(
		"assert_eq(x * y, z)",
		[]string{"z"}, []string{"x", "y"},
		map[string]fr.Element{"x": elem(6), "y": elem(7), "z": elem(42)},
	)
	require.NoError(t, err)
	assert.NoError(t, res.CS.Verify(w))
	assert.Equal(t, []string{"z"}, res.PublicInputs)
	assert.Empty(t, res.Warnings)
	assert.Len(t, res.Taints, int(res.Program.NextVar))
}

func TestCompileRejectsFailingInputs(t *testing.T) {
	_, _, err := CompileWithWitness(
		"assert_eq(x * y, z)",
		[]string{"z"}, []string{"x", "y"},
		map[string]fr.Element{"x": elem(6), "y": elem(7), "z": elem(43)},
	)
	require.Error(t, err)
	var ee *ir.EvalError
	assert.ErrorAs(t, err, &ee)
}

func TestCompileSelfContained(t *testing.T) {
	src := `
public z
witness x
witness y
assert_eq(x * y, z)
`
	res, err := CompileSelfContained(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, res.PublicInputs)
	assert.Equal(t, []string{"x", "y"}, res.Witnesses)
}

func TestCompilePublicWiresFirstRegardlessOfDeclarationOrder(t *testing.T) {
	// The witness is declared before the public input in the source; the
	// public wire must still come first.
	src := `
witness x
public y
assert_eq(x + x, y)
`
	res, err := CompileSelfContained(src)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CS.NbPublicInputs())
	assert.Equal(t, []string{"y"}, res.PublicInputs)

	w, err := res.Compiler.GenerateWitness(map[string]fr.Element{
		"x": elem(3), "y": elem(6),
	})
	require.NoError(t, err)
	// Wire 0 is ONE, wire 1 the public y.
	six := elem(6)
	assert.True(t, w[1].Equal(&six))
	assert.NoError(t, res.CS.Verify(w))
}

func TestCompileReportsTaintWarnings(t *testing.T) {
	res, err := Compile("let y = a * b\ny", []string{"a"}, []string{"b", "c"})
	require.NoError(t, err)

	byName := make(map[string]ir.WarningKind)
	for _, w := range res.Warnings {
		byName[w.Name] = w.Kind
	}
	assert.Equal(t, ir.WarnUnusedInput, byName["c"])
	assert.Equal(t, ir.WarnUnderConstrained, byName["a"])
	assert.Equal(t, ir.WarnUnderConstrained, byName["b"])
	assert.Len(t, res.Warnings, 3)
}

// merkleTree computes an 8-leaf Poseidon tree and returns the root plus
// the authentication path for a position: bottom-up siblings and, per
// level, 1 when the current node is the right child.
func merkleTree(params *poseidon.Parameters, leaves []fr.Element, pos int) (fr.Element, []fr.Element, []uint64) {
	level := append([]fr.Element(nil), leaves...)
	idx := pos
	var path []fr.Element
	var dir []uint64

	for len(level) > 1 {
		if idx%2 == 1 {
			path = append(path, level[idx-1])
			dir = append(dir, 1)
		} else {
			path = append(path, level[idx+1])
			dir = append(dir, 0)
		}
		next := make([]fr.Element, len(level)/2)
		for i := range next {
			next[i] = params.Hash(level[2*i], level[2*i+1])
		}
		level = next
		idx /= 2
	}
	return level[0], path, dir
}

func TestMerkleMembershipAllPositions(t *testing.T) {
	params := poseidon.NewParameters()
	leaves := make([]fr.Element, 8)
	for i := range leaves {
		leaves[i] = elem(uint64(1000 + i))
	}

	const src = "merkle_verify(root, leaf, path, dir)"
	public := []string{"root"}
	witness := []string{"leaf", "path[3]", "dir[3]"}

	for pos := 0; pos < 8; pos++ {
		root, path, dir := merkleTree(params, leaves, pos)

		inputs := map[string]fr.Element{"root": root, "leaf": leaves[pos]}
		for i := 0; i < 3; i++ {
			inputs[fmt.Sprintf("path[%d]", i)] = path[i]
			inputs[fmt.Sprintf("dir[%d]", i)] = elem(dir[i])
		}

		res, w, err := CompileWithWitness(src, public, witness, inputs)
		require.NoError(t, err, "position %d", pos)
		assert.NoError(t, res.CS.Verify(w), "position %d", pos)

		// A wrong leaf must fail witness generation eagerly.
		bad := make(map[string]fr.Element, len(inputs))
		for k, v := range inputs {
			bad[k] = v
		}
		bad["leaf"] = elem(31337)
		_, _, err = CompileWithWitness(src, public, witness, bad)
		require.Error(t, err, "position %d", pos)
		var ee *ir.EvalError
		assert.ErrorAs(t, err, &ee)
	}
}

func TestMerkleNegativeWitnessUnsatisfied(t *testing.T) {
	// Build the witness for a valid opening, then corrupt the public root
	// wire directly: the constraint system itself must reject it.
	params := poseidon.NewParameters()
	leaves := make([]fr.Element, 8)
	for i := range leaves {
		leaves[i] = elem(uint64(i + 1))
	}
	root, path, dir := merkleTree(params, leaves, 5)

	inputs := map[string]fr.Element{"root": root, "leaf": leaves[5]}
	for i := 0; i < 3; i++ {
		inputs[fmt.Sprintf("path[%d]", i)] = path[i]
		inputs[fmt.Sprintf("dir[%d]", i)] = elem(dir[i])
	}

	res, w, err := CompileWithWitness("merkle_verify(root, leaf, path, dir)",
		[]string{"root"}, []string{"leaf", "path[3]", "dir[3]"}, inputs)
	require.NoError(t, err)
	require.NoError(t, res.CS.Verify(w))

	w[1] = elem(999) // public root wire
	assert.Error(t, res.CS.Verify(w))
}

func TestCompileUnrollBoundary(t *testing.T) {
	atCap := "let s = 1\nfor i in 0..10000 { poseidon(s, i) }\ns"
	// Lowering accepts the cap; DCE removes the unused hashes so the
	// backend never sees them.
	_, err := Compile(atCap, nil, nil)
	require.NoError(t, err)

	overCap := "for i in 0..10001 { i }\n1"
	_, err = Compile(overCap, nil, nil)
	require.Error(t, err)
	var le *ir.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ir.ErrUnboundedLoop, le.Code)
}

// The soundness property: whatever the inputs, a witness produced by the
// compiler satisfies every constraint of the system it was produced for.
func TestCompilerSoundnessProperty(t *testing.T) {
	sources := []string{
		"a * b + c",
		"let t = a + b * 3\nt * t - c",
		"mux(a == b, a * c, b + c)",
		"let q = a / (b + 1)\nq * (b + 1)",
		"(a < b) + (a <= b) + (a != c)",
		"poseidon(a, b) + c",
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)
	properties.Property("generated witness satisfies the system", prop.ForAll(
		func(which int, a, b, c uint64) bool {
			src := sources[which%len(sources)]
			res, w, err := CompileWithWitness(src, []string{"a"}, []string{"b", "c"},
				map[string]fr.Element{"a": elem(a), "b": elem(b), "c": elem(c)})
			if err != nil {
				return false
			}
			return res.CS.Verify(w) == nil
		},
		gen.IntRange(0, len(sources)-1),
		gen.UInt64(),
		gen.UInt64(),
		gen.UInt64(),
	))
	properties.TestingRun(t)
}
