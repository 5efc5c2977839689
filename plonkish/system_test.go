package plonkish

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/zkc/field"
)

func elem(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

func TestExpressionEvaluate(t *testing.T) {
	sys := NewSystem(4)
	col := sys.AllocAdvice()
	sys.Set(col, 0, elem(3))
	sys.Set(col, 1, elem(5))

	// 2*x + 1 at row 0
	e := Constant(elem(2)).Mul(Cell(col, 0)).Add(Constant(elem(1)))
	got := e.Evaluate(sys.Assignments, 0, sys.NumRows)
	want := elem(7)
	assert.True(t, got.Equal(&want))

	// Rotation +1 wraps at the grid height: row 3 reads row 0.
	rot := Cell(col, 1)
	got = rot.Evaluate(sys.Assignments, 0, sys.NumRows)
	want = elem(5)
	assert.True(t, got.Equal(&want))
	got = rot.Evaluate(sys.Assignments, 3, sys.NumRows)
	want = elem(3)
	assert.True(t, got.Equal(&want))
}

func TestGateVerify(t *testing.T) {
	sys := NewSystem(2)
	sel := sys.AllocFixed()
	x := sys.AllocAdvice()
	y := sys.AllocAdvice()

	// sel * (x - y) = 0
	sys.RegisterGate("eq", Cell(sel, 0).Mul(Cell(x, 0).Sub(Cell(y, 0))))

	sys.Set(sel, 0, field.One())
	sys.Set(x, 0, elem(4))
	sys.Set(y, 0, elem(4))
	// Row 1 has sel = 0, so the mismatched values there are fine.
	sys.Set(x, 1, elem(1))
	sys.Set(y, 1, elem(2))
	require.NoError(t, sys.Verify())

	sys.Set(y, 0, elem(5))
	err := sys.Verify()
	require.Error(t, err)
	ge, ok := err.(*GateError)
	require.True(t, ok)
	assert.Equal(t, "eq", ge.Gate)
	assert.Equal(t, 0, ge.Row)
}

func TestCopyConstraints(t *testing.T) {
	sys := NewSystem(2)
	x := sys.AllocAdvice()
	y := sys.AllocAdvice()
	sys.AddCopy(CellRef{x, 0}, CellRef{y, 1})

	sys.Set(x, 0, elem(9))
	sys.Set(y, 1, elem(9))
	require.NoError(t, sys.Verify())

	sys.Set(y, 1, elem(8))
	err := sys.Verify()
	require.Error(t, err)
	_, ok := err.(*CopyError)
	assert.True(t, ok)
}

func TestLookupWithSelector(t *testing.T) {
	sys := NewSystem(4)
	sel := sys.AllocFixed()
	tbl := sys.AllocFixed()
	x := sys.AllocAdvice()

	for i := 0; i < 4; i++ {
		sys.Set(tbl, i, elem(uint64(i)))
	}
	sys.RegisterLookupWithSelector("range",
		[]*Expression{Cell(x, 0)}, []*Expression{Cell(tbl, 0)}, Cell(sel, 0))

	// Active row with value zero: the selector keeps it checked, and zero
	// is in the table.
	sys.Set(sel, 0, field.One())
	sys.Set(x, 0, elem(0))
	// Inactive row with an out-of-table value is skipped.
	sys.Set(x, 1, elem(99))
	require.NoError(t, sys.Verify())

	sys.Set(sel, 1, field.One())
	err := sys.Verify()
	require.Error(t, err)
	le, ok := err.(*LookupError)
	require.True(t, ok)
	assert.Equal(t, 1, le.Row)
}

func TestLookupWithoutSelectorSkipsZeroRows(t *testing.T) {
	sys := NewSystem(4)
	tbl := sys.AllocFixed()
	x := sys.AllocAdvice()

	// Table {1, 2, 3}: zero is deliberately absent so padding rows only
	// pass via the all-zero skip.
	for i := 0; i < 3; i++ {
		sys.Set(tbl, i, elem(uint64(i+1)))
	}
	sys.RegisterLookup("vals", []*Expression{Cell(x, 0)}, []*Expression{Cell(tbl, 0)})

	sys.Set(x, 0, elem(2))
	require.NoError(t, sys.Verify())

	sys.Set(x, 1, elem(7))
	assert.Error(t, sys.Verify())
}

func TestAssignmentsGrow(t *testing.T) {
	a := NewAssignments()
	col := Column{Kind: Advice, Index: 0}

	a.Set(col, 10, elem(5))
	got := a.Get(col, 10)
	want := elem(5)
	assert.True(t, got.Equal(&want))
	unset := a.Get(col, 3)
	assert.True(t, unset.IsZero())
	past := a.Get(col, 100)
	assert.True(t, past.IsZero())

	a.EnsureRows(200)
	grown := a.Get(col, 150)
	assert.True(t, grown.IsZero())
}
