package export

import (
	"encoding/binary"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/achronyme/zkc/r1cs"
)

func elem(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// a*b = c with c public: wires [ONE, c, a, b].
func mulCircuit() *r1cs.System {
	cs := r1cs.NewSystem()
	c := cs.AllocPublic()
	a := cs.AllocWitness()
	b := cs.AllocWitness()
	cs.Enforce(
		r1cs.LCFromVariable(a),
		r1cs.LCFromVariable(b),
		r1cs.LCFromVariable(c),
	)
	return cs
}

func u32At(data []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(data[off : off+4])
}

func u64At(data []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(data[off : off+8])
}

func TestR1CSMagicAndVersion(t *testing.T) {
	data := WriteR1CS(mulCircuit())
	assert.Equal(t, []byte("r1cs"), data[0:4])
	assert.Equal(t, uint32(1), u32At(data, 4))
	assert.Equal(t, uint32(3), u32At(data, 8))
}

func TestR1CSHeader(t *testing.T) {
	data := WriteR1CS(mulCircuit())

	assert.Equal(t, uint32(1), u32At(data, 12))
	require.Equal(t, uint64(64), u64At(data, 16))

	body := data[24 : 24+64]
	assert.Equal(t, uint32(32), u32At(body, 0))
	assert.Equal(t, primeLE[:], body[4:36])
	assert.Equal(t, uint32(4), u32At(body, 36)) // ONE, c, a, b
	assert.Equal(t, uint32(1), u32At(body, 40)) // nPubOut: c
	assert.Equal(t, uint32(0), u32At(body, 44)) // nPubIn
	assert.Equal(t, uint32(2), u32At(body, 48)) // nPrvIn: a, b
	assert.Equal(t, uint64(4), u64At(body, 52)) // nLabels
	assert.Equal(t, uint32(1), u32At(body, 60)) // constraints
}

func TestR1CSConstraintSection(t *testing.T) {
	data := WriteR1CS(mulCircuit())

	// Section 2 starts after the 12-byte file header plus section 1's
	// 12-byte section header and 64-byte body.
	sec2 := 12 + 12 + 64
	assert.Equal(t, uint32(2), u32At(data, sec2))
	require.Equal(t, uint64(3*(4+4+32)), u64At(data, sec2+4))

	body := sec2 + 12
	// A: one term, wire 2 (a), coefficient one.
	assert.Equal(t, uint32(1), u32At(data, body))
	assert.Equal(t, uint32(2), u32At(data, body+4))
	one := elem(1)
	var wantOne OutputBuf
	wantOne.AppendElement(&one)
	assert.Equal(t, wantOne.Bytes(), data[body+8:body+40])

	// B: wire 3 (b); C: wire 1 (c).
	bOff := body + 40
	assert.Equal(t, uint32(1), u32At(data, bOff))
	assert.Equal(t, uint32(3), u32At(data, bOff+4))
	cOff := bOff + 40
	assert.Equal(t, uint32(1), u32At(data, cOff))
	assert.Equal(t, uint32(1), u32At(data, cOff+4))
}

func TestR1CSWireToLabelIdentity(t *testing.T) {
	data := WriteR1CS(mulCircuit())

	sec3 := 12 + 12 + 64 + 12 + 120
	assert.Equal(t, uint32(3), u32At(data, sec3))
	require.Equal(t, uint64(4*8), u64At(data, sec3+4))

	body := sec3 + 12
	for i := 0; i < 4; i++ {
		assert.Equal(t, uint64(i), u64At(data, body+i*8))
	}
}

func TestR1CSConstantTermsOnWireZero(t *testing.T) {
	cs := r1cs.NewSystem()
	x := cs.AllocWitness()
	// x * 1 = 5: the constant sides live on wire 0.
	cs.Enforce(
		r1cs.LCFromVariable(x),
		r1cs.LCFromConstant(elem(1)),
		r1cs.LCFromConstant(elem(5)),
	)
	data := WriteR1CS(cs)

	sec2 := 12 + 12 + 64
	body := sec2 + 12
	assert.Equal(t, uint32(1), u32At(data, body))
	assert.Equal(t, uint32(1), u32At(data, body+4)) // x
	bOff := body + 40
	assert.Equal(t, uint32(1), u32At(data, bOff))
	assert.Equal(t, uint32(0), u32At(data, bOff+4)) // wire 0
}

func TestWitnessFormat(t *testing.T) {
	witness := []fr.Element{elem(1), elem(42), elem(6), elem(7)}
	data := WriteWitness(witness)

	assert.Equal(t, []byte("wtns"), data[0:4])
	assert.Equal(t, uint32(2), u32At(data, 4))
	assert.Equal(t, uint32(2), u32At(data, 8))

	// Section 1 body: field size, prime, count.
	body := data[24:]
	assert.Equal(t, uint32(32), u32At(body, 0))
	assert.Equal(t, primeLE[:], body[4:36])
	assert.Equal(t, uint32(4), u32At(body, 36))

	// Section 2 values: 24 + 40 (header body) + 12 (section header).
	values := 24 + 40 + 12
	require.Equal(t, uint64(4*32), u64At(data, values-8))
	var oneBytes [32]byte
	oneBytes[0] = 1
	assert.Equal(t, oneBytes[:], data[values:values+32])

	in := NewInputBuf(data[values:])
	for i := range witness {
		got, err := in.ReadElement()
		require.NoError(t, err)
		assert.True(t, got.Equal(&witness[i]), "value %d", i)
	}
}

func TestBufRoundTrip(t *testing.T) {
	var out OutputBuf
	out.AppendUint32(7)
	out.AppendUint64(1 << 40)
	e := elem(123456789)
	out.AppendElement(&e)

	in := NewInputBuf(out.Bytes())
	assert.Equal(t, uint32(7), in.ReadUint32())
	assert.Equal(t, uint64(1)<<40, in.ReadUint64())
	got, err := in.ReadElement()
	require.NoError(t, err)
	assert.True(t, got.Equal(&e))
	assert.Equal(t, 0, in.Remaining())
}
