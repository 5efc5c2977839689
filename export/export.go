package export

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/achronyme/zkc/r1cs"
)

// primeLE is the BN254 scalar field prime in 32-byte little-endian form,
// as the snarkjs headers carry it.
var primeLE [32]byte

func init() {
	fr.Modulus().FillBytes(primeLE[:])
	for i, j := 0, len(primeLE)-1; i < j; i, j = i+1, j-1 {
		primeLE[i], primeLE[j] = primeLE[j], primeLE[i]
	}
}

func appendLC(out *OutputBuf, lc r1cs.LinearCombination) {
	out.AppendUint32(uint32(len(lc)))
	for i := range lc {
		out.AppendUint32(uint32(lc[i].Variable.Index()))
		out.AppendElement(&lc[i].Coeff)
	}
}

// WriteR1CS serializes a constraint system to the .r1cs binary format,
// version 1, with three sections: header, constraints, wire-to-label map.
//
// The wire layout is [ONE, pub1..pubN, wit1..witM, intermediates...]. The
// declared public inputs are exported as public outputs (nPubOut); the
// format's separate nPubIn count stays zero.
func WriteR1CS(cs *r1cs.System) []byte {
	nWires := uint32(cs.NbVariables())
	nPubOut := uint32(cs.NbPublicInputs())
	nPrvIn := nWires - 1 - nPubOut
	nConstraints := uint32(cs.NbConstraints())

	var out OutputBuf
	out.AppendBytes([]byte("r1cs"))
	out.AppendUint32(1) // version
	out.AppendUint32(3) // sections

	var header OutputBuf
	header.AppendUint32(32) // field size
	header.AppendBytes(primeLE[:])
	header.AppendUint32(nWires)
	header.AppendUint32(nPubOut)
	header.AppendUint32(0) // nPubIn
	header.AppendUint32(nPrvIn)
	header.AppendUint64(uint64(nWires)) // nLabels
	header.AppendUint32(nConstraints)

	out.AppendUint32(1)
	out.AppendUint64(uint64(header.Len()))
	out.AppendBytes(header.Bytes())

	var body OutputBuf
	for _, c := range cs.Constraints() {
		appendLC(&body, c.A)
		appendLC(&body, c.B)
		appendLC(&body, c.C)
	}

	out.AppendUint32(2)
	out.AppendUint64(uint64(body.Len()))
	out.AppendBytes(body.Bytes())

	out.AppendUint32(3)
	out.AppendUint64(uint64(nWires) * 8)
	for i := uint32(0); i < nWires; i++ {
		out.AppendUint64(uint64(i))
	}

	return out.Bytes()
}

// WriteWitness serializes a witness vector to the .wtns binary format,
// version 2, with two sections: header and values. witness[0] must be the
// constant one wire.
func WriteWitness(witness []fr.Element) []byte {
	var out OutputBuf
	out.AppendBytes([]byte("wtns"))
	out.AppendUint32(2) // version
	out.AppendUint32(2) // sections

	var header OutputBuf
	header.AppendUint32(32) // field size
	header.AppendBytes(primeLE[:])
	header.AppendUint32(uint32(len(witness)))

	out.AppendUint32(1)
	out.AppendUint64(uint64(header.Len()))
	out.AppendBytes(header.Bytes())

	out.AppendUint32(2)
	out.AppendUint64(uint64(len(witness)) * 32)
	for i := range witness {
		out.AppendElement(&witness[i])
	}

	return out.Bytes()
}
