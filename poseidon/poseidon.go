// Package poseidon implements the Poseidon permutation over the BN254
// scalar field with t=3, 8 full rounds and 57 partial rounds (S-box x^5).
//
// The same parameters drive both the native hash here and the R1CS/Plonkish
// gadgets; if they ever diverge, proofs stop verifying.
//
// Round constants come from a deterministic PRG seeded with a fixed
// constant. For interoperability with circomlib, swap in the Grain LFSR
// constants.
package poseidon

import "github.com/consensys/gnark-crypto/ecc/bn254/fr"

// prgSeed seeds the round-constant recurrence (golden ratio * 2^64).
const prgSeed = 0x9e3779b97f4a7c15

// Parameters holds the permutation parameters: state width, round counts,
// round constants ((RF+RP)*T elements) and the T×T MDS matrix.
type Parameters struct {
	T  int
	RF int
	RP int

	RoundConstants []fr.Element
	Mds            [][]fr.Element
}

// NewParameters builds the standard BN254 t=3 parameter set.
//
// The MDS matrix is a Cauchy construction M[i][j] = 1/(x_i + y_j) with
// x = [0,1,2], y = [3,4,5]. Round constants follow the recurrence
// rc_0 = seed, rc_{n+1} = rc_n * seed + 7.
func NewParameters() *Parameters {
	const t, rf, rp = 3, 8, 57
	totalRounds := rf + rp

	mds := make([][]fr.Element, t)
	for i := 0; i < t; i++ {
		mds[i] = make([]fr.Element, t)
		for j := 0; j < t; j++ {
			// i + j + t >= 3, never zero in the field
			mds[i][j].SetUint64(uint64(i + j + t))
			mds[i][j].Inverse(&mds[i][j])
		}
	}

	var seed fr.Element
	seed.SetUint64(prgSeed)
	var offset fr.Element
	offset.SetUint64(7)

	rc := make([]fr.Element, totalRounds*t)
	current := seed
	for i := range rc {
		rc[i] = current
		current.Mul(&current, &seed).Add(&current, &offset)
	}

	return &Parameters{
		T:              t,
		RF:             rf,
		RP:             rp,
		RoundConstants: rc,
		Mds:            mds,
	}
}

// sbox computes x^5 in place.
func sbox(x *fr.Element) {
	var x2, x4 fr.Element
	x2.Square(x)
	x4.Square(&x2)
	x.Mul(&x4, x)
}

// Permute applies the full permutation to state in place.
// len(state) must equal p.T.
func (p *Parameters) Permute(state []fr.Element) {
	totalRounds := p.RF + p.RP
	halfF := p.RF / 2

	old := make([]fr.Element, p.T)
	var tmp fr.Element
	for r := 0; r < totalRounds; r++ {
		for i := 0; i < p.T; i++ {
			state[i].Add(&state[i], &p.RoundConstants[r*p.T+i])
		}

		if r < halfF || r >= halfF+p.RP {
			for i := 0; i < p.T; i++ {
				sbox(&state[i])
			}
		} else {
			sbox(&state[0])
		}

		copy(old, state)
		for i := 0; i < p.T; i++ {
			state[i].SetZero()
			for j := 0; j < p.T; j++ {
				tmp.Mul(&p.Mds[i][j], &old[j])
				state[i].Add(&state[i], &tmp)
			}
		}
	}
}

// Hash computes the 2-to-1 hash: state [0, left, right], output state[1].
func (p *Parameters) Hash(left, right fr.Element) fr.Element {
	state := make([]fr.Element, p.T)
	state[1] = left
	state[2] = right
	p.Permute(state)
	return state[1]
}

// HashSingle hashes one element: state [0, input, 0], output state[1].
func (p *Parameters) HashSingle(input fr.Element) fr.Element {
	state := make([]fr.Element, p.T)
	state[1] = input
	p.Permute(state)
	return state[1]
}
