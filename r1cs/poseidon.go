package r1cs

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/achronyme/zkc/poseidon"
)

// Poseidon synthesis. Linear layers (round constants, MDS) fold into LCs
// for free; only S-boxes and materializations cost constraints. For the
// t=3, RF=8, RP=57 parameter set this comes to exactly 360 per hash:
// 72 full-round S-box constraints, 171 partial-round S-box constraints,
// 114 partial-round materializations and 3 output materializations.

// sboxCircuit constrains x^5 with three multiplications and returns the
// wire holding the result.
func sboxCircuit(cs *System, x LinearCombination) Variable {
	x2 := cs.MulLC(x, x)
	x2lc := LCFromVariable(x2)
	x4 := cs.MulLC(x2lc, x2lc)
	return cs.MulLC(LCFromVariable(x4), x)
}

// permutationCircuit synthesizes the full permutation over the input wires
// and returns the output state wires.
//
// Partial rounds materialize state[1..] each round: left as pure LC algebra
// the term count doubles every round (f(n) = 2f(n-1)+3), so pinning the
// linear parts to wires keeps every LC a handful of terms.
func permutationCircuit(cs *System, params *poseidon.Parameters, inputs []Variable) []Variable {
	totalRounds := params.RF + params.RP
	halfF := params.RF / 2

	state := make([]LinearCombination, params.T)
	for i, v := range inputs {
		state[i] = LCFromVariable(v)
	}

	for r := 0; r < totalRounds; r++ {
		for i := 0; i < params.T; i++ {
			state[i] = state[i].Add(LCFromConstant(params.RoundConstants[r*params.T+i]))
		}

		if r < halfF || r >= halfF+params.RP {
			for i := 0; i < params.T; i++ {
				state[i] = LCFromVariable(sboxCircuit(cs, state[i]))
			}
		} else {
			state[0] = LCFromVariable(sboxCircuit(cs, state[0]))
		}

		old := make([]LinearCombination, params.T)
		copy(old, state)
		for i := 0; i < params.T; i++ {
			var acc LinearCombination
			for j := 0; j < params.T; j++ {
				acc = acc.Add(old[j].Scale(params.Mds[i][j]))
			}
			state[i] = acc
		}

		if r >= halfF && r < halfF+params.RP {
			for i := 1; i < params.T; i++ {
				v := cs.AllocWitness()
				cs.EnforceEqual(state[i], LCFromVariable(v))
				state[i] = LCFromVariable(v)
			}
		}
	}

	outputs := make([]Variable, params.T)
	for i := 0; i < params.T; i++ {
		out := cs.AllocWitness()
		cs.EnforceEqual(state[i], LCFromVariable(out))
		outputs[i] = out
	}
	return outputs
}

// hashCircuit synthesizes the 2-to-1 hash and returns the output wire.
// The capacity wire carries 0 in the witness; nothing constrains it because
// it only ever feeds LCs whose values the output materializations pin down.
func hashCircuit(cs *System, params *poseidon.Parameters, left, right Variable) Variable {
	capacity := cs.AllocWitness()
	outputs := permutationCircuit(cs, params, []Variable{capacity, left, right})
	return outputs[1]
}

// fillPoseidonWitness assigns every wire hashCircuit allocated, replaying
// the permutation natively. The assignment order must match the circuit's
// allocation order wire for wire: capacity first, then per S-box x2, x4,
// x5, then the two materialized state wires of each partial round, then
// the three output wires.
func fillPoseidonWitness(witness []fr.Element, params *poseidon.Parameters, left, right Variable, start, count int) {
	totalRounds := params.RF + params.RP
	halfF := params.RF / 2

	idx := start
	witness[idx].SetZero() // capacity
	idx++

	state := make([]fr.Element, params.T)
	state[1] = witness[left.Index()]
	state[2] = witness[right.Index()]

	sboxFill := func(x fr.Element) fr.Element {
		var x2, x4, x5 fr.Element
		x2.Square(&x)
		witness[idx] = x2
		idx++
		x4.Square(&x2)
		witness[idx] = x4
		idx++
		x5.Mul(&x4, &x)
		witness[idx] = x5
		idx++
		return x5
	}

	old := make([]fr.Element, params.T)
	var tmp fr.Element
	for r := 0; r < totalRounds; r++ {
		for i := 0; i < params.T; i++ {
			state[i].Add(&state[i], &params.RoundConstants[r*params.T+i])
		}

		if r < halfF || r >= halfF+params.RP {
			for i := 0; i < params.T; i++ {
				state[i] = sboxFill(state[i])
			}
		} else {
			state[0] = sboxFill(state[0])
		}

		copy(old, state)
		for i := 0; i < params.T; i++ {
			state[i].SetZero()
			for j := 0; j < params.T; j++ {
				tmp.Mul(&params.Mds[i][j], &old[j])
				state[i].Add(&state[i], &tmp)
			}
		}

		if r >= halfF && r < halfF+params.RP {
			for i := 1; i < params.T; i++ {
				witness[idx] = state[i]
				idx++
			}
		}
	}

	for i := 0; i < params.T; i++ {
		witness[idx] = state[i]
		idx++
	}

	if idx-start != count {
		panic("poseidon witness fill out of step with circuit allocation")
	}
}
