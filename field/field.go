// Package field provides small helpers over the BN254 scalar field, which
// is the only field the compiler targets. Backends and the evaluator share
// these so that bit-level views of a value are computed one way everywhere.
package field

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// MaxRangeBits is the widest range check the backends emit. One value bit
// below the 254-bit modulus, so 2^MaxRangeBits never wraps.
const MaxRangeBits = 252

// powersOfTwo caches 2^0 .. 2^(MaxRangeBits+1); the comparison gadget needs
// one bit beyond MaxRangeBits for its shifted difference.
var powersOfTwo [MaxRangeBits + 2]fr.Element

func init() {
	powersOfTwo[0].SetOne()
	for i := 1; i < len(powersOfTwo); i++ {
		powersOfTwo[i].Double(&powersOfTwo[i-1])
	}
}

// PowerOfTwo returns 2^n. n must be at most MaxRangeBits+1.
func PowerOfTwo(n uint32) fr.Element {
	return powersOfTwo[n]
}

// One returns the field element 1.
func One() fr.Element {
	var one fr.Element
	one.SetOne()
	return one
}

// Bit returns bit i of v's canonical (non-Montgomery) representation.
func Bit(v *fr.Element, i uint32) uint64 {
	limbs := v.Bits()
	li := int(i / 64)
	if li >= len(limbs) {
		return 0
	}
	return (limbs[li] >> (i % 64)) & 1
}

// FitsInBits reports whether v's canonical value is below 2^bits.
func FitsInBits(v *fr.Element, bits uint32) bool {
	if bits >= fr.Bits {
		return true
	}
	limbs := v.Bits()
	for i := 0; i < len(limbs); i++ {
		lo := uint32(i) * 64
		if lo >= bits {
			if limbs[i] != 0 {
				return false
			}
			continue
		}
		if rem := bits - lo; rem < 64 && limbs[i]>>rem != 0 {
			return false
		}
	}
	return true
}

// FromDecimal parses a base-10 integer literal, reduced modulo the field
// prime. Returns false if s is not a valid integer.
func FromDecimal(s string) (fr.Element, bool) {
	var e fr.Element
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return e, false
	}
	e.SetBigInt(n)
	return e, true
}
