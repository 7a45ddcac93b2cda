package ringmath

import "ethpir/pirparams"

// GadgetDecompose splits every coefficient of a coefficient-form Element
// into p.GadgetLen signed digits base p.GadgetBase, with |digit| < base.
// This is the textbook single-modulus decomposition that key-switching
// and external-product need; it is independent of lattigo's own
// RNS-based key-switch decomposition, which operates across CRT primes
// rather than digits of one modulus.
func (e *Engine) GadgetDecompose(el *Element, p pirparams.Params) ([]*Element, error) {
	if el.Form != Coefficient {
		return nil, ErrFormMismatch
	}
	digits := make([]*Element, p.GadgetLen)
	for i := range digits {
		digits[i] = e.NewElement(Coefficient)
	}
	q := p.Q
	base := p.GadgetBase
	half := q / 2
	for j, c := range el.Coeffs {
		// Center c into (-q/2, q/2] so the digit expansion has small
		// magnitude digits rather than digits of an unsigned residue.
		signed := int64(c)
		if c > half {
			signed = int64(c) - int64(q)
		}
		rem := signed
		for i := uint32(0); i < p.GadgetLen; i++ {
			d := rem % int64(base)
			// Balance the digit into [-base/2, base/2].
			if d > int64(base/2) {
				d -= int64(base)
				rem += int64(base)
			} else if d < -int64(base/2) {
				d += int64(base)
				rem -= int64(base)
			}
			rem /= int64(base)
			digits[i].Coeffs[j] = modQ(d, q)
		}
	}
	return digits, nil
}

// GadgetRecompose inverts GadgetDecompose: sum_i digits[i] * base^i mod q,
// coefficient-wise. Used by tests to check the decomposition is lossless,
// and conceptually describes what key-switching's inner product against
// a gadget ciphertext implements.
func (e *Engine) GadgetRecompose(digits []*Element, p pirparams.Params) *Element {
	out := e.NewElement(Coefficient)
	base := p.GadgetBase
	for j := range out.Coeffs {
		var acc int64
		pow := uint64(1)
		for i := 0; i < len(digits); i++ {
			d := digits[i].Coeffs[j]
			signed := int64(d)
			if d > p.Q/2 {
				signed = int64(d) - int64(p.Q)
			}
			acc += signed * int64(pow)
			pow *= base
		}
		out.Coeffs[j] = modQ(acc, p.Q)
	}
	return out
}

func modQ(v int64, q uint64) uint64 {
	m := v % int64(q)
	if m < 0 {
		m += int64(q)
	}
	return uint64(m)
}
