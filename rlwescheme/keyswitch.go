package rlwescheme

import (
	"fmt"

	"ethpir/ringmath"
)

// ErrGadgetLenMismatch is returned when a KeySwitchKey's digit count does
// not match the gadget length implied by the engine's parameters.
var ErrGadgetLenMismatch = fmt.Errorf("rlwescheme: key-switch key digit count does not match gadget length")

// KeySwitch converts ct (encrypted under the secret key ksk was built
// from) into an equivalent ciphertext under b.Sk, using the standard
// gadget-decomposition key-switch: decompose ct.A into small digits, take
// the digit-weighted sum of the key-switch key's ciphertexts, and fold the
// result back against ct.B.
func (b *Box) KeySwitch(ct *Ciphertext, ksk *KeySwitchKey) (*Ciphertext, error) {
	aCoeff, err := b.Engine.FromNTT(ct.A)
	if err != nil {
		return nil, err
	}
	digits, err := b.Engine.GadgetDecompose(aCoeff, b.Engine.Params())
	if err != nil {
		return nil, err
	}
	if len(digits) != len(ksk.Digits) {
		return nil, ErrGadgetLenMismatch
	}

	var accA, accB *ringmath.Element
	for i, d := range digits {
		dNTT, err := b.Engine.ToNTT(d)
		if err != nil {
			return nil, err
		}
		termA, err := b.Engine.MulCoeffs(dNTT, ksk.Digits[i].A)
		if err != nil {
			return nil, err
		}
		termB, err := b.Engine.MulCoeffs(dNTT, ksk.Digits[i].B)
		if err != nil {
			return nil, err
		}
		if accA == nil {
			accA, accB = termA, termB
			continue
		}
		accA, err = b.Engine.Add(accA, termA)
		if err != nil {
			return nil, err
		}
		accB, err = b.Engine.Add(accB, termB)
		if err != nil {
			return nil, err
		}
	}

	negA := b.Engine.ScalarMul(accA, b.Engine.Params().Q-1)
	finalB, err := b.Engine.Sub(ct.B, accB)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{A: negA, B: finalB}, nil
}
