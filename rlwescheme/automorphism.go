package rlwescheme

import "fmt"

// ApplyAutomorphism maps ct (encrypting m(x)) to a ciphertext encrypting
// m(x^t), still decryptable under b.Sk. It permutes both ciphertext
// components by x -> x^t and then key-switches back from the permuted
// secret key to the original one. GenAutomorphismKey(t) must have been
// called first.
func (b *Box) ApplyAutomorphism(ct *Ciphertext, t uint64) (*Ciphertext, error) {
	ksk, ok := b.AutomorphismKeys[t]
	if !ok {
		return nil, fmt.Errorf("rlwescheme: no automorphism key generated for t=%d", t)
	}

	aCoeff, err := b.Engine.FromNTT(ct.A)
	if err != nil {
		return nil, err
	}
	bCoeff, err := b.Engine.FromNTT(ct.B)
	if err != nil {
		return nil, err
	}
	aPerm, err := b.Engine.Automorphism(aCoeff, t)
	if err != nil {
		return nil, err
	}
	bPerm, err := b.Engine.Automorphism(bCoeff, t)
	if err != nil {
		return nil, err
	}
	aPermNTT, err := b.Engine.ToNTT(aPerm)
	if err != nil {
		return nil, err
	}
	bPermNTT, err := b.Engine.ToNTT(bPerm)
	if err != nil {
		return nil, err
	}

	permuted := &Ciphertext{A: aPermNTT, B: bPermNTT}
	return b.KeySwitch(permuted, ksk)
}
