package rlwescheme

import (
	"fmt"

	"ethpir/ringmath"
)

// Ciphertext is an RLWE pair (A,B), both in NTT form, encrypting m under
// secret key s as B = A*s + e + m.
type Ciphertext struct {
	A *ringmath.Element
	B *ringmath.Element
}

// SeededCiphertext carries only the B component plus the Seed that
// deterministically regenerates A, halving on-wire size for client query
// submission.
type SeededCiphertext struct {
	Seed ringmath.Seed
	B    *ringmath.Element
}

// EncryptNTT encrypts an NTT-form plaintext element m under b.Sk, drawing
// fresh randomness from sampler. Both the message and returned ciphertext
// are in NTT form throughout, since the protocol layer operates on NTT
// form by default.
func (b *Box) EncryptNTT(sampler *ringmath.Sampler, m *ringmath.Element) (*Ciphertext, error) {
	if m.Form != ringmath.Evaluation {
		return nil, fmt.Errorf("%w: EncryptNTT requires NTT-form plaintext", ringmath.ErrFormMismatch)
	}
	a := sampler.UniformNTT()
	e := sampler.GaussianNTT()

	as, err := b.Engine.MulCoeffs(a, b.Sk.S)
	if err != nil {
		return nil, err
	}
	ase, err := b.Engine.Add(as, e)
	if err != nil {
		return nil, err
	}
	bb, err := b.Engine.Add(ase, m)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{A: a, B: bb}, nil
}

// EncryptSeeded encrypts m (NTT form) under a Seed-derived 'a' component,
// returning both the full Ciphertext (for local use, e.g. tests) and its
// SeededCiphertext wire form. The same seed fed to Box.ExpandSeeded on the
// receiving side reproduces an identical 'a'.
func (b *Box) EncryptSeeded(m *ringmath.Element) (*SeededCiphertext, error) {
	seed, err := ringmath.NewRandomSeed()
	if err != nil {
		return nil, err
	}
	xof, err := b.Engine.NewXOFSampler(seed)
	if err != nil {
		return nil, err
	}
	freshNoise, err := ringmath.NewSampler(b.Engine)
	if err != nil {
		return nil, err
	}

	a := xof.UniformNTT()
	e := freshNoise.GaussianNTT()

	as, err := b.Engine.MulCoeffs(a, b.Sk.S)
	if err != nil {
		return nil, err
	}
	ase, err := b.Engine.Add(as, e)
	if err != nil {
		return nil, err
	}
	bb, err := b.Engine.Add(ase, m)
	if err != nil {
		return nil, err
	}
	return &SeededCiphertext{Seed: seed, B: bb}, nil
}

// ExpandSeeded regenerates the full (A,B) Ciphertext from a SeededCiphertext
// by re-deriving A from the embedded seed. This is the server-side half
// of the seeded-query optimization: the client never transmits A at all.
func (b *Box) ExpandSeeded(sc *SeededCiphertext) (*Ciphertext, error) {
	xof, err := b.Engine.NewXOFSampler(sc.Seed)
	if err != nil {
		return nil, err
	}
	a := xof.UniformNTT()
	return &Ciphertext{A: a, B: sc.B}, nil
}

// Decrypt returns the NTT-form noisy plaintext m+e = B - A*s. Callers that
// need the scaled/encoded integer message (e.g. protocol.Extract) are
// responsible for rounding and rescaling; rlwescheme only undoes the RLWE
// mask. Recovering the encoded integer payload is the protocol layer's
// job.
func (b *Box) Decrypt(ct *Ciphertext) (*ringmath.Element, error) {
	as, err := b.Engine.MulCoeffs(ct.A, b.Sk.S)
	if err != nil {
		return nil, err
	}
	return b.Engine.Sub(ct.B, as)
}

// AddCiphertexts returns the component-wise sum of two ciphertexts under
// the same secret key (used by protocol.AnswerGen's dot-product
// accumulation).
func (b *Box) AddCiphertexts(x, y *Ciphertext) (*Ciphertext, error) {
	a, err := b.Engine.Add(x.A, y.A)
	if err != nil {
		return nil, err
	}
	bb, err := b.Engine.Add(x.B, y.B)
	if err != nil {
		return nil, err
	}
	return &Ciphertext{A: a, B: bb}, nil
}

// ScalarMulCiphertext scales both ciphertext components by a plaintext
// scalar read from the database grid, forming one term of the
// selector-weighted sum of database rows.
func (b *Box) ScalarMulCiphertext(ct *Ciphertext, scalar uint64) *Ciphertext {
	return &Ciphertext{
		A: b.Engine.ScalarMul(ct.A, scalar),
		B: b.Engine.ScalarMul(ct.B, scalar),
	}
}
