// Package rlwescheme implements RLWE key generation,
// encryption/decryption, automorphisms, key-switching and seed-based
// expansion, built on top of ringmath's Engine/Sampler. A keys+engine
// "box" is the unit that encryption, decryption, and evaluation all hang
// off of.
package rlwescheme

import (
	"fmt"

	"ethpir/pirparams"
	"ethpir/ringmath"
)

// SecretKey is a ternary ring element in NTT form (arithmetic throughout
// the scheme is done in NTT form).
type SecretKey struct {
	S *ringmath.Element
}

// KeySwitchKey is the gadget-encrypted key material that lets a
// ciphertext under one secret key be converted to decrypt under another:
// one RLWE ciphertext per gadget digit, each encrypting (base^i * s_from)
// under s_to.
type KeySwitchKey struct {
	// Digits[i] = Encrypt(s_to, base^i * s_from)
	Digits []*Ciphertext
}

// Box bundles one Engine with the key material needed to encrypt, decrypt
// and evaluate for a single lane/CRS.
type Box struct {
	Engine *ringmath.Engine
	Sk     *SecretKey
	// AutomorphismKeys holds one KeySwitchKey per automorphism exponent
	// this box has generated keys for; each application of an automorphism
	// is followed by a key-switch back to the original key.
	AutomorphismKeys map[uint64]*KeySwitchKey
}

// NewBox builds a Box for params, generating a fresh secret key.
func NewBox(params pirparams.Params) (*Box, error) {
	engine, err := ringmath.NewEngine(params)
	if err != nil {
		return nil, err
	}
	sampler, err := ringmath.NewSampler(engine)
	if err != nil {
		return nil, err
	}
	skElement, err := sampler.Ternary()
	if err != nil {
		return nil, fmt.Errorf("rlwescheme: sampling secret key: %w", err)
	}
	skNTT, err := engine.ToNTT(skElement)
	if err != nil {
		return nil, err
	}
	return &Box{
		Engine:           engine,
		Sk:               &SecretKey{S: skNTT},
		AutomorphismKeys: make(map[uint64]*KeySwitchKey),
	}, nil
}

// GenKeySwitchKey builds a KeySwitchKey that converts ciphertexts under
// from into ciphertexts under b.Sk. Each digit encrypts base^i * from.S
// under b.Sk with fresh noise.
func (b *Box) GenKeySwitchKey(from *SecretKey) (*KeySwitchKey, error) {
	sampler, err := ringmath.NewSampler(b.Engine)
	if err != nil {
		return nil, err
	}
	gadgetLen := int(b.Engine.Params().GadgetLen)
	digits := make([]*Ciphertext, gadgetLen)

	base := b.Engine.Params().GadgetBase
	pow := uint64(1)
	for i := 0; i < gadgetLen; i++ {
		scaled := b.Engine.ScalarMul(from.S, pow)
		ct, err := b.EncryptNTT(sampler, scaled)
		if err != nil {
			return nil, err
		}
		digits[i] = ct
		pow *= base
	}
	return &KeySwitchKey{Digits: digits}, nil
}

// GenAutomorphismKey generates and caches the key-switch key needed to
// realize the automorphism x -> x^t homomorphically.
func (b *Box) GenAutomorphismKey(t uint64) error {
	if _, ok := b.AutomorphismKeys[t]; ok {
		return nil
	}
	permuted, err := b.Engine.Automorphism(mustCoeff(b.Engine, b.Sk.S), t)
	if err != nil {
		return err
	}
	permutedNTT, err := b.Engine.ToNTT(permuted)
	if err != nil {
		return err
	}
	ksk, err := b.GenKeySwitchKey(&SecretKey{S: permutedNTT})
	if err != nil {
		return err
	}
	b.AutomorphismKeys[t] = ksk
	return nil
}

func mustCoeff(e *ringmath.Engine, ntt *ringmath.Element) *ringmath.Element {
	coeff, err := e.FromNTT(ntt)
	if err != nil {
		panic(err)
	}
	return coeff
}
