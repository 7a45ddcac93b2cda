package protocol

import (
	"math/big"

	"ethpir/pirparams"
	"ethpir/ringmath"
)

// delta is the BFV-style scale-up factor Q/P: a hand-rolled scale/round
// pair over raw ringmath Elements, used in place of lattigo's bfv.Encoder
// since this scheme carries no BFV encoder dependency.
func delta(p pirparams.Params) uint64 {
	return p.Q / uint64(p.P)
}

// EncodeCoeffs embeds vals (each < P, len <= D) as scaled ring
// coefficients and returns the NTT-form plaintext element ready to pass
// to rlwescheme.Box.EncryptNTT.
func EncodeCoeffs(e *ringmath.Engine, vals []uint64) (*ringmath.Element, error) {
	coeffs := make([]uint64, e.D())
	q := e.Params().Q
	d := delta(e.Params())
	for i, v := range vals {
		coeffs[i] = (v % uint64(e.Params().P)) * d % q
	}
	el, err := e.FromCoeffs(coeffs)
	if err != nil {
		return nil, err
	}
	return e.ToNTT(el)
}

// EncodeSelectorBits embeds vals (each 0 or 1, len <= D) as raw,
// unscaled ring coefficients, unlike EncodeCoeffs which scales by delta.
// A selector ciphertext is later multiplied against an
// EncodeCoeffs-scaled record in a ciphertext-plaintext product
// (AnswerGen's mulCiphertextPlain), and that product is only one factor
// of delta away from the stored value when exactly one of the two
// operands carries the scaling: scaling the selector too would leave a
// second, uncancelled factor of delta in every decrypted answer.
func EncodeSelectorBits(e *ringmath.Engine, vals []uint64) (*ringmath.Element, error) {
	coeffs := make([]uint64, e.D())
	for i, v := range vals {
		coeffs[i] = v % uint64(e.Params().P)
	}
	el, err := e.FromCoeffs(coeffs)
	if err != nil {
		return nil, err
	}
	return e.ToNTT(el)
}

// DecodeCoeffs reverses EncodeCoeffs on a noisy decrypted NTT-form
// element: round(coeff * P / Q) mod P per coefficient. Uses math/big for
// the intermediate product since Q*P overflows a uint64 for the reference
// parameter set (no ecosystem library in the pack offers modular rational
// rounding smaller than pulling in a full bignum-crypto dependency for
// this one computation).
func DecodeCoeffs(e *ringmath.Engine, ntt *ringmath.Element) ([]uint64, error) {
	coeffForm, err := e.FromNTT(ntt)
	if err != nil {
		return nil, err
	}
	q := new(big.Int).SetUint64(e.Params().Q)
	p := new(big.Int).SetUint64(uint64(e.Params().P))
	half := new(big.Int).Rsh(q, 1)

	out := make([]uint64, len(coeffForm.Coeffs))
	for i, c := range coeffForm.Coeffs {
		cc := new(big.Int).SetUint64(c)
		if cc.Cmp(half) > 0 {
			cc.Sub(cc, q)
		}
		num := new(big.Int).Mul(cc, p)
		rounded := roundDiv(num, q)
		rounded.Mod(rounded, p)
		out[i] = rounded.Uint64()
	}
	return out, nil
}

// roundDiv returns round(num/den) for positive den, rounding half away
// from zero.
func roundDiv(num, den *big.Int) *big.Int {
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	absRem := new(big.Int).Abs(rem)
	half := new(big.Int).Rsh(den, 1)
	if absRem.Cmp(half) >= 0 {
		if num.Sign() >= 0 {
			quo.Add(quo, big.NewInt(1))
		} else {
			quo.Sub(quo, big.NewInt(1))
		}
	}
	return quo
}
