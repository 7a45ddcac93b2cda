// Package ringmath implements arithmetic over the negacyclic ring
// R_q = Z_q[x]/(x^d+1). It wraps lattigo/v4's ring.Ring for the
// NTT/pointwise-arithmetic engine (reached via bfv.Parameters.RingQ())
// and adds two things a generic HE ring package does not track by
// itself: an explicit coefficient/NTT form tag per element, and a base-B
// gadget decomposition sized by the deployment's PirParams rather than
// lattigo's internal RNS decomposition.
package ringmath

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v4/bfv"
	"github.com/tuneinsight/lattigo/v4/ring"
	"ethpir/pirparams"
)

// Form tags an Element as living in coefficient or NTT-evaluation
// representation. Mixing forms in arithmetic is a programming error and
// every operation below rejects it.
type Form int

const (
	Coefficient Form = iota
	Evaluation
)

func (f Form) String() string {
	if f == Evaluation {
		return "ntt"
	}
	return "coeff"
}

// Engine owns the ring context for one PirParams profile. All Elements
// produced by an Engine share the same modulus and dimension; arithmetic
// between Elements from different Engines is not meaningful and is not
// checked (Engines are process-wide singletons scoped to a parameter
// profile, not per-request objects).
type Engine struct {
	params pirparams.Params
	bfvP   bfv.Parameters
	ring   *ring.Ring
}

// NewEngine builds the ring context for p, translating it to the
// bfv.ParametersLiteral / bfv.Parameters lattigo needs (see
// Params.BFVLiteral) and validating p first.
func NewEngine(p pirparams.Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	bfvP, err := bfv.NewParametersFromLiteral(p.BFVLiteral())
	if err != nil {
		return nil, fmt.Errorf("ringmath: building bfv.Parameters: %w", err)
	}
	return &Engine{params: p, bfvP: bfvP, ring: bfvP.RingQ()}, nil
}

// Params returns the PirParams this Engine was built from.
func (e *Engine) Params() pirparams.Params { return e.params }

// D returns the ring dimension.
func (e *Engine) D() int { return e.bfvP.N() }

// Element is a length-D coefficient vector mod Q, tagged with its form.
type Element struct {
	Form   Form
	Coeffs []uint64
}

// NewElement allocates a zero Element in the given form.
func (e *Engine) NewElement(form Form) *Element {
	return &Element{Form: form, Coeffs: make([]uint64, e.D())}
}

// FromCoeffs copies vals (len must equal D) into a new coefficient-form
// Element.
func (e *Engine) FromCoeffs(vals []uint64) (*Element, error) {
	if len(vals) != e.D() {
		return nil, fmt.Errorf("ringmath: expected %d coefficients, got %d", e.D(), len(vals))
	}
	el := e.NewElement(Coefficient)
	copy(el.Coeffs, vals)
	return el, nil
}

func (e *Engine) poly(el *Element) *ring.Poly {
	p := e.ring.NewPoly()
	copy(p.Coeffs[0], el.Coeffs)
	return p
}

func (e *Engine) fromPoly(p *ring.Poly, form Form) *Element {
	el := &Element{Form: form, Coeffs: make([]uint64, e.D())}
	copy(el.Coeffs, p.Coeffs[0])
	return el
}

// ToNTT converts a coefficient-form Element to NTT-evaluation form.
// Returns an error if el is already in NTT form.
func (e *Engine) ToNTT(el *Element) (*Element, error) {
	if el.Form != Coefficient {
		return nil, fmt.Errorf("%w: ToNTT requires coefficient form, got %s", ErrFormMismatch, el.Form)
	}
	p := e.poly(el)
	e.ring.NTTLvl(0, p, p)
	return e.fromPoly(p, Evaluation), nil
}

// FromNTT converts an NTT-evaluation Element back to coefficient form.
func (e *Engine) FromNTT(el *Element) (*Element, error) {
	if el.Form != Evaluation {
		return nil, fmt.Errorf("%w: FromNTT requires evaluation form, got %s", ErrFormMismatch, el.Form)
	}
	p := e.poly(el)
	e.ring.InvNTTLvl(0, p, p)
	return e.fromPoly(p, Coefficient), nil
}

// Add returns a+b, both of which must share the same form.
func (e *Engine) Add(a, b *Element) (*Element, error) {
	if a.Form != b.Form {
		return nil, fmt.Errorf("%w: Add(%s, %s)", ErrFormMismatch, a.Form, b.Form)
	}
	pa, pb := e.poly(a), e.poly(b)
	out := e.ring.NewPoly()
	e.ring.Add(pa, pb, out)
	return e.fromPoly(out, a.Form), nil
}

// Sub returns a-b, both of which must share the same form.
func (e *Engine) Sub(a, b *Element) (*Element, error) {
	if a.Form != b.Form {
		return nil, fmt.Errorf("%w: Sub(%s, %s)", ErrFormMismatch, a.Form, b.Form)
	}
	pa, pb := e.poly(a), e.poly(b)
	out := e.ring.NewPoly()
	e.ring.Sub(pa, pb, out)
	return e.fromPoly(out, a.Form), nil
}

// MulCoeffs returns the pointwise (Hadamard) product of two
// NTT-evaluation-form Elements, which corresponds to ring multiplication in
// coefficient form. Both operands must be in NTT form, since the protocol
// layer operates on NTT form by default.
//
// MulCoeffsMontgomery computes pa*pb*R^-1 mod q, so b is lifted into
// Montgomery form first (mirroring lattigo's own convention of keeping one
// operand, typically the key, in Montgomery form before every
// MulCoeffsMontgomery call); a is left in standard form.
func (e *Engine) MulCoeffs(a, b *Element) (*Element, error) {
	if a.Form != Evaluation || b.Form != Evaluation {
		return nil, fmt.Errorf("%w: MulCoeffs requires NTT form on both operands", ErrFormMismatch)
	}
	pa, pb := e.poly(a), e.poly(b)
	e.ring.MForm(pb, pb)
	out := e.ring.NewPoly()
	e.ring.MulCoeffsMontgomery(pa, pb, out)
	return e.fromPoly(out, Evaluation), nil
}

// ScalarMul multiplies every coefficient of el by scalar mod Q.
func (e *Engine) ScalarMul(el *Element, scalar uint64) *Element {
	p := e.poly(el)
	out := e.ring.NewPoly()
	e.ring.MulScalar(p, scalar, out)
	return e.fromPoly(out, el.Form)
}

// Automorphism applies x -> x^t to a coefficient-form Element (odd t).
// The caller is responsible for the accompanying key-switch back to the
// original secret key (rlwescheme.Box.ApplyAutomorphism does both steps together,
// since the underlying ciphertext, not a bare Element, needs the
// permutation).
func (e *Engine) Automorphism(el *Element, t uint64) (*Element, error) {
	if el.Form != Coefficient {
		return nil, fmt.Errorf("%w: Automorphism requires coefficient form", ErrFormMismatch)
	}
	p := e.poly(el)
	out := e.ring.NewPoly()
	e.ring.Permute(p, t, out)
	return e.fromPoly(out, Coefficient), nil
}

// ErrFormMismatch is returned when an operation is given Elements in the
// wrong or mismatched Form.
var ErrFormMismatch = fmt.Errorf("ringmath: form mismatch")
