package ringmath

import (
	"crypto/rand"
	"fmt"

	"github.com/tuneinsight/lattigo/v4/ring"
	"github.com/tuneinsight/lattigo/v4/utils"

	"ethpir/pirerr"
)

// Seed is the 32-byte deterministic seed behind a SeededCiphertext's 'a'
// component. Given the same Seed, XOFSampler produces bit-identical
// output on client and server.
type Seed [32]byte

// NewRandomSeed draws a fresh Seed from the OS CSPRNG, for client query
// generation.
func NewRandomSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("%w: reading random seed: %v", pirerr.AllocationFailure, err)
	}
	return s, nil
}

// Sampler draws fresh uniform and Gaussian ring elements for one Engine.
// Every Sampler owns a private PRNG; callers must not share one Sampler
// across goroutines, since the underlying CSPRNG state and the Gaussian
// sampler's per-call state are not safe for concurrent use.
type Sampler struct {
	engine *Engine
	prng   utils.PRNG
	gauss  *ring.GaussianSampler
	unif   *ring.UniformSampler
}

// NewSampler builds a Sampler with its own fresh CSPRNG state, for
// general-purpose (non-seeded) sampling: secret keys, fresh encryption
// noise.
func NewSampler(e *Engine) (*Sampler, error) {
	prng, err := utils.NewPRNG()
	if err != nil {
		return nil, fmt.Errorf("%w: creating PRNG: %v", pirerr.AllocationFailure, err)
	}
	return newSampler(e, prng), nil
}

// NewXOFSampler builds a Sampler whose uniform output is the deterministic
// expansion of seed. It is used both by the client (to avoid transmitting
// the 'a' component of a seeded query) and the server (to regenerate it).
func (e *Engine) NewXOFSampler(seed Seed) (*Sampler, error) {
	prng, err := utils.NewKeyedPRNG(seed[:])
	if err != nil {
		return nil, fmt.Errorf("%w: creating keyed PRNG from seed: %v", pirerr.AllocationFailure, err)
	}
	return newSampler(e, prng), nil
}

func newSampler(e *Engine, prng utils.PRNG) *Sampler {
	// Tail bound 6*sigma.
	bound := int(6 * e.params.Sigma)
	return &Sampler{
		engine: e,
		prng:   prng,
		gauss:  ring.NewGaussianSampler(prng, e.ring, e.params.Sigma, bound),
		unif:   ring.NewUniformSampler(prng, e.ring),
	}
}

// Uniform draws a coefficient-form Element uniform in [0, Q) per
// coefficient. Rejection sampling against the XOF stream happens inside
// lattigo's ring.UniformSampler.
func (s *Sampler) Uniform() *Element {
	p := s.unif.ReadNew()
	return s.engine.fromPoly(p, Coefficient)
}

// Gaussian draws a coefficient-form Element with small discrete-Gaussian
// coefficients. Not constant-time: noise sampling does not depend on any
// secret index in this protocol, so timing variation here leaks nothing.
func (s *Sampler) Gaussian() *Element {
	p := s.gauss.ReadNew()
	return s.engine.fromPoly(p, Coefficient)
}

// UniformNTT draws an Element tagged Evaluation directly: a uniform draw
// over Z_q^d is identically distributed whether interpreted as a
// coefficient vector or as NTT-evaluation values (NTT is a bijection on
// Z_q^d), so this skips the otherwise-redundant forward transform. It is
// the primary way ciphertext 'a' components are generated, since the
// protocol operates on NTT form by default.
func (s *Sampler) UniformNTT() *Element {
	p := s.unif.ReadNew()
	return s.engine.fromPoly(p, Evaluation)
}

// GaussianNTT draws small-coefficient noise and converts it to NTT form so
// it can be combined with other NTT-form ciphertext components.
func (s *Sampler) GaussianNTT() *Element {
	g := s.Gaussian()
	ntt, err := s.engine.ToNTT(g)
	if err != nil {
		// Gaussian() always returns Coefficient form; ToNTT cannot fail here.
		panic(err)
	}
	return ntt
}

// Ternary draws a coefficient-form Element with coefficients in {-1,0,1},
// used for secret-key generation.
func (s *Sampler) Ternary() (*Element, error) {
	ts := ring.NewTernarySampler(s.prng, s.engine.ring, 1.0/3, false)
	p := ts.ReadNew()
	return s.engine.fromPoly(p, Coefficient), nil
}
