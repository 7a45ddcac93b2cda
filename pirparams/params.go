// Package pirparams defines the protocol parameter set shared by client and
// server and the registry of named profiles a deployment may serve, keyed
// by a string rather than a single hardcoded constant.
package pirparams

import (
	"fmt"
	"math/big"

	"github.com/tuneinsight/lattigo/v4/bfv"
)

// PIRParamsVersion is the compiled parameter-set identity. Clients and
// servers compiled against different values must refuse to interoperate.
const PIRParamsVersion uint16 = 1

// Params is the immutable, per-deployment protocol parameter set.
type Params struct {
	Version uint16 `json:"version"`

	// D is the ring dimension, a power of two.
	D uint32 `json:"d"`
	// Q is the ciphertext modulus, a prime.
	Q uint64 `json:"q"`
	// P is the plaintext modulus.
	P uint32 `json:"p"`

	Sigma float64 `json:"sigma"`

	GadgetBase uint64 `json:"gadget_base"`
	GadgetLen  uint32 `json:"gadget_len"`
}

// Reference is the reference parameter set: d=2048, q=2^60-2^14+1,
// p=65537 (F4, the Fermat prime), sigma=6.4, gadget_base=2^20, gadget_len=3.
var Reference = Params{
	Version:    PIRParamsVersion,
	D:          2048,
	Q:          (uint64(1)<<60 - uint64(1)<<14 + 1),
	P:          65537,
	Sigma:      6.4,
	GadgetBase: 1 << 20,
	GadgetLen:  3,
}

// registry is the named set of profiles a server may load lanes under.
var registry = map[string]Params{
	"reference": Reference,
}

// Register adds (or replaces) a named profile. Call during server init,
// before any lane is built against it.
func Register(name string, p Params) {
	registry[name] = p
}

// Lookup returns the named profile, or false if none is registered.
func Lookup(name string) (Params, bool) {
	p, ok := registry[name]
	return p, ok
}

// LogD returns log2(D); panics if D is not a power of two, since that is a
// startup-time configuration error, not a per-request failure.
func (p Params) LogD() int {
	d := p.D
	if d == 0 || d&(d-1) != 0 {
		panic(fmt.Sprintf("pirparams: D=%d is not a power of two", d))
	}
	log := 0
	for d > 1 {
		d >>= 1
		log++
	}
	return log
}

// LogQ returns the bit length of Q.
func (p Params) LogQ() int {
	return big.NewInt(0).SetUint64(p.Q).BitLen()
}

// Validate enforces the startup-time invariants a parameter set must
// satisfy: D is a power of two, Q is odd (a necessary condition for
// primality we can check cheaply; full primality is the caller's
// responsibility when registering a profile), gcd(D, P) = 1 so that D is
// invertible mod P, and the gadget parameters are non-degenerate.
func (p Params) Validate() error {
	if p.D == 0 || p.D&(p.D-1) != 0 {
		return fmt.Errorf("%w: D=%d is not a power of two", ErrBadParams, p.D)
	}
	if new(big.Int).GCD(nil, nil, big.NewInt(int64(p.D)), big.NewInt(int64(p.P))).Cmp(big.NewInt(1)) != 0 {
		return fmt.Errorf("%w: gcd(D=%d, P=%d) != 1", ErrBadParams, p.D, p.P)
	}
	if p.Q%2 == 0 {
		return fmt.Errorf("%w: Q=%d must be odd", ErrBadParams, p.Q)
	}
	if p.GadgetBase < 2 || p.GadgetLen == 0 {
		return fmt.Errorf("%w: gadget_base=%d gadget_len=%d is degenerate", ErrBadParams, p.GadgetBase, p.GadgetLen)
	}
	if p.Sigma <= 0 {
		return fmt.Errorf("%w: sigma=%f must be positive", ErrBadParams, p.Sigma)
	}
	return nil
}

// BFVLiteral translates Params into the bfv.ParametersLiteral the crypto
// engine is built on (ringmath wraps lattigo's bfv/ring packages for
// its ring/NTT machinery only). A single-prime LogQ
// matches this protocol's single ciphertext modulus Q; there is no
// special modulus (LogP in lattigo's sense, unrelated to this package's
// plaintext modulus P) because key-switching here uses the explicit
// base-B gadget decomposition in ringmath, not lattigo's internal RNS
// key-switch.
func (p Params) BFVLiteral() bfv.ParametersLiteral {
	return bfv.ParametersLiteral{
		T:    uint64(p.P),
		LogN: p.LogD(),
		LogQ: []int{p.LogQ()},
	}
}

// ErrBadParams is the sentinel wrapped by Validate failures.
var ErrBadParams = fmt.Errorf("pirparams: invalid parameter set")
