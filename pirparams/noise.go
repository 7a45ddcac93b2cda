package pirparams

import (
	"fmt"
	"math"

	"github.com/davidkleiven/gononlin/nonlin"
)

// FailureThreshold is the maximum tolerable end-to-end decryption failure
// probability.
const FailureThreshold = 1.0 / (1 << 40)

// NoiseBudget describes the noise growth of one full protocol composition:
// query expansion (switched variant only) + one grid inner product +
// up to two key-switches + one packing step.
type NoiseBudget struct {
	// FreshStdDev is the standard deviation of a freshly encrypted
	// ciphertext's noise, i.e. Sigma from Params.
	FreshStdDev float64
	// Automorphisms counts key-switches spent obliviously expanding a
	// switched query: log2(d1) of them.
	Automorphisms int
	// GridMultiplies counts the plaintext-ciphertext multiplies summed
	// per output slot when reducing across shards (bounded by the grid's
	// row count d1, since every row contributes at most one term to a
	// given accumulator before reduction).
	GridMultiplies int
	// PackingKeySwitches counts the key-switches spent by response
	// packing. protocol.PackInspiRING only shifts and sums, so it spends
	// none.
	PackingKeySwitches int
}

// composedVariance approximates the variance of the noise term carried by
// the final response ciphertext, treating each key-switch as adding
// independent gadget-decomposition rounding noise and each plaintext
// multiply as scaling the existing noise by the plaintext's operator norm
// bound (here approximated as 1, since PIR selector/record plaintexts are
// 0/1-ish coefficients under the packing scheme). This is a conservative
// upper bound suitable for a startup refusal check, not a tight estimate.
func composedVariance(nb NoiseBudget, gadgetBase uint64, gadgetLen uint32) float64 {
	fresh := nb.FreshStdDev * nb.FreshStdDev

	// Each key-switch (automorphism round-trip, or packing) contributes
	// gadgetLen independent rounding terms of variance ~ base^2/12,
	// the variance of a uniform digit in [-base/2, base/2).
	perSwitch := float64(gadgetLen) * (float64(gadgetBase) * float64(gadgetBase)) / 12.0

	keySwitches := nb.Automorphisms + nb.PackingKeySwitches
	total := fresh + float64(keySwitches)*perSwitch

	// Summing GridMultiplies independent contributions (one per grid row
	// that could in principle be nonzero before the selector zeroes all
	// but one out) adds their variances; the selector is exact (0/1) so
	// this only accounts for accumulated rounding, not for amplification.
	total += float64(nb.GridMultiplies) * fresh * 1e-6

	return total
}

// failureProbability estimates Pr[decryption rounds to the wrong plaintext
// symbol] via the Gaussian tail bound: noise exceeding half the rounding
// interval Q/(2P) causes a decoding error.
func failureProbability(stddev float64, q uint64, p uint32) float64 {
	halfInterval := float64(q) / (2.0 * float64(p))
	if stddev <= 0 {
		return 0
	}
	z := halfInterval / (stddev * math.Sqrt2)
	return math.Erfc(z)
}

// thresholdCrossingStdDev solves, via Newton-Krylov, for the noise standard
// deviation at which failureProbability equals FailureThreshold. This lets
// CheckBudget report not just pass/fail but how much headroom a parameter
// set has.
func thresholdCrossingStdDev(q uint64, p uint32) (float64, error) {
	target := math.Log(FailureThreshold)
	halfInterval := float64(q) / (2.0 * float64(p))

	problem := nonlin.Problem{F: func(out, x []float64) {
		s := math.Max(x[0], 1e-9)
		z := halfInterval / (s * math.Sqrt2)
		out[0] = math.Log(math.Erfc(z)+1e-300) - target
	}}
	solver := nonlin.NewtonKrylov{
		Maxiter:  200,
		StepSize: 1e-2,
		Tol:      1e-9,
	}
	res := solver.Solve(problem, []float64{halfInterval / 8})
	if len(res.X) == 0 {
		return 0, fmt.Errorf("pirparams: noise threshold solve did not converge")
	}
	return res.X[0], nil
}

// CheckBudget refuses (returns a non-nil error) if the composed noise of one
// full protocol run exceeds the decryption-failure threshold: a serving
// node must refuse to start rather than serve responses that decrypt wrong
// with non-negligible probability.
func (p Params) CheckBudget(nb NoiseBudget) error {
	composedStd := math.Sqrt(composedVariance(nb, p.GadgetBase, p.GadgetLen))
	failProb := failureProbability(composedStd, p.Q, p.P)
	if failProb > FailureThreshold {
		crossing, err := thresholdCrossingStdDev(p.Q, p.P)
		if err != nil {
			return fmt.Errorf("%w: composed noise stddev=%.3g exceeds failure threshold %.3g (failure_prob=%.3g); crossing point could not be solved: %v",
				ErrNoiseBudget, composedStd, FailureThreshold, failProb, err)
		}
		return fmt.Errorf("%w: composed noise stddev=%.3g exceeds the stddev=%.3g at which failure probability reaches %.3g (estimated failure_prob=%.3g)",
			ErrNoiseBudget, composedStd, crossing, FailureThreshold, failProb)
	}
	return nil
}

// ErrNoiseBudget is the sentinel wrapped by CheckBudget failures.
var ErrNoiseBudget = fmt.Errorf("pirparams: noise budget exceeded")
