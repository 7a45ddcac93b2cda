package protocol

import (
	"fmt"

	"ethpir/pirparams"
	"ethpir/ringmath"
	"ethpir/rlwescheme"
)

// QueryEnvelope is the wire-level request body: exactly one of the
// variant-specific selector fields is populated, matching Variant. The
// server picks its evaluation path from the variant tag carried here.
type QueryEnvelope struct {
	PirParamsVersion uint16       `json:"pir_params_version"`
	Variant          QueryVariant `json:"variant"`
	Packing          PackingKind  `json:"packing"`

	// Baseline: one independent ciphertext per row, only the target row
	// encrypts 1.
	Baseline []*rlwescheme.Ciphertext `json:"baseline,omitempty"`

	// Seeded: a-components are all regenerated from Seed; only the
	// b-components are carried on the wire.
	SeededSeed ringmath.Seed       `json:"seeded_seed,omitempty"`
	SeededB    []*ringmath.Element `json:"seeded_b,omitempty"`

	// Switched: the whole row selector is embedded as the coefficients of
	// a single ciphertext; the server automorphism-expands it.
	Switched *rlwescheme.Ciphertext `json:"switched,omitempty"`
}

// QueryState is the client-held secret needed to extract the record from
// a response; it is never transmitted.
type QueryState struct {
	Box     *rlwescheme.Box
	Grid    Grid
	Row     int
	Col     int
	Packing PackingKind
}

// QueryGen builds a QueryEnvelope and its matching QueryState for
// retrieving record targetIdx out of an N-record database, under the
// given grid and variant.
func QueryGen(box *rlwescheme.Box, grid Grid, targetIdx int, variant QueryVariant, packing PackingKind) (*QueryEnvelope, *QueryState, error) {
	row, col := grid.RowOf(targetIdx)
	if row >= grid.D1 {
		return nil, nil, fmt.Errorf("protocol: target index %d maps outside grid (D1=%d)", targetIdx, grid.D1)
	}

	env := &QueryEnvelope{
		PirParamsVersion: pirparams.PIRParamsVersion,
		Variant:          variant,
		Packing:          packing,
	}

	switch variant {
	case Baseline:
		cts, err := baselineSelector(box, grid.D1, row)
		if err != nil {
			return nil, nil, err
		}
		env.Baseline = cts
	case Seeded:
		seed, bs, err := seededSelector(box, grid.D1, row)
		if err != nil {
			return nil, nil, err
		}
		env.SeededSeed = seed
		env.SeededB = bs
	case Switched:
		ct, err := switchedSelector(box, grid.D1, row)
		if err != nil {
			return nil, nil, err
		}
		env.Switched = ct
	default:
		return nil, nil, fmt.Errorf("protocol: unknown query variant %v", variant)
	}

	state := &QueryState{Box: box, Grid: grid, Row: row, Col: col, Packing: packing}
	return env, state, nil
}

func oneHot(d, idx int) []uint64 {
	v := make([]uint64, d)
	v[idx] = 1
	return v
}

func baselineSelector(box *rlwescheme.Box, d1, row int) ([]*rlwescheme.Ciphertext, error) {
	sampler, err := ringmath.NewSampler(box.Engine)
	if err != nil {
		return nil, err
	}
	cts := make([]*rlwescheme.Ciphertext, d1)
	for i := 0; i < d1; i++ {
		bit := uint64(0)
		if i == row {
			bit = 1
		}
		m, err := EncodeSelectorBits(box.Engine, []uint64{bit})
		if err != nil {
			return nil, err
		}
		ct, err := box.EncryptNTT(sampler, m)
		if err != nil {
			return nil, err
		}
		cts[i] = ct
	}
	return cts, nil
}

func seededSelector(box *rlwescheme.Box, d1, row int) (ringmath.Seed, []*ringmath.Element, error) {
	var zero ringmath.Seed
	seed, err := ringmath.NewRandomSeed()
	if err != nil {
		return zero, nil, err
	}
	xof, err := box.Engine.NewXOFSampler(seed)
	if err != nil {
		return zero, nil, err
	}
	noise, err := ringmath.NewSampler(box.Engine)
	if err != nil {
		return zero, nil, err
	}

	bs := make([]*ringmath.Element, d1)
	for i := 0; i < d1; i++ {
		bit := uint64(0)
		if i == row {
			bit = 1
		}
		m, err := EncodeSelectorBits(box.Engine, []uint64{bit})
		if err != nil {
			return zero, nil, err
		}
		a := xof.UniformNTT()
		e := noise.GaussianNTT()
		as, err := box.Engine.MulCoeffs(a, box.Sk.S)
		if err != nil {
			return zero, nil, err
		}
		ase, err := box.Engine.Add(as, e)
		if err != nil {
			return zero, nil, err
		}
		b, err := box.Engine.Add(ase, m)
		if err != nil {
			return zero, nil, err
		}
		bs[i] = b
	}
	return seed, bs, nil
}

// switchedSelector embeds the full length-d1 one-hot row selector as the
// raw coefficients of a single plaintext and encrypts it once; the server
// recovers the d1 individual selector ciphertexts via automorphism-based
// expansion (Expand).
func switchedSelector(box *rlwescheme.Box, d1, row int) (*rlwescheme.Ciphertext, error) {
	sampler, err := ringmath.NewSampler(box.Engine)
	if err != nil {
		return nil, err
	}
	m, err := EncodeSelectorBits(box.Engine, oneHot(d1, row))
	if err != nil {
		return nil, err
	}
	return box.EncryptNTT(sampler, m)
}
