// Package lifecycle runs the full per-query server flow: parse the
// request envelope, acquire a snapshot reference, route to a lane,
// validate the parameter version, decode the query, evaluate it, and
// return a response. Each step fails independently and locally; a
// failed request never retries and never affects any other in-flight
// request.
package lifecycle

import (
	"fmt"

	"ethpir/pirerr"
	"ethpir/protocol"
	"ethpir/rlwescheme"
	"ethpir/router"
)

// Request is the envelope the HTTP boundary decodes before handing off
// to Handle. Seeded is carried alongside Query.Variant rather than
// derived from it, so a client that claims one thing in the outer
// envelope and another in the inner query is caught before any ring
// arithmetic runs.
type Request struct {
	Lane   string                 `json:"lane"`
	Seeded bool                   `json:"seeded"`
	Query  protocol.QueryEnvelope `json:"query"`
}

// Handle runs one request end to end and returns the response to
// serialise back to the client, or an error wrapping one of pirerr's
// sentinel kinds. The snapshot reference acquired in step 2 is always
// released before Handle returns, on every path.
func Handle(rtr *router.Router, req Request) (*protocol.Response, error) {
	if req.Seeded != (req.Query.Variant == protocol.Seeded) {
		return nil, fmt.Errorf("%w: seeded=%v does not match variant %v", pirerr.MalformedQuery, req.Seeded, req.Query.Variant)
	}

	ref, lane, err := rtr.Route(req.Lane)
	if err != nil {
		return nil, err
	}
	defer ref.Release()

	if req.Query.PirParamsVersion != lane.Params.Version {
		return nil, fmt.Errorf("%w: query version %d, lane %q version %d", pirerr.VersionMismatch, req.Query.PirParamsVersion, lane.Name, lane.Params.Version)
	}

	grid, err := protocol.NewGrid(lane.EntryCount, lane.RecordWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: building grid for lane %q: %v", pirerr.MalformedQuery, lane.Name, err)
	}

	selector, err := decodeSelector(lane.EvalBox, grid, &req.Query)
	if err != nil {
		return nil, err
	}

	resp, err := protocol.AnswerGen(lane.EvalBox, grid, selector, req.Query.Packing, lane)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pirerr.AllocationFailure, err)
	}
	return resp, nil
}

// decodeSelector turns a query envelope's variant-specific selector
// fields into the D1 per-row ciphertexts AnswerGen expects, doing
// whatever server-side reconstruction the variant requires: none for
// Baseline, XOF re-expansion for Seeded, automorphism-based Expand for
// Switched.
func decodeSelector(box *rlwescheme.Box, grid protocol.Grid, env *protocol.QueryEnvelope) ([]*rlwescheme.Ciphertext, error) {
	switch env.Variant {
	case protocol.Baseline:
		if len(env.Baseline) != grid.D1 {
			return nil, fmt.Errorf("%w: baseline selector has %d entries, want %d", pirerr.MalformedQuery, len(env.Baseline), grid.D1)
		}
		return env.Baseline, nil

	case protocol.Seeded:
		if len(env.SeededB) != grid.D1 {
			return nil, fmt.Errorf("%w: seeded selector has %d entries, want %d", pirerr.MalformedQuery, len(env.SeededB), grid.D1)
		}
		xof, err := box.Engine.NewXOFSampler(env.SeededSeed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pirerr.AllocationFailure, err)
		}
		cts := make([]*rlwescheme.Ciphertext, grid.D1)
		for i, b := range env.SeededB {
			if b == nil {
				return nil, fmt.Errorf("%w: seeded selector entry %d is nil", pirerr.MalformedQuery, i)
			}
			cts[i] = &rlwescheme.Ciphertext{A: xof.UniformNTT(), B: b}
		}
		return cts, nil

	case protocol.Switched:
		if env.Switched == nil {
			return nil, fmt.Errorf("%w: switched query carries no ciphertext", pirerr.MalformedQuery)
		}
		expanded, err := protocol.Expand(box, env.Switched, grid.D1)
		if err != nil {
			return nil, fmt.Errorf("%w: expanding switched selector: %v", pirerr.MalformedQuery, err)
		}
		return expanded, nil

	default:
		return nil, fmt.Errorf("%w: unknown query variant %v", pirerr.MalformedQuery, env.Variant)
	}
}
