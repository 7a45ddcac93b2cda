package protocol

import (
	"fmt"

	"ethpir/pirerr"
	"ethpir/pirparams"
)

// Extract recovers the target record's raw chunk values from a server
// Response, using the secret QueryState produced by QueryGen: decrypt,
// invert packing if present, then decode the target record.
//
// Neither OnePacking nor InspiRING introduces any scaling beyond the
// single delta factor DecodeCoeffs already removes: OnePacking never
// folds coefficients together, and InspiRING's fold (PackInspiRING) only
// shifts columns into disjoint coefficient ranges and sums them, which
// does not rescale the values living in those ranges either. The
// returned slice holds grid.RecordWidth plaintext chunk values, each
// exactly the value the encoder originally stored.
func Extract(params pirparams.Params, state *QueryState, resp *Response) ([]uint64, error) {
	if resp.Packing != state.Packing {
		return nil, fmt.Errorf("%w: response packing %v does not match query packing %v", pirerr.DecryptFailure, resp.Packing, state.Packing)
	}

	switch resp.Packing {
	case OnePacking:
		if state.Col >= len(resp.Row) {
			return nil, fmt.Errorf("%w: response row has %d columns, want column %d", pirerr.DecryptFailure, len(resp.Row), state.Col)
		}
		decrypted, err := state.Box.Decrypt(resp.Row[state.Col])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pirerr.DecryptFailure, err)
		}
		decoded, err := DecodeCoeffs(state.Box.Engine, decrypted)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pirerr.DecryptFailure, err)
		}
		width := state.Grid.RecordWidth
		if width <= 0 || width > len(decoded) {
			width = len(decoded)
		}
		return decoded[:width], nil
	case InspiRING:
		if resp.Packed == nil {
			return nil, fmt.Errorf("%w: response tagged InspiRING but carries no packed ciphertext", pirerr.DecryptFailure)
		}
		rawCols, err := UnpackInspiRING(state.Box, resp.Packed, state.Grid.RecordWidth, state.Grid.D2)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pirerr.DecryptFailure, err)
		}
		if state.Col >= len(rawCols) {
			return nil, fmt.Errorf("%w: unpacked %d columns, want column %d", pirerr.DecryptFailure, len(rawCols), state.Col)
		}
		return rawCols[state.Col], nil
	default:
		return nil, fmt.Errorf("%w: unknown packing kind %v", pirerr.DecryptFailure, resp.Packing)
	}
}
