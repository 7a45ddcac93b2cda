package protocol

import (
	"fmt"

	"ethpir/rlwescheme"
)

var errEmptyRow = fmt.Errorf("protocol: cannot pack an empty row")

func errRowTooWide(cols, recordWidth, d int) error {
	return fmt.Errorf("protocol: row of %d columns at recordWidth %d does not fit ring dimension %d", cols, recordWidth, d)
}

// PackInspiRING folds row (D2 ciphertexts, each carrying one candidate
// record's recordWidth-coefficient payload in its low coefficients) into
// a single ciphertext. Column j is first shifted into its own disjoint
// coefficient range by multiplying by the monomial x^(j*recordWidth)
// (shiftByMonomial); since the D2 payloads then occupy disjoint
// coefficient ranges, summing them is lossless and the client recovers
// each column by slicing coefficients back out after decrypting the one
// folded ciphertext (UnpackInspiRING). This only holds when the D2
// payloads actually fit side by side in one ring element
// (D2*recordWidth <= D, true at the reference parameter set); grids
// that would overflow it are rejected rather than silently truncated.
//
// This is a coefficient-domain simplification of InspiRING's slot-based
// ring-switching: no row is ever packed via a trace/dual-matrix inversion
// here, only monomial shifts and additions. The len(row)*recordWidth > d
// check below is the hard limit of that simplification: a genuine
// ring-switching fold (rather than rejecting) would be needed to pack a
// row that overflows one ring element, which this scheme does not need
// at the reference parameter set.
func PackInspiRING(box *rlwescheme.Box, row []*rlwescheme.Ciphertext, recordWidth int) (*rlwescheme.Ciphertext, error) {
	if len(row) == 0 {
		return nil, errEmptyRow
	}
	d := box.Engine.D()
	if len(row)*recordWidth > d {
		return nil, errRowTooWide(len(row), recordWidth, d)
	}

	var acc *rlwescheme.Ciphertext
	for j, ct := range row {
		shifted, err := shiftByMonomial(box, ct, uint64(j*recordWidth))
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = shifted
			continue
		}
		sum, err := box.AddCiphertexts(acc, shifted)
		if err != nil {
			return nil, err
		}
		acc = sum
	}
	return acc, nil
}

// UnpackInspiRING reverses PackInspiRING: it decrypts the single folded
// ciphertext once and slices out the recordWidth-coefficient payload for
// each of the numCols original columns.
func UnpackInspiRING(box *rlwescheme.Box, packed *rlwescheme.Ciphertext, recordWidth, numCols int) ([][]uint64, error) {
	decrypted, err := box.Decrypt(packed)
	if err != nil {
		return nil, err
	}
	decoded, err := DecodeCoeffs(box.Engine, decrypted)
	if err != nil {
		return nil, err
	}
	out := make([][]uint64, numCols)
	for j := 0; j < numCols; j++ {
		start := j * recordWidth
		out[j] = decoded[start : start+recordWidth]
	}
	return out, nil
}
