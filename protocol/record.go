package protocol

import "ethpir/ringmath"

// RecordSource is the read-only view AnswerGen needs over a lane's
// pre-transformed grid: NTT-form plaintext records indexed by the
// flattened grid position row*D2+col. Implemented by shard.Shard /
// shard.LaneSnapshot; kept as a narrow interface here so protocol does
// not import shard directly (shard in turn does not need to know about
// the protocol's query variants).
type RecordSource interface {
	// Len returns the number of real records N; indices >= N are treated
	// as the implicit all-zero record.
	Len() int
	// At returns the NTT-form plaintext record at global index idx.
	// idx is always < N when called by AnswerGen.
	At(idx int) (*ringmath.Element, error)
}
