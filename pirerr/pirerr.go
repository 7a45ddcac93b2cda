// Package pirerr defines the sentinel error values shared across the
// server's layers. Each one names a distinct failure kind, which layer
// detects it, and whether it ever reaches a client; wrapping a lower-level
// error with one of these lets a caller several layers up test for the
// failure kind with errors.Is without caring which function produced it.
package pirerr

import "errors"

var (
	// VersionMismatch is detected while validating a query's declared
	// parameter-set version against a lane's. There is no local
	// recovery; it is fatal for that client until it upgrades.
	VersionMismatch = errors.New("pirerr: pir_params_version mismatch")

	// LaneNotLoaded is detected while routing a query to a lane that is
	// absent from the current snapshot. There is no local recovery; it
	// is visible to clients and is typically transient, during startup
	// or after a failed reload.
	LaneNotLoaded = errors.New("pirerr: lane not loaded")

	// MalformedQuery is detected while decoding or evaluating a query:
	// wrong selector length, missing ciphertext, unknown variant or
	// packing tag. There is no local recovery; it is visible to clients.
	MalformedQuery = errors.New("pirerr: malformed query")

	// DecryptFailure is detected during client-side extraction, when a
	// decrypted response fails to decode to a plausible plaintext. There
	// is no local recovery; it is visible to the client performing the
	// extraction.
	DecryptFailure = errors.New("pirerr: decrypt failure")

	// ShardIoError is detected while building a new snapshot from shard
	// files. The build aborts and the previously published snapshot
	// stays current; this is never surfaced to clients, only logged.
	ShardIoError = errors.New("pirerr: shard i/o error")

	// AllocationFailure is detected inside ring arithmetic, typically a
	// failed PRNG or sampler allocation. A single request fails; if the
	// underlying resource is globally exhausted the failure recurs and
	// is effectively unrecoverable. Visible to clients.
	AllocationFailure = errors.New("pirerr: allocation failure")
)
