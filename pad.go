package flock

// cacheLinePad prevents false sharing between hot fields that live in the
// same struct but are touched by different goroutines, mirroring the
// alignas(64) padding used throughout the reference implementation.
type cacheLinePad struct {
	_ [64]byte
}
