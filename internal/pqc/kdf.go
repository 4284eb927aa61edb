package pqc

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
	"lukechampine.com/blake3"
)

// hkdfExpand runs HKDF-SHA256 over ikm with the given info string, reading
// outLen bytes. Used for every "derive X from master key + context" step
// in spec §4.4.
func hkdfExpand(ikm []byte, salt []byte, info string, outLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, ikm, salt, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// stretchSeed expands an arbitrary-length seed to exactly n bytes via
// HKDF, used to fit circl's required KEM seed size.
func stretchSeed(seed []byte, n int) []byte {
	out, err := hkdfExpand(seed, nil, "pqc-seed-stretch-v1", n)
	if err != nil {
		// hkdf.Expand only fails when outLen is absurdly large relative to
		// the underlying hash size; n here is always a small KEM seed size.
		panic("pqc: seed stretch failed: " + err.Error())
	}
	return out
}

// blake3Stretch applies n sequential BLAKE3 hashes to key, the "additional
// iterations/1000 BLAKE3 stretches" step from spec §4.4.
func blake3Stretch(key []byte, n int) []byte {
	cur := key
	for i := 0; i < n; i++ {
		sum := blake3.Sum256(cur)
		cur = sum[:]
	}
	return cur
}
