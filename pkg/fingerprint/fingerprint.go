// Package fingerprint computes the two content-derived identifiers every
// ClipEntry carries: a 64-bit non-cryptographic id used as the manager's map
// key, and a SHA-256 digest used to disambiguate persisted records.
package fingerprint

import (
	"github.com/cespare/xxhash/v2"
	sha256simd "github.com/minio/sha256-simd"
)

// ID returns a 64-bit fingerprint of a normalised content encoding. Two
// encodings that are byte-equal always produce the same ID; distinct
// encodings may collide, which is why Digest is kept alongside it in
// persisted records.
func ID(normalised []byte) uint64 {
	return xxhash.Sum64(normalised)
}

// Digest returns the SHA-256 digest of a normalised content encoding.
func Digest(normalised []byte) [32]byte {
	return sha256simd.Sum256(normalised)
}

// DigestHex is Digest rendered as a lowercase hex string, the form used for
// sidecar file names and persisted records.
func DigestHex(normalised []byte) string {
	d := Digest(normalised)
	const hextable = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range d {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}
