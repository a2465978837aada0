// Package integrity computes content digests of client executable images
// and compares them against the known-clean baseline.
//
// MD5 is used here strictly for compatibility with the published reference
// digest of the clean client binary. It is a content fingerprint, not a
// security boundary.
package integrity

import (
	"crypto/md5" //nolint:gosec // compatibility with the known reference digest
	"encoding/hex"
)

// ReferenceDigest is the digest of the known-clean client executable.
const ReferenceDigest = "45892bdedd0ad70aed4ccd22d9fb5984"

// Digest returns the lowercase hex MD5 digest of b.
// An empty buffer is valid and yields the digest of zero bytes.
func Digest(b []byte) string {
	sum := md5.Sum(b) //nolint:gosec // see package comment
	return hex.EncodeToString(sum[:])
}

// IsClean reports whether b matches the known-clean client executable.
func IsClean(b []byte) bool {
	return Digest(b) == ReferenceDigest
}
