package admission

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
)

// fingerprintChunkSize bounds memory while hashing arbitrarily large uploads.
const fingerprintChunkSize = 8 * 1024

// Fingerprint computes the MD5 digest of r in fixed-size chunks and returns
// it hex-encoded. MD5 is enough here: the digest only deduplicates identical
// uploads and is not a security boundary.
func Fingerprint(r io.Reader) (string, error) {
	h := md5.New()
	buf := make([]byte, fingerprintChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("fingerprint image: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
