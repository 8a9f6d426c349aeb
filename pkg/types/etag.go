package types

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// ComputeETag returns the content hash of a symbol: blake3 over the
// signature and body separated by a NUL byte, hex encoded.
func ComputeETag(signature, code string) string {
	buf := make([]byte, 0, len(signature)+1+len(code))
	buf = append(buf, signature...)
	buf = append(buf, 0)
	buf = append(buf, code...)
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
