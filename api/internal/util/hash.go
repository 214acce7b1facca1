package util

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// SHA256Hex hashes the parts, each prefixed with its length so part
// boundaries are unambiguous. Used for cache keys.
func SHA256Hex(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		_ = binary.Write(h, binary.BigEndian, uint64(len(p)))
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
