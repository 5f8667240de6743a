package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash digests a caller identity so raw network addresses never appear in
// store keys. The digest is stable across processes sharing one store.
func Hash(identity string) string {
	sum := sha256.Sum256([]byte(identity))

	return hex.EncodeToString(sum[:])[:16]
}
