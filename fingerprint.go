package poolopt

import (
	"crypto/sha256"
	"fmt"
)

// Fingerprint returns a deterministic hex digest of the function's canonical
// textual form. Functions that print identically share a fingerprint.
func Fingerprint(f *Func) string {
	if f == nil {
		return "nil"
	}
	sum := sha256.Sum256([]byte(f.String()))
	return fmt.Sprintf("%x", sum[:])
}
