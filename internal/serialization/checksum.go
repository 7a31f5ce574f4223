package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Checksum is the SHA-256 digest of the tensor data section.
type Checksum [ChecksumSize]byte

// checksumOf digests the tensor data section.
func checksumOf(data []byte) Checksum {
	return sha256.Sum256(data)
}

// String returns the first bytes in hex, enough to tell digests apart in
// error messages.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:8])
}

// verify reports ErrChecksumMismatch, with both digests, when c differs
// from the digest recorded in the file.
func (c Checksum) verify(recorded Checksum) error {
	if c != recorded {
		return fmt.Errorf("%w: data %s, header %s", ErrChecksumMismatch, c, recorded)
	}
	return nil
}
