package journal

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Checksum computes the hex-encoded BLAKE2b-256 digest of r. The journal only
// compares checksums for equality, so callers may substitute any stable
// identity function; this helper is the agent's default.
func Checksum(r io.Reader) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("init digest: %w", err)
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumFile computes the checksum of the file at path.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Checksum(f)
}
