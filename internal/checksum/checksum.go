// Package checksum computes and verifies file digests for downloaded
// component archives.
package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// File computes the SHA256 hash of a file and returns "sha256:<hex>".
func File(path string) (string, error) {
	h, err := hashFile(path, sha256.New())
	if err != nil {
		return "", err
	}
	return "sha256:" + h, nil
}

// Verify checks path against want. want is "sha256:<hex>", "md5:<hex>" or
// a bare hex digest, whose algorithm is inferred from its length.
// An empty want always verifies.
func Verify(path, want string) error {
	if want == "" {
		return nil
	}

	algo, digest := split(want)
	var h hash.Hash
	switch algo {
	case "sha256":
		h = sha256.New()
	case "md5":
		h = md5.New()
	default:
		return fmt.Errorf("unsupported checksum algorithm %q", algo)
	}

	got, err := hashFile(path, h)
	if err != nil {
		return fmt.Errorf("hashing %s: %w", path, err)
	}
	if !strings.EqualFold(got, digest) {
		return fmt.Errorf("checksum mismatch for %s: got %s:%s, want %s", path, algo, got, want)
	}
	return nil
}

func split(sum string) (algo, digest string) {
	if i := strings.IndexByte(sum, ':'); i >= 0 {
		return strings.ToLower(sum[:i]), sum[i+1:]
	}
	if len(sum) == 32 {
		return "md5", sum
	}
	return "sha256", sum
}

func hashFile(path string, h hash.Hash) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
