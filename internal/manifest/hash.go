package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Hash is a pinned content digest in "sha256:<hex>" form.
type Hash string

// ParseHash validates the textual form of a pinned hash.
func ParseHash(value string) (Hash, error) {
	algo, digest, ok := strings.Cut(value, ":")
	if !ok {
		return "", fmt.Errorf("hash %q is missing the algorithm prefix", value)
	}
	if algo != "sha256" {
		return "", fmt.Errorf("unsupported hash algorithm %q (only sha256)", algo)
	}
	if len(digest) != sha256.Size*2 {
		return "", fmt.Errorf("sha256 digest must be %d hex characters, got %d", sha256.Size*2, len(digest))
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("sha256 digest is not hex: %w", err)
	}
	return Hash("sha256:" + strings.ToLower(digest)), nil
}

// Validate reports whether the hash is well-formed.
func (h Hash) Validate() error {
	_, err := ParseHash(string(h))
	return err
}

// Hex returns the digest without the algorithm prefix.
func (h Hash) Hex() string {
	_, digest, _ := strings.Cut(string(h), ":")
	return strings.ToLower(digest)
}

// Short returns a 12-character digest prefix used in store path names.
func (h Hash) Short() string {
	digest := h.Hex()
	if len(digest) < 12 {
		return digest
	}
	return digest[:12]
}

func (h Hash) String() string {
	return string(h)
}

// Equal compares two hashes, ignoring digest case.
func (h Hash) Equal(other Hash) bool {
	return strings.EqualFold(string(h), string(other))
}

// UnmarshalYAML canonicalizes the digest to lowercase while decoding. Strict
// validation stays in Validate, since platform-split packages leave the
// top-level hash empty.
func (h *Hash) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*h = Hash(strings.ToLower(raw))
	return nil
}

// HashReader consumes the reader and returns the content hash.
func HashReader(r io.Reader) (Hash, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return Hash("sha256:" + hex.EncodeToString(hasher.Sum(nil))), nil
}

// HashBytes returns the content hash of the provided bytes.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash("sha256:" + hex.EncodeToString(sum[:]))
}
