package engine

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// DigestAlgorithm names the hash computed over a run's output.
// The empty value means no digest.
type DigestAlgorithm string

const (
	NoDigest   DigestAlgorithm = ""
	SHA256     DigestAlgorithm = "sha256"
	SHA512     DigestAlgorithm = "sha512"
	SHA3_256   DigestAlgorithm = "sha3-256"
	SHA3_512   DigestAlgorithm = "sha3-512"
	BLAKE2b256 DigestAlgorithm = "blake2b-256"
	BLAKE2b512 DigestAlgorithm = "blake2b-512"
)

// DigestAlgorithms lists every supported algorithm.
func DigestAlgorithms() []DigestAlgorithm {
	return []DigestAlgorithm{SHA256, SHA512, SHA3_256, SHA3_512, BLAKE2b256, BLAKE2b512}
}

// ParseDigestAlgorithm accepts the algorithm names case-insensitively;
// "" and "none" select no digest.
func ParseDigestAlgorithm(s string) (DigestAlgorithm, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || name == "none" {
		return NoDigest, nil
	}
	for _, a := range DigestAlgorithms() {
		if string(a) == name {
			return a, nil
		}
	}
	return NoDigest, errors.Wrapf(ErrUnknownDigest, "%q", s)
}

// New returns a fresh hash, or nil for NoDigest.
func (a DigestAlgorithm) New() (hash.Hash, error) {
	switch a {
	case NoDigest:
		return nil, nil
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case SHA3_256:
		return sha3.New256(), nil
	case SHA3_512:
		return sha3.New512(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	case BLAKE2b512:
		return blake2b.New512(nil)
	default:
		return nil, errors.Wrapf(ErrUnknownDigest, "%q", string(a))
	}
}

// HexLen is the length of the hex digest, 0 for NoDigest.
func (a DigestAlgorithm) HexLen() int {
	switch a {
	case SHA256, SHA3_256, BLAKE2b256:
		return 64
	case SHA512, SHA3_512, BLAKE2b512:
		return 128
	default:
		return 0
	}
}

// DigestWriter forwards writes to w and hashes the bytes w accepted.
// Without an algorithm it only forwards and counts.
type DigestWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

func NewDigestWriter(w io.Writer, alg DigestAlgorithm) (*DigestWriter, error) {
	h, err := alg.New()
	if err != nil {
		return nil, err
	}
	return &DigestWriter{w: w, h: h}, nil
}

func (d *DigestWriter) Write(p []byte) (int, error) {
	n, err := d.w.Write(p)
	if n > 0 {
		if d.h != nil {
			d.h.Write(p[:n]) // hash.Hash never fails
		}
		d.n += int64(n)
	}
	return n, err
}

// Written returns the number of bytes the wrapped writer accepted.
func (d *DigestWriter) Written() int64 {
	return d.n
}

// Sum returns the lowercase hex digest of everything written so far, or ""
// when no algorithm was selected.
func (d *DigestWriter) Sum() string {
	if d.h == nil {
		return ""
	}
	return hex.EncodeToString(d.h.Sum(nil))
}
