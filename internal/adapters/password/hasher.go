// Package password implements ports.PasswordHasher with argon2id PHC strings.
// Legacy bcrypt hashes are accepted for verification only.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/target/projectdesk/internal/ports"
)

const (
	algorithmID   = "argon2id"
	minMemoryKB   = 8 * 1024
	maxMemoryKB   = 1024 * 1024 // 1 GiB
	maxIterations = 10
	maxThreads    = 16
	saltLength    = 16
	keyLength     = 32
	minSaltLength = 16
)

var _ ports.PasswordHasher = (*Hasher)(nil)

// ErrUnsupportedHash is returned by Verify for strings that are neither argon2id PHC nor bcrypt.
var ErrUnsupportedHash = errors.New("unsupported password hash format")

// Params are the argon2id cost parameters used for new hashes.
type Params struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams matches the recommended interactive-login cost.
var DefaultParams = Params{MemoryKB: 64 * 1024, Iterations: 3, Parallelism: 2}

// Hasher hashes with argon2id and verifies argon2id or bcrypt.
type Hasher struct {
	params Params
	rand   io.Reader
}

// NewHasher validates params and returns a Hasher.
func NewHasher(params Params) (*Hasher, error) {
	if params.MemoryKB < minMemoryKB || params.MemoryKB > maxMemoryKB {
		return nil, fmt.Errorf("password memory must be between %d and %d KB", minMemoryKB, maxMemoryKB)
	}
	if params.Iterations < 1 || params.Iterations > maxIterations {
		return nil, fmt.Errorf("password iterations must be between 1 and %d", maxIterations)
	}
	if params.Parallelism < 1 || params.Parallelism > maxThreads {
		return nil, fmt.Errorf("password parallelism must be between 1 and %d", maxThreads)
	}
	return &Hasher{params: params, rand: rand.Reader}, nil
}

// Hash returns an encoded argon2id hash of secret with a fresh random salt.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	key := argon2.IDKey([]byte(secret), salt, h.params.Iterations, h.params.MemoryKB, h.params.Parallelism, keyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID, argon2.Version,
		h.params.MemoryKB, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether secret matches encoded. A malformed encoded value is an error.
func (h *Hasher) Verify(secret, encoded string) (bool, error) {
	switch {
	case strings.HasPrefix(encoded, "$"+algorithmID+"$"):
		return verifyArgon2(secret, encoded)
	case isBcrypt(encoded):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("bcrypt: %w", err)
		}
		return true, nil
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsRehash reports whether encoded was produced with other parameters or a legacy algorithm.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	p, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	return p.params != h.params || len(p.key) != keyLength
}

func isBcrypt(encoded string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(encoded, prefix) {
			return true
		}
	}
	return false
}

type phc struct {
	params Params
	salt   []byte
	key    []byte
}

func verifyArgon2(secret, encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(secret), p.salt, p.params.Iterations, p.params.MemoryKB, p.params.Parallelism,
		uint32(len(p.key))) //nolint:gosec // key length bounded by decoded hash
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

// parsePHC decodes "$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>".
func parsePHC(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return phc{}, errors.New("invalid PHC format")
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return phc{}, errors.New("unsupported argon2 version")
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return phc{}, err
	}
	salt, err := decodeB64(parts[4])
	if err != nil || len(salt) < minSaltLength {
		return phc{}, errors.New("invalid salt")
	}
	key, err := decodeB64(parts[5])
	if err != nil || len(key) == 0 {
		return phc{}, errors.New("invalid hash")
	}
	return phc{params: params, salt: salt, key: key}, nil
}

// decodeB64 accepts both padded and unpadded standard base64.
func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// parseParams reads m, t and p from a stored hash. Costs outside the hasher's
// bounds are rejected before argon2 runs.
func parseParams(part string) (Params, error) {
	var p Params
	var seen int
	for pair := range strings.SplitSeq(part, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return Params{}, errors.New("invalid parameter entry")
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < minMemoryKB || n > maxMemoryKB {
				return Params{}, errors.New("invalid memory parameter")
			}
			p.MemoryKB = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < 1 || n > maxIterations {
				return Params{}, errors.New("invalid time parameter")
			}
			p.Iterations = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < 1 || n > maxThreads {
				return Params{}, errors.New("invalid parallelism parameter")
			}
			p.Parallelism = uint8(n)
		default:
			return Params{}, errors.New("unsupported parameter")
		}
		seen++
	}
	if seen != 3 || p.MemoryKB == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return Params{}, errors.New("missing parameters")
	}
	return p, nil
}
