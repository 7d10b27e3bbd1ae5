package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// InviteAlphabet omits characters that are easy to confuse when read aloud or typed (0/O, 1/I).
const InviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// InviteCodeLength is the length of a family invite code.
const InviteCodeLength = 8

// NewNumericCode returns a uniformly random decimal code of n digits, zero padded.
func NewNumericCode(n int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate numeric code: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

// NewInviteCode returns an InviteCodeLength code drawn from InviteAlphabet.
func NewInviteCode() (string, error) {
	b := make([]byte, InviteCodeLength)
	limit := big.NewInt(int64(len(InviteAlphabet)))
	for i := range b {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		b[i] = InviteAlphabet[v.Int64()]
	}
	return string(b), nil
}

// Digest returns the hex keyed BLAKE2b-256 digest of parts joined by NUL.
// Verification codes are stored only in this form. Keys longer than the 64 bytes
// BLAKE2b accepts are first reduced with an unkeyed BLAKE2b-256.
func Digest(key []byte, parts ...string) (string, error) {
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return "", fmt.Errorf("init digest: %w", err)
	}
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
