package schedule

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// SeedSize is the length of a seed in bytes.
const SeedSize = 32

// ErrInvalidSeed is returned when a seed cannot be decoded or is all zeros.
var ErrInvalidSeed = errors.New("invalid seed")

// Seed is the secret key behind a user's ping schedule.
// It is generated once and never rotated.
type Seed [SeedSize]byte

// NewSeed generates a fresh random seed.
func NewSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return Seed{}, fmt.Errorf("generate seed: %w", err)
	}
	return s, nil
}

// ParseSeed decodes a hex encoded seed.
func ParseSeed(text string) (Seed, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return Seed{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return SeedFromBytes(raw)
}

// SeedFromBytes copies raw into a Seed, rejecting wrong lengths and zero seeds.
func SeedFromBytes(raw []byte) (Seed, error) {
	var s Seed
	if len(raw) != SeedSize {
		return Seed{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSeed, len(raw), SeedSize)
	}
	copy(s[:], raw)
	if s.IsZero() {
		return Seed{}, fmt.Errorf("%w: all zero", ErrInvalidSeed)
	}
	return s, nil
}

// IsZero reports whether the seed is unset.
func (s Seed) IsZero() bool {
	return s == Seed{}
}

// String returns the hex encoding of the seed.
func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}
