package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/pkg/apperror"

	"golang.org/x/crypto/sha3"
)

var basisPoints = big.NewInt(domain.BasisPoints)

// SelectTier maps a seed onto a tier. tiers must be in ascending level
// order. The roll is seed mod 10000; the first tier whose cumulative weight
// exceeds the roll wins. If the weights sum below 10000 and the roll lands
// past them, the lowest tier is returned.
func SelectTier(tiers []domain.RarityTier, seed *big.Int) domain.RarityTier {
	roll := new(big.Int).Mod(seed, basisPoints).Int64()

	var cumulative int64
	for _, t := range tiers {
		cumulative += t.WeightBps
		if cumulative > roll {
			return t
		}
	}
	return tiers[0]
}

// RaritySelector rolls rarity tiers from the configured set.
type RaritySelector struct {
	repo    ports.RarityRepository
	entropy ports.EntropySource
}

// NewRaritySelector creates a selector over the stored tier set.
func NewRaritySelector(repo ports.RarityRepository, entropy ports.EntropySource) *RaritySelector {
	return &RaritySelector{repo: repo, entropy: entropy}
}

// Tiers loads the configured tiers in ascending level order.
func (s *RaritySelector) Tiers(ctx context.Context) ([]domain.RarityTier, error) {
	tiers, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list rarity tiers: %w", err))
	}
	if len(tiers) == 0 {
		return nil, apperror.ErrNoRarityTiers()
	}
	return tiers, nil
}

// Roll draws one seed for caller and selects from tiers.
func (s *RaritySelector) Roll(ctx context.Context, tiers []domain.RarityTier, caller string) (domain.RarityTier, error) {
	seed, err := s.entropy.Seed(ctx, caller)
	if err != nil {
		return domain.RarityTier{}, apperror.InternalError(fmt.Errorf("draw rarity seed: %w", err))
	}
	return SelectTier(tiers, seed), nil
}

// CryptoEntropy draws 256-bit seeds from the operating system CSPRNG.
type CryptoEntropy struct{}

// NewCryptoEntropy creates the default entropy source.
func NewCryptoEntropy() *CryptoEntropy {
	return &CryptoEntropy{}
}

// Seed implements ports.EntropySource.
func (CryptoEntropy) Seed(_ context.Context, _ string) (*big.Int, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return new(big.Int).SetBytes(buf[:]), nil
}

// ReplayEntropy reproduces historical seeds:
//
//	keccak256(timestamp || randomness || caller || counter)
//
// with timestamp and counter as 32-byte big-endian words. Every input is
// observable, so rolls are predictable. Use it only when outputs must match
// an existing issuance history.
type ReplayEntropy struct {
	clock      ports.Clock
	randomness [32]byte

	mu      sync.Mutex
	counter uint64
}

// NewReplayEntropy creates a replay source. randomness is left-padded to 32 bytes.
func NewReplayEntropy(clock ports.Clock, randomness []byte) *ReplayEntropy {
	e := &ReplayEntropy{clock: clock}
	if len(randomness) > 32 {
		randomness = randomness[len(randomness)-32:]
	}
	copy(e.randomness[32-len(randomness):], randomness)
	return e
}

// Seed implements ports.EntropySource. Each call advances the counter.
func (e *ReplayEntropy) Seed(_ context.Context, caller string) (*big.Int, error) {
	e.mu.Lock()
	e.counter++
	counter := e.counter
	e.mu.Unlock()

	h := sha3.NewLegacyKeccak256()
	h.Write(word(uint64(e.clock.Now().Unix())))
	h.Write(e.randomness[:])
	h.Write([]byte(caller))
	h.Write(word(counter))
	return new(big.Int).SetBytes(h.Sum(nil)), nil
}

func word(v uint64) []byte {
	var w [32]byte
	binary.BigEndian.PutUint64(w[24:], v)
	return w[:]
}
