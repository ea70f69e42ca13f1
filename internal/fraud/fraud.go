package fraud

import (
	"context"
	"sync"
	"time"

	"github.com/earnflow/earnflow/internal/ledger"
)

// DeviceStats summarizes the Device Trust Registry's view of a user.
type DeviceStats struct {
	TrustedDevices    int
	SuspiciousDevices int
	UniqueIPs         int
}

// DeviceRegistry is the external collaborator recording per-user device
// fingerprints and trust classification.
type DeviceRegistry interface {
	DeviceStats(ctx context.Context, userID string) (DeviceStats, error)
}

// MemoryRegistry is an in-memory device registry for tests and dev mode.
// Unknown users report zero devices, which the scorer treats as device novelty.
type MemoryRegistry struct {
	mu    sync.RWMutex
	stats map[string]DeviceStats
}

// NewMemoryRegistry constructs an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{stats: make(map[string]DeviceStats)}
}

// Set records device stats for a user.
func (r *MemoryRegistry) Set(userID string, stats DeviceStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats[userID] = stats
}

// DeviceStats returns the recorded stats, zero-valued for unknown users.
func (r *MemoryRegistry) DeviceStats(_ context.Context, userID string) (DeviceStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats[userID], nil
}

// Score is the persisted per-user rolling risk assessment. It is always
// re-derivable from ledger history and the device registry; the stored row
// exists for fast reads, never as the sole source of truth.
type Score struct {
	UserID        string
	Score         int
	Factors       map[string]int
	Flagged       bool
	VendCount     int
	ExpiredHolds  int
	CooldownUntil time.Time
	UpdatedAt     time.Time
}

// ScoreStore persists fraud scores keyed by user.
type ScoreStore interface {
	Get(ctx context.Context, userID string) (Score, error)
	Upsert(ctx context.Context, score Score) error
}

type memoryScoreStore struct {
	mu     sync.RWMutex
	scores map[string]Score
}

// NewMemoryScoreStore constructs an in-memory score store for tests and dev.
func NewMemoryScoreStore() ScoreStore {
	return &memoryScoreStore{scores: make(map[string]Score)}
}

func (s *memoryScoreStore) Get(_ context.Context, userID string) (Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.scores[userID]
	if !ok {
		return Score{}, ledger.ErrNotFound
	}
	return score, nil
}

func (s *memoryScoreStore) Upsert(_ context.Context, score Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[score.UserID] = score
	return nil
}
