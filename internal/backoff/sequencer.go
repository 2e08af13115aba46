// Package backoff produces increasing, jittered delays for poll pacing and
// retry spacing.
//
// A Sequencer walks an ordered list of base delays. Every call to Next
// advances one tier (stopping on the last) and adds a uniform jitter in
// [-R/2, +R/2]. Reset returns to the first tier.
//
//	seq := backoff.New([]time.Duration{3 * time.Second, 30 * time.Second}, 2*time.Second)
//	time.Sleep(seq.Next())
//
// Thread Safety: All methods are safe for concurrent use.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// Sequencer hands out delays from an ordered list of tiers.
type Sequencer struct {
	mu         sync.Mutex
	delays     []time.Duration
	index      int
	randomness time.Duration

	// random returns a value in [0, 1). Replaced in tests.
	random func() float64
}

// New creates a Sequencer over delays with jitter magnitude randomness.
// An empty delay list behaves as a single zero tier. The slice is copied.
func New(delays []time.Duration, randomness time.Duration) *Sequencer {
	tiers := make([]time.Duration, len(delays))
	copy(tiers, delays)
	if len(tiers) == 0 {
		tiers = []time.Duration{0}
	}
	if randomness < 0 {
		randomness = 0
	}

	return &Sequencer{
		delays:     tiers,
		randomness: randomness,
		random:     rand.Float64,
	}
}

// Next returns the delay for the current tier and advances to the next one.
// The result is never negative.
func (s *Sequencer) Next() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.delays[s.index]
	if s.index < len(s.delays)-1 {
		s.index++
	}

	jitter := time.Duration(float64(s.randomness) * (s.random() - 0.5))
	delay := base + jitter
	if delay < 0 {
		return 0
	}
	return delay
}

// Reset returns the sequencer to its first tier.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	s.index = 0
	s.mu.Unlock()
}

// Tier returns the index of the tier the next call to Next will use.
func (s *Sequencer) Tier() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Max returns the largest delay Next can ever return.
func (s *Sequencer) Max() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	largest := s.delays[0]
	for _, d := range s.delays[1:] {
		if d > largest {
			largest = d
		}
	}
	return largest + s.randomness/2
}
