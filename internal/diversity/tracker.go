// Package diversity tracks recently produced prompt fingerprints so the
// composer can bias sampling away from repeats.
package diversity

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultWindowSize is the history length used when none is configured.
const DefaultWindowSize = 50

// Tracker is a bounded FIFO of fingerprints, safe for concurrent use.
// Approximate recency is acceptable; callers racing on Record may interleave.
type Tracker struct {
	mu    sync.Mutex
	size  int
	items []string
}

// New returns an empty tracker holding at most size fingerprints.
func New(size int) *Tracker {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Tracker{size: size, items: make([]string, 0, size)}
}

// Size returns the configured window size.
func (t *Tracker) Size() int {
	return t.size
}

// Record appends fp, evicting the oldest entry once the window is full.
func (t *Tracker) Record(fp string) {
	if fp == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.items) == t.size {
		copy(t.items, t.items[1:])
		t.items = t.items[:len(t.items)-1]
	}
	t.items = append(t.items, fp)
}

// RecentContains reports whether fp is inside the current window.
func (t *Tracker) RecentContains(fp string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, item := range t.items {
		if item == fp {
			return true
		}
	}
	return false
}

// PenaltyFor grows with how often and how recently fp appears. Each occurrence
// at position i (0 = oldest) of a window holding n entries adds (i+1)/n, so
// the newest entry contributes 1. An absent fingerprint scores 0.
func (t *Tracker) PenaltyFor(fp string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.items)
	if n == 0 {
		return 0
	}
	var penalty float64
	for i, item := range t.items {
		if item == fp {
			penalty += float64(i+1) / float64(n)
		}
	}
	return penalty
}

// Len returns the number of fingerprints currently held.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Snapshot returns the window oldest first.
func (t *Tracker) Snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.items))
	copy(out, t.items)
	return out
}

// Fingerprint derives the diversity key of an (ethnicity, age band, face
// shape, location) tuple. Not for cryptographic use.
func Fingerprint(ethnicity, ageBand, faceShape, location string) string {
	parts := []string{ethnicity, ageBand, faceShape, location}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.Join(strings.Fields(p), " "))
	}
	sum := xxhash.Sum64String(strings.Join(parts, "|"))
	return strconv.FormatUint(sum, 16)
}
