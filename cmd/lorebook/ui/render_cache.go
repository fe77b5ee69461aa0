package ui

import (
	"hash/fnv"
	"strconv"
	"sync"
)

// RenderCache keeps rendered descriptions between frames. The spinner
// redraws the screen several times a second and glamour is slow.
type RenderCache struct {
	mu      sync.Mutex
	entries map[uint64]string
	maxSize int
	hits    int
	misses  int
}

// NewRenderCache creates a cache holding at most maxSize entries. When it
// fills up it starts over.
func NewRenderCache(maxSize int) *RenderCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &RenderCache{entries: make(map[uint64]string), maxSize: maxSize}
}

// ComputeKey hashes the text and the width it was wrapped to.
func ComputeKey(text string, width int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.Itoa(width)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return h.Sum64()
}

// GetOrCompute returns the cached output for key or stores compute's.
func (rc *RenderCache) GetOrCompute(key uint64, compute func() string) string {
	rc.mu.Lock()
	if out, ok := rc.entries[key]; ok {
		rc.hits++
		rc.mu.Unlock()
		return out
	}
	rc.misses++
	rc.mu.Unlock()

	out := compute()

	rc.mu.Lock()
	if len(rc.entries) >= rc.maxSize {
		rc.entries = make(map[uint64]string, rc.maxSize)
	}
	rc.entries[key] = out
	rc.mu.Unlock()
	return out
}

// Len is the number of cached entries.
func (rc *RenderCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.entries)
}

// Stats returns hit and miss counts.
func (rc *RenderCache) Stats() (hits, misses int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.hits, rc.misses
}
