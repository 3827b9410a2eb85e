package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	timestamp time.Time
}

// Memory is an in-process TTL cache with a size bound. Expired entries are
// purged periodically; when the cache is over its limit the oldest entries go first.
type Memory struct {
	mu              sync.RWMutex
	entries         map[string]memoryEntry
	ttl             time.Duration
	maxSize         int
	cleanupInterval time.Duration
	now             func() time.Time
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewMemory creates a memory cache and starts its cleanup goroutine
func NewMemory(ttl time.Duration, maxSize int) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		entries:         make(map[string]memoryEntry),
		ttl:             ttl,
		maxSize:         maxSize,
		cleanupInterval: 5 * time.Minute,
		now:             time.Now,
		stop:            make(chan struct{}),
	}
	go m.periodicCleanup()
	return m
}

func (m *Memory) periodicCleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup()
		case <-m.stop:
			return
		}
	}
}

// Get returns the cached value if present and not expired
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, found := m.entries[key]
	if !found || m.now().Sub(entry.timestamp) >= m.ttl {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value, evicting the oldest entries if the cache grows past its limit
func (m *Memory) Set(_ context.Context, key string, value []byte) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, timestamp: m.now()}
	over := m.maxSize > 0 && len(m.entries) > m.maxSize
	m.mu.Unlock()

	if over {
		m.cleanup()
	}
}

// Len returns the number of entries, expired ones included until the next cleanup
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the cleanup goroutine
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// cleanup removes expired entries and enforces the size limit
func (m *Memory) cleanup() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.entries {
		if now.Sub(entry.timestamp) >= m.ttl {
			delete(m.entries, key)
		}
	}

	if m.maxSize <= 0 || len(m.entries) <= m.maxSize {
		return
	}

	type keyed struct {
		key       string
		timestamp time.Time
	}
	entries := make([]keyed, 0, len(m.entries))
	for key, entry := range m.entries {
		entries = append(entries, keyed{key, entry.timestamp})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].timestamp.Before(entries[j].timestamp)
	})
	for i := 0; i < len(entries)-m.maxSize; i++ {
		delete(m.entries, entries[i].key)
	}
}
