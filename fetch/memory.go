package fetch

import (
	"sync"
	"time"
)

// transportEntry stores the preferred transport for a host with a TTL.
type transportEntry struct {
	transport string
	expiresAt time.Time
}

// DomainMemory remembers which transport last delivered a document for
// each host, so the ladder can start there instead of re-failing a
// blocked direct fetch. Entries expire after the configured TTL and are
// pruned periodically.
type DomainMemory struct {
	store sync.Map // host (string) -> *transportEntry
	ttl   time.Duration
	done  chan struct{}
}

// NewDomainMemory creates a DomainMemory with the given TTL and starts
// the background pruning goroutine.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	dm := &DomainMemory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go dm.cleanupLoop()
	return dm
}

// Get returns the remembered transport for a host, or "" when absent or
// expired.
func (dm *DomainMemory) Get(host string) string {
	val, ok := dm.store.Load(host)
	if !ok {
		return ""
	}
	entry := val.(*transportEntry)
	if time.Now().After(entry.expiresAt) {
		dm.store.Delete(host)
		return ""
	}
	return entry.transport
}

// Set records which transport delivered for a host.
func (dm *DomainMemory) Set(host, transport string) {
	dm.store.Store(host, &transportEntry{
		transport: transport,
		expiresAt: time.Now().Add(dm.ttl),
	})
}

// Delete removes the memory for a host, typically after the remembered
// transport stopped working.
func (dm *DomainMemory) Delete(host string) {
	dm.store.Delete(host)
}

// Stop terminates the background pruning goroutine.
func (dm *DomainMemory) Stop() {
	close(dm.done)
}

func (dm *DomainMemory) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			now := time.Now()
			dm.store.Range(func(key, value any) bool {
				if now.After(value.(*transportEntry).expiresAt) {
					dm.store.Delete(key)
				}
				return true
			})
		}
	}
}
