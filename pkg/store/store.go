// Package store holds the sidecar's in-memory configuration snapshot: a
// reader-writer guarded {cache, commit} pair, swapped wholesale by
// whichever data source (poller or watcher) produces a fresh one.
package store

import (
	"sync"

	"github.com/lekkodev/sidecar/pkg/feature"
	"github.com/lekkodev/sidecar/pkg/metrics"
)

// FlagRecord is a single flag as produced by the repo loader, together
// with the content hash of the raw blob it was decoded from.
type FlagRecord struct {
	Flag        feature.Flag
	ContentHash string
}

// Namespace is one named group of flags, as produced by the repo loader.
type Namespace struct {
	Name  string
	Flags []FlagRecord
}

// Record is what Get returns: a resolved flag plus the provenance a
// caller needs to report (content hash, commit).
type Record struct {
	Flag        feature.Flag
	ContentHash string
	Commit      string
}

type key struct {
	namespace string
	name      string
}

// snapshot is the state a single Replace call installs atomically.
type snapshot struct {
	cache  map[key]FlagRecord
	commit string
}

// Store holds the latest snapshot behind a reader-writer lock. Readers
// take the lock only long enough to copy out a Record; they must never
// hold it across RPC calls or file I/O. Writers (the poller and the
// watcher) build a full replacement off-lock and install it with a
// single exclusive acquisition.
type Store struct {
	mu         sync.RWMutex
	snap       snapshot
	generation int64
}

// New constructs a Store from a bootstrap snapshot, which may be empty.
// The caller is responsible for starting whichever poller or watcher
// will keep it fresh; those handles must outlive the Store but are not
// held by it.
func New(namespaces []Namespace, commit string) *Store {
	s := &Store{snap: buildSnapshot(namespaces, commit), generation: 1}
	s.recordMetrics()
	return s
}

// Get looks up a single flag by (namespace, name). It is pure and O(1)
// expected; ok is false when no such flag exists in the current
// snapshot.
func (s *Store) Get(namespace, name string) (rec Record, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fr, found := s.snap.cache[key{namespace, name}]
	if !found {
		return Record{}, false
	}
	return Record{Flag: fr.Flag, ContentHash: fr.ContentHash, Commit: s.snap.commit}, true
}

// Commit returns the commit id of the currently installed snapshot.
func (s *Store) Commit() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.commit
}

// Replace installs a freshly built snapshot derived from namespaces and
// commit. Idempotent: replacing with an identical derivation leaves
// readers observing the same state, modulo the swap itself.
func (s *Store) Replace(namespaces []Namespace, commit string) {
	next := buildSnapshot(namespaces, commit)

	s.mu.Lock()
	s.snap = next
	s.generation++
	s.mu.Unlock()

	s.recordMetrics()
}

// recordMetrics publishes the flag count per namespace and the snapshot
// generation of whatever is currently installed. Called after every swap
// so a scrape always reflects the latest install, not the one a caller
// happened to race.
func (s *Store) recordMetrics() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.snap.cache))
	for k := range s.snap.cache {
		counts[k.namespace]++
	}
	metrics.StoreFlagsLoaded.Reset()
	for ns, count := range counts {
		metrics.StoreFlagsLoaded.WithLabelValues(ns).Set(float64(count))
	}
	metrics.StoreGeneration.Set(float64(s.generation))
}

func buildSnapshot(namespaces []Namespace, commit string) snapshot {
	cache := make(map[key]FlagRecord)
	for _, ns := range namespaces {
		for _, fr := range ns.Flags {
			cache[key{ns.Name, fr.Flag.Name}] = fr
		}
	}
	return snapshot{cache: cache, commit: commit}
}
