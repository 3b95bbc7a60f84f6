package store

import (
	"sync"
	"testing"

	"github.com/lekkodev/sidecar/pkg/feature"
	"github.com/stretchr/testify/assert"
)

func boolFlag(name string, def bool) feature.Flag {
	v := any(def)
	return feature.Flag{Name: name, Type: feature.TypeBool, Default: &v}
}

func TestGetMissingNamespaceOrFlag(t *testing.T) {
	s := New(nil, "c0")

	_, ok := s.Get("default", "enabled")
	assert.False(t, ok)
}

func TestGetReturnsFlagContentHashAndCommit(t *testing.T) {
	s := New([]Namespace{
		{Name: "default", Flags: []FlagRecord{
			{Flag: boolFlag("enabled", true), ContentHash: "deadbeef"},
		}},
	}, "c0")

	rec, ok := s.Get("default", "enabled")
	assert.True(t, ok)
	assert.Equal(t, "enabled", rec.Flag.Name)
	assert.Equal(t, "deadbeef", rec.ContentHash)
	assert.Equal(t, "c0", rec.Commit)
}

// TestReplaceIsAtomicToReaders covers property P1: a reader never
// observes a mix of the old and new snapshot — every Get call during a
// Replace returns data belonging entirely to one commit or the other.
func TestReplaceIsAtomicToReaders(t *testing.T) {
	s := New([]Namespace{
		{Name: "default", Flags: []FlagRecord{{Flag: boolFlag("a", true), ContentHash: "h0"}}},
	}, "c0")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				rec, ok := s.Get("default", "a")
				if !ok {
					continue
				}
				if rec.Commit == "c0" {
					assert.Equal(t, "h0", rec.ContentHash)
				} else {
					assert.Equal(t, "h1", rec.ContentHash)
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		s.Replace([]Namespace{
			{Name: "default", Flags: []FlagRecord{{Flag: boolFlag("a", true), ContentHash: "h1"}}},
		}, "c1")
		s.Replace([]Namespace{
			{Name: "default", Flags: []FlagRecord{{Flag: boolFlag("a", true), ContentHash: "h0"}}},
		}, "c0")
	}
	close(stop)
	wg.Wait()
}

// TestReplaceDropsRemovedFlags covers property P2: a lookup reflects
// exactly the derivation of the most recently installed namespaces,
// including removal of flags absent from the new set.
func TestReplaceDropsRemovedFlags(t *testing.T) {
	s := New([]Namespace{
		{Name: "default", Flags: []FlagRecord{
			{Flag: boolFlag("a", true)},
			{Flag: boolFlag("b", false)},
		}},
	}, "c0")

	s.Replace([]Namespace{
		{Name: "default", Flags: []FlagRecord{{Flag: boolFlag("a", true)}}},
	}, "c1")

	_, ok := s.Get("default", "a")
	assert.True(t, ok)
	_, ok = s.Get("default", "b")
	assert.False(t, ok)
	assert.Equal(t, "c1", s.Commit())
}

func TestReplaceIsIdempotent(t *testing.T) {
	ns := []Namespace{{Name: "default", Flags: []FlagRecord{{Flag: boolFlag("a", true), ContentHash: "h0"}}}}
	s := New(ns, "c0")

	before, _ := s.Get("default", "a")
	s.Replace(ns, "c0")
	after, _ := s.Get("default", "a")
	assert.Equal(t, before, after)
}
