// Package store implements the shared email store and its partitioned
// views (C3): a sequence of email records guarded by a shared-read/
// exclusive-write lock, with views that stage inserts locally and publish
// them to the store only on commit.
package store

import (
	"sync"

	"inlook-corpus/internal/email"
)

// Store holds an ordered sequence of email records. The store outlives
// every view taken from it; views never hold the lock across calls, only
// for the duration of a single operation.
type Store struct {
	mu      sync.RWMutex
	records []*email.Record
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Insert appends r under the store's exclusive lock.
func (s *Store) Insert(r *email.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Remove deletes every record whose content hash equals r's. A record
// without a finalized hash removes nothing.
func (s *Store) Remove(r *email.Record) {
	hash, ok := r.ContentHash()
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0:0]
	for _, e := range s.records {
		if h, ok := e.ContentHash(); ok && h == hash {
			continue
		}
		kept = append(kept, e)
	}
	s.records = kept
}

// Size returns the current number of records, under the shared lock.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// FullView returns a view covering every record currently in the store.
func (s *Store) FullView() *View {
	return &View{store: s, start: 0, end: s.Size()}
}

// Split divides the store into n contiguous, disjoint half-open views
// covering [0, Size()). The first Size()%n views are one element larger
// than the rest, so every view's length differs by at most one. If n is
// greater than Size(), the first Size() views have length 1 and the
// remainder have length 0.
func (s *Store) Split(n int) []*View {
	return s.FullView().Split(n)
}

func (s *Store) at(i int) *email.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[i]
}

// containsHashInRange reports whether any record in [start, end) has the
// given content hash, under the shared lock.
func (s *Store) containsHashInRange(start, end int, hash uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if end > len(s.records) {
		end = len(s.records)
	}
	for i := start; i < end; i++ {
		if h, ok := s.records[i].ContentHash(); ok && h == hash {
			return true
		}
	}
	return false
}

// GetSimpleJSONList renders every record in v per the store's simple JSON
// list contract.
func (s *Store) GetSimpleJSONList(v *View) []email.JSONView {
	out := make([]email.JSONView, 0, v.Len())
	v.Each(func(r *email.Record) bool {
		out = append(out, r.JSON())
		return true
	})
	return out
}

// JSONPage renders up to count records starting at index start, a
// paginated alternative to the full-dump GetSimpleJSONList.
func (s *Store) JSONPage(start, count int) []email.JSONView {
	s.mu.RLock()
	total := len(s.records)
	s.mu.RUnlock()

	if start < 0 || start >= total || count <= 0 {
		return nil
	}
	end := start + count
	if end > total {
		end = total
	}

	out := make([]email.JSONView, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, s.at(i).JSON())
	}
	return out
}
