package store

import "inlook-corpus/internal/email"

// View is a half-open [start, end) window over a Store plus a
// deferred-insert queue. Inserts made through InsertEmail are only
// published to the store on Commit; iteration never observes them early.
//
// Commit refreshes only End, leaving Start unchanged: a committed view
// keeps its window origin and only grows to cover the records it just
// published (see DESIGN.md for the alternative considered and rejected).
type View struct {
	store   *Store
	start   int
	end     int
	pending []*email.Record
}

// Start returns the view's current start index.
func (v *View) Start() int { return v.start }

// End returns the view's current end index.
func (v *View) End() int { return v.end }

// Len returns the number of records currently visible through the view.
func (v *View) Len() int { return v.end - v.start }

// StoreSize returns the total number of records in the view's backing
// store, independent of the view's own range. Callers use this to
// report store-wide telemetry (e.g. after a targeted insert) without
// needing a handle to the Store itself.
func (v *View) StoreSize() int { return v.store.Size() }

// Split divides the view's current [start, end) range into n disjoint,
// contiguous sub-views using the same near-equal-size rule as
// Store.Split: the first Len()%n sub-views are one element larger. This
// is what the parallel composite stage uses to partition its incoming
// view across worker tasks.
func (v *View) Split(n int) []*View {
	if n <= 0 {
		return nil
	}
	total := v.Len()
	base := total / n
	extra := total % n

	views := make([]*View, n)
	start := v.start
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		views[i] = &View{store: v.store, start: start, end: start + size}
		start += size
	}
	return views
}

// At returns the i-th record visible through the view, 0 <= i < Len().
func (v *View) At(i int) *email.Record {
	return v.store.at(v.start + i)
}

// Each calls fn for every record in the view, in store order, stopping
// early if fn returns false.
func (v *View) Each(fn func(*email.Record) bool) {
	for i := v.start; i < v.end; i++ {
		if !fn(v.store.at(i)) {
			return
		}
	}
}

// ContainsHash reports whether any record currently visible through the
// view (not counting uncommitted pending inserts) has the given content
// hash. The parser uses this for its dedupe-before-insert check.
func (v *View) ContainsHash(hash uint64) bool {
	return v.store.containsHashInRange(v.start, v.end, hash)
}

// InsertEmail stages r for insertion; it is not visible to iteration or
// ContainsHash until Commit runs.
func (v *View) InsertEmail(r *email.Record) {
	v.pending = append(v.pending, r)
}

// PendingLen reports how many inserts are staged but not yet committed.
func (v *View) PendingLen() int { return len(v.pending) }

// RemoveEmail deletes every store record sharing r's content hash,
// immediately, under the store's exclusive lock — unlike InsertEmail,
// this is not deferred to Commit. Stages that filter records out of a
// view (e.g. the filter adapter) use this directly.
func (v *View) RemoveEmail(r *email.Record) {
	v.store.Remove(r)
}

// Commit takes the store's exclusive lock, appends every pending insert to
// the store, and refreshes the view's End to the store's new size. An
// empty pending queue still acquires the lock once but performs no write.
func (v *View) Commit() {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if len(v.pending) > 0 {
		v.store.records = append(v.store.records, v.pending...)
		v.pending = nil
	}
	v.end = len(v.store.records)
}
