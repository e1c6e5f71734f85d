package catalog

import (
	"sort"
	"sync/atomic"

	"github.com/wencm/recetona-go/internal/errs"
)

// Snapshot is an immutable view of the catalog at one point in time.
// All query methods are read-only, so a Snapshot is safe for concurrent
// use without locking.
type Snapshot struct {
	// records holds the catalog in ascending-id order.
	records []ProductRecord

	// byID indexes records by product identifier.
	byID map[string]int

	// search holds the precomputed normalized search text, parallel to
	// records.
	search []string
}

// NewSnapshot builds a Snapshot from the given records. The slice is
// sorted by id; the caller must not retain or mutate it afterwards.
func NewSnapshot(records []ProductRecord) *Snapshot {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	byID := make(map[string]int, len(records))
	search := make([]string, len(records))
	for i, r := range records {
		byID[r.ID] = i
		search[i] = r.searchText()
	}

	return &Snapshot{records: records, byID: byID, search: search}
}

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// Records returns the records in ascending-id order. Callers must treat
// the returned slice as read-only.
func (s *Snapshot) Records() []ProductRecord {
	return s.records
}

// Fetch returns the record with the given id, or a not-found error.
// It never fails generically: an unknown id is a distinct errs.ErrNotFound.
func (s *Snapshot) Fetch(id string) (ProductRecord, error) {
	i, ok := s.byID[id]
	if !ok {
		return ProductRecord{}, errs.NotFound("product", id)
	}
	return s.records[i], nil
}

// Store publishes the current catalog snapshot. Refreshes build the new
// snapshot completely before calling Swap, so readers always see either
// the old or the new catalog, never a mixture.
type Store struct {
	// current holds a *Snapshot; never nil after New.
	current atomic.Pointer[Snapshot]
}

// NewStore constructs a Store holding an empty snapshot.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(NewSnapshot(nil))
	return s
}

// Snapshot returns the currently published snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Swap atomically publishes snap as the current catalog and returns the
// snapshot it replaced.
func (s *Store) Swap(snap *Snapshot) *Snapshot {
	if snap == nil {
		snap = NewSnapshot(nil)
	}
	return s.current.Swap(snap)
}
