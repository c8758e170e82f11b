package model

import (
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// Snapshot is one immutable, fully-formed set of records from a single sweep.
//
// A Snapshot must not be modified after NewSnapshot returns. Callers that need
// a mutable slice use Records, which returns a copy.
type Snapshot struct {
	records   []CoinRecord
	fetchedAt time.Time

	pushOnce sync.Once
	push     []byte
	pushErr  error
}

// NewSnapshot builds a Snapshot from records in upstream order. Records with a
// duplicate ID are dropped; the first occurrence is kept. The number of
// dropped duplicates is returned alongside.
func NewSnapshot(records []CoinRecord, fetchedAt time.Time) (*Snapshot, int) {
	seen := make(map[AssetID]struct{}, len(records))
	kept := make([]CoinRecord, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		kept = append(kept, r)
	}
	return &Snapshot{
		records:   slices.Clip(kept),
		fetchedAt: fetchedAt.UTC(),
	}, len(records) - len(kept)
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// At returns the i-th record in upstream order.
func (s *Snapshot) At(i int) CoinRecord {
	return s.records[i]
}

// All calls fn for each record in upstream order until fn returns false.
// fn must not modify the record.
func (s *Snapshot) All(fn func(i int, r *CoinRecord) bool) {
	for i := range s.records {
		if !fn(i, &s.records[i]) {
			return
		}
	}
}

// Records returns a copy of the records in upstream order.
func (s *Snapshot) Records() []CoinRecord {
	return slices.Clone(s.records)
}

// FetchedAt is when the sweep that produced this snapshot completed.
func (s *Snapshot) FetchedAt() time.Time {
	return s.fetchedAt
}

// LastUpdated returns FetchedAt in wire format.
func (s *Snapshot) LastUpdated() string {
	return FormatTime(s.fetchedAt)
}

// PushPayload returns the encoded PushMessage for this snapshot. The encoding
// is computed once and shared by every subscriber.
func (s *Snapshot) PushPayload() ([]byte, error) {
	s.pushOnce.Do(func() {
		s.push, s.pushErr = json.Marshal(PushMessage{
			Event:       PushEvent,
			Data:        s.records,
			LastUpdated: s.LastUpdated(),
		})
	})
	return s.push, s.pushErr
}
