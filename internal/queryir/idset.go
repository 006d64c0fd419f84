package queryir

import (
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// IDSet is a set of positive entity, descriptor or facility IDs.
type IDSet struct {
	bm *roaring64.Bitmap
}

// NewIDSet builds a set from ids. Non-positive IDs are dropped.
func NewIDSet(ids ...int64) *IDSet {
	s := &IDSet{bm: roaring64.New()}
	s.Add(ids...)
	return s
}

// Add inserts ids into the set.
func (s *IDSet) Add(ids ...int64) {
	for _, id := range ids {
		if id > 0 {
			s.bm.Add(uint64(id))
		}
	}
}

// Len returns the number of IDs in the set.
func (s *IDSet) Len() int {
	return int(s.bm.GetCardinality())
}

// Slice returns the IDs in ascending order. It never returns nil.
func (s *IDSet) Slice() []int64 {
	out := make([]int64, 0, s.Len())
	it := s.bm.Iterator()
	for it.HasNext() {
		out = append(out, int64(it.Next()))
	}
	return out
}

// NormalizeIDs returns ids sorted ascending with duplicates removed.
// A nil input stays nil; a non-nil input always yields a non-nil slice.
func NormalizeIDs(ids []int64) []int64 {
	if ids == nil {
		return nil
	}
	return NewIDSet(ids...).Slice()
}

// normalizeStrings returns values sorted with duplicates and empties
// removed. fold, when set, is applied to every value first.
func normalizeStrings(values []string, fold func(string) string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if fold != nil {
			v = fold(v)
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
