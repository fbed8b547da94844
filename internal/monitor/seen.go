package monitor

// DefaultSeenCapacity bounds the seen-post set before it is cleared.
const DefaultSeenCapacity = 1000

// SeenSet remembers delivered post ids. Once it holds more than capacity
// ids, Trim drops all of them at once; after a clear an old id could be
// delivered again if the API ever returned it, which the short lookback
// window makes unlikely.
type SeenSet struct {
	capacity int
	ids      map[string]struct{}
}

func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	return &SeenSet{capacity: capacity, ids: make(map[string]struct{}, capacity+1)}
}

// Add records id and reports whether it was new.
func (s *SeenSet) Add(id string) bool {
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *SeenSet) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *SeenSet) Len() int { return len(s.ids) }

func (s *SeenSet) Capacity() int { return s.capacity }

// Trim clears the set if it grew past capacity and reports whether it did.
func (s *SeenSet) Trim() bool {
	if len(s.ids) <= s.capacity {
		return false
	}
	clear(s.ids)
	return true
}
