package state

import "sort"

// FavoriteSet holds the ids of books the current user has favorited.
type FavoriteSet struct {
	ids map[int64]struct{}
}

func NewFavoriteSet(ids ...int64) FavoriteSet {
	s := FavoriteSet{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s FavoriteSet) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *FavoriteSet) Add(id int64) {
	if s.ids == nil {
		s.ids = make(map[int64]struct{})
	}
	s.ids[id] = struct{}{}
}

func (s *FavoriteSet) Remove(id int64) {
	delete(s.ids, id)
}

// Set records the membership the server reported for id.
func (s *FavoriteSet) Set(id int64, favorite bool) {
	if favorite {
		s.Add(id)
		return
	}
	s.Remove(id)
}

func (s FavoriteSet) Len() int { return len(s.ids) }

// IDs returns the members in ascending order.
func (s FavoriteSet) IDs() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
