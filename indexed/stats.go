package indexed

// Stats describes slot usage of a store.
type Stats struct {
	NextIndex int
	Occupied  int
	Empty     int
	Blocks    int
	FillRatio float64
}

// Stats collects slot usage for the store.
func (s *Store[T]) Stats() Stats {
	stats := Stats{
		NextIndex: s.nextIndex,
		Occupied:  s.count,
		Empty:     s.nextIndex - s.count,
		Blocks:    len(s.blocks),
	}
	if s.nextIndex > 0 {
		stats.FillRatio = float64(s.count) / float64(s.nextIndex)
	}
	return stats
}
