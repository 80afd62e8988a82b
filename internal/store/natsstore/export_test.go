package natsstore

// Watchers reports how many watch goroutines are still registered.
func (s *Store) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stops)
}
