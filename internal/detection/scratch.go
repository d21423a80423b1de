package detection

// scratch is a growable buffer reused across calls. ensure never shrinks the
// backing array and does not preserve contents across growth.
type scratch[T any] struct {
	data []T
}

func (s *scratch[T]) ensure(n int) []T {
	if cap(s.data) < n {
		s.data = make([]T, n)
	}
	s.data = s.data[:n]
	return s.data
}

// zeroed is ensure followed by a clear of the first n elements.
func (s *scratch[T]) zeroed(n int) []T {
	d := s.ensure(n)
	clear(d)
	return d
}

func (s *scratch[T]) release() {
	s.data = nil
}
