package qbl

//sweep visits the positions of an argsorted column once, upward or downward.
type sweep struct {
	pos, end, step int
}

func forwardSweep(n int) *sweep {
	return &sweep{pos: 0, end: n, step: 1}
}

func backwardSweep(n int) *sweep {
	return &sweep{pos: n - 1, end: -1, step: -1}
}

//next returns the current position and advances; ok is false once the sweep is over.
func (s *sweep) next() (pos int, ok bool) {
	if s.pos == s.end {
		return 0, false
	}
	pos = s.pos
	s.pos += s.step
	return pos, true
}
