package plotter

// Session is one transmission of a trajectory: a fixed snapshot of points and
// how many of them the device has acknowledged so far.
type Session struct {
	points []TransformedPoint
	acked  int
}

// NewSession copies points so later changes by the caller are not observed.
func NewSession(points []TransformedPoint) *Session {
	snap := make([]TransformedPoint, len(points))
	copy(snap, points)
	return &Session{points: snap}
}

func (s *Session) Len() int { return len(s.points) }

// Acked returns the number of points confirmed by the device.
func (s *Session) Acked() int { return s.acked }

// Points returns a copy of the session's points.
func (s *Session) Points() []TransformedPoint {
	out := make([]TransformedPoint, len(s.points))
	copy(out, s.points)
	return out
}

// Done reports whether every point has been acknowledged.
func (s *Session) Done() bool { return s.acked == len(s.points) }
