package plotter

import "sync"

// Buffer holds the points captured since the last clear. It is safe for
// concurrent use; Snapshot returns a copy the caller owns.
type Buffer struct {
	mu     sync.Mutex
	points []CapturedPoint
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Capture appends p to the pending trajectory.
func (b *Buffer) Capture(p CapturedPoint) {
	b.mu.Lock()
	b.points = append(b.points, p)
	b.mu.Unlock()
}

// Clear discards all pending points.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.points = nil
	b.mu.Unlock()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.points)
}

// Snapshot returns a copy of the pending points in capture order.
func (b *Buffer) Snapshot() []CapturedPoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]CapturedPoint, len(b.points))
	copy(out, b.points)
	return out
}
