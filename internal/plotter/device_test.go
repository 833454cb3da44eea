package plotter

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// fakeDevice is an in-memory Port that answers every line the host writes
// using reply. Reads return (0, nil) when nothing is pending, like a serial
// read timing out.
type fakeDevice struct {
	mu       sync.Mutex
	reply    func(line string) string
	received []string
	inbound  []byte
	outbound []byte
	drains   int
	resets   int
	timeout  time.Duration
	timeouts []time.Duration
	closed   bool
	writeErr error
	// failLine makes writing exactly that line fail.
	failLine string
}

func newFakeDevice(reply func(line string) string) *fakeDevice {
	return &fakeDevice{reply: reply}
}

// ackAll replies "ACK" to every line.
func ackAll(string) string { return "ACK\n" }

func (d *fakeDevice) Write(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errors.New("port closed")
	}
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	if d.failLine != "" && string(b) == d.failLine+"\n" {
		return 0, errors.New("device unplugged")
	}
	d.inbound = append(d.inbound, b...)
	for {
		idx := bytes.IndexByte(d.inbound, '\n')
		if idx < 0 {
			break
		}
		line := string(d.inbound[:idx])
		d.inbound = d.inbound[idx+1:]
		d.received = append(d.received, line)
		if d.reply != nil {
			d.outbound = append(d.outbound, d.reply(line)...)
		}
	}
	return len(b), nil
}

func (d *fakeDevice) Read(b []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, errors.New("port closed")
	}
	n := copy(b, d.outbound)
	d.outbound = d.outbound[n:]
	return n, nil
}

func (d *fakeDevice) Drain() error {
	d.mu.Lock()
	d.drains++
	d.mu.Unlock()
	return nil
}

// ResetInputBuffer drops replies the host has not read yet.
func (d *fakeDevice) ResetInputBuffer() error {
	d.mu.Lock()
	d.resets++
	d.outbound = nil
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) SetReadTimeout(t time.Duration) error {
	d.mu.Lock()
	d.timeout = t
	d.timeouts = append(d.timeouts, t)
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// queue makes data available for the host to read.
func (d *fakeDevice) queue(data string) {
	d.mu.Lock()
	d.outbound = append(d.outbound, data...)
	d.mu.Unlock()
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *fakeDevice) lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.received))
	copy(out, d.received)
	return out
}

// sleepRecorder stands in for time.Sleep.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
}

func (s *sleepRecorder) all() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.waits))
	copy(out, s.waits)
	return out
}
