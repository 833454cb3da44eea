package plotter

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Port is the subset of serial.Port the link needs.
type Port interface {
	io.ReadWriteCloser
	Drain() error
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// OpenFunc opens a named port in the given mode.
type OpenFunc func(name string, mode *serial.Mode) (Port, error)

func openSerial(name string, mode *serial.Mode) (Port, error) {
	return serial.Open(name, mode)
}

// LinkConfig holds the connection parameters.
type LinkConfig struct {
	BaudRate    int
	ReadTimeout time.Duration
	// SettleDelay is waited after opening so boards that reset on open can boot.
	SettleDelay time.Duration
}

// DefaultLinkConfig is 9600 baud, 1s read timeout, 2s settle.
var DefaultLinkConfig = LinkConfig{
	BaudRate:    9600,
	ReadTimeout: time.Second,
	SettleDelay: 2 * time.Second,
}

// Link is an open connection to the device. Its methods may be called from
// different goroutines; Close waits for an in-flight read or write.
type Link struct {
	name        string
	readTimeout time.Duration

	mu      sync.Mutex
	port    Port
	partial []byte
	closed  bool
}

// NewLink wraps an already open port whose read timeout is
// DefaultLinkConfig.ReadTimeout.
func NewLink(name string, port Port) *Link {
	return &Link{name: name, port: port, readTimeout: DefaultLinkConfig.ReadTimeout}
}

// Name returns the port name the link was opened on.
func (l *Link) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// IsOpen reports whether the link can carry traffic.
func (l *Link) IsOpen() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.openLocked()
}

func (l *Link) openLocked() bool {
	return l.port != nil && !l.closed
}

// WriteLine writes text followed by a newline and drains the output buffer.
func (l *Link) WriteLine(text string) error {
	if l == nil {
		return ErrLinkUnavailable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.openLocked() {
		return ErrLinkUnavailable
	}
	if _, err := io.WriteString(l.port, text+"\n"); err != nil {
		return &LinkError{Op: "write", Err: err}
	}
	if err := l.port.Drain(); err != nil {
		return &LinkError{Op: "drain", Err: err}
	}
	return nil
}

// ReadLine returns the next line from the device. ok is false when no byte
// is waiting; the port is polled without blocking. Once a byte has arrived
// the rest of the line is awaited up to the read timeout, and a line cut
// short by the timeout is returned as is.
func (l *Link) ReadLine() (line string, ok bool, err error) {
	if l == nil {
		return "", false, ErrLinkUnavailable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.openLocked() {
		return "", false, ErrLinkUnavailable
	}
	if line, ok := l.nextLine(); ok {
		return line, true, nil
	}

	buf := make([]byte, 256)
	n, err := l.poll(buf)
	if err != nil {
		return "", false, err
	}
	if n == 0 && len(l.partial) == 0 {
		return "", false, nil
	}
	l.partial = append(l.partial, buf[:n]...)

	for {
		if line, ok := l.nextLine(); ok {
			return line, true, nil
		}
		n, err := l.port.Read(buf)
		l.partial = append(l.partial, buf[:n]...)
		if err != nil {
			return "", false, &LinkError{Op: "read", Err: err}
		}
		if n == 0 {
			break
		}
	}

	// Timed out
	line = decodeLine(l.partial)
	l.partial = nil
	return line, true, nil
}

// poll reads whatever is already waiting, then restores the read timeout.
func (l *Link) poll(buf []byte) (int, error) {
	if err := l.port.SetReadTimeout(0); err != nil {
		return 0, &LinkError{Op: "poll", Err: err}
	}
	n, err := l.port.Read(buf)
	if err != nil {
		return n, &LinkError{Op: "read", Err: err}
	}
	if err := l.port.SetReadTimeout(l.readTimeout); err != nil {
		return n, &LinkError{Op: "poll", Err: err}
	}
	return n, nil
}

func (l *Link) nextLine() (string, bool) {
	idx := bytes.IndexByte(l.partial, '\n')
	if idx < 0 {
		return "", false
	}
	line := decodeLine(l.partial[:idx])
	l.partial = l.partial[idx+1:]
	return line, true
}

func decodeLine(b []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(b), "\uFFFD"))
}

// Discard drops unread input: the buffered tail of a previous read and
// anything the OS has queued for the port.
func (l *Link) Discard() error {
	if l == nil {
		return ErrLinkUnavailable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.openLocked() {
		return ErrLinkUnavailable
	}
	l.partial = nil
	if err := l.port.ResetInputBuffer(); err != nil {
		return &LinkError{Op: "reset input", Err: err}
	}
	return nil
}

// Close closes the underlying port. Further calls are no-ops.
func (l *Link) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.openLocked() {
		return nil
	}
	l.closed = true
	l.partial = nil
	return l.port.Close()
}

// Manager owns the single live link to the device.
type Manager struct {
	mu     sync.Mutex
	link   *Link
	config LinkConfig
	open   OpenFunc
	sleep  func(time.Duration)
	logger *zap.Logger
}

func NewManager(cfg LinkConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		config: cfg,
		open:   openSerial,
		sleep:  time.Sleep,
		logger: logger,
	}
}

// Open connects to the named port, closing any link already open, and waits
// the settle delay before returning.
func (m *Manager) Open(name string) (*Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeLocked()

	mode := &serial.Mode{
		BaudRate: m.config.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := m.open(name, mode)
	if err != nil {
		return nil, &ConnectError{Port: name, Err: err}
	}
	if err := p.SetReadTimeout(m.config.ReadTimeout); err != nil {
		p.Close()
		return nil, &ConnectError{Port: name, Err: err}
	}

	m.logger.Info("serial port opened",
		zap.String("port", name),
		zap.Int("baud", m.config.BaudRate),
		zap.Duration("settle", m.config.SettleDelay))
	m.sleep(m.config.SettleDelay)

	m.link = NewLink(name, p)
	m.link.readTimeout = m.config.ReadTimeout
	return m.link, nil
}

// Link returns the current link, or nil when disconnected.
func (m *Manager) Link() *Link {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link
}

// IsConnected returns true if a link is currently open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link.IsOpen()
}

// Close closes the current link, if any.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *Manager) closeLocked() error {
	if m.link == nil {
		return nil
	}
	err := m.link.Close()
	m.logger.Info("serial port closed", zap.String("port", m.link.name))
	m.link = nil
	return err
}
