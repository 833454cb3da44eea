// Package plotter ships hand-drawn trajectories to a serial motion-control
// device.
//
// A Plotter owns the capture buffer, finds the device among the host's serial
// ports, and on Send transforms the captured pixels into workspace units,
// records them to a file and delivers them one acknowledged point at a time:
//
//	p := plotter.New(plotter.DefaultConfig(), logger)
//	if err := p.Connect(); err != nil {
//	    log.Println(err)
//	}
//	p.Capture(plotter.FromScreen(120, 80, 600))
//	session, err := p.Send()
//
// The wire format is newline-delimited ASCII: "x,y" per point, "stop" at the
// end, and "ACK" from the device for every point received.
package plotter

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Config collects everything a Plotter needs.
type Config struct {
	CanvasWidth  int
	CanvasHeight int
	Workspace    Workspace
	// Port skips discovery when set.
	Port           string
	Match          MatchRules
	Link           LinkConfig
	Protocol       ProtocolConfig
	TrajectoryFile string
}

// DefaultConfig maps an 800x600 canvas onto the default workspace.
func DefaultConfig() Config {
	return Config{
		CanvasWidth:    800,
		CanvasHeight:   600,
		Workspace:      DefaultWorkspace,
		Match:          DefaultMatchRules,
		Link:           DefaultLinkConfig,
		Protocol:       DefaultProtocolConfig,
		TrajectoryFile: DefaultTrajectoryFile,
	}
}

// Plotter is the entry point used by the capture surface.
type Plotter struct {
	config   Config
	buffer   *Buffer
	matcher  *Matcher
	manager  *Manager
	protocol *Protocol
	recorder *Recorder
	logger   *zap.Logger

	// sendMu keeps transmissions from interleaving on the link.
	sendMu sync.Mutex
}

func New(cfg Config, logger *zap.Logger) *Plotter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plotter{
		config:   cfg,
		buffer:   NewBuffer(),
		matcher:  NewMatcher(cfg.Match),
		manager:  NewManager(cfg.Link, logger.Named("link")),
		protocol: NewProtocol(cfg.Protocol, logger.Named("protocol")),
		recorder: NewRecorder(cfg.TrajectoryFile),
		logger:   logger,
	}
}

// Capture appends a point to the pending trajectory.
func (p *Plotter) Capture(pt CapturedPoint) { p.buffer.Capture(pt) }

// Clear discards the pending trajectory.
func (p *Plotter) Clear() { p.buffer.Clear() }

// Points returns a snapshot of the pending trajectory.
func (p *Plotter) Points() []CapturedPoint { return p.buffer.Snapshot() }

// SetObserver forwards every device exchange to fn.
func (p *Plotter) SetObserver(fn Observer) { p.protocol.SetObserver(fn) }

// Connected reports whether a device link is open.
func (p *Plotter) Connected() bool { return p.manager.IsConnected() }

// PortName returns the name of the connected port, or "".
func (p *Plotter) PortName() string { return p.manager.Link().Name() }

// RecordPath returns the path the trajectory is recorded to.
func (p *Plotter) RecordPath() string { return p.recorder.Path }

// Connect finds the device and opens a link to it. It returns ErrNoDevice if
// no port matches and a *ConnectError if the port cannot be opened.
func (p *Plotter) Connect() error {
	name := p.config.Port
	if name == "" {
		found, ok, err := p.matcher.Find()
		if err != nil {
			return err
		}
		if !ok {
			p.logger.Warn("no device detected")
			return ErrNoDevice
		}
		name = found
	}
	p.logger.Info("device found", zap.String("port", name))

	if _, err := p.manager.Open(name); err != nil {
		p.logger.Error("connect failed", zap.String("port", name), zap.Error(err))
		return err
	}
	return nil
}

// Send transforms the pending trajectory, records it and transmits it. The
// returned session reports how many points were acknowledged, also on error.
func (p *Plotter) Send() (*Session, error) {
	if !p.sendMu.TryLock() {
		return nil, ErrBusy
	}
	defer p.sendMu.Unlock()

	captured := p.buffer.Snapshot()
	if len(captured) == 0 {
		return nil, ErrEmptyTrajectory
	}
	points := p.config.Workspace.Transform(captured, p.config.CanvasWidth, p.config.CanvasHeight)

	if err := p.recorder.Persist(points); err != nil {
		return nil, fmt.Errorf("record trajectory: %w", err)
	}
	p.logger.Info("trajectory recorded",
		zap.String("path", p.recorder.Path),
		zap.Int("points", len(points)))

	return p.transmit(points)
}

// Replay transmits the trajectory last recorded to the file without
// touching the capture buffer.
func (p *Plotter) Replay() (*Session, error) {
	if !p.sendMu.TryLock() {
		return nil, ErrBusy
	}
	defer p.sendMu.Unlock()

	points, err := p.recorder.Load()
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrEmptyTrajectory
	}
	return p.transmit(points)
}

func (p *Plotter) transmit(points []TransformedPoint) (*Session, error) {
	s := NewSession(points)
	if err := p.protocol.Send(s, p.manager.Link()); err != nil {
		return s, err
	}
	return s, nil
}

// Close releases the device link. A send in flight stops at its next write
// with ErrLinkUnavailable.
func (p *Plotter) Close() error {
	return p.manager.Close()
}
