package plotter

import (
	"time"

	"go.uber.org/zap"
)

const (
	// AckResponse is the exact line the device sends for a received point.
	AckResponse = "ACK"
	// StopMessage ends a transmission.
	StopMessage = "stop"
)

// ProtocolConfig controls pacing and retries of a transmission.
type ProtocolConfig struct {
	// AckDelay is waited after each write before polling for the response.
	AckDelay time.Duration
	// PointDelay is waited after each acknowledged point.
	PointDelay time.Duration
	// MaxAttempts bounds how often one point is sent before giving up.
	MaxAttempts int
	// RetryBackoff is the wait before the first resend; it doubles per attempt.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

var DefaultProtocolConfig = ProtocolConfig{
	AckDelay:     50 * time.Millisecond,
	PointDelay:   100 * time.Millisecond,
	MaxAttempts:  5,
	RetryBackoff: 100 * time.Millisecond,
	MaxBackoff:   2 * time.Second,
}

// Exchange is one request/response round trip with the device.
type Exchange struct {
	Index    int // point index, -1 for the stop sentinel
	Attempt  int
	Message  string
	Response string
	Received bool
	Acked    bool
}

// Observer is notified of every exchange. It runs on the sending goroutine.
type Observer func(Exchange)

// Protocol delivers sessions over a link, one acknowledged point at a time.
type Protocol struct {
	config   ProtocolConfig
	logger   *zap.Logger
	sleep    func(time.Duration)
	observer Observer
}

func NewProtocol(cfg ProtocolConfig, logger *zap.Logger) *Protocol {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Protocol{
		config: cfg,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// SetObserver installs fn as the exchange observer. Passing nil removes it.
func (p *Protocol) SetObserver(fn Observer) {
	p.observer = fn
}

// Send transmits every point of s in order and then the stop sentinel. It
// returns ErrLinkUnavailable if link is not open, an *UnacknowledgedError if a
// point exhausts its attempts, or a *LinkError on I/O failure.
func (p *Protocol) Send(s *Session, link *Link) error {
	if !link.IsOpen() {
		return ErrLinkUnavailable
	}

	p.logger.Info("transmission started",
		zap.String("port", link.Name()),
		zap.Int("points", s.Len()))

	for i, pt := range s.points {
		if err := p.deliver(link, i, pt); err != nil {
			p.aborted(s, err)
			return err
		}
		s.acked++
		p.sleep(p.config.PointDelay)
	}

	if err := link.WriteLine(StopMessage); err != nil {
		p.aborted(s, err)
		return err
	}
	p.notify(Exchange{Index: -1, Attempt: 1, Message: StopMessage})

	p.logger.Info("transmission complete", zap.Int("points", s.Len()))
	return nil
}

func (p *Protocol) deliver(link *Link, index int, pt TransformedPoint) error {
	msg := pt.String()
	var last string

	for attempt := 1; ; attempt++ {
		// A reply that arrived after its read must not answer this write.
		if err := link.Discard(); err != nil {
			return err
		}
		if err := link.WriteLine(msg); err != nil {
			return err
		}
		p.sleep(p.config.AckDelay)

		resp, ok, err := link.ReadLine()
		if err != nil {
			return err
		}

		acked := ok && resp == AckResponse
		p.notify(Exchange{
			Index:    index,
			Attempt:  attempt,
			Message:  msg,
			Response: resp,
			Received: ok,
			Acked:    acked,
		})
		if acked {
			p.logger.Debug("point acknowledged",
				zap.Int("index", index),
				zap.String("point", msg),
				zap.Int("attempt", attempt))
			return nil
		}

		last = resp
		p.logger.Warn("unexpected response",
			zap.Int("index", index),
			zap.String("point", msg),
			zap.Int("attempt", attempt),
			zap.Bool("received", ok),
			zap.String("response", resp))

		if attempt >= p.config.MaxAttempts {
			return &UnacknowledgedError{
				Index:        index,
				Point:        pt,
				Attempts:     attempt,
				LastResponse: last,
			}
		}
		p.sleep(p.backoff(attempt))
	}
}

func (p *Protocol) aborted(s *Session, err error) {
	p.logger.Error("transmission aborted",
		zap.Int("acked", s.acked),
		zap.Int("points", s.Len()),
		zap.Error(err))
}

// backoff returns the wait before resend number attempt+1.
func (p *Protocol) backoff(attempt int) time.Duration {
	d := p.config.RetryBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	if max := p.config.MaxBackoff; max > 0 && d > max {
		return max
	}
	return d
}

func (p *Protocol) notify(e Exchange) {
	if p.observer != nil {
		p.observer(e)
	}
}
