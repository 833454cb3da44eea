package plotter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap/zaptest"
)

// newTestPlotter builds a Plotter whose only visible port is dev on
// /dev/ttyACM0, with all delays recorded instead of slept.
func newTestPlotter(t *testing.T, dev *fakeDevice) *Plotter {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TrajectoryFile = filepath.Join(t.TempDir(), "trajectory_points.txt")

	p := New(cfg, zaptest.NewLogger(t))
	sleeps := &sleepRecorder{}
	p.manager.sleep = sleeps.sleep
	p.protocol.sleep = sleeps.sleep
	p.matcher.List = listOf(
		&enumerator.PortDetails{Name: "/dev/ttyS0"},
		&enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true},
	)
	p.manager.open = func(name string, _ *serial.Mode) (Port, error) {
		if name != "/dev/ttyACM0" || dev == nil {
			return nil, os.ErrPermission
		}
		return dev, nil
	}
	return p
}

func captureSample(p *Plotter) {
	p.Capture(CapturedPoint{0, 0})
	p.Capture(CapturedPoint{400, 300})
	p.Capture(CapturedPoint{800, 600})
}

func TestPlotter_SendEndToEnd(t *testing.T) {
	dev := newFakeDevice(ackAll)
	p := newTestPlotter(t, dev)
	require.NoError(t, p.Connect())
	require.True(t, p.Connected())
	require.Equal(t, "/dev/ttyACM0", p.PortName())

	captureSample(p)
	s, err := p.Send()
	require.NoError(t, err)
	require.Equal(t, 3, s.Acked())

	require.Equal(t, []string{"0.00,10.00", "5.00,13.00", "10.00,16.00", "stop"}, dev.lines())

	data, err := os.ReadFile(p.RecordPath())
	require.NoError(t, err)
	require.Equal(t, "0.00,10.00\n5.00,13.00\n10.00,16.00\n", string(data))

	// The capture buffer survives a send.
	require.Len(t, p.Points(), 3)
}

func TestPlotter_SendWithoutLinkKeepsRecord(t *testing.T) {
	p := newTestPlotter(t, nil)
	captureSample(p)

	_, err := p.Send()
	require.ErrorIs(t, err, ErrLinkUnavailable)

	data, err := os.ReadFile(p.RecordPath())
	require.NoError(t, err)
	require.Equal(t, "0.00,10.00\n5.00,13.00\n10.00,16.00\n", string(data))
}

func TestPlotter_ConnectNoDevice(t *testing.T) {
	p := newTestPlotter(t, nil)
	p.matcher.List = listOf(&enumerator.PortDetails{Name: "/dev/ttyS0"})

	require.ErrorIs(t, p.Connect(), ErrNoDevice)
	require.False(t, p.Connected())
}

func TestPlotter_ConnectFailure(t *testing.T) {
	p := newTestPlotter(t, nil)

	err := p.Connect()
	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	require.ErrorIs(t, err, os.ErrPermission)
	require.False(t, p.Connected())
}

func TestPlotter_ExplicitPortSkipsDiscovery(t *testing.T) {
	dev := newFakeDevice(ackAll)
	p := newTestPlotter(t, dev)
	p.config.Port = "/dev/ttyACM0"
	p.matcher.List = listOf()

	require.NoError(t, p.Connect())
	require.Equal(t, "/dev/ttyACM0", p.PortName())
}

func TestPlotter_SendEmpty(t *testing.T) {
	p := newTestPlotter(t, newFakeDevice(ackAll))
	require.NoError(t, p.Connect())

	_, err := p.Send()
	require.ErrorIs(t, err, ErrEmptyTrajectory)
	_, statErr := os.Stat(p.RecordPath())
	require.True(t, os.IsNotExist(statErr))
}

func TestPlotter_RejectsConcurrentSend(t *testing.T) {
	p := newTestPlotter(t, newFakeDevice(ackAll))
	captureSample(p)

	p.sendMu.Lock()
	_, err := p.Send()
	require.ErrorIs(t, err, ErrBusy)
	_, err = p.Replay()
	require.ErrorIs(t, err, ErrBusy)
	p.sendMu.Unlock()
}

func TestPlotter_CloseDuringSend(t *testing.T) {
	reached := make(chan struct{})
	n := 0
	dev := newFakeDevice(func(string) string {
		n++
		if n == 50 {
			close(reached)
		}
		return "ACK\n"
	})
	p := newTestPlotter(t, dev)
	require.NoError(t, p.Connect())
	p.protocol.sleep = func(time.Duration) { time.Sleep(time.Millisecond) }

	for i := 0; i < 200; i++ {
		p.Capture(CapturedPoint{X: i, Y: i})
	}

	type result struct {
		s   *Session
		err error
	}
	done := make(chan result, 1)
	go func() {
		s, err := p.Send()
		done <- result{s, err}
	}()

	<-reached
	require.NoError(t, p.Close())

	select {
	case r := <-done:
		require.ErrorIs(t, r.err, ErrLinkUnavailable)
		require.Less(t, r.s.Acked(), 200)
		require.NotContains(t, dev.lines(), "stop")
	case <-time.After(5 * time.Second):
		t.Fatal("send did not return after close")
	}
	require.False(t, p.Connected())
}

func TestPlotter_ClearThenSend(t *testing.T) {
	p := newTestPlotter(t, newFakeDevice(ackAll))
	captureSample(p)
	p.Clear()
	require.Empty(t, p.Points())

	_, err := p.Send()
	require.ErrorIs(t, err, ErrEmptyTrajectory)
}

func TestPlotter_ReplaySendsRecordedTrajectory(t *testing.T) {
	dev := newFakeDevice(ackAll)
	p := newTestPlotter(t, dev)
	require.NoError(t, os.WriteFile(p.RecordPath(), []byte("1.25,11.50\n2.00,12.00\n"), 0644))
	require.NoError(t, p.Connect())

	s, err := p.Replay()
	require.NoError(t, err)
	require.Equal(t, 2, s.Acked())
	require.Equal(t, []string{"1.25,11.50", "2.00,12.00", "stop"}, dev.lines())
}

func TestPlotter_Close(t *testing.T) {
	dev := newFakeDevice(ackAll)
	p := newTestPlotter(t, dev)
	require.NoError(t, p.Connect())
	require.NoError(t, p.Close())
	require.True(t, dev.isClosed())
	require.False(t, p.Connected())
}
