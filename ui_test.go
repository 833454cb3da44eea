package main

import (
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arduino-trajectory-painter/internal/plotter"
)

func newTestUI(t *testing.T) (*AppUI, *plotter.Plotter) {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)

	cfg := plotter.DefaultConfig()
	cfg.TrajectoryFile = filepath.Join(t.TempDir(), "trajectory_points.txt")
	p := plotter.New(cfg, zaptest.NewLogger(t))

	w := a.NewWindow("Painter App")
	t.Cleanup(w.Close)
	return NewAppUI(w, p, cfg.CanvasWidth, cfg.CanvasHeight), p
}

func TestAppUI_SendKeyIgnoredWhileDisabled(t *testing.T) {
	ui, p := newTestUI(t)
	p.Capture(plotter.CapturedPoint{X: 10, Y: 10})

	require.True(t, ui.sendBtn.Disabled())
	ui.typedKey(&fyne.KeyEvent{Name: fyne.KeyS})

	require.False(t, ui.sending.Load())
	require.Empty(t, ui.status.Text)
	_, err := os.Stat(p.RecordPath())
	require.True(t, os.IsNotExist(err))
}

func TestAppUI_EscapeClears(t *testing.T) {
	ui, p := newTestUI(t)
	p.Capture(plotter.CapturedPoint{X: 10, Y: 10})
	p.Capture(plotter.CapturedPoint{X: 20, Y: 20})

	ui.typedKey(&fyne.KeyEvent{Name: fyne.KeyEscape})
	require.Empty(t, p.Points())
}
