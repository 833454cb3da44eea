package main

import (
	"errors"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"arduino-trajectory-painter/internal/plotter"
)

const maxLines = 1000

// AppUI holds all UI state and widgets.
type AppUI struct {
	window  fyne.Window
	plotter *plotter.Plotter
	width   int
	height  int

	// Widgets
	pad        *drawingPad
	status     *widget.Label
	connectBtn *widget.Button
	sendBtn    *widget.Button
	replayBtn  *widget.Button
	clearBtn   *widget.Button
	output     *widget.List

	// State
	mu           sync.Mutex
	displayLines []string
	sending      atomic.Bool
}

func NewAppUI(window fyne.Window, p *plotter.Plotter, width, height int) *AppUI {
	ui := &AppUI{
		window:  window,
		plotter: p,
		width:   width,
		height:  height,
	}
	ui.build()
	p.SetObserver(ui.onExchange)
	return ui
}

func (ui *AppUI) build() {
	ui.pad = newDrawingPad(ui.width, ui.height, func(x, y int) {
		if x < 0 || y < 0 || x > ui.width || y > ui.height {
			return
		}
		ui.plotter.Capture(plotter.FromScreen(x, y, ui.height))
		ui.redraw()
	})

	ui.status = widget.NewLabel("")

	ui.connectBtn = widget.NewButton("Connect", func() {
		ui.connect(true)
	})
	ui.sendBtn = widget.NewButton("Send (S)", func() {
		ui.send(ui.plotter.Send)
	})
	ui.replayBtn = widget.NewButton("Replay", func() {
		ui.send(ui.plotter.Replay)
	})
	ui.clearBtn = widget.NewButton("Clear (Esc)", func() {
		ui.clear()
	})

	// Device traffic; copy outside the lock to avoid deadlock with Fyne's
	// internal re-entrant calls.
	ui.output = widget.NewList(
		func() int {
			ui.mu.Lock()
			defer ui.mu.Unlock()
			return len(ui.displayLines)
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel("")
			label.TextStyle = fyne.TextStyle{Monospace: true}
			return label
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			ui.mu.Lock()
			var text string
			if id < len(ui.displayLines) {
				text = ui.displayLines[id]
			}
			ui.mu.Unlock()
			obj.(*widget.Label).SetText(text)
		},
	)

	toolbar := container.NewHBox(
		ui.connectBtn,
		ui.status,
		layout.NewSpacer(),
		ui.clearBtn,
		ui.replayBtn,
		ui.sendBtn,
	)
	traffic := container.NewGridWrap(fyne.NewSize(220, float32(ui.height)), ui.output)
	content := container.NewBorder(toolbar, nil, nil, traffic, ui.pad)
	ui.window.SetContent(content)

	ui.window.Canvas().SetOnTypedKey(ui.typedKey)

	ui.setSendEnabled(false)
}

// typedKey handles the keyboard shortcuts. S follows the Send button, so it
// does nothing while sending is disabled.
func (ui *AppUI) typedKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyEscape:
		ui.clear()
	case fyne.KeyS:
		if ui.sendBtn.Disabled() {
			return
		}
		ui.send(ui.plotter.Send)
	}
}

// connect runs device discovery and opens the link off the UI goroutine,
// since opening waits for the board to settle.
func (ui *AppUI) connect(interactive bool) {
	ui.connectBtn.Disable()
	ui.status.SetText("Searching for device...")
	go func() {
		err := ui.plotter.Connect()
		fyne.Do(func() {
			ui.connectBtn.Enable()
			if err != nil {
				ui.setSendEnabled(false)
				ui.status.SetText(disconnectedText(err))
				if interactive || !errors.Is(err, plotter.ErrNoDevice) {
					dialog.ShowError(err, ui.window)
				}
				return
			}
			ui.status.SetText("Connected: " + ui.plotter.PortName())
			ui.setSendEnabled(true)
		})
	}()
}

func disconnectedText(err error) string {
	if errors.Is(err, plotter.ErrNoDevice) {
		return "No device detected"
	}
	return "Not connected"
}

func (ui *AppUI) setSendEnabled(enabled bool) {
	if enabled && !ui.sending.Load() {
		ui.sendBtn.Enable()
		ui.replayBtn.Enable()
		return
	}
	ui.sendBtn.Disable()
	ui.replayBtn.Disable()
}

func (ui *AppUI) clear() {
	ui.plotter.Clear()
	ui.redraw()
}

func (ui *AppUI) redraw() {
	ui.pad.Draw(ui.plotter.Points(), ui.height)
}

// send runs a transmission on its own goroutine and reports the outcome.
// Without a device the trajectory is still recorded before the error shows.
func (ui *AppUI) send(run func() (*plotter.Session, error)) {
	if !ui.sending.CompareAndSwap(false, true) {
		return
	}
	ui.setSendEnabled(false)
	ui.connectBtn.Disable()
	ui.status.SetText("Sending...")

	go func() {
		s, err := run()
		fyne.Do(func() {
			ui.sending.Store(false)
			ui.connectBtn.Enable()
			ui.setSendEnabled(ui.plotter.Connected())
			if err != nil {
				ui.status.SetText("Send failed")
				dialog.ShowError(sendError(s, err), ui.window)
				return
			}
			ui.status.SetText(fmt.Sprintf("Sent %d points", s.Acked()))
		})
	}()
}

func sendError(s *plotter.Session, err error) error {
	if s == nil {
		return err
	}
	return fmt.Errorf("%d of %d points delivered: %w", s.Acked(), s.Len(), err)
}

// onExchange is called on the sending goroutine.
func (ui *AppUI) onExchange(e plotter.Exchange) {
	line := formatExchange(e)

	ui.mu.Lock()
	ui.displayLines = append(ui.displayLines, line)
	// Bound memory
	if len(ui.displayLines) > maxLines {
		ui.displayLines = ui.displayLines[len(ui.displayLines)-maxLines:]
	}
	ui.mu.Unlock()

	fyne.Do(func() {
		ui.output.Refresh()
		ui.output.ScrollToBottom()
	})
}

func formatExchange(e plotter.Exchange) string {
	switch {
	case e.Index < 0:
		return "> " + e.Message
	case e.Acked:
		return fmt.Sprintf("> %s  < %s", e.Message, e.Response)
	case !e.Received:
		return fmt.Sprintf("> %s  < (no reply) #%d", e.Message, e.Attempt)
	default:
		return fmt.Sprintf("> %s  < %q #%d", e.Message, e.Response, e.Attempt)
	}
}

// drawingPad records taps and renders the captured path.
type drawingPad struct {
	widget.BaseWidget
	size    fyne.Size
	bg      *canvas.Rectangle
	strokes *fyne.Container
	onTap   func(x, y int)
}

func newDrawingPad(width, height int, onTap func(x, y int)) *drawingPad {
	p := &drawingPad{
		size:    fyne.NewSize(float32(width), float32(height)),
		bg:      canvas.NewRectangle(color.White),
		strokes: container.NewWithoutLayout(),
		onTap:   onTap,
	}
	p.ExtendBaseWidget(p)
	return p
}

func (p *drawingPad) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewStack(p.bg, p.strokes))
}

func (p *drawingPad) MinSize() fyne.Size {
	return p.size
}

func (p *drawingPad) Tapped(ev *fyne.PointEvent) {
	p.onTap(int(ev.Position.X), int(ev.Position.Y))
}

// Draw replaces the rendered path with points. Y is measured from the bottom.
func (p *drawingPad) Draw(points []plotter.CapturedPoint, height int) {
	objs := make([]fyne.CanvasObject, 0, len(points))
	for i := 1; i < len(points); i++ {
		line := canvas.NewLine(color.Black)
		line.StrokeWidth = 2
		line.Position1 = fyne.NewPos(float32(points[i-1].X), float32(height-points[i-1].Y))
		line.Position2 = fyne.NewPos(float32(points[i].X), float32(height-points[i].Y))
		objs = append(objs, line)
	}
	if len(points) == 1 {
		dot := canvas.NewCircle(color.Black)
		dot.Resize(fyne.NewSize(4, 4))
		dot.Move(fyne.NewPos(float32(points[0].X)-2, float32(height-points[0].Y)-2))
		objs = append(objs, dot)
	}
	p.strokes.Objects = objs
	p.strokes.Refresh()
}
