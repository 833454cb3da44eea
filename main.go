package main

import (
	"flag"
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"go.uber.org/zap"

	"arduino-trajectory-painter/internal/config"
	"arduino-trajectory-painter/internal/observability"
	"arduino-trajectory-painter/internal/plotter"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.Log)
	defer logger.Sync()

	p := plotter.New(cfg.Plotter(), logger)
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	a := app.NewWithID("com.github.arduino-trajectory-painter")
	w := a.NewWindow("Painter App")
	w.Resize(fyne.NewSize(float32(cfg.Canvas.Width)+220, float32(cfg.Canvas.Height)+40))
	w.SetFixedSize(true)

	ui := NewAppUI(w, p, cfg.Canvas.Width, cfg.Canvas.Height)
	ui.connect(false)

	w.ShowAndRun()
}
