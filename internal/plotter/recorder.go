package plotter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultTrajectoryFile is where the attempted trajectory is written.
const DefaultTrajectoryFile = "trajectory_points.txt"

// Recorder writes the trajectory about to be sent to a text file, one "x,y"
// record per line.
type Recorder struct {
	Path string
}

func NewRecorder(path string) *Recorder {
	if path == "" {
		path = DefaultTrajectoryFile
	}
	return &Recorder{Path: path}
}

// Persist replaces the file's content with points.
func (r *Recorder) Persist(points []TransformedPoint) error {
	f, err := os.Create(r.Path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, p := range points {
		if err := w.Write([]string{formatCoord(p.X), formatCoord(p.Y)}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush trajectory: %w", err)
	}
	return f.Close()
}

// Load reads back a trajectory written by Persist.
func (r *Recorder) Load() ([]TransformedPoint, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trajectory: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = 2

	var points []TransformedPoint
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedRecord, line, strings.Join(record, ","))
		}
		points = append(points, TransformedPoint{X: x, Y: y})
	}
	return points, nil
}
