package plotter

import (
	"math"
	"strconv"
)

// CapturedPoint is a pixel position on the drawing canvas. Y is measured
// from the bottom edge; see FromScreen.
type CapturedPoint struct {
	X int
	Y int
}

// TransformedPoint is a position in device workspace units.
type TransformedPoint struct {
	X float64
	Y float64
}

// String formats the point the way it goes on the wire: "x,y" with two
// fractional digits.
func (p TransformedPoint) String() string {
	return formatCoord(p.X) + "," + formatCoord(p.Y)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FromScreen converts a top-left origin screen position into a CapturedPoint
// with the vertical axis inverted.
func FromScreen(x, y, canvasHeight int) CapturedPoint {
	return CapturedPoint{X: x, Y: canvasHeight - y}
}

// Workspace describes the device coordinate space a canvas maps onto.
type Workspace struct {
	Width   float64
	Height  float64
	OffsetY float64
}

// DefaultWorkspace is the 10x6 unit area with a +10 vertical offset.
var DefaultWorkspace = Workspace{Width: 10, Height: 6, OffsetY: 10}

// Transform maps captured points onto the default workspace.
func Transform(points []CapturedPoint, canvasWidth, canvasHeight int) []TransformedPoint {
	return DefaultWorkspace.Transform(points, canvasWidth, canvasHeight)
}

// Transform maps captured points onto w. The output has the same length and
// order as points.
func (w Workspace) Transform(points []CapturedPoint, canvasWidth, canvasHeight int) []TransformedPoint {
	out := make([]TransformedPoint, len(points))
	cw, ch := float64(canvasWidth), float64(canvasHeight)
	for i, p := range points {
		out[i] = TransformedPoint{
			X: round2(float64(p.X) * w.Width / cw),
			Y: round2(float64(p.Y)*w.Height/ch + w.OffsetY),
		}
	}
	return out
}

// round2 rounds half to even at two decimals.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
