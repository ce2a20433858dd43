// Package signature implements the free-hand signing surface: a raster canvas
// driven by pointer and touch input, plus the encoders that turn it into
// portable PNG artifacts.
package signature

import (
	"errors"
	"image"
	"math"

	"github.com/fogleman/gg"
)

// Drawing style. All lengths are in device-independent units.
const (
	backgroundColor = "#ffffff"
	borderColor     = "#ff9000"
	inkColor        = "#0b2847"

	borderInset = 2.0
	borderWidth = 3.0
	strokeWidth = 4.0
)

// ErrInvalidDisplay is returned by Setup for empty or oversized displays.
var ErrInvalidDisplay = errors.New("signature: display size must be positive and at most 4096 physical pixels per side and 4 MP in total")

// Backing buffer limits. 4 MP of RGBA is 16 MiB.
const (
	maxPhysical = 4096
	maxPixels   = 4 << 20
)

// State is the stroke protocol state of a Surface.
type State int

const (
	StateIdle State = iota
	StateDrawing
)

func (s State) String() string {
	if s == StateDrawing {
		return "drawing"
	}
	return "idle"
}

// Display describes the on-screen size of the signing area.
type Display struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	PixelRatio float64 `json:"pixel_ratio"`
}

// Surface owns the signature raster and the stroke state machine.
// A Surface is not safe for concurrent use.
type Surface struct {
	dc      *gg.Context
	display Display

	state  State
	anchor Point
	inked  bool
}

// NewSurface allocates a surface and paints it blank.
func NewSurface(d Display) (*Surface, error) {
	s := &Surface{}
	if err := s.Setup(d); err != nil {
		return nil, err
	}
	return s, nil
}

// Setup (re)allocates the backing buffer at display size times pixel ratio,
// scales the context so drawing happens in display units, and paints the
// blank state. Any previous raster, stroke and ink are discarded.
func (s *Surface) Setup(d Display) error {
	if d.Width <= 0 || d.Height <= 0 || math.IsNaN(d.Width) || math.IsNaN(d.Height) {
		return ErrInvalidDisplay
	}
	if d.PixelRatio < 1 || math.IsNaN(d.PixelRatio) {
		d.PixelRatio = 1
	}

	pw, ph := math.Ceil(d.Width*d.PixelRatio), math.Ceil(d.Height*d.PixelRatio)
	if pw > maxPhysical || ph > maxPhysical || pw*ph > maxPixels {
		return ErrInvalidDisplay
	}
	w, h := int(pw), int(ph)
	dc := gg.NewContext(w, h)
	dc.Scale(d.PixelRatio, d.PixelRatio)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	s.dc = dc
	s.display = d
	s.state = StateIdle
	s.anchor = Point{}
	s.inked = false
	s.paintBlank()
	return nil
}

// Display returns the display geometry the surface was set up with.
func (s *Surface) Display() Display { return s.display }

// State reports whether a stroke is in progress.
func (s *Surface) State() State { return s.state }

// HasInk reports whether any segment has been drawn since setup or the last Clear.
func (s *Surface) HasInk() bool { return s.inked }

// Bounds returns the physical pixel bounds of the raster.
func (s *Surface) Bounds() image.Rectangle { return s.dc.Image().Bounds() }

// Begin starts a stroke anchored at p. It does not draw.
func (s *Surface) Begin(p Point) {
	s.state = StateDrawing
	s.anchor = p
}

// Extend draws a segment from the anchor to p and moves the anchor.
// It is a no-op unless a stroke is in progress.
func (s *Surface) Extend(p Point) {
	if s.state != StateDrawing {
		return
	}
	s.dc.SetHexColor(inkColor)
	s.dc.SetLineWidth(s.px(strokeWidth))
	s.dc.MoveTo(s.anchor.X, s.anchor.Y)
	s.dc.LineTo(p.X, p.Y)
	s.dc.Stroke()

	s.anchor = p
	s.inked = true
}

// reanchor moves the anchor without drawing; used when the driving touch
// lifts while another finger stays down.
func (s *Surface) reanchor(p Point) {
	if s.state != StateDrawing {
		return
	}
	s.anchor = p
}

// End finishes the current stroke. Ink is kept.
func (s *Surface) End() {
	if s.state != StateDrawing {
		return
	}
	s.state = StateIdle
	s.anchor = Point{}
}

// Clear repaints the blank state and drops the ink flag. The stroke state is
// left as is.
func (s *Surface) Clear() {
	s.paintBlank()
	s.inked = false
}

// Image exposes the raster for encoding. Callers must not modify it.
func (s *Surface) Image() image.Image { return s.dc.Image() }

func (s *Surface) paintBlank() {
	dc := s.dc
	dc.SetHexColor(backgroundColor)
	dc.Clear()

	dc.SetHexColor(borderColor)
	dc.SetLineWidth(s.px(borderWidth))
	dc.DrawRectangle(borderInset, borderInset, s.display.Width-2*borderInset, s.display.Height-2*borderInset)
	dc.Stroke()
}

// px converts a display-unit line width to physical pixels; gg applies the
// context transform to path coordinates but not to line widths.
func (s *Surface) px(v float64) float64 {
	return v * s.display.PixelRatio
}
