package signature

// Point is a canvas-local coordinate in display units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is the on-screen bounding rectangle of the surface, in the same
// client coordinate space as input events.
type Rect struct {
	Left   float64 `json:"x"`
	Top    float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Phase is the stroke protocol step an input event maps to.
type Phase int

const (
	PhaseBegin Phase = iota
	PhaseMove
	PhaseEnd
)

// Pointer carries the coordinate source of an input event. It is either a
// Mouse or a Touch; the variant is decided once, when the event is decoded.
type Pointer interface {
	pointer()
}

// Mouse is a single client-space position.
type Mouse struct {
	Client Point
}

// Touch lists the touches still on the screen and the touches that changed
// in this event (for an end event, the ones that just lifted).
type Touch struct {
	Active  []Point
	Changed []Point
}

func (Mouse) pointer() {}
func (Touch) pointer() {}

// Event is one decoded input event.
type Event struct {
	Phase Phase
	// OnSurface is false when the event target was some other element.
	// Such events are dropped before any coordinate translation.
	OnSurface bool
	Pointer   Pointer
}

// Normalize maps the event's client coordinate into canvas-local space.
// For touches it prefers the first active touch, then the first changed
// touch. ok is false when no coordinate is available; the returned point is
// then (0,0) and must not be used to draw.
func Normalize(p Pointer, r Rect) (pt Point, ok bool) {
	var client Point
	switch v := p.(type) {
	case Mouse:
		client = v.Client
	case Touch:
		switch {
		case len(v.Active) > 0:
			client = v.Active[0]
		case len(v.Changed) > 0:
			client = v.Changed[0]
		default:
			return Point{}, false
		}
	default:
		return Point{}, false
	}
	return Point{X: client.X - r.Left, Y: client.Y - r.Top}, true
}

// Dispatch applies one input event to the surface.
func (s *Surface) Dispatch(ev Event, r Rect) {
	if !ev.OnSurface {
		return
	}

	switch ev.Phase {
	case PhaseBegin:
		if pt, ok := Normalize(ev.Pointer, r); ok {
			s.Begin(pt)
		}
	case PhaseMove:
		if pt, ok := Normalize(ev.Pointer, r); ok {
			s.Extend(pt)
		}
	case PhaseEnd:
		// A lifted finger with others still down hands the stroke over to
		// the first remaining touch.
		if t, isTouch := ev.Pointer.(Touch); isTouch && len(t.Active) > 0 {
			pt, _ := Normalize(Touch{Active: t.Active}, r)
			s.reanchor(pt)
			return
		}
		s.End()
	}
}
