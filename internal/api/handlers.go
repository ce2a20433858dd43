package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/makromakina/kiosk/internal/engine"
	"github.com/makromakina/kiosk/internal/kiosk"
	"github.com/makromakina/kiosk/internal/model"
	"github.com/makromakina/kiosk/internal/signature"
)

// ---------------------------------------------------------------------------
// GET /health, GET /api/consent
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.consent.Notice(r.Context()))
}

// ---------------------------------------------------------------------------
// Kiosk sessions
// ---------------------------------------------------------------------------

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var f model.VisitorFields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := s.kiosk.Open(f)
	if err != nil {
		writeKioskError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var f model.VisitorFields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.kiosk.UpdateFields(r.PathValue("id"), f); err != nil {
		writeKioskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
}

func (s *Server) handleOpenSurface(w http.ResponseWriter, r *http.Request) {
	var d signature.Display
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.kiosk.OpenSurface(r.PathValue("id"), d); err != nil {
		writeKioskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kiosk.SurfaceState{})
}

func (s *Server) handleCloseSurface(w http.ResponseWriter, r *http.Request) {
	if err := s.kiosk.CloseSurface(r.PathValue("id")); err != nil {
		writeKioskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// eventRequest is a batch of raw browser input events together with the
// surface's bounding rectangle at the time they were captured.
type eventRequest struct {
	Rect   signature.Rect `json:"rect"`
	Events []inputEvent   `json:"events"`
}

type inputEvent struct {
	Type string `json:"type"`
	// Target is "surface" (or empty) when the event was raised on the
	// signature surface itself.
	Target         string            `json:"target"`
	ClientX        float64           `json:"client_x"`
	ClientY        float64           `json:"client_y"`
	Touches        []signature.Point `json:"touches"`
	ChangedTouches []signature.Point `json:"changed_touches"`
}

func (e inputEvent) decode() (signature.Event, error) {
	ev := signature.Event{OnSurface: e.Target == "" || e.Target == "surface"}
	mouse := signature.Mouse{Client: signature.Point{X: e.ClientX, Y: e.ClientY}}
	touch := signature.Touch{Active: e.Touches, Changed: e.ChangedTouches}

	switch e.Type {
	case "mousedown":
		ev.Phase, ev.Pointer = signature.PhaseBegin, mouse
	case "mousemove":
		ev.Phase, ev.Pointer = signature.PhaseMove, mouse
	case "mouseup", "mouseleave":
		ev.Phase, ev.Pointer = signature.PhaseEnd, mouse
	case "touchstart":
		ev.Phase, ev.Pointer = signature.PhaseBegin, touch
	case "touchmove":
		ev.Phase, ev.Pointer = signature.PhaseMove, touch
	case "touchend", "touchcancel":
		ev.Phase, ev.Pointer = signature.PhaseEnd, touch
	default:
		return signature.Event{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	return ev, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	events := make([]signature.Event, 0, len(req.Events))
	for i, e := range req.Events {
		ev, err := e.decode()
		if err != nil {
			writeError(w, http.StatusBadRequest, "events["+strconv.Itoa(i)+"]: "+err.Error())
			return
		}
		events = append(events, ev)
	}

	st, err := s.kiosk.Dispatch(r.PathValue("id"), req.Rect, events)
	if err != nil {
		writeKioskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.kiosk.ClearSignature(r.PathValue("id")); err != nil {
		writeKioskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kiosk.SurfaceState{})
}

func (s *Server) handleSaveSignature(w http.ResponseWriter, r *http.Request) {
	a, err := s.kiosk.SaveSignature(r.PathValue("id"))
	if err != nil {
		writeKioskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"width":           a.Width,
		"height":          a.Height,
		"signature_image": a.DataURL(),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	a, err := s.kiosk.Preview(r.PathValue("id"))
	if err != nil {
		writeKioskError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(a.Data)
}

type submitRequest struct {
	UserAgent        string `json:"user_agent"`
	ScreenResolution string `json:"screen_resolution"`
}

type submitResponse struct {
	engine.Outcome
	Message      string `json:"message,omitempty"`
	ResetAfterMS int64  `json:"reset_after_ms"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	// An empty body is allowed.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	out, err := s.kiosk.Submit(r.Context(), r.PathValue("id"), engine.ClientInfo{
		UserAgent:        req.UserAgent,
		ScreenResolution: req.ScreenResolution,
	})
	if err != nil {
		writeKioskError(w, err)
		return
	}

	resp := submitResponse{Outcome: out, Message: out.Message(), ResetAfterMS: out.ResetAfter.Milliseconds()}
	if !out.OverallSuccess {
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// POST /api/submit-form
// ---------------------------------------------------------------------------

type submitFormRequest struct {
	model.VisitorFields
	SignatureImage string `json:"signature_image"`
}

// handleSubmitForm stores a complete record sent by a client that rendered
// the signature itself. Nothing is sent to the notification service.
func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	var req submitFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.VisitorFields.Validate(); err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := signature.ParseDataURL(req.SignatureImage); err != nil {
		writeError(w, http.StatusBadRequest, "signature_image must be a base64 image data URL")
		return
	}

	v := model.NewVisitor(uuid.New().String(), req.VisitorFields, req.SignatureImage)
	id, err := s.visitors.InsertVisitor(r.Context(), v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save visitor")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": id})
}

// writeKioskError maps controller errors to HTTP responses.
func writeKioskError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, kiosk.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, kiosk.ErrTooManySessions):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, kiosk.ErrNoSurface):
		writeError(w, http.StatusConflict, "signature surface is not open")
	case errors.Is(err, kiosk.ErrNoSignature):
		writeError(w, http.StatusBadRequest, "signature is required")
	case errors.Is(err, signature.ErrInvalidDisplay):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
