package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/makromakina/kiosk/internal/admin"
	"github.com/makromakina/kiosk/internal/model"
	"github.com/makromakina/kiosk/internal/store"
)

// PageSize is the number of visitors per admin list page.
const PageSize = 50

// maxPage keeps the list offset from overflowing.
const maxPage = math.MaxInt / PageSize

const dayLayout = "2006-01-02"

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.admins.RecordAttempt(r.Context(), "", ip)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sess, err := s.admins.Login(r.Context(), req.Email, req.Password, ip)
	if errors.Is(err, admin.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	expires, _ := time.Parse(time.RFC3339, sess.ExpiresAt)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"token":      sess.Token,
		"email":      sess.Email,
		"expires_at": sess.ExpiresAt,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.admins.Logout(r.Context(), sessionToken(r)); err != nil {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentSession(r))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a, err := s.admins.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type changePasswordRequest struct {
	Email           string `json:"email"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// Admins can only change their own password.
	sess := currentSession(r)
	if req.Email != "" && !strings.EqualFold(strings.TrimSpace(req.Email), sess.Email) {
		writeError(w, http.StatusForbidden, "can only change your own password")
		return
	}
	if err := s.admins.ChangePassword(r.Context(), sess.Email, req.CurrentPassword, req.NewPassword); err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeAdminError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, admin.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, admin.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, admin.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ---------------------------------------------------------------------------
// Visitors
// ---------------------------------------------------------------------------

// visitorFilter reads q, from and to. Dates are calendar days in the
// server's time zone; to is inclusive through the end of that day.
func (s *Server) visitorFilter(r *http.Request) (model.VisitorFilter, error) {
	q := r.URL.Query()
	f := model.VisitorFilter{Query: q.Get("q")}
	if v := q.Get("from"); v != "" {
		day, err := time.ParseInLocation(dayLayout, v, s.loc)
		if err != nil {
			return f, errors.New("from must be YYYY-MM-DD")
		}
		f.From = &day
	}
	if v := q.Get("to"); v != "" {
		day, err := time.ParseInLocation(dayLayout, v, s.loc)
		if err != nil {
			return f, errors.New("to must be YYYY-MM-DD")
		}
		next := day.AddDate(0, 0, 1)
		f.Before = &next
	}
	return f, nil
}

func (s *Server) handleListVisitors(w http.ResponseWriter, r *http.Request) {
	f, err := s.visitorFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		if page > maxPage {
			writeError(w, http.StatusBadRequest, "page out of range")
			return
		}
	}
	f.Limit = PageSize
	f.Offset = (page - 1) * PageSize

	visitors, total, err := s.visitors.ListVisitors(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list visitors")
		return
	}
	if visitors == nil {
		visitors = []model.Visitor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"visitors":    visitors,
		"total":       total,
		"page":        page,
		"page_size":   PageSize,
		"total_pages": (total + PageSize - 1) / PageSize,
	})
}

func (s *Server) handleGetVisitor(w http.ResponseWriter, r *http.Request) {
	v, err := s.visitors.GetVisitor(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "visitor not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get visitor")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteVisitor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.visitors.DeleteVisitor(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "visitor not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete visitor")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}
