package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/makromakina/kiosk/internal/model"
)

const (
	utf8BOM          = "\ufeff"
	exportTimeLayout = "02.01.2006 15:04:05"
)

var exportHeader = []string{"ID", "Ad", "Soyad", "Telefon", "E-posta", "KVKK Onayı", "Kayıt Tarihi", "İmza (Base64)"}

// handleExportVisitors streams every visitor matching the list filters as a
// semicolon separated CSV. The BOM makes spreadsheet programs read it as UTF-8.
func (s *Server) handleExportVisitors(w http.ResponseWriter, r *http.Request) {
	f, err := s.visitorFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	visitors, _, err := s.visitors.ListVisitors(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list visitors")
		return
	}

	filename := fmt.Sprintf("makro_makina_ziyaretciler_%s.csv", s.now().In(s.loc).Format(dayLayout))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	if err := s.writeCSV(w, visitors); err != nil {
		slog.Error("write visitor export", "error", err)
	}
}

func (s *Server) writeCSV(out io.Writer, visitors []model.Visitor) error {
	if _, err := io.WriteString(out, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(out)
	cw.Comma = ';'
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, v := range visitors {
		if err := cw.Write(s.exportRow(v)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Server) exportRow(v model.Visitor) []string {
	email := ""
	if v.Email != nil {
		email = *v.Email
	}
	consent := "Hayır"
	if v.ConsentGiven {
		consent = "Evet"
	}
	created := v.CreatedAt
	if t, err := time.Parse(time.RFC3339, v.CreatedAt); err == nil {
		created = t.In(s.loc).Format(exportTimeLayout)
	}
	return []string{v.ID, v.Name, v.Surname, v.Phone, email, consent, created, v.SignatureImage}
}
