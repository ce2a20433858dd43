package engine

import (
	"strings"
	"time"

	"github.com/makromakina/kiosk/internal/model"
	"github.com/makromakina/kiosk/internal/signature"
)

// Defaults for the fixed notification fields.
const (
	DefaultCompanyName = "Makro Makina"
	DefaultFormType    = "Ziyaretçi Kayıt Formu"
)

const (
	emailNotProvided = "Belirtilmedi"
	consentGiven     = "Onaylandı"
	consentWithheld  = "Onaylanmadı"

	dateLayout = "02.01.2006"
	timeLayout = "15:04:05"
)

// templateParams builds the notification payload for one submission.
func (c *Coordinator) templateParams(f model.VisitorFields, thumb signature.Artifact, client ClientInfo, at time.Time) map[string]string {
	name := strings.TrimSpace(f.Name)
	surname := strings.TrimSpace(f.Surname)

	email := strings.TrimSpace(f.Email)
	if email == "" {
		email = emailNotProvided
	}
	consent := consentWithheld
	if f.ConsentGiven {
		consent = consentGiven
	}

	date := at.Format(dateLayout)
	clock := at.Format(timeLayout)
	return map[string]string{
		"visitor_name":        name,
		"visitor_surname":     surname,
		"visitor_phone":       strings.TrimSpace(f.Phone),
		"visitor_email":       email,
		"visitor_full_name":   name + " " + surname,
		"submission_date":     date,
		"submission_time":     clock,
		"submission_datetime": date + " " + clock,
		"kvkk_consent":        consent,
		"signature_image":     thumb.DataURL(),
		"company_name":        c.company,
		"form_type":           c.formType,
		"user_agent":          client.UserAgent,
		"screen_resolution":   client.ScreenResolution,
	}
}
