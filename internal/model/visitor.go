package model

import (
	"regexp"
	"strings"
	"time"
)

// Visitor is a persisted check-in record.
type Visitor struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Surname        string  `json:"surname"`
	Phone          string  `json:"phone"`
	Email          *string `json:"email"`
	ConsentGiven   bool    `json:"kvkk_consent"`
	SignatureImage string  `json:"signature_image"` // PNG data URL
	CreatedAt      string  `json:"created_at"`
}

// VisitorFields is what the visitor types into the kiosk form.
type VisitorFields struct {
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	ConsentGiven bool   `json:"kvkk_consent"`
}

// VisitorFilter holds query parameters for the admin visitor list.
type VisitorFilter struct {
	Query  string     // matches name or surname
	From   *time.Time // inclusive
	Before *time.Time // exclusive
	Limit  int        // 0 means no limit
	Offset int
}

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]+$`)

// Validate checks the required form fields.
func (f VisitorFields) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(f.Name) == "" {
		verr.Add("name", "name is required")
	}
	if strings.TrimSpace(f.Surname) == "" {
		verr.Add("surname", "surname is required")
	}
	switch {
	case strings.TrimSpace(f.Phone) == "":
		verr.Add("phone", "phone number is required")
	case !phonePattern.MatchString(f.Phone):
		verr.Add("phone", "enter a valid phone number")
	}
	if !f.ConsentGiven {
		verr.Add("kvkk", "the KVKK notice must be accepted")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// FullName is "Name Surname".
func (f VisitorFields) FullName() string {
	return f.Name + " " + f.Surname
}

// NewVisitor builds a record from form fields and the full-resolution
// signature data URL.
func NewVisitor(id string, f VisitorFields, signature string) Visitor {
	var email *string
	if e := strings.TrimSpace(f.Email); e != "" {
		email = &e
	}
	return Visitor{
		ID:             id,
		Name:           f.Name,
		Surname:        f.Surname,
		Phone:          f.Phone,
		Email:          email,
		ConsentGiven:   f.ConsentGiven,
		SignatureImage: signature,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}
