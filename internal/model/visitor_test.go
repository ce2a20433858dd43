package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validFields() VisitorFields {
	return VisitorFields{
		Name:         "Ayşe",
		Surname:      "Yılmaz",
		Phone:        "0555 123 45 67",
		ConsentGiven: true,
	}
}

func TestVisitorFields_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(f *VisitorFields)
		wantFields []string
	}{
		{"valid", func(f *VisitorFields) {}, nil},
		{"valid with email", func(f *VisitorFields) { f.Email = "a@example.com" }, nil},
		{"international phone", func(f *VisitorFields) { f.Phone = "+90 (555) 123-45-67" }, nil},
		{"missing name", func(f *VisitorFields) { f.Name = "  " }, []string{"name"}},
		{"missing surname", func(f *VisitorFields) { f.Surname = "" }, []string{"surname"}},
		{"missing phone", func(f *VisitorFields) { f.Phone = "" }, []string{"phone"}},
		{"letters in phone", func(f *VisitorFields) { f.Phone = "call me" }, []string{"phone"}},
		{"no consent", func(f *VisitorFields) { f.ConsentGiven = false }, []string{"kvkk"}},
		{"everything missing", func(f *VisitorFields) { *f = VisitorFields{} }, []string{"name", "surname", "phone", "kvkk"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)
			err := f.Validate()
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Errorf("fields = %v, want %v", verr.Fields, tt.wantFields)
			}
			for _, k := range tt.wantFields {
				if _, ok := verr.Fields[k]; !ok {
					t.Errorf("missing field error for %q", k)
				}
			}
		})
	}
}

func TestNewVisitor(t *testing.T) {
	f := validFields()
	v := NewVisitor("v-1", f, "data:image/png;base64,AAAA")
	if v.Email != nil {
		t.Errorf("Email = %v, want nil for empty email", *v.Email)
	}
	if v.CreatedAt == "" {
		t.Error("CreatedAt should not be empty")
	}

	f.Email = " a@example.com "
	v = NewVisitor("v-2", f, "")
	if v.Email == nil || *v.Email != "a@example.com" {
		t.Errorf("Email = %v, want trimmed address", v.Email)
	}
}

func TestValidationError_Error(t *testing.T) {
	verr := &ValidationError{}
	verr.Add("phone", "bad phone")
	verr.Add("phone", "ignored")
	verr.Add("name", "no name")
	got := verr.Error()
	if !strings.Contains(got, "no name; bad phone") {
		t.Errorf("Error() = %q", got)
	}
}

func TestSession_Expired(t *testing.T) {
	s := NewSession("tok", Admin{ID: "a-1", Email: "a@example.com"}, time.Hour)
	if s.Expired(time.Now()) {
		t.Error("fresh session reported expired")
	}
	if !s.Expired(time.Now().Add(2 * time.Hour)) {
		t.Error("session should expire after its ttl")
	}
	if !(Session{ExpiresAt: "garbage"}).Expired(time.Now()) {
		t.Error("unparseable expiry should count as expired")
	}
}
