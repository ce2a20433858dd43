package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/makromakina/kiosk/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func makeVisitor(id, name, surname string, createdAt time.Time) model.Visitor {
	return model.Visitor{
		ID:             id,
		Name:           name,
		Surname:        surname,
		Phone:          "0555 000 00 00",
		ConsentGiven:   true,
		SignatureImage: "data:image/png;base64,AAAA",
		CreatedAt:      createdAt.UTC().Format(time.RFC3339),
	}
}

func TestInsertAndGetVisitor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	email := "ayse@example.com"
	v := makeVisitor("v-1", "Ayşe", "Yılmaz", time.Now())
	v.Email = &email

	id, err := s.InsertVisitor(ctx, v)
	if err != nil {
		t.Fatalf("InsertVisitor: %v", err)
	}
	if id != "v-1" {
		t.Errorf("id = %q, want %q", id, "v-1")
	}

	got, err := s.GetVisitor(ctx, "v-1")
	if err != nil {
		t.Fatalf("GetVisitor: %v", err)
	}
	if got.Name != "Ayşe" || got.Surname != "Yılmaz" {
		t.Errorf("name = %q %q", got.Name, got.Surname)
	}
	if got.Email == nil || *got.Email != email {
		t.Errorf("Email = %v, want %q", got.Email, email)
	}
	if !got.ConsentGiven {
		t.Error("ConsentGiven = false, want true")
	}
	if got.SignatureImage != v.SignatureImage {
		t.Errorf("SignatureImage = %q", got.SignatureImage)
	}
}

func TestInsertVisitor_NullEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertVisitor(ctx, makeVisitor("v-1", "A", "B", time.Now())); err != nil {
		t.Fatalf("InsertVisitor: %v", err)
	}
	got, err := s.GetVisitor(ctx, "v-1")
	if err != nil {
		t.Fatalf("GetVisitor: %v", err)
	}
	if got.Email != nil {
		t.Errorf("Email = %q, want nil", *got.Email)
	}
}

func TestInsertVisitor_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	v := makeVisitor("v-1", "A", "B", time.Now())
	if _, err := s.InsertVisitor(ctx, v); err != nil {
		t.Fatalf("InsertVisitor: %v", err)
	}
	if _, err := s.InsertVisitor(ctx, v); err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestGetVisitor_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetVisitor(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListVisitors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	visitors := []model.Visitor{
		makeVisitor("v-1", "Ayşe", "Yılmaz", base),
		makeVisitor("v-2", "Mehmet", "Kaya", base.Add(24*time.Hour)),
		makeVisitor("v-3", "Zeynep", "Ayhan", base.Add(48*time.Hour)),
	}
	for _, v := range visitors {
		if _, err := s.InsertVisitor(ctx, v); err != nil {
			t.Fatalf("InsertVisitor: %v", err)
		}
	}

	t.Run("all newest first", func(t *testing.T) {
		got, total, err := s.ListVisitors(ctx, model.VisitorFilter{})
		if err != nil {
			t.Fatalf("ListVisitors: %v", err)
		}
		if total != 3 || len(got) != 3 {
			t.Fatalf("total = %d, len = %d, want 3", total, len(got))
		}
		if got[0].ID != "v-3" || got[2].ID != "v-1" {
			t.Errorf("order = %s,%s,%s", got[0].ID, got[1].ID, got[2].ID)
		}
	})

	t.Run("search matches name or surname case-insensitively", func(t *testing.T) {
		got, total, err := s.ListVisitors(ctx, model.VisitorFilter{Query: "KAYA"})
		if err != nil {
			t.Fatalf("ListVisitors: %v", err)
		}
		if total != 1 || got[0].ID != "v-2" {
			t.Errorf("search KAYA = %d results", total)
		}
	})

	t.Run("date range", func(t *testing.T) {
		from := base.Add(12 * time.Hour)
		before := base.Add(36 * time.Hour)
		got, total, err := s.ListVisitors(ctx, model.VisitorFilter{From: &from, Before: &before})
		if err != nil {
			t.Fatalf("ListVisitors: %v", err)
		}
		if total != 1 || got[0].ID != "v-2" {
			t.Errorf("range total = %d", total)
		}
	})

	t.Run("pagination keeps total", func(t *testing.T) {
		got, total, err := s.ListVisitors(ctx, model.VisitorFilter{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("ListVisitors: %v", err)
		}
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		if len(got) != 1 || got[0].ID != "v-1" {
			t.Errorf("page 2 = %v", got)
		}
	})
}

func TestDeleteVisitor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.InsertVisitor(ctx, makeVisitor("v-1", "A", "B", time.Now())); err != nil {
		t.Fatalf("InsertVisitor: %v", err)
	}

	if err := s.DeleteVisitor(ctx, "v-1"); err != nil {
		t.Fatalf("DeleteVisitor: %v", err)
	}
	if _, err := s.GetVisitor(ctx, "v-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteVisitor(ctx, "v-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestAdmins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CountAdmins(ctx)
	if err != nil || n != 0 {
		t.Fatalf("CountAdmins = %d, %v", n, err)
	}

	a := model.Admin{ID: "a-1", Email: "admin@example.com", PasswordHash: "hash-1", CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	if err := s.CreateAdmin(ctx, a); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	if err := s.CreateAdmin(ctx, model.Admin{ID: "a-2", Email: a.Email, PasswordHash: "x", CreatedAt: a.CreatedAt}); err == nil {
		t.Error("expected unique violation for duplicate email")
	}

	got, err := s.GetAdminByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("GetAdminByEmail: %v", err)
	}
	if got.PasswordHash != "hash-1" {
		t.Errorf("PasswordHash = %q", got.PasswordHash)
	}

	if err := s.UpdateAdminPassword(ctx, "a-1", "hash-2"); err != nil {
		t.Fatalf("UpdateAdminPassword: %v", err)
	}
	got, _ = s.GetAdminByEmail(ctx, "admin@example.com")
	if got.PasswordHash != "hash-2" {
		t.Errorf("PasswordHash after update = %q", got.PasswordHash)
	}

	if _, err := s.GetAdminByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown email err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateAdminPassword(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update unknown admin err = %v, want ErrNotFound", err)
	}
}

func TestLoginAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ip := "10.0.0.1"

	for i, ok := range []bool{false, true} {
		err := s.RecordLoginAttempt(ctx, model.LoginAttempt{
			ID:        fmt.Sprintf("la-%d", i),
			Email:     "admin@example.com",
			IPAddress: &ip,
			Success:   ok,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second).Format(time.RFC3339),
		})
		if err != nil {
			t.Fatalf("RecordLoginAttempt: %v", err)
		}
	}

	got, err := s.ListLoginAttempts(ctx, "admin@example.com", 10)
	if err != nil {
		t.Fatalf("ListLoginAttempts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("attempts = %d, want 2", len(got))
	}
	if !got[0].Success {
		t.Error("newest attempt should be the successful one")
	}
	if got[0].IPAddress == nil || *got[0].IPAddress != ip {
		t.Errorf("IPAddress = %v", got[0].IPAddress)
	}
}

func TestSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := model.Admin{ID: "a-1", Email: "admin@example.com", PasswordHash: "h", CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	if err := s.CreateAdmin(ctx, a); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	live := model.NewSession("live", a, time.Hour)
	dead := model.NewSession("dead", a, -time.Hour)
	for _, sess := range []model.Session{live, dead} {
		if err := s.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	got, err := s.GetSession(ctx, "live")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.AdminID != "a-1" || got.Email != a.Email {
		t.Errorf("session = %+v", got)
	}

	n, err := s.DeleteExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := s.GetSession(ctx, "dead"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired session still present: %v", err)
	}

	if err := s.DeleteSession(ctx, "live"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := s.GetSession(ctx, "live"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted session still present: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := New(db); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(db); err != nil {
		t.Fatalf("second New: %v", err)
	}
	var version int
	if err := db.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestRebind(t *testing.T) {
	s := &Store{postgres: true}
	got := s.rebind(`SELECT * FROM t WHERE a = ? AND b IN (?, ?)`)
	want := `SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)`
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	s.postgres = false
	if s.rebind("a = ?") != "a = ?" {
		t.Error("sqlite queries must not be rewritten")
	}
}
