package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestNewEmailJSClient_Defaults(t *testing.T) {
	c := NewEmailJSClient()
	if c.baseURL != DefaultEmailJSBaseURL {
		t.Errorf("baseURL = %q, want default", c.baseURL)
	}
}

func TestEmailJS_WithBaseURL_TrimsTrailingSlash(t *testing.T) {
	c := NewEmailJSClient(WithBaseURL("https://mail.example.com/"))
	if c.baseURL != "https://mail.example.com" {
		t.Errorf("baseURL = %q, trailing slash should be trimmed", c.baseURL)
	}
}

func TestEmailJSSend_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1.0/email/send" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ServiceID != "svc" || req.TemplateID != "tpl" || req.UserID != "pub" || req.AccessToken != "priv" {
			t.Errorf("credentials = %+v", req)
		}
		if req.TemplateParams["visitor_name"] != "Ayşe" {
			t.Errorf("template_params = %v", req.TemplateParams)
		}
		w.Write([]byte("OK"))
	}))
	defer srv.Close()

	c := NewEmailJSClient(WithBaseURL(srv.URL))
	creds := Credentials{ServiceID: "svc", TemplateID: "tpl", PublicKey: "pub", PrivateKey: "priv"}
	if err := c.Send(context.Background(), creds, map[string]string{"visitor_name": "Ayşe"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestEmailJSSend_ErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("try later"))
	}))
	defer srv.Close()

	c := NewEmailJSClient(WithBaseURL(srv.URL))
	err := c.Send(context.Background(), testCreds, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var ae *apiError
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("err = %v, want apiError 503", err)
	}
	if !strings.Contains(err.Error(), "try later") {
		t.Errorf("err = %q, want response body", err.Error())
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want exactly 1", calls.Load())
	}
}

func TestEmailJSSend_IncompleteCredentials(t *testing.T) {
	c := NewEmailJSClient(WithBaseURL("http://127.0.0.1:1"))
	err := c.Send(context.Background(), Credentials{ServiceID: "svc"}, nil)
	if !errors.Is(err, ErrConfigurationMissing) {
		t.Errorf("err = %v, want ErrConfigurationMissing", err)
	}
}

func TestCredentials_Complete(t *testing.T) {
	if (Credentials{ServiceID: "a", TemplateID: "b"}).Complete() {
		t.Error("missing public key should be incomplete")
	}
	if !(Credentials{ServiceID: "a", TemplateID: "b", PublicKey: "c"}).Complete() {
		t.Error("private key is optional")
	}
}

func TestLogNotifier_Send(t *testing.T) {
	if err := (LogNotifier{}).Send(context.Background(), testCreds, map[string]string{"visitor_full_name": "A B"}); err != nil {
		t.Errorf("Send: %v", err)
	}
}
