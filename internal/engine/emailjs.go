package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultEmailJSBaseURL is the public EmailJS REST endpoint.
const DefaultEmailJSBaseURL = "https://api.emailjs.com"

// EmailJSClient implements Notifier using the EmailJS send API. Calls from a
// server need the account's non-browser API access enabled and, when strict
// mode is on, the private key.
type EmailJSClient struct {
	baseURL    string
	httpClient *http.Client
}

// EmailJSOption configures the EmailJS client.
type EmailJSOption func(*EmailJSClient)

// WithBaseURL overrides the API endpoint (default: https://api.emailjs.com).
func WithBaseURL(url string) EmailJSOption {
	return func(c *EmailJSClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPTimeout sets the HTTP client timeout (default: 15s).
func WithHTTPTimeout(d time.Duration) EmailJSOption {
	return func(c *EmailJSClient) { c.httpClient.Timeout = d }
}

// NewEmailJSClient creates a new EmailJS notifier.
func NewEmailJSClient(opts ...EmailJSOption) *EmailJSClient {
	c := &EmailJSClient{
		baseURL: DefaultEmailJSBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// apiError is a non-200 reply from EmailJS.
type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Send posts one message. There is no retry: a submission makes exactly one
// notification attempt.
func (c *EmailJSClient) Send(ctx context.Context, creds Credentials, params map[string]string) error {
	if !creds.Complete() {
		return ErrConfigurationMissing
	}
	body, err := json.Marshal(sendRequest{
		ServiceID:      creds.ServiceID,
		TemplateID:     creds.TemplateID,
		UserID:         creds.PublicKey,
		AccessToken:    creds.PrivateKey,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1.0/email/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("emailjs: %w", &apiError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))})
	}
	return nil
}
