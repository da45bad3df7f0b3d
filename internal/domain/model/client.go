//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// ClientStatus represents the lifecycle state of a registered client.
type ClientStatus string

const (
	// ClientStatusActive indicates the client may submit jobs and receive webhooks.
	ClientStatusActive ClientStatus = "active"
	// ClientStatusSuspended indicates the client is disabled without deletion.
	ClientStatusSuspended ClientStatus = "suspended"
)

// Valid returns true if the ClientStatus is valid.
func (s ClientStatus) Valid() bool {
	return s == ClientStatusActive || s == ClientStatusSuspended
}

const (
	minClientNameLen  = 3
	maxClientNameLen  = 255
	maxWebhookURLLen  = 1024
	minWebhookTimeout = time.Second
)

// Client represents a registered client organization. API key and HMAC
// secret are generated once at registration; the secret is rotated by
// versioning, never mutated in place, so in-flight signature verification
// stays consistent.
type Client struct {
	ID                 string       `json:"id"                    db:"id"`
	Name               string       `json:"name"                  db:"name"`
	APIKey             string       `json:"api_key"               db:"api_key"`
	HMACSecret         string       `json:"-"                     db:"hmac_secret"`
	PreviousHMACSecret *string      `json:"-"                     db:"previous_hmac_secret"`
	SecretVersion      int          `json:"secret_version"        db:"secret_version"`
	WebhookURL         string       `json:"webhook_url"           db:"webhook_url"`
	Status             ClientStatus `json:"status"                db:"status"`
	CreatedAt          time.Time    `json:"created_at"            db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"            db:"updated_at"`
}

// Active returns true if the client may submit jobs and receive webhooks.
func (c *Client) Active() bool {
	return c.Status == ClientStatusActive
}

// CreateClientRequest represents a request to register a new client.
// Credentials are generated server-side and are not part of the request.
type CreateClientRequest struct {
	Name       string `json:"name"`
	WebhookURL string `json:"webhook_url"`
}

// Normalize normalizes the CreateClientRequest fields.
func (r *CreateClientRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.WebhookURL = strings.TrimSpace(r.WebhookURL)
}

// Validate validates the CreateClientRequest fields.
func (r *CreateClientRequest) Validate() error {
	if err := validateClientName(r.Name); err != nil {
		return err
	}
	return ValidateWebhookURL(r.WebhookURL)
}

func validateClientName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("name is required and cannot be empty")
	}
	n := utf8.RuneCountInString(trimmed)
	if n < minClientNameLen {
		return errors.New("name must be at least 3 characters")
	}
	if n > maxClientNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	return nil
}

// ValidateWebhookURL validates a client webhook endpoint URL.
func ValidateWebhookURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return errors.New("webhook_url is required and cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxWebhookURLLen {
		return errors.New("webhook_url cannot exceed 1024 characters")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return errors.New("webhook_url must be a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("webhook_url must use http or https scheme")
	}
	if parsed.Host == "" {
		return errors.New("webhook_url must have a valid host")
	}
	return nil
}
