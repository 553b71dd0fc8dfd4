package config

import (
	"fmt"
	"strings"
	"unicode"
)

// Side identifies which backend a configuration belongs to.
type Side string

const (
	Source      Side = "source"
	Destination Side = "destination"
)

// ParseSide converts user input into a Side.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source", "src":
		return Source, nil
	case "destination", "dest", "dst":
		return Destination, nil
	}
	return "", fmt.Errorf("unknown side %q (want source|destination)", s)
}

// ConnectionConfig holds credentials for one side.
// JSON field names are part of the remote wire format.
type ConnectionConfig struct {
	ProjectID     string `json:"projectId" yaml:"project_id"`
	BaseURL       string `json:"baseUrl" yaml:"base_url"`
	PublicKey     string `json:"publicKey" yaml:"public_key"`
	PrivilegedKey string `json:"privilegedKey" yaml:"privileged_key"`
	DirectLink    string `json:"directLink" yaml:"direct_link"`
}

// Built-in source defaults. Override at link time, e.g.
// -ldflags "-X github.com/vbp1/schemaclone/internal/config.defaultSourceBaseURL=https://x.example.co".
var (
	defaultSourceProjectID     = "primary"
	defaultSourceBaseURL       = "https://primary.example.co"
	defaultSourcePublicKey     = "public-anon-key"
	defaultSourcePrivilegedKey = "service-role-key"
)

// DefaultSource returns the built-in source configuration in sanitized form.
func DefaultSource() ConnectionConfig {
	return ConnectionConfig{
		ProjectID:     strings.TrimSpace(defaultSourceProjectID),
		BaseURL:       trimBaseURL(defaultSourceBaseURL),
		PublicKey:     strings.TrimSpace(defaultSourcePublicKey),
		PrivilegedKey: strings.TrimSpace(defaultSourcePrivilegedKey),
	}
}

// Sanitize trims every field and strips trailing slashes from BaseURL.
// Blank source fields fall back to DefaultSource; destination has no defaults.
// Sanitize is idempotent.
func Sanitize(side Side, c ConnectionConfig) ConnectionConfig {
	out := ConnectionConfig{
		ProjectID:     strings.TrimSpace(c.ProjectID),
		BaseURL:       trimBaseURL(c.BaseURL),
		PublicKey:     strings.TrimSpace(c.PublicKey),
		PrivilegedKey: strings.TrimSpace(c.PrivilegedKey),
		DirectLink:    strings.TrimSpace(c.DirectLink),
	}
	if side != Source {
		return out
	}
	def := DefaultSource()
	if out.ProjectID == "" {
		out.ProjectID = def.ProjectID
	}
	if out.BaseURL == "" {
		out.BaseURL = def.BaseURL
	}
	if out.PublicKey == "" {
		out.PublicKey = def.PublicKey
	}
	if out.PrivilegedKey == "" {
		out.PrivilegedKey = def.PrivilegedKey
	}
	if out.DirectLink == "" {
		out.DirectLink = def.DirectLink
	}
	return out
}

// trimBaseURL strips surrounding whitespace and any trailing run of
// slashes mixed with whitespace, so a second pass is a no-op.
func trimBaseURL(s string) string {
	return strings.TrimRightFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == '/' || unicode.IsSpace(r)
	})
}

// HasAPIAccess reports whether BaseURL and PrivilegedKey are both set.
func (c ConnectionConfig) HasAPIAccess() bool {
	return strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.PrivilegedKey) != ""
}

// HasDirectLink reports whether a direct connection string is configured.
func (c ConnectionConfig) HasDirectLink() bool {
	return strings.TrimSpace(c.DirectLink) != ""
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
