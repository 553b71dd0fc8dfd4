package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Storage keys.
const (
	KeySourceConfig      = "schemaclone.config.source"
	KeyDestinationConfig = "schemaclone.config.destination"
	KeyDestinationLink   = "schemaclone.destination.direct_link"
	KeyReopen            = "schemaclone.reopen_config"
)

// Environment variables consulted when no destination record exists.
const (
	EnvDestProjectID     = "SCHEMACLONE_DEST_PROJECT_ID"
	EnvDestBaseURL       = "SCHEMACLONE_DEST_BASE_URL"
	EnvDestPublicKey     = "SCHEMACLONE_DEST_PUBLIC_KEY"
	EnvDestPrivilegedKey = "SCHEMACLONE_DEST_PRIVILEGED_KEY"
	EnvDestDirectLink    = "SCHEMACLONE_DEST_DIRECT_LINK"
)

// KV is the persistent key-value store backing the configuration.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// Store loads and persists connection configurations.
type Store struct {
	kv     KV
	getenv func(string) string
}

// NewStore returns a Store backed by kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv, getenv: os.Getenv}
}

func recordKey(side Side) string {
	if side == Destination {
		return KeyDestinationConfig
	}
	return KeySourceConfig
}

// Load returns the persisted configuration for side. Missing or malformed
// records yield the built-in defaults (source) or the environment fallback
// (destination). Load never fails; problems are logged.
func (s *Store) Load(side Side) ConnectionConfig {
	cfg, found := s.readRecord(side)
	if !found {
		if side == Destination {
			cfg = s.envDestination()
		} else {
			cfg = ConnectionConfig{}
		}
	}
	if side == Destination && strings.TrimSpace(cfg.DirectLink) == "" {
		if link, ok, err := s.kv.Get(KeyDestinationLink); err != nil {
			slog.Warn("config: read direct link", "err", err)
		} else if ok {
			cfg.DirectLink = link
		}
	}
	return Sanitize(side, cfg)
}

func (s *Store) readRecord(side Side) (ConnectionConfig, bool) {
	raw, ok, err := s.kv.Get(recordKey(side))
	if err != nil {
		slog.Warn("config: read record", "side", side, "err", err)
		return ConnectionConfig{}, false
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return ConnectionConfig{}, false
	}
	var cfg ConnectionConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		slog.Warn("config: malformed record, using defaults", "side", side, "err", err)
		return ConnectionConfig{}, false
	}
	return cfg, true
}

func (s *Store) envDestination() ConnectionConfig {
	return ConnectionConfig{
		ProjectID:     s.getenv(EnvDestProjectID),
		BaseURL:       s.getenv(EnvDestBaseURL),
		PublicKey:     s.getenv(EnvDestPublicKey),
		PrivilegedKey: s.getenv(EnvDestPrivilegedKey),
		DirectLink:    s.getenv(EnvDestDirectLink),
	}
}

// Save persists the sanitized form of cfg. For the destination the direct
// link is also kept under its own key, removed when blank.
func (s *Store) Save(side Side, cfg ConnectionConfig) error {
	clean := Sanitize(side, cfg)
	data, err := json.Marshal(clean)
	if err != nil {
		return fmt.Errorf("marshal %s config: %w", side, err)
	}
	if err := s.kv.Set(recordKey(side), string(data)); err != nil {
		return fmt.Errorf("save %s config: %w", side, err)
	}
	if side != Destination {
		return nil
	}
	if clean.DirectLink == "" {
		if err := s.kv.Delete(KeyDestinationLink); err != nil {
			return fmt.Errorf("clear destination direct link: %w", err)
		}
		return nil
	}
	if err := s.kv.Set(KeyDestinationLink, clean.DirectLink); err != nil {
		return fmt.Errorf("save destination direct link: %w", err)
	}
	return nil
}

// MarkReopen sets the flag asking the next session to show the configuration again.
func (s *Store) MarkReopen() error {
	return s.kv.Set(KeyReopen, "1")
}

// ConsumeReopen reports whether the reopen flag was set and clears it.
func (s *Store) ConsumeReopen() bool {
	_, ok, err := s.kv.Get(KeyReopen)
	if err != nil {
		slog.Warn("config: read reopen flag", "err", err)
		return false
	}
	if !ok {
		return false
	}
	if err := s.kv.Delete(KeyReopen); err != nil {
		slog.Warn("config: clear reopen flag", "err", err)
	}
	return true
}
