package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/feedvault/feedvault/app/database"
)

// Metadata is the per-data-store sync state persisted alongside the
// database: account identity, zone change tokens and fetch bookkeeping.
type Metadata struct {
	AccountExternalID string            `yaml:"account_external_id"`
	Username          string            `yaml:"username"`
	Endpoint          string            `yaml:"endpoint"`
	ZoneTokens        map[string]string `yaml:"zone_tokens"`
	LastSyncAt        *time.Time        `yaml:"last_sync_at,omitempty"`
}

// MetadataFile owns the on-disk sync metadata. Every setter persists
// immediately; a crash never loses more than the in-flight change.
type MetadataFile struct {
	path string
	mu   sync.Mutex
	meta Metadata
}

// LoadMetadata reads the metadata file, creating default state (a local-only
// account token) when the file does not exist yet.
func LoadMetadata(path string) (*MetadataFile, error) {
	f := &MetadataFile{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read sync metadata: %w", err)
		}
		f.meta = Metadata{
			AccountExternalID: database.LocalIDPrefix + uuid.NewString(),
			ZoneTokens:        make(map[string]string),
		}
		return f, nil
	}

	if err := yaml.Unmarshal(data, &f.meta); err != nil {
		return nil, fmt.Errorf("failed to parse sync metadata: %w", err)
	}
	if f.meta.ZoneTokens == nil {
		f.meta.ZoneTokens = make(map[string]string)
	}
	if f.meta.AccountExternalID == "" {
		f.meta.AccountExternalID = database.LocalIDPrefix + uuid.NewString()
	}

	return f, nil
}

func (f *MetadataFile) Get() Metadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta := f.meta
	meta.ZoneTokens = make(map[string]string, len(f.meta.ZoneTokens))
	for zone, token := range f.meta.ZoneTokens {
		meta.ZoneTokens[zone] = token
	}
	return meta
}

func (f *MetadataFile) AccountExternalID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta.AccountExternalID
}

// SetAccountExternalID promotes the account identity from a local token to a
// remote-assigned ID. Promotion is one-way.
func (f *MetadataFile) SetAccountExternalID(externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !database.IsLocalID(f.meta.AccountExternalID) && database.IsLocalID(externalID) {
		return fmt.Errorf("account already has remote ID %s", f.meta.AccountExternalID)
	}
	f.meta.AccountExternalID = externalID
	return f.saveLocked()
}

func (f *MetadataFile) SetEndpoint(endpoint, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta.Endpoint = endpoint
	f.meta.Username = username
	return f.saveLocked()
}

func (f *MetadataFile) Token(zone string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta.ZoneTokens[zone]
}

func (f *MetadataFile) SetToken(zone, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta.ZoneTokens[zone] = token
	return f.saveLocked()
}

// ClearTokens forgets all zone cursors, forcing the next pull to be a full
// fetch.
func (f *MetadataFile) ClearTokens() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta.ZoneTokens = make(map[string]string)
	return f.saveLocked()
}

func (f *MetadataFile) SetLastSyncAt(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta.LastSyncAt = &t
	return f.saveLocked()
}

func (f *MetadataFile) saveLocked() error {
	data, err := yaml.Marshal(&f.meta)
	if err != nil {
		return fmt.Errorf("failed to encode sync metadata: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write sync metadata: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace sync metadata: %w", err)
	}

	return nil
}
