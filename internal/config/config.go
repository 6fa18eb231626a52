package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPageCapacity is the default maximum number of data rows per report
// page before the partitioner rolls over to a new page.
const DefaultPageCapacity = 1000

// DefaultSessionBudget is the default wall-clock budget of one audit session.
const DefaultSessionBudget = 4 * time.Minute

// Config represents the main configuration for permaudit.
type Config struct {
	HostID     string           `toml:"host_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
	Tree       TreeConfig       `toml:"tree"`
	Report     ReportConfig     `toml:"report"`
	Session    SessionConfig    `toml:"session"`
	Seal       SealConfig       `toml:"seal"`
	Publish    PublishConfig    `toml:"publish"`
}

// DatabaseConfig configures the metadata database holding the checkpoint
// queue, the active-audit record and session history.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// CheckpointConfig configures the durable work queue backing.
type CheckpointConfig struct {
	Type string `toml:"type"` // "sqlite" (shares the database) or "memory"
}

// TreeConfig configures which tree store implementation is audited.
type TreeConfig struct {
	Type string `toml:"type"` // "filesystem" or "memory"
}

// ReportConfig configures report page creation and partitioning.
type ReportConfig struct {
	Type         string `toml:"type"`                 // "filesystem" or "memory"
	ReportDir    string `toml:"report_dir,omitempty"` // only used for type=filesystem
	PageCapacity int    `toml:"page_capacity"`        // max data rows per page; defaults to DefaultPageCapacity
}

// SessionConfig bounds one audit session.
type SessionConfig struct {
	Budget string `toml:"budget"` // duration string, e.g. "4m"; defaults to DefaultSessionBudget
}

// ParseBudget returns the session budget as a duration.
func (c SessionConfig) ParseBudget() (time.Duration, error) {
	if c.Budget == "" {
		return DefaultSessionBudget, nil
	}
	d, err := time.ParseDuration(c.Budget)
	if err != nil {
		return 0, fmt.Errorf("invalid session budget %q: %w", c.Budget, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("session budget must be positive, got %q", c.Budget)
	}
	return d, nil
}

// SealConfig holds paths to the age key pair used to seal finished report
// pages. Reports list who can access what, so they are sensitive themselves.
type SealConfig struct {
	Type           string `toml:"type"` // "age" or "none" (default)
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// PublishConfig configures the off-host archive for report pages and the
// checkpoint database snapshot.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type PublishConfig struct {
	Type string `toml:"type"` // "", "s3", "filesystem" or "memory"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// Optional static credentials; when empty the default AWS credential
	// chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// NewConfig creates a Config with the provided values and default layout.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Checkpoint: CheckpointConfig{Type: "sqlite"},
		Tree:       TreeConfig{Type: "filesystem"},
		Report: ReportConfig{
			Type:         "filesystem",
			ReportDir:    filepath.Join(baseDir, "reports"),
			PageCapacity: DefaultPageCapacity,
		},
		Session: SessionConfig{Budget: DefaultSessionBudget.String()},
		Seal: SealConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "permaudit.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "permaudit.key"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
