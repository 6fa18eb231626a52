package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := NewConfig("host-abc", "/data/permaudit")

	if cfg.HostID != "host-abc" {
		t.Errorf("HostID = %q, want %q", cfg.HostID, "host-abc")
	}
	if cfg.LogDir != filepath.Join("/data/permaudit", "log") {
		t.Errorf("LogDir = %q, want base_dir/log", cfg.LogDir)
	}
	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want sqlite", cfg.Database.Type)
	}
	if cfg.Database.DataDir != filepath.Join("/data/permaudit", "db") {
		t.Errorf("Database.DataDir = %q, want base_dir/db", cfg.Database.DataDir)
	}
	if cfg.Checkpoint.Type != "sqlite" {
		t.Errorf("Checkpoint.Type = %q, want sqlite", cfg.Checkpoint.Type)
	}
	if cfg.Tree.Type != "filesystem" {
		t.Errorf("Tree.Type = %q, want filesystem", cfg.Tree.Type)
	}
	if cfg.Report.PageCapacity != DefaultPageCapacity {
		t.Errorf("Report.PageCapacity = %d, want %d", cfg.Report.PageCapacity, DefaultPageCapacity)
	}
	if cfg.Session.Budget != DefaultSessionBudget.String() {
		t.Errorf("Session.Budget = %q, want %q", cfg.Session.Budget, DefaultSessionBudget.String())
	}
	if cfg.Seal.Type != "none" {
		t.Errorf("Seal.Type = %q, want none", cfg.Seal.Type)
	}
	if cfg.Publish.Type != "" {
		t.Errorf("Publish.Type = %q, want empty (publishing disabled)", cfg.Publish.Type)
	}
}

func TestManager_ReadWriteRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := NewConfig("host-abc", "/data/permaudit")
	cfg.Report.PageCapacity = 250
	cfg.Session.Budget = "30m"
	cfg.Publish = PublishConfig{
		Type:     "s3",
		Name:     "archive",
		S3Bucket: "audit-reports",
		S3Prefix: "permaudit",
		S3Region: "us-east-1",
	}

	m := &Manager{}
	var buf bytes.Buffer
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.HostID != cfg.HostID {
		t.Errorf("HostID = %q, want %q", got.HostID, cfg.HostID)
	}
	if got.Report.PageCapacity != 250 {
		t.Errorf("Report.PageCapacity = %d, want 250", got.Report.PageCapacity)
	}
	if got.Session.Budget != "30m" {
		t.Errorf("Session.Budget = %q, want 30m", got.Session.Budget)
	}
	if got.Publish != cfg.Publish {
		t.Errorf("Publish = %+v, want %+v", got.Publish, cfg.Publish)
	}
	if got.Seal != cfg.Seal {
		t.Errorf("Seal = %+v, want %+v", got.Seal, cfg.Seal)
	}
}

func TestManager_Read_InvalidTOML(t *testing.T) {
	t.Parallel()

	m := &Manager{}
	_, err := m.Read(strings.NewReader("host_id = [unclosed"))
	if err == nil {
		t.Error("Read() with invalid TOML should return error")
	}
}

func TestSessionConfig_ParseBudget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		budget  string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty uses default", budget: "", want: DefaultSessionBudget},
		{name: "minutes", budget: "30m", want: 30 * time.Minute},
		{name: "hours", budget: "2h", want: 2 * time.Hour},
		{name: "invalid", budget: "soon", wantErr: true},
		{name: "zero", budget: "0s", wantErr: true},
		{name: "negative", budget: "-5m", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := SessionConfig{Budget: tt.budget}
			got, err := c.ParseBudget()
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseBudget(%q) expected error, got %v", tt.budget, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBudget(%q) error = %v", tt.budget, err)
			}
			if got != tt.want {
				t.Errorf("ParseBudget(%q) = %v, want %v", tt.budget, got, tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "conf", "permaudit.toml")
	cfg := NewConfig("host-abc", "/data/permaudit")

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.HostID != "host-abc" {
		t.Errorf("HostID = %q, want %q", got.HostID, "host-abc")
	}
}

func TestInit_RefusesExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "permaudit.toml")
	cfg := NewConfig("host-abc", "/data/permaudit")

	if err := Init(path, cfg); err != nil {
		t.Fatalf("first Init() error = %v", err)
	}

	err := Init(path, cfg)
	if err == nil {
		t.Fatal("second Init() should refuse to overwrite existing config")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Init() error = %v, want already-exists message", err)
	}
}
