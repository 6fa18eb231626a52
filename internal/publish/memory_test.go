package publish_test

import (
	"bytes"
	"strings"
	"testing"

	"permaudit/internal/publish"
)

func TestMemoryPublisher_PutGetPage(t *testing.T) {
	t.Parallel()
	p := publish.NewMemoryPublisher("test")

	content := []byte("Path,URL,Type,Access\n")
	if err := p.PutPage("label/page-001.csv", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("PutPage() error = %v", err)
	}

	var got bytes.Buffer
	if err := p.GetPage("label/page-001.csv", &got); err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if !bytes.Equal(got.Bytes(), content) {
		t.Errorf("GetPage() = %q, want %q", got.Bytes(), content)
	}

	keys := p.PageKeys()
	if len(keys) != 1 || keys[0] != "label/page-001.csv" {
		t.Errorf("PageKeys() = %v, want [label/page-001.csv]", keys)
	}
}

func TestMemoryPublisher_GetPage_NotFound(t *testing.T) {
	t.Parallel()
	p := publish.NewMemoryPublisher("test")

	var buf bytes.Buffer
	if err := p.GetPage("missing", &buf); err == nil {
		t.Error("GetPage() for missing key should return error")
	}
}

func TestMemoryPublisher_PutPage_SizeMismatch(t *testing.T) {
	t.Parallel()
	p := publish.NewMemoryPublisher("test")

	err := p.PutPage("key", bytes.NewReader([]byte("abc")), 99)
	if err == nil {
		t.Fatal("PutPage() with wrong size should return error")
	}
	if !strings.Contains(err.Error(), "size mismatch") {
		t.Errorf("PutPage() error = %v, want size mismatch", err)
	}
}

func TestMemoryPublisher_Snapshots(t *testing.T) {
	t.Parallel()
	p := publish.NewMemoryPublisher("test")

	version, err := p.SnapshotVersion("host-1")
	if err != nil {
		t.Fatalf("SnapshotVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("SnapshotVersion() before any snapshot = %d, want 0", version)
	}

	content := []byte("snapshot data")
	if err := p.PutSnapshot("host-1", bytes.NewReader(content), int64(len(content)), 7); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	var got bytes.Buffer
	if err := p.GetSnapshot("host-1", &got); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if !bytes.Equal(got.Bytes(), content) {
		t.Errorf("GetSnapshot() = %q, want %q", got.Bytes(), content)
	}

	version, err = p.SnapshotVersion("host-1")
	if err != nil {
		t.Fatalf("SnapshotVersion() error = %v", err)
	}
	if version != 7 {
		t.Errorf("SnapshotVersion() = %d, want 7", version)
	}
}

func TestMemoryPublisher_GetSnapshot_NotFound(t *testing.T) {
	t.Parallel()
	p := publish.NewMemoryPublisher("test")

	var buf bytes.Buffer
	if err := p.GetSnapshot("unknown-host", &buf); err == nil {
		t.Error("GetSnapshot() for unknown host should return error")
	}
}

func TestMemoryPublisher_ValidateSetup(t *testing.T) {
	t.Parallel()
	p := publish.NewMemoryPublisher("test")

	if err := p.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}
