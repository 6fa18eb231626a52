package publish_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"permaudit/internal/publish"
)

func newTestFileSystemPublisher(t *testing.T) *publish.FileSystemPublisher {
	t.Helper()
	p, err := publish.NewFileSystemPublisher("test-archive", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemPublisher() error = %v", err)
	}
	return p
}

func TestFileSystemPublisher_PutGetPage(t *testing.T) {
	t.Parallel()
	p := newTestFileSystemPublisher(t)

	content := []byte("Path,URL,Type,Access\nroot/a,file://root/a,folder,alice - Editor\n")
	key := "share-20240115T103000Z/share-20240115T103000Z-part-001.csv"

	if err := p.PutPage(key, bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("PutPage() error = %v", err)
	}

	var got bytes.Buffer
	if err := p.GetPage(key, &got); err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if !bytes.Equal(got.Bytes(), content) {
		t.Errorf("GetPage() = %q, want %q", got.Bytes(), content)
	}
}

func TestFileSystemPublisher_GetPage_NotFound(t *testing.T) {
	t.Parallel()
	p := newTestFileSystemPublisher(t)

	var buf bytes.Buffer
	err := p.GetPage("missing/page.csv", &buf)
	if err == nil {
		t.Fatal("GetPage() for missing key should return error")
	}
	if !strings.Contains(err.Error(), "page not found") {
		t.Errorf("GetPage() error = %v, want page-not-found message", err)
	}
}

func TestFileSystemPublisher_PutPage_SizeMismatch(t *testing.T) {
	t.Parallel()
	p := newTestFileSystemPublisher(t)

	content := []byte("data")
	err := p.PutPage("page.csv", bytes.NewReader(content), int64(len(content))+10)
	if err == nil {
		t.Fatal("PutPage() with wrong size should return error")
	}
	if !strings.Contains(err.Error(), "size mismatch") {
		t.Errorf("PutPage() error = %v, want size mismatch", err)
	}
}

func TestFileSystemPublisher_PutGetSnapshot(t *testing.T) {
	t.Parallel()
	p := newTestFileSystemPublisher(t)

	content := []byte("sqlite snapshot bytes")
	if err := p.PutSnapshot("host-1", bytes.NewReader(content), int64(len(content)), 42); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}

	var got bytes.Buffer
	if err := p.GetSnapshot("host-1", &got); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if !bytes.Equal(got.Bytes(), content) {
		t.Errorf("GetSnapshot() = %q, want %q", got.Bytes(), content)
	}

	version, err := p.SnapshotVersion("host-1")
	if err != nil {
		t.Fatalf("SnapshotVersion() error = %v", err)
	}
	if version != 42 {
		t.Errorf("SnapshotVersion() = %d, want 42", version)
	}
}

func TestFileSystemPublisher_SnapshotVersion_NoSnapshot(t *testing.T) {
	t.Parallel()
	p := newTestFileSystemPublisher(t)

	version, err := p.SnapshotVersion("unknown-host")
	if err != nil {
		t.Fatalf("SnapshotVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("SnapshotVersion() = %d for unknown host, want 0", version)
	}
}

func TestFileSystemPublisher_PutSnapshot_Overwrites(t *testing.T) {
	t.Parallel()
	p := newTestFileSystemPublisher(t)

	first := []byte("first")
	if err := p.PutSnapshot("host-1", bytes.NewReader(first), int64(len(first)), 1); err != nil {
		t.Fatalf("first PutSnapshot() error = %v", err)
	}

	second := []byte("second snapshot")
	if err := p.PutSnapshot("host-1", bytes.NewReader(second), int64(len(second)), 2); err != nil {
		t.Fatalf("second PutSnapshot() error = %v", err)
	}

	var got bytes.Buffer
	if err := p.GetSnapshot("host-1", &got); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if !bytes.Equal(got.Bytes(), second) {
		t.Errorf("GetSnapshot() = %q, want %q", got.Bytes(), second)
	}

	version, err := p.SnapshotVersion("host-1")
	if err != nil {
		t.Fatalf("SnapshotVersion() error = %v", err)
	}
	if version != 2 {
		t.Errorf("SnapshotVersion() = %d, want 2", version)
	}
}

func TestFileSystemPublisher_ValidateSetup(t *testing.T) {
	t.Parallel()
	p := newTestFileSystemPublisher(t)

	if err := p.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}

func TestFileSystemPublisher_ValidateSetup_MissingDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p, err := publish.NewFileSystemPublisher("test-archive", root)
	if err != nil {
		t.Fatalf("NewFileSystemPublisher() error = %v", err)
	}

	if err := os.RemoveAll(filepath.Join(root, "pages")); err != nil {
		t.Fatalf("removing pages dir: %v", err)
	}

	if err := p.ValidateSetup(); err == nil {
		t.Error("ValidateSetup() with missing pages dir should return error")
	}
}
