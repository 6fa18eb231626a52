package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileSystemPublisher archives audit artifacts in a directory structure:
//
//	<root>/
//	  pages/
//	    <key>           (report pages, keyed by label/page name)
//	  snapshots/
//	    <hostID>.db     (per-host checkpoint database snapshots)
//	    <hostID>.version
type FileSystemPublisher struct {
	name        string
	root        string
	pagesDir    string
	snapshotDir string
}

// NewFileSystemPublisher creates a filesystem archive rooted at the given path.
func NewFileSystemPublisher(name, root string) (*FileSystemPublisher, error) {
	pagesDir := filepath.Join(root, "pages")
	snapshotDir := filepath.Join(root, "snapshots")

	if err := os.MkdirAll(pagesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pages directory: %w", err)
	}
	if err := os.MkdirAll(snapshotDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &FileSystemPublisher{
		name:        name,
		root:        root,
		pagesDir:    pagesDir,
		snapshotDir: snapshotDir,
	}, nil
}

var _ Publisher = (*FileSystemPublisher)(nil)

func (p *FileSystemPublisher) PutPage(key string, r io.Reader, size int64) error {
	destPath := filepath.Join(p.pagesDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create page directory: %w", err)
	}
	return p.writeFile(destPath, r, size)
}

func (p *FileSystemPublisher) GetPage(key string, w io.Writer) error {
	srcPath := filepath.Join(p.pagesDir, filepath.FromSlash(key))
	return p.readFile(srcPath, w, fmt.Sprintf("page not found: %s", key))
}

func (p *FileSystemPublisher) PutSnapshot(hostID string, r io.Reader, size int64, version int64) error {
	destPath := filepath.Join(p.snapshotDir, hostID+".db")
	if err := p.writeFile(destPath, r, size); err != nil {
		return err
	}

	versionPath := filepath.Join(p.snapshotDir, hostID+".version")
	versionData := strconv.FormatInt(version, 10)
	return os.WriteFile(versionPath, []byte(versionData), 0644)
}

func (p *FileSystemPublisher) GetSnapshot(hostID string, w io.Writer) error {
	srcPath := filepath.Join(p.snapshotDir, hostID+".db")
	return p.readFile(srcPath, w, fmt.Sprintf("snapshot not found for host: %s", hostID))
}

// SnapshotVersion returns 0 if no version file exists.
func (p *FileSystemPublisher) SnapshotVersion(hostID string) (int64, error) {
	versionPath := filepath.Join(p.snapshotDir, hostID+".version")
	data, err := os.ReadFile(versionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the archive directories are accessible.
func (p *FileSystemPublisher) ValidateSetup() error {
	info, err := os.Stat(p.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", p.root)
	}

	for _, dir := range []string{p.pagesDir, p.snapshotDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("archive directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("archive path is not a directory: %s", dir)
		}
	}

	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (p *FileSystemPublisher) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// readFile reads from the specified path and writes to w.
func (p *FileSystemPublisher) readFile(srcPath string, w io.Writer, notFoundMsg string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}
