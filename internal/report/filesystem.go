package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"permaudit/internal/audit"
)

// Sealer encrypts a finished report page.
type Sealer interface {
	Seal(r io.Reader, w io.Writer) error
}

// FileSystemPageStore materializes report pages as CSV files. Pages are born
// as temp files in the report root and relocated into the per-audit results
// directory once their header is written:
//
//	<root>/
//	  <label>/
//	    <label>-part-001.csv
//	    <label>-part-002.csv
type FileSystemPageStore struct {
	root string
}

// NewFileSystemPageStore creates a page store rooted at the given directory.
func NewFileSystemPageStore(root string) (*FileSystemPageStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	return &FileSystemPageStore{root: root}, nil
}

var _ audit.PageStore = (*FileSystemPageStore)(nil)

func (s *FileSystemPageStore) CreatePage(label string, part int) (string, error) {
	resultsDir := filepath.Join(s.root, label)
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return "", fmt.Errorf("creating results directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, ".page-*")
	if err != nil {
		return "", fmt.Errorf("creating page: %w", err)
	}
	tmpPath := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.Write(audit.ReportHeader); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing page header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing page header: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing page: %w", err)
	}

	// Relocate the page into the results directory.
	final := filepath.Join(resultsDir, pageName(label, part))
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("relocating page: %w", err)
	}
	return final, nil
}

func (s *FileSystemPageStore) AppendRow(pageID string, row []string) error {
	f, err := os.OpenFile(pageID, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("appending row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("appending row: %w", err)
	}
	return nil
}

// Latest scans the label's results directory for the highest plaintext part.
// Sealed pages are ignored: sealing only happens once an audit completes,
// and labels are unique per audit, so an active audit never sees them.
func (s *FileSystemPageStore) Latest(label string) (string, int, int, error) {
	resultsDir := filepath.Join(s.root, label)
	entries, err := os.ReadDir(resultsDir)
	if os.IsNotExist(err) {
		return "", 0, 0, nil
	}
	if err != nil {
		return "", 0, 0, fmt.Errorf("reading results directory: %w", err)
	}

	best, bestPart := "", 0
	prefix := label + "-part-"
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".csv") {
			continue
		}
		part, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".csv"))
		if err != nil {
			continue
		}
		if part > bestPart {
			bestPart = part
			best = filepath.Join(resultsDir, name)
		}
	}
	if best == "" {
		return "", 0, 0, nil
	}

	rows, err := countDataRows(best)
	if err != nil {
		return "", 0, 0, err
	}
	return best, bestPart, rows, nil
}

// Pages returns the plaintext page files for a label, ordered by part.
func (s *FileSystemPageStore) Pages(label string) ([]string, error) {
	resultsDir := filepath.Join(s.root, label)
	pattern := filepath.Join(resultsDir, label+"-part-*.csv")
	pages, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	return pages, nil
}

// AllPages returns every page file for a label, plaintext and sealed alike.
func (s *FileSystemPageStore) AllPages(label string) ([]string, error) {
	pages, err := s.Pages(label)
	if err != nil {
		return nil, err
	}
	pattern := filepath.Join(s.root, label, label+"-part-*.csv.age")
	sealed, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing sealed pages: %w", err)
	}
	pages = append(pages, sealed...)
	sort.Strings(pages)
	return pages, nil
}

// SealPages encrypts every plaintext page of a label in place, replacing
// <page>.csv with <page>.csv.age. Call only once the audit has completed:
// sealed pages can no longer be appended to.
func (s *FileSystemPageStore) SealPages(label string, sealer Sealer) error {
	pages, err := s.Pages(label)
	if err != nil {
		return err
	}
	for _, page := range pages {
		if err := sealPage(page, sealer); err != nil {
			return fmt.Errorf("sealing %s: %w", filepath.Base(page), err)
		}
	}
	return nil
}

func sealPage(page string, sealer Sealer) error {
	src, err := os.Open(page)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(page+".age", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if err := sealer.Seal(src, dst); err != nil {
		dst.Close()
		os.Remove(page + ".age")
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(page + ".age")
		return err
	}
	return os.Remove(page)
}

func pageName(label string, part int) string {
	return fmt.Sprintf("%s-part-%03d.csv", label, part)
}

func countDataRows(page string) (int, error) {
	f, err := os.Open(page)
	if err != nil {
		return 0, fmt.Errorf("opening page: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("reading page: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	return len(records) - 1, nil // header excluded
}
