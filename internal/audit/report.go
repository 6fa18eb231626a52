package audit

import "fmt"

// ReportHeader is the first row of every report page.
var ReportHeader = []string{"Path", "URL", "Type", "Access"}

// PageStore is the document-creation collaborator behind the report.
// Pages live under a per-audit results container identified by label.
type PageStore interface {
	// CreatePage creates page number part under the label's results
	// container, writes the header row, and returns a stable page ID.
	CreatePage(label string, part int) (string, error)

	// AppendRow appends one data row to an existing page.
	AppendRow(pageID string, row []string) error

	// Latest returns the most recent page for a label along with its part
	// number and data-row count (header excluded). pageID is "" when the
	// label has no pages yet.
	Latest(label string) (pageID string, part int, rows int, err error)
}

// PartitionState tracks which page is being appended to and how full it is.
// It is a plain value threaded through Write calls; when lost (a paused
// session) it is rebuilt from current page fullness via Restore.
type PartitionState struct {
	PageID string
	Part   int
	Rows   int
}

// Reporter partitions findings into bounded-size report pages, rolling over
// to a fresh page when the capacity threshold is reached.
type Reporter struct {
	pages    PageStore
	label    string
	capacity int
	logger   Logger
}

// NewReporter creates a Reporter for one audit's report. capacity is the
// maximum number of data rows per page; it must be positive.
func NewReporter(pages PageStore, label string, capacity int, logger Logger) *Reporter {
	return &Reporter{pages: pages, label: label, capacity: capacity, logger: logger}
}

// Restore rebuilds partition state from the pages already written.
func (r *Reporter) Restore() (PartitionState, error) {
	pageID, part, rows, err := r.pages.Latest(r.label)
	if err != nil {
		return PartitionState{}, fmt.Errorf("restoring partition state: %w", err)
	}
	return PartitionState{PageID: pageID, Part: part, Rows: rows}, nil
}

// Write appends one finding, creating the next page first when none exists
// or the current one is full. It returns the updated state for the caller to
// thread into the next call. A failed row append is logged and the row is
// accepted as lost; only page creation failures propagate.
func (r *Reporter) Write(st PartitionState, f Finding) (PartitionState, error) {
	if st.PageID == "" || st.Rows >= r.capacity {
		pageID, err := r.pages.CreatePage(r.label, st.Part+1)
		if err != nil {
			return st, fmt.Errorf("creating report page %d: %w", st.Part+1, err)
		}
		st = PartitionState{PageID: pageID, Part: st.Part + 1, Rows: 0}
	}

	row := []string{f.Path, f.URL, string(f.Kind), f.Access}
	if err := r.pages.AppendRow(st.PageID, row); err != nil {
		r.logger.Error("report row dropped", "path", f.Path, "error", err)
		return st, nil
	}
	st.Rows++
	return st, nil
}
