package audit_test

import (
	"errors"
	"fmt"
	"testing"

	"permaudit/internal/audit"
	"permaudit/internal/report"
)

func TestReporter_Write(t *testing.T) {
	finding := func(i int) audit.Finding {
		return audit.Finding{
			Path:   fmt.Sprintf("root/file-%d", i),
			URL:    fmt.Sprintf("mem://file-%d", i),
			Kind:   audit.KindLeaf,
			Access: "alice - Editor",
		}
	}

	t.Run("creates the first page lazily", func(t *testing.T) {
		pages := report.NewMemoryPageStore()
		r := audit.NewReporter(pages, "label", 10, audit.NewNopLogger())

		if pages.PageCount("label") != 0 {
			t.Fatal("page created before any finding was written")
		}

		st, err := r.Write(audit.PartitionState{}, finding(1))
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if st.Part != 1 || st.Rows != 1 {
			t.Errorf("state = %+v, want part 1 with 1 row", st)
		}
		if pages.PageCount("label") != 1 {
			t.Errorf("PageCount() = %d, want 1", pages.PageCount("label"))
		}
	})

	t.Run("rolls over to a new page at capacity", func(t *testing.T) {
		pages := report.NewMemoryPageStore()
		r := audit.NewReporter(pages, "label", 2, audit.NewNopLogger())

		st := audit.PartitionState{}
		var err error
		for i := 0; i < 5; i++ {
			if st, err = r.Write(st, finding(i)); err != nil {
				t.Fatalf("Write(%d) error = %v", i, err)
			}
		}

		if pages.PageCount("label") != 3 {
			t.Errorf("PageCount() = %d, want 3", pages.PageCount("label"))
		}
		if st.Part != 3 || st.Rows != 1 {
			t.Errorf("final state = %+v, want part 3 with 1 row", st)
		}
	})

	t.Run("writes header plus data rows", func(t *testing.T) {
		pages := report.NewMemoryPageStore()
		r := audit.NewReporter(pages, "label", 10, audit.NewNopLogger())

		st, err := r.Write(audit.PartitionState{}, finding(1))
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		rows := pages.Rows(st.PageID)
		if len(rows) != 2 {
			t.Fatalf("page has %d rows, want header plus 1", len(rows))
		}
		if rows[0][0] != "Path" || rows[1][0] != "root/file-1" {
			t.Errorf("unexpected page contents: %v", rows)
		}
	})

	t.Run("a failed append drops the row and keeps going", func(t *testing.T) {
		pages := &flakyPageStore{PageStore: report.NewMemoryPageStore()}
		r := audit.NewReporter(pages, "label", 10, audit.NewNopLogger())

		st, err := r.Write(audit.PartitionState{}, finding(1))
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		pages.failNext = true
		next, err := r.Write(st, finding(2))
		if err != nil {
			t.Fatalf("Write() with failing append error = %v", err)
		}
		if next.Rows != st.Rows {
			t.Errorf("row count advanced past a dropped row: %+v", next)
		}

		if _, err := r.Write(next, finding(3)); err != nil {
			t.Fatalf("Write() after dropped row error = %v", err)
		}
	})

	t.Run("page creation failures propagate", func(t *testing.T) {
		pages := &flakyPageStore{PageStore: report.NewMemoryPageStore(), failCreate: true}
		r := audit.NewReporter(pages, "label", 10, audit.NewNopLogger())

		if _, err := r.Write(audit.PartitionState{}, finding(1)); err == nil {
			t.Error("Write() with failing CreatePage should error")
		}
	})
}

func TestReporter_Restore(t *testing.T) {
	pages := report.NewMemoryPageStore()
	r := audit.NewReporter(pages, "label", 2, audit.NewNopLogger())

	st := audit.PartitionState{}
	var err error
	for i := 0; i < 3; i++ {
		if st, err = r.Write(st, audit.Finding{Path: "p", Access: "a"}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	// A new reporter over the same store picks up where the old one stopped.
	restored, err := audit.NewReporter(pages, "label", 2, audit.NewNopLogger()).Restore()
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored != st {
		t.Errorf("Restore() = %+v, want %+v", restored, st)
	}
}

// flakyPageStore injects failures into an underlying page store.
type flakyPageStore struct {
	audit.PageStore
	failNext   bool
	failCreate bool
}

func (f *flakyPageStore) CreatePage(label string, part int) (string, error) {
	if f.failCreate {
		return "", errors.New("create failed")
	}
	return f.PageStore.CreatePage(label, part)
}

func (f *flakyPageStore) AppendRow(pageID string, row []string) error {
	if f.failNext {
		f.failNext = false
		return errors.New("append failed")
	}
	return f.PageStore.AppendRow(pageID, row)
}
