package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"permaudit/internal/audit"
	"permaudit/internal/checkpoint"
	"permaudit/internal/config"
	"permaudit/internal/database"
	"permaudit/internal/publish"
	"permaudit/internal/report"
	"permaudit/internal/seal"
	"permaudit/internal/treestore"
)

// AuditApp is the application layer between the CLI and the audit Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the DB lifecycle on Close.
type AuditApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	tree      audit.TreeStore
	pages     audit.PageStore
	sealer    seal.Sealer
	publisher publish.Publisher
	service   *audit.Service
	session   *Session
	logFile   *os.File
}

// NewAuditApp creates a fully wired AuditApp from the given config.
// operation identifies the CLI command being run (e.g. "Start", "Resume").
// The caller must call Close when done.
func NewAuditApp(cfg *config.Config, operation, parameters string) (*AuditApp, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	publisher, err := publish.NewPublisherFromConfig(context.Background(), cfg.Publish)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating publisher: %w", err)
	}

	if publisher != nil {
		if err := snapshotVersionCheck(db, publisher, cfg.HostID); err != nil {
			db.Close()
			return nil, err
		}
	}

	queue, err := checkpoint.NewStoreFromConfig(cfg.Checkpoint, db.DB())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating checkpoint store: %w", err)
	}

	tree, err := treestore.NewTreeStoreFromConfig(cfg.Tree)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tree store: %w", err)
	}

	pages, err := report.NewPageStoreFromConfig(cfg.Report)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating page store: %w", err)
	}

	sealer, err := seal.NewSealerFromConfig(cfg.Seal)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sealer: %w", err)
	}

	budget, err := cfg.Session.ParseBudget()
	if err != nil {
		db.Close()
		return nil, err
	}

	capacity := cfg.Report.PageCapacity
	if capacity <= 0 {
		capacity = config.DefaultPageCapacity
	}

	sessionID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, sessionID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := audit.NewService(tree, queue, db, pages, capacity, &slogAdapter{l: logger}, audit.RealClock{}, budget)
	session := NewSession(operation, parameters)

	return &AuditApp{
		cfg:       cfg,
		db:        db,
		tree:      tree,
		pages:     pages,
		sealer:    sealer,
		publisher: publisher,
		service:   svc,
		session:   session,
		logFile:   logFile,
	}, nil
}

// snapshotVersionCheck compares the local database against the published
// snapshot: a higher remote version means another copy of this host's
// database has run since, and continuing would fork its state.
func snapshotVersionCheck(db *database.SQLiteDatabase, publisher publish.Publisher, hostID string) error {
	remoteVersion, err := publisher.SnapshotVersion(hostID)
	if err != nil {
		return fmt.Errorf("checking published snapshot version: %w", err)
	}

	localMax, err := db.MaxAuditSessionID()
	if err != nil {
		return fmt.Errorf("checking local snapshot version: %w", err)
	}

	if remoteVersion > localMax {
		return fmt.Errorf("local database is behind the published snapshot (local=%d, remote=%d): a newer copy of this host's database published it", localMax, remoteVersion)
	}
	return nil
}

// persistSession saves the session to the database, giving it an
// auto-increment ID. This should only be called for DB-mutating commands.
func (a *AuditApp) persistSession() error {
	if a.session.Persisted() {
		return nil // already persisted
	}
	dbSess, err := a.db.CreateAuditSession(a.session.Operation, a.session.Parameters)
	if err != nil {
		return fmt.Errorf("persisting audit session: %w", err)
	}
	a.session.ID = dbSess.ID
	return nil
}

// Start begins a new audit rooted at the given path and runs one bounded
// session. On completion it seals and publishes the finished report pages.
func (a *AuditApp) Start(rawRoot string) (*audit.Result, error) {
	if err := a.persistSession(); err != nil {
		return nil, err
	}
	rootID, err := a.resolveRoot(rawRoot)
	if err != nil {
		return nil, err
	}
	result, err := a.service.Start(rootID)
	if err != nil {
		a.session.Status = "error"
		return result, err
	}
	return result, a.finishAudit(result)
}

// Resume continues a paused audit for one more bounded session.
func (a *AuditApp) Resume() (*audit.Result, error) {
	if err := a.persistSession(); err != nil {
		return nil, err
	}
	result, err := a.service.Resume()
	if err != nil {
		a.session.Status = "error"
		return result, err
	}
	return result, a.finishAudit(result)
}

// Clear discards all pending audit state.
func (a *AuditApp) Clear() error {
	if err := a.persistSession(); err != nil {
		return err
	}
	if err := a.service.Clear(); err != nil {
		a.session.Status = "error"
		return err
	}
	return nil
}

// Status reports the persisted audit state between sessions.
func (a *AuditApp) Status() (*audit.Status, error) {
	return a.service.Status()
}

// History returns the most recent audit sessions.
func (a *AuditApp) History(limit int) ([]*database.AuditSession, error) {
	return a.db.ListAuditSessions(limit)
}

// Publish archives every page of a finished report, plus the DB snapshot on
// Close. Useful when the archive was unreachable at audit completion.
func (a *AuditApp) Publish(label string) (int, error) {
	if a.publisher == nil {
		return 0, fmt.Errorf("no publisher configured")
	}
	fsPages, ok := a.pages.(*report.FileSystemPageStore)
	if !ok {
		return 0, fmt.Errorf("report store %q has no local pages to publish", a.cfg.Report.Type)
	}

	if err := a.persistSession(); err != nil {
		return 0, err
	}

	pages, err := fsPages.AllPages(label)
	if err != nil {
		a.session.Status = "error"
		return 0, fmt.Errorf("listing report pages: %w", err)
	}
	if len(pages) == 0 {
		a.session.Status = "error"
		return 0, fmt.Errorf("no report pages found for %s", label)
	}

	for _, page := range pages {
		if err := a.publishPage(label, page); err != nil {
			a.session.Status = "error"
			return 0, err
		}
	}
	return len(pages), nil
}

// ValidatePublisher verifies the configured archive is reachable.
func (a *AuditApp) ValidatePublisher() error {
	if a.publisher == nil {
		return fmt.Errorf("no publisher configured")
	}
	return a.publisher.ValidateSetup()
}

// resolveRoot turns a raw CLI path into a tree store node ID. For the
// filesystem store that means an absolute path; other stores take IDs as-is.
func (a *AuditApp) resolveRoot(raw string) (string, error) {
	if _, ok := a.tree.(*treestore.FileSystemStore); !ok {
		return raw, nil
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("resolving root path: %w", err)
	}
	return abs, nil
}

// finishAudit runs completion-only work: sealing the finished report pages
// and archiving them. Paused audits keep their pages plaintext and local so
// the next session can append.
func (a *AuditApp) finishAudit(result *audit.Result) error {
	if result == nil || result.State != audit.StateCompleted {
		return nil
	}

	fsPages, ok := a.pages.(*report.FileSystemPageStore)
	if !ok {
		return nil
	}

	if a.sealer != nil {
		if err := fsPages.SealPages(result.Label, a.sealer); err != nil {
			a.session.Status = "error"
			return fmt.Errorf("sealing report pages: %w", err)
		}
	}

	if a.publisher != nil {
		if err := a.publishPages(fsPages, result.Label); err != nil {
			a.session.Status = "error"
			return err
		}
	}
	return nil
}

// publishPages archives every page file of a label, sealed or plaintext.
func (a *AuditApp) publishPages(fsPages *report.FileSystemPageStore, label string) error {
	pages, err := fsPages.AllPages(label)
	if err != nil {
		return fmt.Errorf("listing report pages: %w", err)
	}
	for _, page := range pages {
		if err := a.publishPage(label, page); err != nil {
			return err
		}
	}
	return nil
}

func (a *AuditApp) publishPage(label, page string) error {
	f, err := os.Open(page)
	if err != nil {
		return fmt.Errorf("opening page for publishing: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat page: %w", err)
	}

	key := label + "/" + filepath.Base(page)
	if err := a.publisher.PutPage(key, f, info.Size()); err != nil {
		return fmt.Errorf("publishing page %s: %w", key, err)
	}
	return nil
}

// Close finalizes the session and closes all resources. For persisted
// sessions: finishes the session record, snapshots the DB, and publishes the
// snapshot. For non-persisted sessions: just closes the database.
func (a *AuditApp) Close() error {
	var firstErr error

	if a.session.Persisted() {
		// Finalize the session record
		if err := a.db.FinishAuditSession(a.session.ID, a.session.Status); err != nil {
			firstErr = fmt.Errorf("finishing audit session: %w", err)
		}

		// Snapshot the DB to a temp file
		tmpFile, err := os.CreateTemp("", "permaudit-db-snapshot-*.db")
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("creating temp file for db snapshot: %w", err)
			}
		}

		var tmpPath string
		if tmpFile != nil {
			tmpPath = tmpFile.Name()
			tmpFile.Close()

			if err := a.db.BackupTo(tmpPath); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("snapshotting database: %w", err)
				}
				tmpPath = "" // skip publishing
			}
		}

		// Close the database
		if err := a.db.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("closing database: %w", err)
			}
		}

		// Publish the DB snapshot with version = session ID
		if tmpPath != "" && a.publisher != nil {
			if err := a.publishSnapshot(tmpPath, a.session.ID); err != nil {
				if firstErr == nil {
					firstErr = err
				}
			}
		}

		// Clean up temp file
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	} else {
		// Non-mutating operation: just close the database, no publishing
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// publishSnapshot opens the temp DB file and publishes it as this host's snapshot.
func (a *AuditApp) publishSnapshot(path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db snapshot for publishing: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db snapshot: %w", err)
	}

	if err := a.publisher.PutSnapshot(a.cfg.HostID, f, info.Size(), version); err != nil {
		return fmt.Errorf("publishing db snapshot: %w", err)
	}

	return nil
}
