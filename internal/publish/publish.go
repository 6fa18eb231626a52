package publish

import "io"

// Publisher is an off-host archive for audit artifacts: finished report
// pages, keyed by their page path, and the per-host checkpoint database
// snapshot, which carries a monotonically increasing version so a host can
// detect that another copy of its database has run since.
type Publisher interface {
	// PutPage archives a report page under the given key. Idempotent:
	// re-publishing the same key overwrites it.
	PutPage(key string, r io.Reader, size int64) error

	// GetPage retrieves an archived page and writes it to w.
	GetPage(key string, w io.Writer) error

	// PutSnapshot stores a host's checkpoint database snapshot along with a
	// version marker.
	PutSnapshot(hostID string, r io.Reader, size int64, version int64) error

	// GetSnapshot retrieves a host's checkpoint database snapshot.
	GetSnapshot(hostID string, w io.Writer) error

	// SnapshotVersion returns the stored snapshot version for a host, or 0
	// when no snapshot has been published.
	SnapshotVersion(hostID string) (int64, error)

	// ValidateSetup verifies the archive is reachable and writable.
	ValidateSetup() error
}
