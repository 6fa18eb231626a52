package treestore

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"

	"permaudit/internal/audit"
)

// FileSystemStore audits a local POSIX directory tree. Node IDs are absolute
// paths. The POSIX permission model maps onto the audit's facets as follows:
//
//   - the owning user is a direct grant: editor when owner-writable,
//     viewer when owner-read-only;
//   - group bits map to the domain facet (the tree's "organization");
//   - other/world bits map to the public facet.
//
// A child whose mode or owner differs from its parent's therefore surfaces
// as a divergence, which is exactly what the audit is after.
type FileSystemStore struct{}

// NewFileSystemStore creates a tree store over the local filesystem.
func NewFileSystemStore() *FileSystemStore {
	return &FileSystemStore{}
}

var _ audit.TreeStore = (*FileSystemStore)(nil)

func (s *FileSystemStore) Resolve(id string) (*audit.Node, error) {
	info, err := os.Stat(id)
	if err != nil {
		return nil, statError(id, err)
	}
	kind := audit.KindLeaf
	switch {
	case info.IsDir():
		kind = audit.KindContainer
	case !info.Mode().IsRegular():
		// Sockets, devices and the like are outside the audited tree.
		return nil, fmt.Errorf("unsupported file type %s: %w", id, audit.ErrNotFound)
	}
	return &audit.Node{
		ID:   id,
		Name: filepath.Base(id),
		URL:  "file://" + id,
		Kind: kind,
	}, nil
}

func (s *FileSystemStore) Children(id string) ([]*audit.Node, error) {
	entries, err := os.ReadDir(id)
	if err != nil {
		return nil, statError(id, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var children []*audit.Node
	for _, e := range entries {
		kind := audit.KindLeaf
		switch {
		case e.IsDir():
			kind = audit.KindContainer
		case e.Type()&fs.ModeType != 0:
			continue // irregular entries are skipped
		}
		path := filepath.Join(id, e.Name())
		children = append(children, &audit.Node{
			ID:   path,
			Name: e.Name(),
			URL:  "file://" + path,
			Kind: kind,
		})
	}
	return children, nil
}

func (s *FileSystemStore) Editors(id string) ([]audit.Identity, error) {
	info, err := os.Stat(id)
	if err != nil {
		return nil, statError(id, err)
	}
	if info.Mode().Perm()&0200 == 0 {
		return nil, nil
	}
	return []audit.Identity{ownerIdentity(info)}, nil
}

func (s *FileSystemStore) Viewers(id string) ([]audit.Identity, error) {
	info, err := os.Stat(id)
	if err != nil {
		return nil, statError(id, err)
	}
	perm := info.Mode().Perm()
	if perm&0200 != 0 || perm&0400 == 0 {
		return nil, nil // owner is an editor, or has no access at all
	}
	return []audit.Identity{ownerIdentity(info)}, nil
}

func (s *FileSystemStore) LinkSharing(id string) ([]audit.LinkSharing, error) {
	info, err := os.Stat(id)
	if err != nil {
		return nil, statError(id, err)
	}
	perm := info.Mode().Perm()

	var links []audit.LinkSharing
	if level := levelFromBits(perm, 0020, 0040); level != audit.AccessNone {
		links = append(links, audit.LinkSharing{Scope: audit.LinkScopeDomain, Level: level})
	}
	if level := levelFromBits(perm, 0002, 0004); level != audit.AccessNone {
		links = append(links, audit.LinkSharing{Scope: audit.LinkScopeAnyone, Level: level})
	}
	return links, nil
}

func (s *FileSystemStore) RootGrants(id string) ([]audit.RootGrant, error) {
	info, err := os.Stat(id)
	if err != nil {
		return nil, statError(id, err)
	}
	perm := info.Mode().Perm()

	var grants []audit.RootGrant
	if level := levelFromBits(perm, 0200, 0400); level != audit.AccessNone {
		grants = append(grants, audit.RootGrant{
			Identity: ownerIdentity(info),
			Role:     level,
			Type:     "user",
		})
	}
	if level := levelFromBits(perm, 0020, 0040); level != audit.AccessNone {
		grants = append(grants, audit.RootGrant{
			Identity: groupIdentity(info),
			Role:     level,
			Type:     "group",
		})
	}
	if level := levelFromBits(perm, 0002, 0004); level != audit.AccessNone {
		grants = append(grants, audit.RootGrant{
			Identity: "anyone",
			Role:     level,
			Type:     "anyone",
		})
	}
	return grants, nil
}

// levelFromBits maps a write/read bit pair to an access level; write wins.
func levelFromBits(perm fs.FileMode, writeBit, readBit fs.FileMode) audit.AccessLevel {
	switch {
	case perm&writeBit != 0:
		return audit.AccessEditor
	case perm&readBit != 0:
		return audit.AccessViewer
	default:
		return audit.AccessNone
	}
}

// ownerIdentity resolves the owning user's name, falling back to "uid:N"
// when the account is unknown to the local user database.
func ownerIdentity(info fs.FileInfo) audit.Identity {
	uid, _, ok := ownerOf(info)
	if !ok {
		return "uid:?"
	}
	if u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10)); err == nil {
		return audit.Identity(u.Username)
	}
	return audit.Identity("uid:" + strconv.FormatUint(uint64(uid), 10))
}

func groupIdentity(info fs.FileInfo) audit.Identity {
	_, gid, ok := ownerOf(info)
	if !ok {
		return "group:?"
	}
	if g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10)); err == nil {
		return audit.Identity("group:" + g.Name)
	}
	return audit.Identity("gid:" + strconv.FormatUint(uint64(gid), 10))
}

func statError(id string, err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%s: %w", id, audit.ErrNotFound)
	case os.IsPermission(err):
		return fmt.Errorf("%s: %w", id, audit.ErrForbidden)
	default:
		return err
	}
}
