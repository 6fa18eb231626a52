package treestore_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"permaudit/internal/audit"
	"permaudit/internal/treestore"
)

// writeFile creates a file with an explicit mode, bypassing the umask.
func writeFile(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatalf("chmod %s: %v", path, err)
	}
}

func TestFileSystemStore_Resolve(t *testing.T) {
	store := treestore.NewFileSystemStore()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file.txt"), 0644)

	t.Run("directories are containers", func(t *testing.T) {
		node, err := store.Resolve(dir)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if node.Kind != audit.KindContainer {
			t.Errorf("Kind = %s, want container", node.Kind)
		}
		if node.URL != "file://"+dir {
			t.Errorf("URL = %s", node.URL)
		}
	})

	t.Run("regular files are leaves", func(t *testing.T) {
		path := filepath.Join(dir, "file.txt")
		node, err := store.Resolve(path)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if node.Kind != audit.KindLeaf {
			t.Errorf("Kind = %s, want leaf", node.Kind)
		}
		if node.Name != "file.txt" {
			t.Errorf("Name = %s", node.Name)
		}
	})

	t.Run("missing paths map to ErrNotFound", func(t *testing.T) {
		_, err := store.Resolve(filepath.Join(dir, "missing"))
		if !errors.Is(err, audit.ErrNotFound) {
			t.Errorf("Resolve() error = %v, want ErrNotFound", err)
		}
	})
}

func TestFileSystemStore_Children(t *testing.T) {
	store := treestore.NewFileSystemStore()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "b.txt"), 0644)
	writeFile(t, filepath.Join(dir, "a.txt"), 0644)

	children, err := store.Children(dir)
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("Children() returned %d nodes, want 3", len(children))
	}
	// Stable name order.
	for i, want := range []string{"a.txt", "b.txt", "sub"} {
		if children[i].Name != want {
			t.Errorf("children[%d] = %s, want %s", i, children[i].Name, want)
		}
	}
	if children[2].Kind != audit.KindContainer {
		t.Errorf("sub Kind = %s, want container", children[2].Kind)
	}
}

func TestFileSystemStore_PermissionFacets(t *testing.T) {
	store := treestore.NewFileSystemStore()
	dir := t.TempDir()

	t.Run("owner-writable file grants its owner editor", func(t *testing.T) {
		path := filepath.Join(dir, "rw.txt")
		writeFile(t, path, 0600)

		editors, err := store.Editors(path)
		if err != nil {
			t.Fatalf("Editors() error = %v", err)
		}
		if len(editors) != 1 || editors[0] == "" {
			t.Errorf("Editors() = %v, want the owner", editors)
		}
		viewers, err := store.Viewers(path)
		if err != nil {
			t.Fatalf("Viewers() error = %v", err)
		}
		if len(viewers) != 0 {
			t.Errorf("Viewers() = %v, want none: the owner is already an editor", viewers)
		}
	})

	t.Run("owner-read-only file grants its owner viewer", func(t *testing.T) {
		path := filepath.Join(dir, "ro.txt")
		writeFile(t, path, 0400)

		editors, err := store.Editors(path)
		if err != nil {
			t.Fatalf("Editors() error = %v", err)
		}
		if len(editors) != 0 {
			t.Errorf("Editors() = %v, want none", editors)
		}
		viewers, err := store.Viewers(path)
		if err != nil {
			t.Fatalf("Viewers() error = %v", err)
		}
		if len(viewers) != 1 {
			t.Errorf("Viewers() = %v, want the owner", viewers)
		}
	})

	t.Run("group and other bits map to domain and anyone links", func(t *testing.T) {
		path := filepath.Join(dir, "shared.txt")
		writeFile(t, path, 0664)

		links, err := store.LinkSharing(path)
		if err != nil {
			t.Fatalf("LinkSharing() error = %v", err)
		}
		if len(links) != 2 {
			t.Fatalf("LinkSharing() = %v, want domain + anyone", links)
		}
		if links[0].Scope != audit.LinkScopeDomain || links[0].Level != audit.AccessEditor {
			t.Errorf("domain link = %+v, want editor", links[0])
		}
		if links[1].Scope != audit.LinkScopeAnyone || links[1].Level != audit.AccessViewer {
			t.Errorf("anyone link = %+v, want viewer", links[1])
		}
	})

	t.Run("private file has no link sharing", func(t *testing.T) {
		path := filepath.Join(dir, "private.txt")
		writeFile(t, path, 0600)

		links, err := store.LinkSharing(path)
		if err != nil {
			t.Fatalf("LinkSharing() error = %v", err)
		}
		if len(links) != 0 {
			t.Errorf("LinkSharing() = %v, want none", links)
		}
	})
}

func TestFileSystemStore_RootGrants(t *testing.T) {
	store := treestore.NewFileSystemStore()
	dir := t.TempDir()
	sub := filepath.Join(dir, "tree")
	if err := os.Mkdir(sub, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(sub, 0750); err != nil {
		t.Fatal(err)
	}

	grants, err := store.RootGrants(sub)
	if err != nil {
		t.Fatalf("RootGrants() error = %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("RootGrants() = %v, want owner + group", grants)
	}
	if grants[0].Type != "user" || grants[0].Role != audit.AccessEditor {
		t.Errorf("owner grant = %+v, want user editor", grants[0])
	}
	if grants[1].Type != "group" || grants[1].Role != audit.AccessViewer {
		t.Errorf("group grant = %+v, want group viewer", grants[1])
	}
	for _, g := range grants {
		if g.Inherited {
			t.Errorf("grant %+v flagged inherited: filesystem grants never are", g)
		}
	}
}
