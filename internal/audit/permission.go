package audit

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Identity is an opaque principal identifier: an individual account, a group,
// the literal "anyone" (public link) or "domain" (organization-wide).
type Identity string

// AccessLevel is the ordered access enumeration: None < Viewer < Editor.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessViewer
	AccessEditor
)

func (l AccessLevel) String() string {
	switch l {
	case AccessViewer:
		return "Viewer"
	case AccessEditor:
		return "Editor"
	default:
		return "None"
	}
}

// MarshalText encodes the level for the persisted queue payload.
func (l AccessLevel) MarshalText() ([]byte, error) {
	switch l {
	case AccessNone:
		return []byte("none"), nil
	case AccessViewer:
		return []byte("viewer"), nil
	case AccessEditor:
		return []byte("editor"), nil
	}
	return nil, fmt.Errorf("invalid access level: %d", int(l))
}

func (l *AccessLevel) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*l = AccessNone
	case "viewer":
		*l = AccessViewer
	case "editor":
		*l = AccessEditor
	default:
		return fmt.Errorf("invalid access level: %q", string(text))
	}
	return nil
}

// LinkScope identifies who a link-sharing grant applies to.
type LinkScope int

const (
	LinkScopeNone LinkScope = iota
	LinkScopeAnyone
	LinkScopeDomain
)

// LinkSharing is one link-sharing grant on a node: a scope and the level it
// confers. A node may carry several (e.g. domain-edit plus anyone-view).
type LinkSharing struct {
	Scope LinkScope
	Level AccessLevel
}

// PermissionSet is the normalized, order-independent snapshot of a node's
// effective access. Immutable once constructed: build it with
// NewPermissionSet or Normalize and never mutate the returned value.
type PermissionSet struct {
	editors []Identity
	viewers []Identity
	public  AccessLevel
	domain  AccessLevel
	levels  map[Identity]AccessLevel
}

// NewPermissionSet builds a PermissionSet from raw grant lists. Identities
// are deduplicated and sorted; an identity present in both lists is kept
// only as an editor, so editors and viewers are always disjoint.
func NewPermissionSet(editors, viewers []Identity, public, domain AccessLevel) PermissionSet {
	levels := make(map[Identity]AccessLevel, len(editors)+len(viewers))
	for _, id := range viewers {
		levels[id] = AccessViewer
	}
	// Editors win: assign after viewers so overlapping identities end up
	// with Editor, the explicit precedence rule.
	for _, id := range editors {
		levels[id] = AccessEditor
	}

	var e, v []Identity
	for id, level := range levels {
		if level == AccessEditor {
			e = append(e, id)
		} else {
			v = append(v, id)
		}
	}
	sortIdentities(e)
	sortIdentities(v)

	return PermissionSet{
		editors: e,
		viewers: v,
		public:  public,
		domain:  domain,
		levels:  levels,
	}
}

// Normalize maps a node's raw grant facets into a PermissionSet. Multiple
// link grants with the same scope collapse to the highest level.
func Normalize(editors, viewers []Identity, links []LinkSharing) PermissionSet {
	public, domain := AccessNone, AccessNone
	for _, link := range links {
		switch link.Scope {
		case LinkScopeAnyone:
			if link.Level > public {
				public = link.Level
			}
		case LinkScopeDomain:
			if link.Level > domain {
				domain = link.Level
			}
		}
	}
	return NewPermissionSet(editors, viewers, public, domain)
}

// AccessOf returns the level the set grants to an identity directly.
// Public and domain sharing are not considered: those are separate facets.
func (s PermissionSet) AccessOf(id Identity) AccessLevel {
	return s.levels[id]
}

// Editors returns the identities with Editor access, sorted.
// The returned slice must not be modified.
func (s PermissionSet) Editors() []Identity { return s.editors }

// Viewers returns the identities with Viewer access, sorted and disjoint
// from Editors. The returned slice must not be modified.
func (s PermissionSet) Viewers() []Identity { return s.viewers }

// PublicAccess returns the level granted to anyone with the link.
func (s PermissionSet) PublicAccess() AccessLevel { return s.public }

// DomainAccess returns the level granted to the whole organization.
func (s PermissionSet) DomainAccess() AccessLevel { return s.domain }

// Identities returns every identity with a direct grant, editors first.
func (s PermissionSet) Identities() []Identity {
	out := make([]Identity, 0, len(s.editors)+len(s.viewers))
	out = append(out, s.editors...)
	out = append(out, s.viewers...)
	return out
}

// IsEmpty reports whether the set carries no explicit access at all.
func (s PermissionSet) IsEmpty() bool {
	return len(s.editors) == 0 && len(s.viewers) == 0 &&
		s.public == AccessNone && s.domain == AccessNone
}

// Equal reports structural equality of two sets.
func (s PermissionSet) Equal(o PermissionSet) bool {
	if s.public != o.public || s.domain != o.domain {
		return false
	}
	if len(s.editors) != len(o.editors) || len(s.viewers) != len(o.viewers) {
		return false
	}
	for i, id := range s.editors {
		if o.editors[i] != id {
			return false
		}
	}
	for i, id := range s.viewers {
		if o.viewers[i] != id {
			return false
		}
	}
	return true
}

// permissionSetJSON is the persisted wire form. The snapshot is fully
// self-contained: no reference back to the node it was resolved from.
type permissionSetJSON struct {
	Editors []Identity  `json:"editors"`
	Viewers []Identity  `json:"viewers"`
	Public  AccessLevel `json:"public"`
	Domain  AccessLevel `json:"domain"`
}

func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(permissionSetJSON{
		Editors: s.editors,
		Viewers: s.viewers,
		Public:  s.public,
		Domain:  s.domain,
	})
}

func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var w permissionSetJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = NewPermissionSet(w.Editors, w.Viewers, w.Public, w.Domain)
	return nil
}

func sortIdentities(ids []Identity) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
