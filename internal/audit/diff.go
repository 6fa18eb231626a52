package audit

import (
	"fmt"
	"strings"
)

// InheritedOnlyDivergence is rendered when a child diverges from its parent
// yet carries no explicit access of its own: the difference is an invisible,
// inherited-only grant on the parent side. Still a config anomaly worth a row.
const InheritedOnlyDivergence = "(no explicit access: differs from parent by inherited-only grants)"

// Compare diffs a child's permission snapshot against the inherited baseline.
// It returns the rendered access text and true when the two diverge, or
// ("", false) when the child matches its baseline exactly.
func Compare(parent, child PermissionSet) (string, bool) {
	if !diverges(parent, child) {
		return "", false
	}
	if child.IsEmpty() {
		return InheritedOnlyDivergence, true
	}
	return RenderAccess(child), true
}

// diverges checks every identity known to either set plus the public and
// domain facets. Editor-beats-viewer precedence is already baked into
// AccessOf, so a plain level comparison per identity suffices.
func diverges(parent, child PermissionSet) bool {
	if parent.PublicAccess() != child.PublicAccess() {
		return true
	}
	if parent.DomainAccess() != child.DomainAccess() {
		return true
	}
	seen := make(map[Identity]struct{})
	for _, id := range parent.Identities() {
		seen[id] = struct{}{}
		if parent.AccessOf(id) != child.AccessOf(id) {
			return true
		}
	}
	for _, id := range child.Identities() {
		if _, ok := seen[id]; ok {
			continue
		}
		if parent.AccessOf(id) != child.AccessOf(id) {
			return true
		}
	}
	return false
}

// RenderAccess lists a set's complete access in fixed order: public sharing,
// domain sharing, editors, viewers — each suffixed with its level.
func RenderAccess(set PermissionSet) string {
	var parts []string
	if set.PublicAccess() != AccessNone {
		parts = append(parts, fmt.Sprintf("anyone - %s", set.PublicAccess()))
	}
	if set.DomainAccess() != AccessNone {
		parts = append(parts, fmt.Sprintf("domain - %s", set.DomainAccess()))
	}
	for _, id := range set.Editors() {
		parts = append(parts, fmt.Sprintf("%s - %s", id, AccessEditor))
	}
	for _, id := range set.Viewers() {
		parts = append(parts, fmt.Sprintf("%s - %s", id, AccessViewer))
	}
	return strings.Join(parts, ", ")
}

// RootGrant is one entry of the tree store's authoritative root listing.
type RootGrant struct {
	Identity  Identity
	Role      AccessLevel
	Type      string // "user", "group", "anyone" or "domain"
	Inherited bool   // granted outside this tree; noise at the root
}

// SummarizeRoot renders the root baseline as summary lines grouped by role,
// editors first. Grants flagged as inherited from outside the tree are
// filtered out before grouping.
func SummarizeRoot(grants []RootGrant) []string {
	var editors, viewers []Identity
	for _, g := range grants {
		if g.Inherited {
			continue
		}
		switch g.Role {
		case AccessEditor:
			editors = append(editors, g.Identity)
		case AccessViewer:
			viewers = append(viewers, g.Identity)
		}
	}
	sortIdentities(editors)
	sortIdentities(viewers)

	var lines []string
	if len(editors) > 0 {
		lines = append(lines, fmt.Sprintf("%s - %s", joinIdentities(editors), AccessEditor))
	}
	if len(viewers) > 0 {
		lines = append(lines, fmt.Sprintf("%s - %s", joinIdentities(viewers), AccessViewer))
	}
	return lines
}

func joinIdentities(ids []Identity) string {
	ss := make([]string, len(ids))
	for i, id := range ids {
		ss[i] = string(id)
	}
	return strings.Join(ss, ", ")
}
