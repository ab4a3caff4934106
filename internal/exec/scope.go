package exec

import (
	"fmt"
	"sort"
)

// Scope is the trusted authorization context: the set of tenant ids the
// requesting principal may read. It is produced by the session collaborator
// and handed in from outside; nothing in a query spec can create, extend,
// or replace it.
//
// The zero Scope is empty and unusable; the executor refuses it.
type Scope struct {
	ids []string
}

// NewScope builds a scope from tenant ids. Ids are deduplicated and sorted
// so the injected parameter order is deterministic. An empty result is an
// error: an authorization context with no tenants authorizes nothing and a
// caller passing one has a bug.
func NewScope(ids ...string) (Scope, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			return Scope{}, fmt.Errorf("tenant id must not be empty")
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return Scope{}, fmt.Errorf("authorization context must contain at least one tenant")
	}
	sort.Strings(out)
	return Scope{ids: out}, nil
}

// TenantIDs returns a copy of the scoped tenant ids, sorted.
func (s Scope) TenantIDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Size returns the number of tenants in scope.
func (s Scope) Size() int {
	return len(s.ids)
}
