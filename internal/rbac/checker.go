package rbac

import (
	"context"
	"strings"
)

// Checker answers "may this role perform this action" against a
// role-to-permission table. Permissions are verb-scoped strings like
// "practice:submit"; a trailing "*" grants everything under the prefix and
// a bare "*" grants everything.
type Checker struct {
	table map[string][]string
}

// NewChecker builds a checker over table, falling back to the default
// practice-API policy when table is nil.
func NewChecker(table map[string][]string) *Checker {
	if table == nil {
		table = RolePermissions
	}
	return &Checker{table: table}
}

func (c *Checker) Has(role, perm string) bool {
	for _, granted := range c.table[role] {
		if permMatches(granted, perm) {
			return true
		}
	}
	return false
}

// Any reports whether the role holds at least one of perms. Used for
// endpoints reachable under more than one permission, like the session
// summary (view-own vs view-all).
func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func permMatches(granted, want string) bool {
	if granted == "*" || granted == want {
		return true
	}
	if strings.HasSuffix(granted, "*") {
		return strings.HasPrefix(want, strings.TrimSuffix(granted, "*"))
	}
	return false
}

// ---- role in context ----

type ctxKey struct{}

var ctxKeyRole = ctxKey{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

func RoleFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyRole); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
