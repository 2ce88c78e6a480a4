package authz

import (
	"context"
	"errors"
	"time"

	"github.com/agora-platform/agora/internal/rbac"
)

// Domain errors
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrGroupNotFound    = errors.New("group not found")
	ErrUnknownRole      = errors.New("unknown role")
	ErrDuplicateRole    = errors.New("role already assigned")
	ErrRoleNotAssigned  = errors.New("role not assigned")
	ErrOverrideNotFound = errors.New("permission override not found")
)

// Subject is the authorization view of a user: just enough of the identity
// record to resolve roles and permissions.
type Subject struct {
	ID          string
	PrimaryRole rbac.Role
	Active      bool
}

// AdditionalRole grants a role beyond the subject's primary one, optionally
// scoped to a single group. At most one assignment may exist per
// (user, role, group) triple.
type AdditionalRole struct {
	ID        string
	UserID    string
	Role      rbac.Role
	GroupID   *string // nil for platform-wide grants
	CreatedBy string
	CreatedAt time.Time
}

// Matches reports whether this assignment is the exact (role, group) pair.
func (a *AdditionalRole) Matches(role rbac.Role, groupID *string) bool {
	if a.Role != role {
		return false
	}
	return equalScope(a.GroupID, groupID)
}

// PermissionOverride is an explicit per-user grant or denial of one
// permission, optionally resource-scoped and optionally time-limited. It takes
// precedence over role-derived defaults while unexpired; once lapsed it is
// treated as absent, never as a denial.
type PermissionOverride struct {
	ID         string
	UserID     string
	Permission rbac.Permission
	Resource   *string
	Granted    bool
	ExpiresAt  *time.Time
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MatchesKey reports whether the override is keyed by the exact
// (permission, resource) pair. A resource-qualified override never satisfies
// an unqualified query and vice versa.
func (o *PermissionOverride) MatchesKey(permission rbac.Permission, resource *string) bool {
	if o.Permission != permission {
		return false
	}
	return equalScope(o.Resource, resource)
}

// Expired reports whether the override has lapsed at the given instant.
// An override without ExpiresAt never expires.
func (o *PermissionOverride) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

func equalScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// UserDirectory is the identity-store lookup the resolver depends on.
type UserDirectory interface {
	// FindSubject retrieves the authorization view of a user, or
	// ErrUserNotFound.
	FindSubject(ctx context.Context, userID string) (*Subject, error)
}

// GroupDirectory validates group references for scoped role assignments.
type GroupDirectory interface {
	// GroupExists reports whether the group exists.
	GroupExists(ctx context.Context, groupID string) (bool, error)
}

// AdditionalRoleRepository persists additional role assignments.
type AdditionalRoleRepository interface {
	// ListForUser retrieves all additional roles of a user.
	ListForUser(ctx context.Context, userID string) ([]*AdditionalRole, error)

	// Insert persists a new assignment. The store enforces uniqueness of the
	// (user, role, group) triple atomically and returns ErrDuplicateRole on
	// conflict; the service's read-before-insert is only a fast path.
	Insert(ctx context.Context, role *AdditionalRole) error

	// Delete removes the assignment with the exact (user, role, group) key,
	// returning ErrRoleNotAssigned if none exists.
	Delete(ctx context.Context, userID string, role rbac.Role, groupID *string) error
}

// OverrideRepository persists per-user permission overrides.
type OverrideRepository interface {
	// ListForUser retrieves all overrides of a user, expired ones included.
	ListForUser(ctx context.Context, userID string) ([]*PermissionOverride, error)

	// Upsert inserts the override or, when one already exists for the same
	// (user, permission, resource) key, replaces its granted flag, expiry and
	// author. Last write wins.
	Upsert(ctx context.Context, override *PermissionOverride) error

	// Delete removes the override with the exact key, returning
	// ErrOverrideNotFound if none exists.
	Delete(ctx context.Context, userID string, permission rbac.Permission, resource *string) error
}
