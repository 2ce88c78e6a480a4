package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agora-platform/agora/internal/audit"
	"github.com/agora-platform/agora/internal/rbac"
	"github.com/google/uuid"
)

// Service resolves roles and permissions and owns every mutation of
// additional roles and permission overrides. It holds no state of its own:
// each query re-reads the identity store, so a revocation takes effect on the
// very next check.
type Service struct {
	users       UserDirectory
	groups      GroupDirectory
	roles       AdditionalRoleRepository
	overrides   OverrideRepository
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new authorization service
func NewService(
	users UserDirectory,
	groups GroupDirectory,
	roles AdditionalRoleRepository,
	overrides OverrideRepository,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		users:       users,
		groups:      groups,
		roles:       roles,
		overrides:   overrides,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// WithClock replaces the expiry clock. Tests use this to control time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetRoles returns the user's roles: primary role first, then each distinct
// additional role. A role held both as primary and additional appears once.
// A missing user is an error here, not an empty-roles user.
func (s *Service) GetRoles(ctx context.Context, userID string) ([]rbac.Role, error) {
	subject, err := s.users.FindSubject(ctx, userID)
	if err != nil {
		return nil, err
	}

	additional, err := s.roles.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list additional roles: %w", err)
	}

	roles := []rbac.Role{subject.PrimaryRole}
	seen := map[rbac.Role]bool{subject.PrimaryRole: true}
	for _, a := range additional {
		if seen[a.Role] {
			continue
		}
		seen[a.Role] = true
		roles = append(roles, a.Role)
	}

	return roles, nil
}

// HasRole reports whether the user holds the role. With no scope, the primary
// role and any additional role match. With a scope, only an additional role
// assigned to that exact group matches; primary roles are never scoped.
// An unknown user yields false, not an error: role checks gate read paths and
// must degrade to deny.
func (s *Service) HasRole(ctx context.Context, userID string, role rbac.Role, scope *string) (bool, error) {
	subject, err := s.users.FindSubject(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}

	if scope == nil && subject.PrimaryRole == role {
		return true, nil
	}

	additional, err := s.roles.ListForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list additional roles: %w", err)
	}

	for _, a := range additional {
		if a.Role != role {
			continue
		}
		if scope == nil || equalScope(a.GroupID, scope) {
			return true, nil
		}
	}

	return false, nil
}

// HasPermission resolves a permission for the user. Resolution order:
//
//  1. a non-expired override on the exact (permission, resource) key wins and
//     its granted flag is returned verbatim — an explicit denial beats any
//     role-derived grant;
//  2. otherwise (override absent or lapsed) the role catalog decides: true iff
//     any of the user's roles carries the permission.
//
// A lapsed override therefore reverts to catalog defaults rather than turning
// into a permanent denial. An unknown user yields false, not an error.
func (s *Service) HasPermission(ctx context.Context, userID string, permission rbac.Permission, resource *string) (bool, error) {
	subject, err := s.users.FindSubject(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}

	overrides, err := s.overrides.ListForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list permission overrides: %w", err)
	}

	now := s.now()
	for _, o := range overrides {
		if o.MatchesKey(permission, resource) && !o.Expired(now) {
			return o.Granted, nil
		}
	}

	additional, err := s.roles.ListForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to list additional roles: %w", err)
	}

	if rbac.PermissionsFor(subject.PrimaryRole).Has(permission) {
		return true, nil
	}
	for _, a := range additional {
		if rbac.PermissionsFor(a.Role).Has(permission) {
			return true, nil
		}
	}

	return false, nil
}

// AssignRole grants an additional role to a user, optionally scoped to a
// group. The target user must exist, the role name must be defined in the
// catalog, a supplied group must exist, and the exact (role, group) pair must
// not already be assigned.
func (s *Service) AssignRole(ctx context.Context, userID string, role rbac.Role, groupID *string, actorID string) (*AdditionalRole, error) {
	if _, err := s.users.FindSubject(ctx, userID); err != nil {
		return nil, err
	}

	if !rbac.IsKnown(role) {
		return nil, ErrUnknownRole
	}

	if groupID != nil {
		exists, err := s.groups.GroupExists(ctx, *groupID)
		if err != nil {
			return nil, fmt.Errorf("failed to check group: %w", err)
		}
		if !exists {
			return nil, ErrGroupNotFound
		}
	}

	// Fast path; the store's uniqueness constraint is the real guard against
	// concurrent assignment of the same triple.
	existing, err := s.roles.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list additional roles: %w", err)
	}
	for _, a := range existing {
		if a.Matches(role, groupID) {
			return nil, ErrDuplicateRole
		}
	}

	assignment := &AdditionalRole{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Role:      role,
		GroupID:   groupID,
		CreatedBy: actorID,
		CreatedAt: s.now(),
	}

	if err := s.roles.Insert(ctx, assignment); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		ActorID:  actorID,
		TargetID: userID,
		Resource: string(role),
		Metadata: metadataWithGroup(groupID, nil),
	})

	return assignment, nil
}

// RemoveRole removes the additional role with the exact (role, group) key.
// Removing an assignment that does not exist is an error, not a no-op.
func (s *Service) RemoveRole(ctx context.Context, userID string, role rbac.Role, groupID *string, actorID string) error {
	if _, err := s.users.FindSubject(ctx, userID); err != nil {
		return err
	}

	if err := s.roles.Delete(ctx, userID, role, groupID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		ActorID:  actorID,
		TargetID: userID,
		Resource: string(role),
		Metadata: metadataWithGroup(groupID, nil),
	})

	return nil
}

// AssignPermission records an explicit grant or denial of one permission for
// a user, optionally resource-scoped and optionally expiring. Assigning to an
// existing (permission, resource) key replaces the previous override; repeated
// assignment is not an error.
func (s *Service) AssignPermission(ctx context.Context, userID string, permission rbac.Permission, resource *string, granted bool, expiresAt *time.Time, actorID string) (*PermissionOverride, error) {
	if _, err := s.users.FindSubject(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now()
	override := &PermissionOverride{
		ID:         uuid.Must(uuid.NewV7()).String(),
		UserID:     userID,
		Permission: permission,
		Resource:   resource,
		Granted:    granted,
		ExpiresAt:  expiresAt,
		CreatedBy:  actorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.overrides.Upsert(ctx, override); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePermissionChanged,
		ActorID:  actorID,
		TargetID: userID,
		Resource: string(permission),
		Metadata: metadataWithGroup(nil, map[string]any{
			audit.AttrGranted: granted,
		}),
	})

	return override, nil
}

// RemovePermission deletes the override with the exact (permission, resource)
// key. Like RemoveRole, a missing target is an error.
func (s *Service) RemovePermission(ctx context.Context, userID string, permission rbac.Permission, resource *string, actorID string) error {
	if _, err := s.users.FindSubject(ctx, userID); err != nil {
		return err
	}

	if err := s.overrides.Delete(ctx, userID, permission, resource); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePermissionRevoked,
		ActorID:  actorID,
		TargetID: userID,
		Resource: string(permission),
	})

	return nil
}

// ListRoles returns the raw additional role assignments of a user.
func (s *Service) ListRoles(ctx context.Context, userID string) ([]*AdditionalRole, error) {
	if _, err := s.users.FindSubject(ctx, userID); err != nil {
		return nil, err
	}
	return s.roles.ListForUser(ctx, userID)
}

// ListPermissionOverrides returns the raw overrides of a user, expired ones
// included so admins can see lapsed grants.
func (s *Service) ListPermissionOverrides(ctx context.Context, userID string) ([]*PermissionOverride, error) {
	if _, err := s.users.FindSubject(ctx, userID); err != nil {
		return nil, err
	}
	return s.overrides.ListForUser(ctx, userID)
}

func metadataWithGroup(groupID *string, base map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	if groupID != nil {
		base[audit.AttrGroupID] = *groupID
	}
	return base
}
