// Copyright 2026 The Agora Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agora-platform/agora/internal/audit"
	"github.com/agora-platform/agora/internal/authz"
	"github.com/agora-platform/agora/internal/rbac"
)

// MockUserDirectory implements authz.UserDirectory for testing
type MockUserDirectory struct {
	subjects map[string]*authz.Subject
}

func NewMockUserDirectory(subjects ...*authz.Subject) *MockUserDirectory {
	m := &MockUserDirectory{subjects: map[string]*authz.Subject{}}
	for _, s := range subjects {
		m.subjects[s.ID] = s
	}
	return m
}

func (m *MockUserDirectory) FindSubject(ctx context.Context, userID string) (*authz.Subject, error) {
	if s, ok := m.subjects[userID]; ok {
		return s, nil
	}
	return nil, authz.ErrUserNotFound
}

// MockGroupDirectory implements authz.GroupDirectory for testing
type MockGroupDirectory struct {
	groups map[string]bool
}

func NewMockGroupDirectory(ids ...string) *MockGroupDirectory {
	m := &MockGroupDirectory{groups: map[string]bool{}}
	for _, id := range ids {
		m.groups[id] = true
	}
	return m
}

func (m *MockGroupDirectory) GroupExists(ctx context.Context, groupID string) (bool, error) {
	return m.groups[groupID], nil
}

// MockRoleRepository implements authz.AdditionalRoleRepository with the same
// uniqueness semantics as the SQL store
type MockRoleRepository struct {
	roles []*authz.AdditionalRole
}

func (m *MockRoleRepository) ListForUser(ctx context.Context, userID string) ([]*authz.AdditionalRole, error) {
	var result []*authz.AdditionalRole
	for _, r := range m.roles {
		if r.UserID == userID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *MockRoleRepository) Insert(ctx context.Context, role *authz.AdditionalRole) error {
	for _, r := range m.roles {
		if r.UserID == role.UserID && r.Matches(role.Role, role.GroupID) {
			return authz.ErrDuplicateRole
		}
	}
	m.roles = append(m.roles, role)
	return nil
}

func (m *MockRoleRepository) Delete(ctx context.Context, userID string, role rbac.Role, groupID *string) error {
	for i, r := range m.roles {
		if r.UserID == userID && r.Matches(role, groupID) {
			m.roles = append(m.roles[:i], m.roles[i+1:]...)
			return nil
		}
	}
	return authz.ErrRoleNotAssigned
}

// MockOverrideRepository implements authz.OverrideRepository with last-write-wins
// upsert semantics
type MockOverrideRepository struct {
	overrides []*authz.PermissionOverride
}

func (m *MockOverrideRepository) ListForUser(ctx context.Context, userID string) ([]*authz.PermissionOverride, error) {
	var result []*authz.PermissionOverride
	for _, o := range m.overrides {
		if o.UserID == userID {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *MockOverrideRepository) Upsert(ctx context.Context, override *authz.PermissionOverride) error {
	for i, o := range m.overrides {
		if o.UserID == override.UserID && o.MatchesKey(override.Permission, override.Resource) {
			m.overrides[i] = override
			return nil
		}
	}
	m.overrides = append(m.overrides, override)
	return nil
}

func (m *MockOverrideRepository) Delete(ctx context.Context, userID string, permission rbac.Permission, resource *string) error {
	for i, o := range m.overrides {
		if o.UserID == userID && o.MatchesKey(permission, resource) {
			m.overrides = append(m.overrides[:i], m.overrides[i+1:]...)
			return nil
		}
	}
	return authz.ErrOverrideNotFound
}

// MockAuditLogger records events for assertions
type MockAuditLogger struct {
	events []audit.Event
}

func (m *MockAuditLogger) Log(ctx context.Context, event audit.Event) {
	m.events = append(m.events, event)
}

type fixture struct {
	svc       *authz.Service
	roles     *MockRoleRepository
	overrides *MockOverrideRepository
	audit     *MockAuditLogger
	groups    *MockGroupDirectory
}

func newFixture(subjects ...*authz.Subject) *fixture {
	roles := &MockRoleRepository{}
	overrides := &MockOverrideRepository{}
	auditLog := &MockAuditLogger{}
	groups := NewMockGroupDirectory("group-1", "group-2")
	svc := authz.NewService(NewMockUserDirectory(subjects...), groups, roles, overrides, auditLog)
	return &fixture{svc: svc, roles: roles, overrides: overrides, audit: auditLog, groups: groups}
}

func strptr(s string) *string { return &s }

// TestPurpose: Validates that permissions default to the role catalog: an employee can create posts but cannot administer users, while an admin passes every check through the wildcard.
// Scope: Unit Test
// Security: RBAC Least Privilege
// Expected: Employee gets create_post=true, manage_users=false; admin gets both.
// Test Case ID: AUT-01
func TestAuthz_HasPermission_RoleDefaults(t *testing.T) {
	f := newFixture(
		&authz.Subject{ID: "user-employee", PrimaryRole: rbac.RoleEmployee, Active: true},
		&authz.Subject{ID: "user-admin", PrimaryRole: rbac.RoleAdmin, Active: true},
	)
	ctx := context.Background()

	allowed, err := f.svc.HasPermission(ctx, "user-employee", rbac.PermCreatePost, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("employee should have create_post by role default")
	}

	allowed, err = f.svc.HasPermission(ctx, "user-employee", rbac.PermManageUsers, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("employee should NOT have manage_users")
	}

	for _, perm := range []rbac.Permission{rbac.PermCreatePost, rbac.PermManageUsers, rbac.PermManageGroups} {
		allowed, err = f.svc.HasPermission(ctx, "user-admin", perm, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Errorf("admin should have %s via wildcard", perm)
		}
	}
}

// TestPurpose: Validates that an unknown user resolves to a plain denial on query paths instead of an error, so read-path gates degrade to deny.
// Scope: Unit Test
// Security: Fail-Closed Resolution
// Expected: HasPermission and HasRole return (false, nil) for a missing user; GetRoles returns ErrUserNotFound.
// Test Case ID: AUT-02
func TestAuthz_UnknownUser_QueriesDenyMutationsError(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	allowed, err := f.svc.HasPermission(ctx, "ghost", rbac.PermCreatePost, nil)
	if err != nil {
		t.Fatalf("query path must swallow missing user, got error: %v", err)
	}
	if allowed {
		t.Error("missing user must be denied")
	}

	hasRole, err := f.svc.HasRole(ctx, "ghost", rbac.RoleAdmin, nil)
	if err != nil {
		t.Fatalf("query path must swallow missing user, got error: %v", err)
	}
	if hasRole {
		t.Error("missing user must not hold roles")
	}

	if _, err := f.svc.GetRoles(ctx, "ghost"); !errors.Is(err, authz.ErrUserNotFound) {
		t.Errorf("GetRoles should surface ErrUserNotFound, got %v", err)
	}

	if _, err := f.svc.AssignRole(ctx, "ghost", rbac.RoleModerator, nil, "actor"); !errors.Is(err, authz.ErrUserNotFound) {
		t.Errorf("AssignRole should surface ErrUserNotFound, got %v", err)
	}
}

// TestPurpose: Validates that an explicit denial override beats a role-derived grant, and that removing the override restores the catalog default.
// Scope: Unit Test
// Security: Explicit Deny Precedence
// Expected: Employee with a create_post denial is refused; after RemovePermission the role default applies again.
// Test Case ID: AUT-03
func TestAuthz_DenyOverrideBeatsRoleGrant(t *testing.T) {
	f := newFixture(&authz.Subject{ID: "user-1", PrimaryRole: rbac.RoleEmployee, Active: true})
	ctx := context.Background()

	if _, err := f.svc.AssignPermission(ctx, "user-1", rbac.PermCreatePost, nil, false, nil, "admin-1"); err != nil {
		t.Fatalf("failed to assign denial: %v", err)
	}

	allowed, err := f.svc.HasPermission(ctx, "user-1", rbac.PermCreatePost, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("explicit denial must beat the role-derived grant")
	}

	if err := f.svc.RemovePermission(ctx, "user-1", rbac.PermCreatePost, nil, "admin-1"); err != nil {
		t.Fatalf("failed to remove override: %v", err)
	}

	allowed, err = f.svc.HasPermission(ctx, "user-1", rbac.PermCreatePost, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("removing the override must restore the catalog default")
	}
}

// TestPurpose: Validates that a time-limited grant works while fresh and silently reverts to catalog defaults once lapsed, never turning into a denial.
// Scope: Unit Test
// Security: Temporal Privilege Expiry
// Expected: view_reports granted before expiry, refused after; create_post (role default) unaffected throughout.
// Test Case ID: AUT-04
func TestAuthz_ExpiredOverrideRevertsToDefaults(t *testing.T) {
	f := newFixture(&authz.Subject{ID: "user-1", PrimaryRole: rbac.RoleEmployee, Active: true})
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.WithClock(func() time.Time { return current })

	expiry := current.Add(time.Hour)
	if _, err := f.svc.AssignPermission(ctx, "user-1", rbac.PermViewReports, nil, true, &expiry, "admin-1"); err != nil {
		t.Fatalf("failed to assign grant: %v", err)
	}

	allowed, err := f.svc.HasPermission(ctx, "user-1", rbac.PermViewReports, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("grant should hold before expiry")
	}

	// Advance past expiry; no cleanup runs, the row just stops matching.
	current = current.Add(2 * time.Hour)

	allowed, err = f.svc.HasPermission(ctx, "user-1", rbac.PermViewReports, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("lapsed grant must revert to the catalog default (deny)")
	}

	allowed, err = f.svc.HasPermission(ctx, "user-1", rbac.PermCreatePost, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("unrelated role defaults must be unaffected by a lapsed override")
	}
}

// TestPurpose: Validates exact-key matching for resource-scoped overrides: a scoped override answers only the identically scoped question.
// Scope: Unit Test
// Security: Scope Confinement
// Expected: Grant on (view_reports, report-42) does not satisfy the unqualified query, and vice versa.
// Test Case ID: AUT-05
func TestAuthz_ResourceScopeExactMatch(t *testing.T) {
	f := newFixture(&authz.Subject{ID: "user-1", PrimaryRole: rbac.RoleEmployee, Active: true})
	ctx := context.Background()

	if _, err := f.svc.AssignPermission(ctx, "user-1", rbac.PermViewReports, strptr("report-42"), true, nil, "admin-1"); err != nil {
		t.Fatalf("failed to assign scoped grant: %v", err)
	}

	allowed, err := f.svc.HasPermission(ctx, "user-1", rbac.PermViewReports, strptr("report-42"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("exact resource match should be granted")
	}

	allowed, err = f.svc.HasPermission(ctx, "user-1", rbac.PermViewReports, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("resource-scoped grant must not satisfy the unqualified query")
	}

	allowed, err = f.svc.HasPermission(ctx, "user-1", rbac.PermViewReports, strptr("report-43"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("grant on one resource must not leak to another")
	}
}

// TestPurpose: Validates group-scoped role checks: a group_admin grant for one group never satisfies a check against another group, and primary roles never match scoped checks.
// Scope: Unit Test
// Security: Horizontal Privilege Containment
// Expected: group_admin@group-1 yields true only for group-1.
// Test Case ID: AUT-06
func TestAuthz_ScopedRoleContainment(t *testing.T) {
	f := newFixture(&authz.Subject{ID: "user-1", PrimaryRole: rbac.RoleEmployee, Active: true})
	ctx := context.Background()

	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.RoleGroupAdmin, strptr("group-1"), "admin-1"); err != nil {
		t.Fatalf("failed to assign scoped role: %v", err)
	}

	ok, err := f.svc.HasRole(ctx, "user-1", rbac.RoleGroupAdmin, strptr("group-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("scoped role should match its own group")
	}

	ok, err = f.svc.HasRole(ctx, "user-1", rbac.RoleGroupAdmin, strptr("group-2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("scoped role must not match a different group")
	}

	// Unscoped check still sees the assignment.
	ok, err = f.svc.HasRole(ctx, "user-1", rbac.RoleGroupAdmin, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("unscoped check should match any assignment of the role")
	}

	// Primary role never matches a scoped check.
	ok, err = f.svc.HasRole(ctx, "user-1", rbac.RoleEmployee, strptr("group-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("primary role must not satisfy a scoped check")
	}
}

// TestPurpose: Validates the assignment key: the same role may be held for different groups, but the exact (role, group) pair is unique and its absence makes removal an error.
// Scope: Unit Test
// Security: Grant Bookkeeping Integrity
// Expected: Second grant for the same pair yields ErrDuplicateRole; removal of a never-granted pair yields ErrRoleNotAssigned.
// Test Case ID: AUT-07
func TestAuthz_AssignRemoveRoleKeys(t *testing.T) {
	f := newFixture(&authz.Subject{ID: "user-1", PrimaryRole: rbac.RoleEmployee, Active: true})
	ctx := context.Background()

	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.RoleGroupAdmin, strptr("group-1"), "admin-1"); err != nil {
		t.Fatalf("first grant failed: %v", err)
	}

	// Same role, different group: a distinct assignment.
	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.RoleGroupAdmin, strptr("group-2"), "admin-1"); err != nil {
		t.Fatalf("grant for second group failed: %v", err)
	}

	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.RoleGroupAdmin, strptr("group-1"), "admin-1"); !errors.Is(err, authz.ErrDuplicateRole) {
		t.Errorf("expected ErrDuplicateRole, got %v", err)
	}

	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.Role("superuser"), nil, "admin-1"); !errors.Is(err, authz.ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}

	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.RoleGroupAdmin, strptr("group-404"), "admin-1"); !errors.Is(err, authz.ErrGroupNotFound) {
		t.Errorf("expected ErrGroupNotFound, got %v", err)
	}

	if err := f.svc.RemoveRole(ctx, "user-1", rbac.RoleModerator, nil, "admin-1"); !errors.Is(err, authz.ErrRoleNotAssigned) {
		t.Errorf("expected ErrRoleNotAssigned, got %v", err)
	}

	// Unscoped removal does not match a scoped assignment.
	if err := f.svc.RemoveRole(ctx, "user-1", rbac.RoleGroupAdmin, nil, "admin-1"); !errors.Is(err, authz.ErrRoleNotAssigned) {
		t.Errorf("expected ErrRoleNotAssigned for unscoped key, got %v", err)
	}

	if err := f.svc.RemoveRole(ctx, "user-1", rbac.RoleGroupAdmin, strptr("group-1"), "admin-1"); err != nil {
		t.Fatalf("exact-key removal failed: %v", err)
	}
}

// TestPurpose: Validates that replaying an override replaces the previous one instead of stacking, with the last write winning.
// Scope: Unit Test
// Security: Authorization State Integrity
// Expected: Grant-then-deny leaves a single override whose denial is effective.
// Test Case ID: AUT-08
func TestAuthz_OverrideReplayReplaces(t *testing.T) {
	f := newFixture(&authz.Subject{ID: "user-1", PrimaryRole: rbac.RoleEmployee, Active: true})
	ctx := context.Background()

	if _, err := f.svc.AssignPermission(ctx, "user-1", rbac.PermViewReports, nil, true, nil, "admin-1"); err != nil {
		t.Fatalf("first assignment failed: %v", err)
	}
	if _, err := f.svc.AssignPermission(ctx, "user-1", rbac.PermViewReports, nil, false, nil, "admin-1"); err != nil {
		t.Fatalf("replayed assignment failed: %v", err)
	}

	listed, err := f.svc.ListPermissionOverrides(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to list overrides: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one override after replay, got %d", len(listed))
	}

	allowed, err := f.svc.HasPermission(ctx, "user-1", rbac.PermViewReports, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("last write (deny) must win")
	}
}

// TestPurpose: Validates role enumeration order and dedup: primary first, additional roles once each even when one duplicates the primary.
// Scope: Unit Test
// Expected: employee + moderator + group_admin(scoped) + employee(additional) enumerates as [employee, moderator, group_admin].
// Test Case ID: AUT-09
func TestAuthz_GetRolesDedup(t *testing.T) {
	f := newFixture(&authz.Subject{ID: "user-1", PrimaryRole: rbac.RoleEmployee, Active: true})
	ctx := context.Background()

	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.RoleModerator, nil, "admin-1"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.RoleGroupAdmin, strptr("group-1"), "admin-1"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.RoleEmployee, nil, "admin-1"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	roles, err := f.svc.GetRoles(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []rbac.Role{rbac.RoleEmployee, rbac.RoleModerator, rbac.RoleGroupAdmin}
	if len(roles) != len(want) {
		t.Fatalf("expected %d roles, got %v", len(want), roles)
	}
	if roles[0] != rbac.RoleEmployee {
		t.Errorf("primary role must come first, got %v", roles)
	}
	for i, r := range want {
		if roles[i] != r {
			t.Errorf("roles[%d] = %s, want %s", i, roles[i], r)
		}
	}
}

// TestPurpose: Validates that an additional role widens permissions: a moderator grant gives an employee manage_posts without touching other users.
// Scope: Unit Test
// Security: RBAC Grant Propagation
// Expected: manage_posts false before the grant, true after, false again after revocation.
// Test Case ID: AUT-10
func TestAuthz_AdditionalRoleWidensPermissions(t *testing.T) {
	f := newFixture(&authz.Subject{ID: "user-1", PrimaryRole: rbac.RoleEmployee, Active: true})
	ctx := context.Background()

	allowed, _ := f.svc.HasPermission(ctx, "user-1", rbac.PermManagePosts, nil)
	if allowed {
		t.Fatal("employee must not have manage_posts before the grant")
	}

	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.RoleModerator, nil, "admin-1"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	allowed, err := f.svc.HasPermission(ctx, "user-1", rbac.PermManagePosts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("moderator grant should carry manage_posts")
	}

	if err := f.svc.RemoveRole(ctx, "user-1", rbac.RoleModerator, nil, "admin-1"); err != nil {
		t.Fatalf("revocation failed: %v", err)
	}

	allowed, _ = f.svc.HasPermission(ctx, "user-1", rbac.PermManagePosts, nil)
	if allowed {
		t.Error("revocation must take effect on the next check")
	}
}

// TestPurpose: Validates that role and override mutations emit audit events naming actor and target.
// Scope: Unit Test
// Security: Audit Trail Completeness
// Expected: Assign/remove of roles and overrides each append one event with the acting admin recorded.
// Test Case ID: AUT-11
func TestAuthz_MutationsAreAudited(t *testing.T) {
	f := newFixture(&authz.Subject{ID: "user-1", PrimaryRole: rbac.RoleEmployee, Active: true})
	ctx := context.Background()

	if _, err := f.svc.AssignRole(ctx, "user-1", rbac.RoleModerator, nil, "admin-1"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if err := f.svc.RemoveRole(ctx, "user-1", rbac.RoleModerator, nil, "admin-1"); err != nil {
		t.Fatalf("revocation failed: %v", err)
	}
	if _, err := f.svc.AssignPermission(ctx, "user-1", rbac.PermViewReports, nil, true, nil, "admin-1"); err != nil {
		t.Fatalf("override failed: %v", err)
	}
	if err := f.svc.RemovePermission(ctx, "user-1", rbac.PermViewReports, nil, "admin-1"); err != nil {
		t.Fatalf("override removal failed: %v", err)
	}

	wantTypes := []string{
		audit.TypeRoleAssigned,
		audit.TypeRoleRevoked,
		audit.TypePermissionChanged,
		audit.TypePermissionRevoked,
	}
	if len(f.audit.events) != len(wantTypes) {
		t.Fatalf("expected %d audit events, got %d", len(wantTypes), len(f.audit.events))
	}
	for i, want := range wantTypes {
		ev := f.audit.events[i]
		if ev.Type != want {
			t.Errorf("event[%d].Type = %s, want %s", i, ev.Type, want)
		}
		if ev.ActorID != "admin-1" || ev.TargetID != "user-1" {
			t.Errorf("event[%d] actor/target = %s/%s, want admin-1/user-1", i, ev.ActorID, ev.TargetID)
		}
	}
}
