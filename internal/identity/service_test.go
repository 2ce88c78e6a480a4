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

package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agora-platform/agora/internal/audit"
	"github.com/agora-platform/agora/internal/identity"
	"github.com/agora-platform/agora/internal/rbac"
)

// MockRepository is an in-memory identity.Repository
type MockRepository struct {
	users       map[string]*identity.User
	credentials map[string]*identity.Credentials
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		users:       map[string]*identity.User{},
		credentials: map[string]*identity.Credentials{},
	}
}

func (m *MockRepository) Create(ctx context.Context, user *identity.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockRepository) AddCredentials(ctx context.Context, credentials *identity.Credentials) error {
	m.credentials[credentials.UserID] = credentials
	return nil
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func (m *MockRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m *MockRepository) Update(ctx context.Context, user *identity.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return identity.ErrUserNotFound
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.FailedLoginAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	return nil
}

func (m *MockRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return identity.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	if c, ok := m.credentials[userID]; ok {
		return c, nil
	}
	return nil, identity.ErrUserNotFound
}

func (m *MockRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	c, ok := m.credentials[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	c.PasswordHash = passwordHash
	return nil
}

// NullAuditLogger discards events
type NullAuditLogger struct{}

func (NullAuditLogger) Log(ctx context.Context, event audit.Event) {}

// testHasher uses deliberately cheap parameters to keep the suite fast.
func testHasher() *identity.PasswordHasher {
	return identity.NewPasswordHasher(8*1024, 1, 1, 16, 32)
}

func newService(repo *MockRepository) *identity.Service {
	return identity.NewService(repo, testHasher(), NullAuditLogger{}, 3, 15*time.Minute)
}

// TestPurpose: Validates provisioning input checks: malformed emails, unknown primary roles and duplicate emails are all rejected before any write.
// Scope: Unit Test
// Security: Input Validation
// Expected: ErrInvalidEmail, ErrInvalidRole, ErrUserAlreadyExists on the respective inputs; a valid request yields an active user.
// Test Case ID: IDN-01
func TestIdentity_ProvisionUserValidation(t *testing.T) {
	repo := NewMockRepository()
	svc := newService(repo)
	ctx := context.Background()

	if _, err := svc.ProvisionUser(ctx, "not-an-email", rbac.RoleEmployee, identity.Profile{}); !errors.Is(err, identity.ErrInvalidEmail) {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.ProvisionUser(ctx, "@nouser.example", rbac.RoleEmployee, identity.Profile{}); !errors.Is(err, identity.ErrInvalidEmail) {
		t.Errorf("expected ErrInvalidEmail for missing local part, got %v", err)
	}
	if _, err := svc.ProvisionUser(ctx, "alice@example.com", rbac.Role("superuser"), identity.Profile{}); !errors.Is(err, identity.ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}

	user, err := svc.ProvisionUser(ctx, "alice@example.com", rbac.RoleEmployee, identity.Profile{FullName: "Alice"})
	if err != nil {
		t.Fatalf("provisioning failed: %v", err)
	}
	if user.ID == "" || !user.Active || user.PrimaryRole != rbac.RoleEmployee {
		t.Errorf("unexpected user state: %+v", user)
	}

	if _, err := svc.ProvisionUser(ctx, "alice@example.com", rbac.RoleCompany, identity.Profile{}); !errors.Is(err, identity.ErrUserAlreadyExists) {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}
}

// TestPurpose: Validates the authentication round trip: correct password succeeds, wrong password fails with a generic error, a missing user fails with the same generic error.
// Scope: Unit Test
// Security: Credential Verification / User Enumeration Resistance
// Expected: Success for the right password; ErrInvalidCredentials for both wrong password and unknown email.
// Test Case ID: IDN-02
func TestIdentity_Authenticate(t *testing.T) {
	repo := NewMockRepository()
	svc := newService(repo)
	ctx := context.Background()

	user, err := svc.ProvisionUser(ctx, "bob@example.com", rbac.RoleEmployee, identity.Profile{})
	if err != nil {
		t.Fatalf("provisioning failed: %v", err)
	}
	if err := svc.AddPassword(ctx, user.ID, "correct-horse-battery"); err != nil {
		t.Fatalf("failed to add password: %v", err)
	}

	got, err := svc.Authenticate(ctx, "bob@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("authentication failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("authenticated wrong user: %s", got.ID)
	}

	if _, err := svc.Authenticate(ctx, "bob@example.com", "wrong-password"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@example.com", "whatever"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("unknown email must yield the same generic error, got %v", err)
	}
}

// TestPurpose: Validates the brute-force lockout: repeated failures lock the account for the configured window, and a lockout blocks even the correct password.
// Scope: Unit Test
// Security: Brute Force Mitigation
// Expected: After three failures the account returns ErrAccountLocked for any password.
// Test Case ID: IDN-03
func TestIdentity_LockoutAfterRepeatedFailures(t *testing.T) {
	repo := NewMockRepository()
	svc := newService(repo)
	ctx := context.Background()

	user, err := svc.ProvisionUser(ctx, "carol@example.com", rbac.RoleEmployee, identity.Profile{})
	if err != nil {
		t.Fatalf("provisioning failed: %v", err)
	}
	if err := svc.AddPassword(ctx, user.ID, "carols-password"); err != nil {
		t.Fatalf("failed to add password: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Authenticate(ctx, "carol@example.com", "guess"); !errors.Is(err, identity.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	if _, err := svc.Authenticate(ctx, "carol@example.com", "carols-password"); !errors.Is(err, identity.ErrAccountLocked) {
		t.Errorf("locked account must refuse even the correct password, got %v", err)
	}

	// Lapsed lockout clears on the next successful login.
	past := time.Now().Add(-time.Minute)
	repo.users[user.ID].LockedUntil = &past
	got, err := svc.Authenticate(ctx, "carol@example.com", "carols-password")
	if err != nil {
		t.Fatalf("authentication after lockout expiry failed: %v", err)
	}
	if got.FailedLoginAttempts != 0 || got.LockedUntil != nil {
		t.Errorf("successful login must reset lockout state: %+v", got)
	}
}

// TestPurpose: Validates that a deactivated account cannot authenticate regardless of credentials.
// Scope: Unit Test
// Security: Account Lifecycle Enforcement
// Expected: ErrUserInactive for an inactive user with a correct password.
// Test Case ID: IDN-04
func TestIdentity_InactiveUserRejected(t *testing.T) {
	repo := NewMockRepository()
	svc := newService(repo)
	ctx := context.Background()

	user, err := svc.ProvisionUser(ctx, "dave@example.com", rbac.RoleEmployee, identity.Profile{})
	if err != nil {
		t.Fatalf("provisioning failed: %v", err)
	}
	if err := svc.AddPassword(ctx, user.ID, "daves-password"); err != nil {
		t.Fatalf("failed to add password: %v", err)
	}
	repo.users[user.ID].Active = false

	if _, err := svc.Authenticate(ctx, "dave@example.com", "daves-password"); !errors.Is(err, identity.ErrUserInactive) {
		t.Errorf("expected ErrUserInactive, got %v", err)
	}
}

// TestPurpose: Validates that profile variants are confined to the matching primary role: a company payload on an employee account is dropped, not stored.
// Scope: Unit Test
// Security: Profile Variant Confinement
// Expected: Employee keeps the employee variant and loses the company one; common fields persist.
// Test Case ID: IDN-05
func TestIdentity_UpdateProfileDropsMismatchedVariant(t *testing.T) {
	repo := NewMockRepository()
	svc := newService(repo)
	ctx := context.Background()

	user, err := svc.ProvisionUser(ctx, "erin@example.com", rbac.RoleEmployee, identity.Profile{})
	if err != nil {
		t.Fatalf("provisioning failed: %v", err)
	}

	err = svc.UpdateProfile(ctx, user.ID, identity.Profile{
		FullName: "Erin",
		Employee: &identity.EmployeeProfile{Headline: "Engineer"},
		Company:  &identity.CompanyProfile{LegalName: "Not A Real Co"},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	stored := repo.users[user.ID]
	if stored.Profile.FullName != "Erin" {
		t.Errorf("common fields must persist, got %q", stored.Profile.FullName)
	}
	if stored.Profile.Employee == nil || stored.Profile.Employee.Headline != "Engineer" {
		t.Errorf("matching variant must persist, got %+v", stored.Profile.Employee)
	}
	if stored.Profile.Company != nil {
		t.Error("company variant must be dropped for an employee account")
	}
}

// TestPurpose: Validates the password change flow: old password must verify, the new one must meet the length floor, and the stored hash changes.
// Scope: Unit Test
// Security: Credential Rotation
// Expected: Wrong old password yields ErrInvalidCredentials; short replacement yields ErrWeakPassword; valid change rotates the hash.
// Test Case ID: IDN-06
func TestIdentity_ChangePassword(t *testing.T) {
	repo := NewMockRepository()
	svc := newService(repo)
	ctx := context.Background()

	user, err := svc.ProvisionUser(ctx, "frank@example.com", rbac.RoleEmployee, identity.Profile{})
	if err != nil {
		t.Fatalf("provisioning failed: %v", err)
	}
	if err := svc.AddPassword(ctx, user.ID, "original-password"); err != nil {
		t.Fatalf("failed to add password: %v", err)
	}
	oldHash := repo.credentials[user.ID].PasswordHash

	if err := svc.ChangePassword(ctx, user.ID, "wrong-old", "replacement-password"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "original-password", "short"); !errors.Is(err, identity.ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "original-password", "replacement-password"); err != nil {
		t.Fatalf("change failed: %v", err)
	}
	if repo.credentials[user.ID].PasswordHash == oldHash {
		t.Error("hash must rotate on password change")
	}

	if _, err := svc.Authenticate(ctx, "frank@example.com", "replacement-password"); err != nil {
		t.Errorf("new password must authenticate: %v", err)
	}
}

// TestPurpose: Validates that AddPassword enforces the minimum length before hashing.
// Scope: Unit Test
// Security: Password Policy
// Expected: ErrWeakPassword for a 7-character password.
// Test Case ID: IDN-07
func TestIdentity_AddPasswordPolicy(t *testing.T) {
	repo := NewMockRepository()
	svc := newService(repo)
	ctx := context.Background()

	user, err := svc.ProvisionUser(ctx, "grace@example.com", rbac.RoleEmployee, identity.Profile{})
	if err != nil {
		t.Fatalf("provisioning failed: %v", err)
	}

	if err := svc.AddPassword(ctx, user.ID, "seven77"); !errors.Is(err, identity.ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
	if err := svc.AddPassword(ctx, user.ID, "eight888"); err != nil {
		t.Errorf("eight characters should pass: %v", err)
	}
}
