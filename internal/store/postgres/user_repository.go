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

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agora-platform/agora/internal/authz"
	"github.com/agora-platform/agora/internal/identity"
	"github.com/agora-platform/agora/internal/rbac"
	"github.com/jackc/pgx/v5"
)

// UserRepository implements identity.Repository and authz.UserDirectory
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user identity
func (r *UserRepository) Create(ctx context.Context, user *identity.User) error {
	now := time.Now()

	employeeJSON, companyJSON, err := marshalProfileVariants(user.Profile)
	if err != nil {
		return err
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO users (
			id, email, email_verified, primary_role, active,
			full_name, picture, locale, employee_profile, company_profile,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		user.ID, user.Email, user.EmailVerified, string(user.PrimaryRole), user.Active,
		user.Profile.FullName, user.Profile.Picture, user.Profile.Locale,
		employeeJSON, companyJSON,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now

	return nil
}

// AddCredentials adds credentials for a user
func (r *UserRepository) AddCredentials(ctx context.Context, credentials *identity.Credentials) error {
	now := time.Now()

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO credentials (user_id, password_hash, updated_at)
		VALUES ($1, $2, $3)
	`, credentials.UserID, credentials.PasswordHash, now)
	if err != nil {
		return fmt.Errorf("failed to insert credentials: %w", err)
	}

	credentials.UpdatedAt = now

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return r.getUser(ctx, `
		SELECT id, email, email_verified, primary_role, active,
			full_name, picture, locale, employee_profile, company_profile,
			failed_login_attempts, locked_until,
			created_at, updated_at, deleted_at
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	return r.getUser(ctx, `
		SELECT id, email, email_verified, primary_role, active,
			full_name, picture, locale, employee_profile, company_profile,
			failed_login_attempts, locked_until,
			created_at, updated_at, deleted_at
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`, email)
}

func (r *UserRepository) getUser(ctx context.Context, query string, arg any) (*identity.User, error) {
	var user identity.User
	var primaryRole string
	var employeeJSON, companyJSON []byte
	var lockedUntil, deletedAt sql.NullTime

	err := r.db.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.EmailVerified, &primaryRole, &user.Active,
		&user.Profile.FullName, &user.Profile.Picture, &user.Profile.Locale,
		&employeeJSON, &companyJSON,
		&user.FailedLoginAttempts, &lockedUntil,
		&user.CreatedAt, &user.UpdatedAt, &deletedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.PrimaryRole = rbac.Role(primaryRole)
	if err := unmarshalProfileVariants(employeeJSON, companyJSON, &user.Profile); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		user.LockedUntil = &lockedUntil.Time
	}
	if deletedAt.Valid {
		user.DeletedAt = &deletedAt.Time
	}

	return &user, nil
}

// FindSubject retrieves the authorization view of a user
func (r *UserRepository) FindSubject(ctx context.Context, userID string) (*authz.Subject, error) {
	var subject authz.Subject
	var primaryRole string

	err := r.db.pool.QueryRow(ctx, `
		SELECT id, primary_role, active
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`, userID).Scan(&subject.ID, &primaryRole, &subject.Active)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, authz.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	subject.PrimaryRole = rbac.Role(primaryRole)
	return &subject, nil
}

// Update updates user information
func (r *UserRepository) Update(ctx context.Context, user *identity.User) error {
	employeeJSON, companyJSON, err := marshalProfileVariants(user.Profile)
	if err != nil {
		return err
	}

	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET
			email = $2,
			email_verified = $3,
			active = $4,
			full_name = $5,
			picture = $6,
			locale = $7,
			employee_profile = $8,
			company_profile = $9,
			updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`,
		user.ID, user.Email, user.EmailVerified, user.Active,
		user.Profile.FullName, user.Profile.Picture, user.Profile.Locale,
		employeeJSON, companyJSON,
	)

	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

// UpdateLockout updates user lockout status
func (r *UserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = $1, locked_until = $2, updated_at = NOW()
		WHERE id = $3
	`, failedAttempts, lockedUntil, userID)
	if err != nil {
		return fmt.Errorf("failed to update user lockout status: %w", err)
	}
	return nil
}

// Delete soft-deletes a user
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE users SET deleted_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, time.Now())

	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

// GetCredentials retrieves user credentials
func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	var creds identity.Credentials

	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, updated_at
		FROM credentials
		WHERE user_id = $1
	`, userID).Scan(&creds.UserID, &creds.PasswordHash, &creds.UpdatedAt)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	return &creds, nil
}

// UpdatePassword updates user password
func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE credentials SET password_hash = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, passwordHash)

	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if result.RowsAffected() == 0 {
		return identity.ErrUserNotFound
	}

	return nil
}

func marshalProfileVariants(p identity.Profile) (employee, company []byte, err error) {
	if p.Employee != nil {
		employee, err = json.Marshal(p.Employee)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal employee profile: %w", err)
		}
	}
	if p.Company != nil {
		company, err = json.Marshal(p.Company)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal company profile: %w", err)
		}
	}
	return employee, company, nil
}

func unmarshalProfileVariants(employee, company []byte, p *identity.Profile) error {
	if len(employee) > 0 {
		p.Employee = &identity.EmployeeProfile{}
		if err := json.Unmarshal(employee, p.Employee); err != nil {
			return fmt.Errorf("failed to unmarshal employee profile: %w", err)
		}
	}
	if len(company) > 0 {
		p.Company = &identity.CompanyProfile{}
		if err := json.Unmarshal(company, p.Company); err != nil {
			return fmt.Errorf("failed to unmarshal company profile: %w", err)
		}
	}
	return nil
}
