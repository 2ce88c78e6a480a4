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
	"fmt"

	"github.com/agora-platform/agora/internal/authz"
	"github.com/agora-platform/agora/internal/rbac"
)

// AdditionalRoleRepository implements authz.AdditionalRoleRepository
type AdditionalRoleRepository struct {
	db *DB
}

// NewAdditionalRoleRepository creates a new additional role repository
func NewAdditionalRoleRepository(db *DB) *AdditionalRoleRepository {
	return &AdditionalRoleRepository{db: db}
}

// ListForUser retrieves all additional roles of a user
func (r *AdditionalRoleRepository) ListForUser(ctx context.Context, userID string) ([]*authz.AdditionalRole, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, role, group_id, created_by, created_at
		FROM additional_roles
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list additional roles: %w", err)
	}
	defer rows.Close()

	var roles []*authz.AdditionalRole
	for rows.Next() {
		var role authz.AdditionalRole
		var roleName string
		var groupID sql.NullString

		if err := rows.Scan(&role.ID, &role.UserID, &roleName, &groupID, &role.CreatedBy, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan additional role: %w", err)
		}

		role.Role = rbac.Role(roleName)
		if groupID.Valid {
			role.GroupID = &groupID.String
		}
		roles = append(roles, &role)
	}

	return roles, nil
}

// Insert persists a new assignment. Uniqueness of the (user, role, group)
// triple is enforced by the COALESCE index; a conflicting insert affects zero
// rows and surfaces as ErrDuplicateRole.
func (r *AdditionalRoleRepository) Insert(ctx context.Context, role *authz.AdditionalRole) error {
	var groupID sql.NullString
	if role.GroupID != nil {
		groupID = sql.NullString{String: *role.GroupID, Valid: true}
	}

	result, err := r.db.pool.Exec(ctx, `
		INSERT INTO additional_roles (id, user_id, role, group_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, role, COALESCE(group_id, '')) DO NOTHING
	`, role.ID, role.UserID, string(role.Role), groupID, role.CreatedBy, role.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert additional role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrDuplicateRole
	}

	return nil
}

// Delete removes the assignment with the exact (user, role, group) key
func (r *AdditionalRoleRepository) Delete(ctx context.Context, userID string, role rbac.Role, groupID *string) error {
	var query string
	var args []any

	if groupID == nil {
		query = `
			DELETE FROM additional_roles
			WHERE user_id = $1 AND role = $2 AND group_id IS NULL
		`
		args = []any{userID, string(role)}
	} else {
		query = `
			DELETE FROM additional_roles
			WHERE user_id = $1 AND role = $2 AND group_id = $3
		`
		args = []any{userID, string(role), *groupID}
	}

	result, err := r.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete additional role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrRoleNotAssigned
	}

	return nil
}

// OverrideRepository implements authz.OverrideRepository
type OverrideRepository struct {
	db *DB
}

// NewOverrideRepository creates a new override repository
func NewOverrideRepository(db *DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// ListForUser retrieves all overrides of a user, expired ones included
func (r *OverrideRepository) ListForUser(ctx context.Context, userID string) ([]*authz.PermissionOverride, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, user_id, permission, resource, granted, expires_at, created_by, created_at, updated_at
		FROM permission_overrides
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permission overrides: %w", err)
	}
	defer rows.Close()

	var overrides []*authz.PermissionOverride
	for rows.Next() {
		var o authz.PermissionOverride
		var permission string
		var resource sql.NullString
		var expiresAt sql.NullTime

		if err := rows.Scan(&o.ID, &o.UserID, &permission, &resource, &o.Granted,
			&expiresAt, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission override: %w", err)
		}

		o.Permission = rbac.Permission(permission)
		if resource.Valid {
			o.Resource = &resource.String
		}
		if expiresAt.Valid {
			o.ExpiresAt = &expiresAt.Time
		}
		overrides = append(overrides, &o)
	}

	return overrides, nil
}

// Upsert inserts the override or replaces the granted flag, expiry and author
// of the existing row for the same (user, permission, resource) key.
func (r *OverrideRepository) Upsert(ctx context.Context, override *authz.PermissionOverride) error {
	var resource sql.NullString
	if override.Resource != nil {
		resource = sql.NullString{String: *override.Resource, Valid: true}
	}
	var expiresAt sql.NullTime
	if override.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *override.ExpiresAt, Valid: true}
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO permission_overrides (
			id, user_id, permission, resource, granted, expires_at,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_id, permission, COALESCE(resource, '')) DO UPDATE SET
			granted = EXCLUDED.granted,
			expires_at = EXCLUDED.expires_at,
			created_by = EXCLUDED.created_by,
			updated_at = EXCLUDED.updated_at
	`, override.ID, override.UserID, string(override.Permission), resource,
		override.Granted, expiresAt, override.CreatedBy, override.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert permission override: %w", err)
	}

	return nil
}

// Delete removes the override with the exact (user, permission, resource) key
func (r *OverrideRepository) Delete(ctx context.Context, userID string, permission rbac.Permission, resource *string) error {
	var query string
	var args []any

	if resource == nil {
		query = `
			DELETE FROM permission_overrides
			WHERE user_id = $1 AND permission = $2 AND resource IS NULL
		`
		args = []any{userID, string(permission)}
	} else {
		query = `
			DELETE FROM permission_overrides
			WHERE user_id = $1 AND permission = $2 AND resource = $3
		`
		args = []any{userID, string(permission), *resource}
	}

	result, err := r.db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete permission override: %w", err)
	}

	if result.RowsAffected() == 0 {
		return authz.ErrOverrideNotFound
	}

	return nil
}
