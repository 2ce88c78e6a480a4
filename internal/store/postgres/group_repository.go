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
	"fmt"

	"github.com/agora-platform/agora/internal/group"
	"github.com/jackc/pgx/v5"
)

// GroupRepository implements group.Repository and authz.GroupDirectory
type GroupRepository struct {
	db *DB
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create creates a new group
func (r *GroupRepository) Create(ctx context.Context, g *group.Group) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO groups (id, name, description, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, g.ID, g.Name, g.Description, g.Status, g.CreatedBy, g.CreatedAt, g.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	return nil
}

// GetByID retrieves a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*group.Group, error) {
	return r.getGroup(ctx, `
		SELECT id, name, description, status, created_by, created_at, updated_at
		FROM groups
		WHERE id = $1
	`, id)
}

// GetByName retrieves a group by name
func (r *GroupRepository) GetByName(ctx context.Context, name string) (*group.Group, error) {
	return r.getGroup(ctx, `
		SELECT id, name, description, status, created_by, created_at, updated_at
		FROM groups
		WHERE name = $1
	`, name)
}

func (r *GroupRepository) getGroup(ctx context.Context, query string, arg any) (*group.Group, error) {
	var g group.Group

	err := r.db.pool.QueryRow(ctx, query, arg).Scan(
		&g.ID, &g.Name, &g.Description, &g.Status, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, group.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return &g, nil
}

// Update updates group information
func (r *GroupRepository) Update(ctx context.Context, g *group.Group) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE groups SET
			name = $2,
			description = $3,
			status = $4,
			updated_at = $5
		WHERE id = $1
	`, g.ID, g.Name, g.Description, g.Status, g.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	if result.RowsAffected() == 0 {
		return group.ErrGroupNotFound
	}

	return nil
}

// List retrieves active groups with pagination
func (r *GroupRepository) List(ctx context.Context, limit, offset int) ([]*group.Group, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, name, description, status, created_by, created_at, updated_at
		FROM groups
		WHERE status = $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`, group.StatusActive, limit, offset)

	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*group.Group
	for rows.Next() {
		var g group.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Status,
			&g.CreatedBy, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, &g)
	}

	return groups, nil
}

// GroupExists reports whether the group exists
func (r *GroupRepository) GroupExists(ctx context.Context, groupID string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)
	`, groupID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check group existence: %w", err)
	}
	return exists, nil
}
