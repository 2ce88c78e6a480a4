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

package group

import (
	"context"
	"fmt"
	"time"

	"github.com/agora-platform/agora/internal/audit"
	"github.com/google/uuid"
)

// Service provides group management business logic
type Service struct {
	repo        Repository
	auditLogger audit.Logger
}

// NewService creates a new group service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
	}
}

// CreateGroup creates a new community group
func (s *Service) CreateGroup(ctx context.Context, name, description, creatorID string) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("group name is required")
	}

	if existing, err := s.repo.GetByName(ctx, name); err == nil && existing != nil {
		return nil, ErrGroupAlreadyExists
	}

	now := time.Now()
	g := &Group{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Name:        name,
		Description: description,
		Status:      StatusActive,
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeGroupCreated,
		ActorID:  creatorID,
		Resource: g.ID,
		Metadata: map[string]any{"name": name},
	})

	return g, nil
}

// GetGroup retrieves a group by ID
func (s *Service) GetGroup(ctx context.Context, id string) (*Group, error) {
	return s.repo.GetByID(ctx, id)
}

// GetGroupByName retrieves a group by name
func (s *Service) GetGroupByName(ctx context.Context, name string) (*Group, error) {
	return s.repo.GetByName(ctx, name)
}

// ListGroups lists groups with pagination
func (s *Service) ListGroups(ctx context.Context, limit, offset int) ([]*Group, error) {
	return s.repo.List(ctx, limit, offset)
}

// ArchiveGroup marks a group as archived. Existing scoped role assignments
// keep referencing it; archiving only hides it from listings.
func (s *Service) ArchiveGroup(ctx context.Context, id string) error {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	g.Status = StatusArchived
	g.UpdatedAt = time.Now()
	return s.repo.Update(ctx, g)
}
