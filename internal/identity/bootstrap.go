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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/agora-platform/agora/internal/authz"
	"github.com/agora-platform/agora/internal/rbac"
)

const (
	EnvBootstrapAdminEmail    = "AGORA_BOOTSTRAP_ADMIN_EMAIL"
	EnvBootstrapAdminPassword = "AGORA_BOOTSTRAP_ADMIN_PASSWORD"
)

// SystemActorID marks mutations performed by the platform itself rather than
// a logged-in administrator.
const SystemActorID = "system"

// BootstrapService promotes the initial platform administrator. It is
// env-driven and idempotent: re-running against an already promoted account
// is a no-op.
type BootstrapService struct {
	identityService *Service
	authzService    *authz.Service
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(identityService *Service, authzService *authz.Service) *BootstrapService {
	return &BootstrapService{
		identityService: identityService,
		authzService:    authzService,
	}
}

// Bootstrap checks for bootstrap configuration and executes it if present.
// The named account is created (employee primary role) when missing, then
// granted the admin additional role.
func (s *BootstrapService) Bootstrap(ctx context.Context) error {
	email := os.Getenv(EnvBootstrapAdminEmail)
	if email == "" {
		return nil
	}

	user, err := s.identityService.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		password := os.Getenv(EnvBootstrapAdminPassword)
		if password == "" {
			return fmt.Errorf("%s is set but user does not exist and %s is empty",
				EnvBootstrapAdminEmail, EnvBootstrapAdminPassword)
		}

		user, err = s.identityService.ProvisionUser(ctx, email, rbac.RoleEmployee, Profile{})
		if err != nil {
			return fmt.Errorf("failed to provision bootstrap admin: %w", err)
		}
		if err := s.identityService.AddPassword(ctx, user.ID, password); err != nil {
			return fmt.Errorf("failed to set bootstrap admin password: %w", err)
		}
		slog.InfoContext(ctx, "bootstrap admin account created", slog.String("user_id", user.ID))
	} else if err != nil {
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}

	_, err = s.authzService.AssignRole(ctx, user.ID, rbac.RoleAdmin, nil, SystemActorID)
	if errors.Is(err, authz.ErrDuplicateRole) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to grant admin role: %w", err)
	}

	slog.InfoContext(ctx, "bootstrap admin role granted", slog.String("user_id", user.ID))
	return nil
}
