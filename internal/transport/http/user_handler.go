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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agora-platform/agora/internal/identity"
	"github.com/agora-platform/agora/internal/observability/logger"
	"github.com/agora-platform/agora/internal/rbac"
	"github.com/go-chi/chi/v5"
)

// ProvisionUserRequest represents user provisioning data
type ProvisionUserRequest struct {
	Email       string           `json:"email" binding:"required" example:"user@example.com"`
	Password    string           `json:"password" binding:"required" example:"secret123"`
	PrimaryRole string           `json:"primary_role" binding:"required" example:"employee"`
	Profile     identity.Profile `json:"profile"`
}

// ProvisionUser creates a new platform member
// @Summary Provision User
// @Description Create a new user with a fixed primary role
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProvisionUserRequest true "User Data"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users [post]
func (h *Handler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	var req ProvisionUserRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.ProvisionUser(r.Context(), req.Email, rbac.Role(req.PrimaryRole), req.Profile)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to provision user",
			logger.Error(err),
			logger.Email(req.Email),
		)

		switch {
		case errors.Is(err, identity.ErrUserAlreadyExists):
			respondError(w, http.StatusConflict, "user already exists")
		case errors.Is(err, identity.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, identity.ErrInvalidRole):
			respondError(w, http.StatusBadRequest, "unknown primary role")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	if req.Password != "" {
		if err := h.identityService.AddPassword(r.Context(), user.ID, req.Password); err != nil {
			slog.ErrorContext(r.Context(), "failed to set password",
				logger.Error(err),
				logger.UserID(user.ID),
			)
			respondError(w, http.StatusBadRequest, "failed to set password: "+err.Error())
			return
		}
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id":      user.ID,
		"email":        user.Email,
		"primary_role": user.PrimaryRole,
	})
}

// GetUser retrieves a user by ID
// @Summary Get User
// @Description Retrieve a user's identity and profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /users/{userID} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user, err := h.identityService.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":        user.ID,
		"email":          user.Email,
		"email_verified": user.EmailVerified,
		"primary_role":   user.PrimaryRole,
		"active":         user.Active,
		"profile":        user.Profile,
	})
}
