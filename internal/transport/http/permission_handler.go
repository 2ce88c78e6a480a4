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
	"net/http"
	"time"

	"github.com/agora-platform/agora/internal/authz"
	"github.com/agora-platform/agora/internal/rbac"
	"github.com/go-chi/chi/v5"
)

// AssignPermissionRequest represents a permission override
type AssignPermissionRequest struct {
	Permission string     `json:"permission" binding:"required" example:"view_reports"`
	Resource   *string    `json:"resource,omitempty" example:"report-42"`
	Granted    bool       `json:"granted"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// AssignPermission creates or replaces a permission override
// @Summary Assign Permission Override
// @Description Grant or deny a permission beyond role defaults; replays replace the existing override
// @Tags Permissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param request body AssignPermissionRequest true "Override"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /users/{userID}/permissions [post]
func (h *Handler) AssignPermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req AssignPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	override, err := h.authzService.AssignPermission(r.Context(), userID,
		rbac.Permission(req.Permission), req.Resource, req.Granted, req.ExpiresAt, GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, authz.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to assign permission")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":         override.ID,
		"user_id":    override.UserID,
		"permission": override.Permission,
		"resource":   override.Resource,
		"granted":    override.Granted,
		"expires_at": override.ExpiresAt,
	})
}

// RemovePermission deletes a permission override
// @Summary Remove Permission Override
// @Description Delete the override with the exact (permission, resource) key
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param permission path string true "Permission name"
// @Param resource query string false "Resource scope"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /users/{userID}/permissions/{permission} [delete]
func (h *Handler) RemovePermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	permission := chi.URLParam(r, "permission")

	var resource *string
	if res := r.URL.Query().Get("resource"); res != "" {
		resource = &res
	}

	err := h.authzService.RemovePermission(r.Context(), userID, rbac.Permission(permission), resource, GetUserID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, authz.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, authz.ErrOverrideNotFound):
			respondError(w, http.StatusNotFound, "permission override not found")
		default:
			respondError(w, http.StatusInternalServerError, "failed to remove permission")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "permission override removed successfully",
	})
}

// ListUserOverrides lists a user's permission overrides
// @Summary List Permission Overrides
// @Description List all overrides of a user, expired ones included
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Success 200 {object} map[string]any
// @Router /users/{userID}/permissions [get]
func (h *Handler) ListUserOverrides(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	overrides, err := h.authzService.ListPermissionOverrides(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list permission overrides")
		return
	}

	type overrideView struct {
		ID         string     `json:"id"`
		Permission string     `json:"permission"`
		Resource   *string    `json:"resource,omitempty"`
		Granted    bool       `json:"granted"`
		ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	}
	views := make([]overrideView, 0, len(overrides))
	for _, o := range overrides {
		views = append(views, overrideView{
			ID:         o.ID,
			Permission: string(o.Permission),
			Resource:   o.Resource,
			Granted:    o.Granted,
			ExpiresAt:  o.ExpiresAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":   userID,
		"overrides": views,
	})
}

// CheckPermission reports whether the caller holds a permission
// @Summary Check Permission
// @Description Self-service probe for a single permission, optionally resource-qualified
// @Tags Permissions
// @Produce json
// @Security BearerAuth
// @Param permission query string true "Permission name"
// @Param resource query string false "Resource scope"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /authz/check [get]
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	permission := r.URL.Query().Get("permission")
	if permission == "" {
		respondError(w, http.StatusBadRequest, "permission query parameter is required")
		return
	}

	var resource *string
	if res := r.URL.Query().Get("resource"); res != "" {
		resource = &res
	}

	userID := GetUserID(r.Context())
	granted, err := h.authzService.HasPermission(r.Context(), userID, rbac.Permission(permission), resource)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to check permission")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"permission": permission,
		"resource":   resource,
		"granted":    granted,
	})
}
