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

	"github.com/agora-platform/agora/internal/authz"
	"github.com/agora-platform/agora/internal/rbac"
	"github.com/go-chi/chi/v5"
)

// AssignRoleRequest represents role assignment data
type AssignRoleRequest struct {
	Role    string  `json:"role" binding:"required" example:"moderator"`
	GroupID *string `json:"group_id,omitempty" example:"grp-123"`
}

// AssignRole grants an additional role to a user
// @Summary Assign Role
// @Description Grant an additional role, optionally scoped to a group
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param request body AssignRoleRequest true "Role Assignment"
// @Success 201 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users/{userID}/roles [post]
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	assigned, err := h.authzService.AssignRole(r.Context(), userID, rbac.Role(req.Role), req.GroupID, GetUserID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, authz.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, authz.ErrGroupNotFound):
			respondError(w, http.StatusNotFound, "group not found")
		case errors.Is(err, authz.ErrUnknownRole):
			respondError(w, http.StatusBadRequest, "unknown role")
		case errors.Is(err, authz.ErrDuplicateRole):
			respondError(w, http.StatusConflict, "role already assigned")
		default:
			respondError(w, http.StatusInternalServerError, "failed to assign role")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":       assigned.ID,
		"user_id":  assigned.UserID,
		"role":     assigned.Role,
		"group_id": assigned.GroupID,
	})
}

// RemoveRole revokes an additional role from a user
// @Summary Remove Role
// @Description Revoke an additional role with the exact (role, group) key
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param role path string true "Role name"
// @Param group_id query string false "Group scope"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /users/{userID}/roles/{role} [delete]
func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	role := chi.URLParam(r, "role")

	var groupID *string
	if g := r.URL.Query().Get("group_id"); g != "" {
		groupID = &g
	}

	err := h.authzService.RemoveRole(r.Context(), userID, rbac.Role(role), groupID, GetUserID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, authz.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, authz.ErrRoleNotAssigned):
			respondError(w, http.StatusNotFound, "role not assigned")
		default:
			respondError(w, http.StatusInternalServerError, "failed to remove role")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "role removed successfully",
	})
}

// ListUserRoles lists a user's effective and additional roles
// @Summary List User Roles
// @Description List the user's effective roles and raw assignments
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /users/{userID}/roles [get]
func (h *Handler) ListUserRoles(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	roles, err := h.authzService.GetRoles(r.Context(), userID)
	if err != nil {
		if errors.Is(err, authz.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to list roles")
		return
	}

	assignments, err := h.authzService.ListRoles(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list role assignments")
		return
	}

	type assignmentView struct {
		ID      string  `json:"id"`
		Role    string  `json:"role"`
		GroupID *string `json:"group_id,omitempty"`
	}
	views := make([]assignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, assignmentView{ID: a.ID, Role: string(a.Role), GroupID: a.GroupID})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"roles":       roles,
		"assignments": views,
	})
}
