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
	"strconv"

	"github.com/agora-platform/agora/internal/group"
	"github.com/go-chi/chi/v5"
)

// CreateGroupRequest represents group creation data
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required" example:"gophers"`
	Description string `json:"description" example:"Go developers community"`
}

// CreateGroup creates a new community group
// @Summary Create Group
// @Description Create a community group that scoped roles can reference
// @Tags Groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateGroupRequest true "Group Data"
// @Success 201 {object} group.Group
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /groups [post]
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := h.groupService.CreateGroup(r.Context(), req.Name, req.Description, GetUserID(r.Context()))
	if err != nil {
		if errors.Is(err, group.ErrGroupAlreadyExists) {
			respondError(w, http.StatusConflict, "group already exists")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, g)
}

// GetGroup retrieves a group by ID
// @Summary Get Group
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Success 200 {object} group.Group
// @Failure 404 {object} map[string]string
// @Router /groups/{groupID} [get]
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	g, err := h.groupService.GetGroup(r.Context(), groupID)
	if err != nil {
		respondError(w, http.StatusNotFound, "group not found")
		return
	}

	respondJSON(w, http.StatusOK, g)
}

// ListGroups lists active groups
// @Summary List Groups
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} map[string]any
// @Router /groups [get]
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	groups, err := h.groupService.ListGroups(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
	})
}

// ArchiveGroup archives a group
// @Summary Archive Group
// @Description Archive a group; existing scoped role assignments keep referencing it
// @Tags Groups
// @Produce json
// @Security BearerAuth
// @Param groupID path string true "Group ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /groups/{groupID} [delete]
func (h *Handler) ArchiveGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	if err := h.groupService.ArchiveGroup(r.Context(), groupID); err != nil {
		if errors.Is(err, group.ErrGroupNotFound) {
			respondError(w, http.StatusNotFound, "group not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to archive group")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "group archived successfully",
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return fallback
}
