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

package rbac

// Role identifies a role a user can hold, either as their primary role
// (fixed at provisioning) or as an additional, optionally group-scoped grant.
type Role string

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical role names stored in the database.
// -----------------------------------------------------------------------------

const (
	// RoleAdmin is the platform administrator role.
	// Permissions: * (wildcard - all permissions, always)
	RoleAdmin Role = "admin"

	// RoleModerator moderates community content platform-wide.
	RoleModerator Role = "moderator"

	// RoleEmployee is the default role for individual members.
	RoleEmployee Role = "employee"

	// RoleCompany is the role for company accounts (ads, courses).
	RoleCompany Role = "company"

	// RoleGroupAdmin administers a single community group.
	// Typically granted as an additional role scoped to that group.
	RoleGroupAdmin Role = "group_admin"
)

// Permission identifies a single protected capability.
type Permission string

// -----------------------------------------------------------------------------
// Permission Name Constants
// -----------------------------------------------------------------------------

const (
	// PermAll is the wildcard permission carried only by the admin role.
	PermAll Permission = "*"

	PermCreatePost  Permission = "create_post"
	PermManagePosts Permission = "manage_posts"

	PermPostAd    Permission = "post_ad"
	PermManageAds Permission = "manage_ads"

	PermCreateCourse  Permission = "create_course"
	PermManageCourses Permission = "manage_courses"
	PermEnrollCourse  Permission = "enroll_course"

	PermManageUsers        Permission = "manage_users"
	PermManageGroups       Permission = "manage_groups"
	PermManageGroupMembers Permission = "manage_group_members"

	PermViewReports Permission = "view_reports"
	PermEditProfile Permission = "edit_profile"
)
