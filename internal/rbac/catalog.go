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

// PermissionSet is a read-only set of permissions derived from the catalog.
type PermissionSet map[Permission]struct{}

// Has reports whether the set contains the permission. A set carrying the
// wildcard matches every permission.
func (s PermissionSet) Has(p Permission) bool {
	if _, ok := s[PermAll]; ok {
		return true
	}
	_, ok := s[p]
	return ok
}

// catalog is the compiled-in role → permission default mapping. It is authored
// data, never mutated at runtime; roles absent from it carry no implicit
// permissions.
var catalog = map[Role][]Permission{
	RoleAdmin: {
		PermAll,
	},
	RoleModerator: {
		PermManagePosts,
		PermViewReports,
		PermCreatePost,
		PermEditProfile,
	},
	RoleEmployee: {
		PermCreatePost,
		PermEnrollCourse,
		PermEditProfile,
	},
	RoleCompany: {
		PermCreatePost,
		PermPostAd,
		PermManageAds,
		PermCreateCourse,
		PermManageCourses,
		PermEditProfile,
	},
	RoleGroupAdmin: {
		PermManageGroupMembers,
		PermCreatePost,
		PermEditProfile,
	},
}

// PermissionsFor returns the default permission set for a role. It is total:
// an unknown role yields an empty set, never an error. The returned set is a
// fresh copy, so callers cannot mutate the catalog.
func PermissionsFor(role Role) PermissionSet {
	perms, ok := catalog[role]
	if !ok {
		return PermissionSet{}
	}
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Roles returns the closed set of roles defined in the catalog.
func Roles() []Role {
	roles := make([]Role, 0, len(catalog))
	for r := range catalog {
		roles = append(roles, r)
	}
	return roles
}

// IsKnown reports whether a role is defined in the catalog. Mutators use this
// to reject typo'd role names before hitting the store.
func IsKnown(role Role) bool {
	_, ok := catalog[role]
	return ok
}
