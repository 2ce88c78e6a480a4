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

import "context"

type contextKey string

const (
	userIDKey      contextKey = "user_id"
	primaryRoleKey contextKey = "primary_role"
)

// GetUserID retrieves the authenticated User ID from context.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}

// GetPrimaryRole retrieves the token's primary role claim from context.
// Informational only; authorization decisions re-resolve from the store.
func GetPrimaryRole(ctx context.Context) string {
	if val, ok := ctx.Value(primaryRoleKey).(string); ok {
		return val
	}
	return ""
}
