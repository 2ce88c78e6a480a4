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

package authz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agora-platform/agora/internal/rbac"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome is the result of a gate evaluation.
type Outcome string

const (
	// OutcomeAllow lets the protected operation proceed.
	OutcomeAllow Outcome = "allow"

	// OutcomeUnauthenticated means no principal was presented (401).
	OutcomeUnauthenticated Outcome = "unauthenticated"

	// OutcomeForbidden means the principal failed the requirement (403).
	OutcomeForbidden Outcome = "forbidden"
)

// Decision is the gate's verdict for one call.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Allowed reports whether the protected operation may proceed.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// Requirement is a predicate over a principal's roles and permissions.
type Requirement interface {
	// evaluate consults the resolver for the principal.
	evaluate(ctx context.Context, svc *Service, userID string) (bool, error)

	// String names the requirement for deny reasons and metrics.
	String() string
}

// RoleIn requires any one of the listed roles (OR semantics), unscoped.
func RoleIn(roles ...rbac.Role) Requirement { return roleIn{roles: roles} }

// RoleInGroup requires the role scoped to the exact group.
func RoleInGroup(role rbac.Role, groupID string) Requirement {
	return roleIn{roles: []rbac.Role{role}, scope: &groupID}
}

// Permission requires a single permission, unqualified by resource.
func Permission(p rbac.Permission) Requirement { return permissionReq{perm: p} }

// PermissionOn requires a permission qualified by a resource.
func PermissionOn(p rbac.Permission, resource string) Requirement {
	return permissionReq{perm: p, resource: &resource}
}

// AllPermissions requires every listed permission (AND semantics).
func AllPermissions(perms ...rbac.Permission) Requirement {
	return permissionSetReq{perms: perms, all: true}
}

// AnyPermission requires at least one listed permission (OR semantics).
func AnyPermission(perms ...rbac.Permission) Requirement {
	return permissionSetReq{perms: perms}
}

type roleIn struct {
	roles []rbac.Role
	scope *string
}

func (r roleIn) evaluate(ctx context.Context, svc *Service, userID string) (bool, error) {
	for _, role := range r.roles {
		ok, err := svc.HasRole(ctx, userID, role, r.scope)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (r roleIn) String() string {
	names := make([]string, len(r.roles))
	for i, role := range r.roles {
		names[i] = string(role)
	}
	s := "role in {" + strings.Join(names, ", ") + "}"
	if r.scope != nil {
		s += " @ " + *r.scope
	}
	return s
}

type permissionReq struct {
	perm     rbac.Permission
	resource *string
}

func (r permissionReq) evaluate(ctx context.Context, svc *Service, userID string) (bool, error) {
	return svc.HasPermission(ctx, userID, r.perm, r.resource)
}

func (r permissionReq) String() string {
	if r.resource != nil {
		return fmt.Sprintf("permission %s on %s", r.perm, *r.resource)
	}
	return "permission " + string(r.perm)
}

type permissionSetReq struct {
	perms []rbac.Permission
	all   bool
}

func (r permissionSetReq) evaluate(ctx context.Context, svc *Service, userID string) (bool, error) {
	for _, p := range r.perms {
		ok, err := svc.HasPermission(ctx, userID, p, nil)
		if err != nil {
			return false, err
		}
		if r.all && !ok {
			return false, nil
		}
		if !r.all && ok {
			return true, nil
		}
	}
	return r.all, nil
}

func (r permissionSetReq) String() string {
	names := make([]string, len(r.perms))
	for i, p := range r.perms {
		names[i] = string(p)
	}
	op := "any of"
	if r.all {
		op = "all of"
	}
	return op + " {" + strings.Join(names, ", ") + "}"
}

// Gate is the enforcement point every protected operation goes through. It is
// stateless and caches nothing: each Evaluate re-reads current store state, so
// a revocation takes effect on the very next gated call.
type Gate struct {
	svc       *Service
	decisions metric.Int64Counter
}

// NewGate creates a gate around the resolver. The meter may be a noop.
func NewGate(svc *Service, meter metric.Meter) (*Gate, error) {
	decisions, err := meter.Int64Counter(
		"authz_decisions_total",
		metric.WithDescription("Authorization gate decisions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision counter: %w", err)
	}
	return &Gate{svc: svc, decisions: decisions}, nil
}

// Evaluate checks the requirement against the principal. An empty principal
// is Unauthenticated; a failed predicate is Forbidden with the requirement as
// reason. Resolver errors deny (fail closed) and are logged, never surfaced
// as a grant.
func (g *Gate) Evaluate(ctx context.Context, principalID string, req Requirement) Decision {
	if principalID == "" {
		return g.record(ctx, Decision{Outcome: OutcomeUnauthenticated, Reason: "no principal"})
	}

	ok, err := req.evaluate(ctx, g.svc, principalID)
	if err != nil {
		slog.ErrorContext(ctx, "authorization check failed",
			slog.String("user_id", principalID),
			slog.String("requirement", req.String()),
			slog.String("error", err.Error()),
		)
		return g.record(ctx, Decision{Outcome: OutcomeForbidden, Reason: "authorization unavailable"})
	}

	if !ok {
		return g.record(ctx, Decision{Outcome: OutcomeForbidden, Reason: "requires " + req.String()})
	}

	return g.record(ctx, Decision{Outcome: OutcomeAllow})
}

func (g *Gate) record(ctx context.Context, d Decision) Decision {
	g.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(d.Outcome)),
	))
	return d
}
