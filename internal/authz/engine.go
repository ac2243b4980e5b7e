// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package authz

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-secure-stdlib/strutil"
	"github.com/tapis-project/systems/internal/errors"
	"github.com/tapis-project/systems/internal/event"
	"github.com/tapis-project/systems/internal/perms"
	"github.com/tapis-project/systems/internal/store"
	"github.com/tapis-project/systems/internal/types/operation"
)

// Config holds the service allow-lists the engine gates privileged request
// attributes on.  Every list names service identities (JWT user names).
type Config struct {
	// GetCredServices may retrieve stored credentials.  Checked before any
	// other service rule so a broader rule can never authorize credential
	// exfiltration.
	GetCredServices []string

	// ImpersonationServices may request evaluation as a different Tapis user.
	ImpersonationServices []string

	// SharedAppCtxServices may declare a shared application context.
	SharedAppCtxServices []string

	// ResourceTenantServices may evaluate against a tenant other than their
	// on-behalf-of tenant.
	ResourceTenantServices []string
}

// DefaultConfig returns the allow-lists for the standard platform services.
func DefaultConfig() Config {
	return Config{
		GetCredServices:        []string{"jobs", "files", "apps"},
		ImpersonationServices:  []string{"jobs", "files"},
		SharedAppCtxServices:   []string{"jobs", "files"},
		ResourceTenantServices: []string{"jobs", "files"},
	}
}

// Engine is the policy decision point.  It never mutates state during
// CheckAuth; grant, revoke and share orchestration live on separate methods.
type Engine struct {
	authority perms.Authority
	records   store.RecordStore
	self      ServiceIdentity
	cfg       Config
}

// NewEngine creates an Engine.
func NewEngine(ctx context.Context, authority perms.Authority, records store.RecordStore, self ServiceIdentity, cfg Config) (*Engine, error) {
	const op = "authz.NewEngine"
	if authority == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing permission authority")
	}
	if records == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing record store")
	}
	if self.Tenant == "" || self.User == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing service identity")
	}
	return &Engine{
		authority: authority,
		records:   records,
		self:      self,
		cfg:       cfg,
	}, nil
}

// deny emits an audit event for the denial and returns a Forbidden error
// carrying the actor, operation and resource so the caller can surface it.
func deny(ctx context.Context, op errors.Op, tenant, user string, aop operation.Type, systemId, reason string) error {
	event.WriteAudit(ctx, event.Op(op), event.WithInfo(map[string]any{
		"decision": "deny",
		"tenant":   tenant,
		"user":     user,
		"op":       aop.String(),
		"systemId": systemId,
		"reason":   reason,
	}))
	return errors.New(ctx, errors.Forbidden, op,
		fmt.Sprintf("user %s in tenant %s is not authorized for operation %s on system %s: %s",
			user, tenant, aop.String(), systemId, reason))
}

// CheckAuth decides whether the caller may perform aop on systemId.  It
// returns nil on allow, a Forbidden error on deny, and an Internal or
// Unavailable error when policy cannot be evaluated.  The owner, target
// user, requested permissions, impersonation id, shared-app-context grantor
// and resource tenant are all supplied via options.
func (e *Engine) CheckAuth(ctx context.Context, caller Caller, aop operation.Type, systemId string, opt ...Option) error {
	const op = "authz.(Engine).CheckAuth"
	if caller.OboTenant == "" || caller.OboUser == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing on-behalf-of identity")
	}
	if systemId == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing system id")
	}
	opts := getOpts(opt...)

	// Privileged request attributes are gated before any ownership or
	// permission logic runs, so a disallowed caller learns nothing about the
	// resource.
	resourceTenant := caller.OboTenant
	if opts.withResourceTenant != "" && opts.withResourceTenant != caller.OboTenant {
		if !caller.IsService || !strutil.StrListContains(e.cfg.ResourceTenantServices, caller.JwtUser) {
			return deny(ctx, op, caller.OboTenant, caller.OboUser, aop, systemId,
				fmt.Sprintf("caller %s may not access resources in tenant %s", caller.JwtUser, opts.withResourceTenant))
		}
		resourceTenant = opts.withResourceTenant
	}

	if opts.withSharedAppCtxGrantor != "" {
		if !caller.IsService || !strutil.StrListContains(e.cfg.SharedAppCtxServices, caller.JwtUser) {
			return deny(ctx, op, caller.OboTenant, caller.OboUser, aop, systemId,
				fmt.Sprintf("caller %s may not declare a shared application context", caller.JwtUser))
		}
	}

	checkUser := caller.OboUser
	if opts.withImpersonationId != "" {
		allowed, err := e.impersonationAllowed(ctx, caller)
		if err != nil {
			return errors.Wrap(ctx, err, op)
		}
		if !allowed {
			return deny(ctx, op, caller.OboTenant, caller.OboUser, aop, systemId,
				fmt.Sprintf("caller %s may not impersonate user %s", caller.JwtUser, opts.withImpersonationId))
		}
		checkUser = opts.withImpersonationId
	}

	if caller.IsService {
		// Credential retrieval is allow-list only and is checked before every
		// other service rule.
		if aop == operation.GetCred {
			if !strutil.StrListContains(e.cfg.GetCredServices, caller.JwtUser) {
				return deny(ctx, op, caller.OboTenant, caller.OboUser, aop, systemId,
					fmt.Sprintf("service %s is not authorized for credential retrieval", caller.JwtUser))
			}
			return nil
		}
		// A service acting as itself may read, execute and list permissions
		// unconditionally.
		if caller.IsActingAsSelf() {
			switch aop {
			case operation.Read, operation.Execute, operation.GetPerms:
				return nil
			}
		}
		// Otherwise the service acts with the rights of the user it proxies.
	} else if aop == operation.GetCred {
		return deny(ctx, op, caller.OboTenant, caller.OboUser, aop, systemId,
			"credential retrieval is restricted to authorized services")
	}

	if err := e.checkUserAuth(ctx, resourceTenant, checkUser, aop, systemId, opts); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// impersonationAllowed reports whether the caller may impersonate at all: an
// allow-listed service, or a human holding the tenant admin role.
func (e *Engine) impersonationAllowed(ctx context.Context, caller Caller) (bool, error) {
	const op = "authz.(Engine).impersonationAllowed"
	if caller.IsService {
		return strutil.StrListContains(e.cfg.ImpersonationServices, caller.JwtUser), nil
	}
	admin, err := e.authority.IsAdmin(ctx, caller.OboTenant, caller.OboUser)
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	return admin, nil
}

// resolveOwner returns the known owner, looking it up from the record store
// when the caller did not supply one.  An owner that cannot be resolved is an
// internal error: policy cannot be evaluated without it.
func (e *Engine) resolveOwner(ctx context.Context, tenant, systemId, supplied string) (string, error) {
	const op = "authz.(Engine).resolveOwner"
	if supplied != "" {
		return supplied, nil
	}
	owner, err := e.records.GetSystemOwner(ctx, tenant, systemId)
	if err != nil {
		return "", errors.Wrap(ctx, err, op)
	}
	if owner == "" {
		return "", errors.New(ctx, errors.Internal, op,
			fmt.Sprintf("unable to resolve owner of system %s in tenant %s", systemId, tenant))
	}
	return owner, nil
}

// checkUserAuth evaluates the per-operation rules for an end user identity
// (or a service that fell through to its on-behalf-of user).
func (e *Engine) checkUserAuth(ctx context.Context, tenant, user string, aop operation.Type, systemId string, opts options) error {
	const op = "authz.(Engine).checkUserAuth"

	switch aop {
	case operation.HardDelete:
		// Hard delete is never owner-only.
		admin, err := e.authority.IsAdmin(ctx, tenant, user)
		if err != nil {
			return errors.Wrap(ctx, err, op)
		}
		if admin {
			return nil
		}
		return deny(ctx, op, tenant, user, aop, systemId, "operation requires the tenant admin role")
	case operation.GetCred:
		return deny(ctx, op, tenant, user, aop, systemId,
			"credential retrieval is restricted to authorized services")
	}

	owner, err := e.resolveOwner(ctx, tenant, systemId, opts.withOwner)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}

	var allowed bool
	switch aop {
	case operation.Create, operation.Enable, operation.Disable, operation.Delete,
		operation.Undelete, operation.ChangeOwner, operation.GrantPerms:
		allowed, err = e.isOwnerOrAdmin(ctx, tenant, user, owner)

	case operation.Read:
		allowed, err = e.checkReadExecute(ctx, tenant, user, owner, systemId,
			[]perms.Permission{perms.Read, perms.Modify}, perms.SharedRead, opts.withSharedAppCtxGrantor)

	case operation.Execute:
		allowed, err = e.checkReadExecute(ctx, tenant, user, owner, systemId,
			[]perms.Permission{perms.Execute}, perms.SharedExecute, opts.withSharedAppCtxGrantor)

	case operation.GetPerms:
		allowed, err = e.isOwnerOrAdminOrPermitted(ctx, tenant, user, owner, systemId,
			[]perms.Permission{perms.Read, perms.Modify})

	case operation.Modify:
		allowed, err = e.isOwnerOrAdminOrPermitted(ctx, tenant, user, owner, systemId,
			[]perms.Permission{perms.Modify})

	case operation.RevokePerms:
		allowed, err = e.isOwnerOrAdmin(ctx, tenant, user, owner)
		if err == nil && !allowed && user == opts.withTargetUser {
			allowed, err = e.selfRevokeAllowed(ctx, tenant, user, systemId, opts.withPerms)
		}

	case operation.SetCred, operation.RemoveCred, operation.CheckCred, operation.SetAccessRefreshTokens:
		allowed, err = e.isOwnerOrAdmin(ctx, tenant, user, owner)
		if err == nil && !allowed && user == opts.withTargetUser {
			allowed, err = e.authority.IsPermittedAny(ctx, tenant, user,
				perms.SpecStrs(tenant, []perms.Permission{perms.Read, perms.Modify}, systemId))
			if err == nil && !allowed {
				allowed, err = e.authority.HasPrivilege(ctx, tenant, user, systemId, perms.SharedRead)
			}
		}

	default:
		allowed = false
	}
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if !allowed {
		return deny(ctx, op, tenant, user, aop, systemId, "no authorization rule matched")
	}
	return nil
}

func (e *Engine) isOwnerOrAdmin(ctx context.Context, tenant, user, owner string) (bool, error) {
	const op = "authz.(Engine).isOwnerOrAdmin"
	if user == owner {
		return true, nil
	}
	admin, err := e.authority.IsAdmin(ctx, tenant, user)
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	return admin, nil
}

func (e *Engine) isOwnerOrAdminOrPermitted(ctx context.Context, tenant, user, owner, systemId string, ps []perms.Permission) (bool, error) {
	const op = "authz.(Engine).isOwnerOrAdminOrPermitted"
	ok, err := e.isOwnerOrAdmin(ctx, tenant, user, owner)
	if err != nil || ok {
		return ok, err
	}
	ok, err = e.authority.IsPermittedAny(ctx, tenant, user, perms.SpecStrs(tenant, ps, systemId))
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	return ok, nil
}

// checkReadExecute is the combined read/execute rule: ownership, a matching
// shared-app-context grantor, the admin role, a permission grant, a share at
// the relevant privilege, or the grantor's own grant or share.  The grantor
// path never receives admin escalation; an admin grantor must not launder
// admin-equivalent access through an application's share context.
func (e *Engine) checkReadExecute(ctx context.Context, tenant, user, owner, systemId string, ps []perms.Permission, priv perms.Privilege, grantor string) (bool, error) {
	const op = "authz.(Engine).checkReadExecute"
	if user == owner {
		return true, nil
	}
	if grantor != "" && grantor == owner {
		return true, nil
	}
	admin, err := e.authority.IsAdmin(ctx, tenant, user)
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	if admin {
		return true, nil
	}
	specs := perms.SpecStrs(tenant, ps, systemId)
	ok, err := e.authority.IsPermittedAny(ctx, tenant, user, specs)
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	if ok {
		return true, nil
	}
	// A public share satisfies the privilege check for every user.
	ok, err = e.authority.HasPrivilege(ctx, tenant, user, systemId, priv)
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	if ok {
		return true, nil
	}
	if grantor != "" {
		ok, err = e.authority.IsPermittedAny(ctx, tenant, grantor, specs)
		if err != nil {
			return false, errors.Wrap(ctx, err, op)
		}
		if ok {
			return true, nil
		}
		ok, err = e.authority.HasPrivilege(ctx, tenant, grantor, systemId, priv)
		if err != nil {
			return false, errors.Wrap(ctx, err, op)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// selfRevokeAllowed is the heuristic for a user revoking their own
// permissions: revoking MODIFY requires holding MODIFY, revoking READ
// requires holding READ or MODIFY, revoking EXECUTE requires holding EXECUTE.
func (e *Engine) selfRevokeAllowed(ctx context.Context, tenant, user, systemId string, requested []perms.Permission) (bool, error) {
	const op = "authz.(Engine).selfRevokeAllowed"
	if len(requested) == 0 {
		return false, nil
	}
	for _, p := range requested {
		var required []perms.Permission
		switch p {
		case perms.Modify:
			required = []perms.Permission{perms.Modify}
		case perms.Read:
			required = []perms.Permission{perms.Read, perms.Modify}
		case perms.Execute:
			required = []perms.Permission{perms.Execute}
		default:
			return false, nil
		}
		ok, err := e.authority.IsPermittedAny(ctx, tenant, user, perms.SpecStrs(tenant, required, systemId))
		if err != nil {
			return false, errors.Wrap(ctx, err, op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
