// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package authz

import (
	"context"
	"fmt"
	"sort"

	"github.com/tapis-project/systems/internal/compensate"
	"github.com/tapis-project/systems/internal/errors"
	"github.com/tapis-project/systems/internal/event"
	"github.com/tapis-project/systems/internal/perms"
	"github.com/tapis-project/systems/internal/types/operation"
)

// normalizeGrantSet expands the requested permissions for a grant: MODIFY
// implies READ.  The reverse does not hold.
func normalizeGrantSet(requested []perms.Permission) []perms.Permission {
	out := make([]perms.Permission, 0, len(requested)+1)
	for _, p := range requested {
		if !perms.ContainsPermission(out, p) {
			out = append(out, p)
		}
	}
	if perms.ContainsPermission(out, perms.Modify) && !perms.ContainsPermission(out, perms.Read) {
		out = append(out, perms.Read)
	}
	return out
}

// normalizeRevokeSet expands the requested permissions for a revoke: revoking
// READ implies revoking MODIFY, even when the user never held MODIFY.  The
// rollback path restores only permissions that were actually held, so the net
// effect stays correct.
func normalizeRevokeSet(requested []perms.Permission) []perms.Permission {
	out := make([]perms.Permission, 0, len(requested)+1)
	for _, p := range requested {
		if !perms.ContainsPermission(out, p) {
			out = append(out, p)
		}
	}
	if perms.ContainsPermission(out, perms.Read) && !perms.ContainsPermission(out, perms.Modify) {
		out = append(out, perms.Modify)
	}
	return out
}

// GrantPermissions writes one permission spec per requested permission to the
// permission authority.  On a partial failure the specs already written are
// revoked best-effort and the original error propagates, carrying any
// compensation failures as warnings.  An update-history record is appended
// regardless of the outcome of the compensating actions.
func (e *Engine) GrantPermissions(ctx context.Context, tenant, systemId, targetUser string, requested []perms.Permission) error {
	const op = "authz.(Engine).GrantPermissions"
	if tenant == "" || systemId == "" || targetUser == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing tenant, system id or target user")
	}
	if len(requested) == 0 {
		return errors.New(ctx, errors.InvalidParameter, op, "no permissions requested")
	}

	toGrant := normalizeGrantSet(requested)
	clog := compensate.New()
	for _, p := range toGrant {
		spec := perms.SpecStr(tenant, p, systemId)
		if err := e.authority.Grant(ctx, tenant, targetUser, spec); err != nil {
			origErr := errors.Wrap(ctx, err, op,
				errors.WithMsg(fmt.Sprintf("granting %s to user %s on system %s failed", p, targetUser, systemId)))
			if warn := clog.Run(ctx); warn != nil {
				origErr = errors.Wrap(ctx, origErr, op,
					errors.WithMsg(fmt.Sprintf("compensation warnings: %s", warn)))
			}
			e.appendPermHistory(ctx, tenant, systemId, operation.GrantPerms, targetUser)
			return origErr
		}
		clog.Push(fmt.Sprintf("grant %s", spec), func(ctx context.Context) error {
			return e.authority.Revoke(ctx, tenant, targetUser, spec)
		})
	}
	e.appendPermHistory(ctx, tenant, systemId, operation.GrantPerms, targetUser)
	return nil
}

// RevokePermissions removes one permission spec per requested permission.  It
// reads the target user's current set first so a partial failure restores
// only permissions the user actually held, never ones the implied-MODIFY
// expansion added.
func (e *Engine) RevokePermissions(ctx context.Context, tenant, systemId, targetUser string, requested []perms.Permission) error {
	const op = "authz.(Engine).RevokePermissions"
	if tenant == "" || systemId == "" || targetUser == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing tenant, system id or target user")
	}
	if len(requested) == 0 {
		return errors.New(ctx, errors.InvalidParameter, op, "no permissions requested")
	}

	held, err := e.authority.GetPermissions(ctx, tenant, targetUser, systemId)
	if err != nil {
		return errors.Wrap(ctx, err, op,
			errors.WithMsg(fmt.Sprintf("unable to read current permissions of user %s on system %s", targetUser, systemId)))
	}

	toRevoke := normalizeRevokeSet(requested)
	clog := compensate.New()
	for _, p := range toRevoke {
		spec := perms.SpecStr(tenant, p, systemId)
		if err := e.authority.Revoke(ctx, tenant, targetUser, spec); err != nil {
			origErr := errors.Wrap(ctx, err, op,
				errors.WithMsg(fmt.Sprintf("revoking %s from user %s on system %s failed", p, targetUser, systemId)))
			if warn := clog.Run(ctx); warn != nil {
				origErr = errors.Wrap(ctx, origErr, op,
					errors.WithMsg(fmt.Sprintf("compensation warnings: %s", warn)))
			}
			e.appendPermHistory(ctx, tenant, systemId, operation.RevokePerms, targetUser)
			return origErr
		}
		if perms.ContainsPermission(held, p) {
			clog.Push(fmt.Sprintf("revoke %s", spec), func(ctx context.Context) error {
				return e.authority.Grant(ctx, tenant, targetUser, spec)
			})
		}
	}
	e.appendPermHistory(ctx, tenant, systemId, operation.RevokePerms, targetUser)
	return nil
}

// appendPermHistory records the target user and their resulting permission
// set.  History is best effort here: a failure to write it never masks the
// outcome of the permission change itself.
func (e *Engine) appendPermHistory(ctx context.Context, tenant, systemId string, aop operation.Type, targetUser string) {
	const op = "authz.(Engine).appendPermHistory"
	final, err := e.authority.GetPermissions(ctx, tenant, targetUser, systemId)
	if err != nil {
		final = nil
	}
	names := make([]string, 0, len(final))
	for _, p := range final {
		names = append(names, p.String())
	}
	sort.Strings(names)
	desc := fmt.Sprintf("targetUser=%s permissions=%v", targetUser, names)
	if err := e.records.AppendHistory(ctx, tenant, systemId, aop, desc, ""); err != nil {
		event.WriteError(ctx, op, err)
	}
}
