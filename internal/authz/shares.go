// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package authz

import (
	"context"
	"fmt"

	"github.com/tapis-project/systems/internal/compensate"
	"github.com/tapis-project/systems/internal/errors"
	"github.com/tapis-project/systems/internal/perms"
	"github.com/tapis-project/systems/internal/systems"
	"github.com/tapis-project/systems/internal/types/operation"
)

// ShareOp selects between sharing and unsharing in UpdateUserShares.
type ShareOp int

const (
	UnknownShareOp ShareOp = 0
	Share          ShareOp = 1
	Unshare        ShareOp = 2
)

func (s ShareOp) String() string {
	return [...]string{
		"unknown",
		"share",
		"unshare",
	}[s]
}

// sharePrivileges is the pair every share and unshare operates on.  A system
// is never shared with only one of the two.
var sharePrivileges = []perms.Privilege{perms.SharedRead, perms.SharedExecute}

// UpdateUserShares shares or unshares a system, either with an explicit set
// of grantee users or publicly.  The two modes are mutually exclusive; public
// mode uses the reserved public grantee.  The caller must pass the standard
// modify authorization first.  READ and EXECUTE privileges are granted and
// revoked together per grantee: a partial write inside one grantee is rolled
// back so the pair stays atomic.
func (e *Engine) UpdateUserShares(ctx context.Context, caller Caller, systemId string, sop ShareOp, userList []string, public bool, opt ...Option) error {
	const op = "authz.(Engine).UpdateUserShares"
	if sop != Share && sop != Unshare {
		return errors.New(ctx, errors.InvalidParameter, op, "invalid share operation")
	}
	if public == (len(userList) > 0) {
		return errors.New(ctx, errors.InvalidParameter, op,
			"exactly one of a grantee user set or the public flag must be provided")
	}

	if err := e.CheckAuth(ctx, caller, operation.Modify, systemId, opt...); err != nil {
		return errors.Wrap(ctx, err, op)
	}

	tenant := caller.OboTenant
	grantees := userList
	if public {
		grantees = []string{systems.PublicGrantee}
	}
	for _, grantee := range grantees {
		if err := e.updateShare(ctx, tenant, grantee, systemId, sop); err != nil {
			return errors.Wrap(ctx, err, op)
		}
	}
	return nil
}

func (e *Engine) updateShare(ctx context.Context, tenant, grantee, systemId string, sop ShareOp) error {
	const op = "authz.(Engine).updateShare"
	clog := compensate.New()
	for _, priv := range sharePrivileges {
		var err error
		switch sop {
		case Share:
			err = e.authority.ShareResource(ctx, tenant, grantee, systemId, priv)
		case Unshare:
			err = e.authority.DeleteShare(ctx, tenant, grantee, systemId, priv)
		}
		if err != nil {
			origErr := errors.Wrap(ctx, err, op,
				errors.WithMsg(fmt.Sprintf("%s of system %s with grantee %s at privilege %s failed",
					sop, systemId, grantee, priv)))
			if warn := clog.Run(ctx); warn != nil {
				origErr = errors.Wrap(ctx, origErr, op,
					errors.WithMsg(fmt.Sprintf("compensation warnings: %s", warn)))
			}
			return origErr
		}
		priv := priv
		switch sop {
		case Share:
			clog.Push(fmt.Sprintf("share %s with %s", priv, grantee), func(ctx context.Context) error {
				return e.authority.DeleteShare(ctx, tenant, grantee, systemId, priv)
			})
		case Unshare:
			clog.Push(fmt.Sprintf("unshare %s from %s", priv, grantee), func(ctx context.Context) error {
				return e.authority.ShareResource(ctx, tenant, grantee, systemId, priv)
			})
		}
	}
	return nil
}

// GetShares returns every share record for a system.  The caller must hold
// read access.
func (e *Engine) GetShares(ctx context.Context, caller Caller, systemId string, opt ...Option) ([]perms.ShareRecord, error) {
	const op = "authz.(Engine).GetShares"
	if err := e.CheckAuth(ctx, caller, operation.Read, systemId, opt...); err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	out, err := e.authority.GetShares(ctx, caller.OboTenant, systemId)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return out, nil
}
