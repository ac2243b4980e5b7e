// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package lifecycle sequences the authorization engine, the credential broker
// and the record store into whole-system operations.  Multi-step writes carry
// a compensation log: every completed step pushes its undo, and any later
// failure runs the log in reverse.  Compensation is best effort and its own
// failures are attached to the original error as warnings, never allowed to
// mask it.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/tapis-project/systems/internal/authz"
	"github.com/tapis-project/systems/internal/compensate"
	"github.com/tapis-project/systems/internal/credential"
	"github.com/tapis-project/systems/internal/errors"
	"github.com/tapis-project/systems/internal/event"
	"github.com/tapis-project/systems/internal/perms"
	"github.com/tapis-project/systems/internal/store"
	"github.com/tapis-project/systems/internal/systems"
	"github.com/tapis-project/systems/internal/types/operation"
)

// Service orchestrates system operations.  Every public method checks
// authorization before touching any store.
type Service struct {
	engine    *authz.Engine
	broker    *credential.Broker
	repo      *store.Repository
	authority perms.Authority
}

// NewService creates a Service from its collaborators.
func NewService(ctx context.Context, engine *authz.Engine, broker *credential.Broker, repo *store.Repository, authority perms.Authority) (*Service, error) {
	const op = "lifecycle.NewService"
	switch {
	case engine == nil:
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing authorization engine")
	case broker == nil:
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing credential broker")
	case repo == nil:
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing repository")
	case authority == nil:
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing permission authority")
	}
	return &Service{
		engine:    engine,
		broker:    broker,
		repo:      repo,
		authority: authority,
	}, nil
}

// CreateSystem validates and persists a new system, grants the owner their
// wildcard permission and, when a credential is supplied for a static
// effective user, writes it to the secret store.  A failure at any step rolls
// back the steps already taken in reverse order.
func (s *Service) CreateSystem(ctx context.Context, caller authz.Caller, sys *systems.System, cred *systems.Credential, opt ...Option) error {
	const op = "lifecycle.(Service).CreateSystem"
	if sys == nil {
		return errors.New(ctx, errors.InvalidParameter, op, "missing system")
	}
	if verrs := sys.Validate(); len(verrs) > 0 {
		var merr error
		for _, v := range verrs {
			merr = multierror.Append(merr, v)
		}
		return errors.Wrap(ctx, merr, op, errors.WithCode(errors.InvalidSystemState),
			errors.WithMsg("system definition failed validation"))
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.Create, sys.Id, authz.WithOwner(sys.Owner)); err != nil {
		return err
	}
	exists, err := s.repo.CheckExists(ctx, sys.Tenant, sys.Id, true)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if exists {
		return errors.New(ctx, errors.InvalidSystemState, op,
			fmt.Sprintf("system %s already exists in tenant %s", sys.Id, sys.Tenant))
	}
	opts := getOpts(opt...)

	clog := compensate.New()
	if err := s.repo.CreateSystem(ctx, sys); err != nil {
		return compensated(ctx, op, errors.Wrap(ctx, err, op), clog)
	}
	clog.Push("persist system row", func(ctx context.Context) error {
		return s.repo.DeleteSystem(ctx, sys.Tenant, sys.Id)
	})

	ownerSpec := perms.WildcardSpecStr(sys.Tenant, sys.Id)
	if err := s.authority.Grant(ctx, sys.Tenant, sys.Owner, ownerSpec); err != nil {
		origErr := errors.Wrap(ctx, err, op,
			errors.WithMsg(fmt.Sprintf("granting owner permission to %s failed", sys.Owner)))
		return compensated(ctx, op, origErr, clog)
	}
	clog.Push("grant owner permission", func(ctx context.Context) error {
		return s.authority.Revoke(ctx, sys.Tenant, sys.Owner, ownerSpec)
	})

	if cred != nil && !sys.IsDynamicEffectiveUser() {
		out, err := s.broker.CreateCredential(ctx, sys, sys.EffectiveUserId, cred,
			credential.WithSkipCheck(opts.withSkipCredentialCheck))
		if err != nil {
			return compensated(ctx, op, errors.Wrap(ctx, err, op), clog)
		}
		if out.Validation != nil && !*out.Validation {
			origErr := errors.New(ctx, errors.InvalidSystemState, op,
				fmt.Sprintf("credential verification failed: %s", out.ValidationMsg))
			return compensated(ctx, op, origErr, clog)
		}
		clog.Push("write static credential", func(ctx context.Context) error {
			_, err := s.broker.DeleteCredential(ctx, sys.Tenant, sys.Id, sys.EffectiveUserId, true)
			return err
		})
	}

	s.appendHistory(ctx, sys.Tenant, sys.Id, operation.Create,
		fmt.Sprintf("owner=%s", sys.Owner), systemRawData(sys))
	return nil
}

// GetSystem returns a system after a read authorization check.  A missing or
// soft-deleted system is RecordNotFound, reported before any Forbidden so the
// two outcomes never blur.
func (s *Service) GetSystem(ctx context.Context, caller authz.Caller, tenant, systemId string, opt ...Option) (*systems.System, error) {
	const op = "lifecycle.(Service).GetSystem"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return nil, err
	}
	authzOpts := []authz.Option{authz.WithOwner(sys.Owner)}
	if opts := getOpts(opt...); opts.withImpersonationId != "" {
		authzOpts = append(authzOpts, authz.WithImpersonationId(opts.withImpersonationId))
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.Read, systemId, authzOpts...); err != nil {
		return nil, err
	}
	return sys, nil
}

// GetSystemWithCredential returns a system together with targetUser's stored
// credential for the given method.  The attachment runs its own getCred
// authorization, so only the allow-listed services can use it.
func (s *Service) GetSystemWithCredential(ctx context.Context, caller authz.Caller, tenant, systemId, targetUser string, method systems.AuthnMethod, opt ...Option) (*systems.System, *systems.Credential, error) {
	sys, err := s.GetSystem(ctx, caller, tenant, systemId, opt...)
	if err != nil {
		return nil, nil, err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.GetCred, systemId,
		authz.WithOwner(sys.Owner), authz.WithTargetUser(targetUser)); err != nil {
		return nil, nil, err
	}
	cred, err := s.broker.GetCredential(ctx, sys, targetUser, method)
	if err != nil {
		return nil, nil, err
	}
	return sys, cred, nil
}

// UpdateSystem replaces the mutable attributes of a system with the supplied
// definition.  Identity, ownership and the enabled/deleted flags are governed
// by their own operations and are carried over from the current row.
func (s *Service) UpdateSystem(ctx context.Context, caller authz.Caller, sys *systems.System) error {
	const op = "lifecycle.(Service).UpdateSystem"
	if sys == nil {
		return errors.New(ctx, errors.InvalidParameter, op, "missing system")
	}
	cur, err := s.lookup(ctx, op, sys.Tenant, sys.Id, false)
	if err != nil {
		return err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.Modify, sys.Id, authz.WithOwner(cur.Owner)); err != nil {
		return err
	}
	merged := *sys
	merged.Owner = cur.Owner
	merged.Enabled = cur.Enabled
	merged.Deleted = cur.Deleted
	if verrs := merged.Validate(); len(verrs) > 0 {
		var merr error
		for _, v := range verrs {
			merr = multierror.Append(merr, v)
		}
		return errors.Wrap(ctx, merr, op, errors.WithCode(errors.InvalidSystemState),
			errors.WithMsg("system definition failed validation"))
	}
	if err := s.repo.UpdateSystem(ctx, &merged); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	s.appendHistory(ctx, sys.Tenant, sys.Id, operation.Modify, "system updated", systemRawData(&merged))
	return nil
}

// EnableSystem marks a system enabled.
func (s *Service) EnableSystem(ctx context.Context, caller authz.Caller, tenant, systemId string) error {
	return s.setEnabled(ctx, caller, tenant, systemId, true, operation.Enable)
}

// DisableSystem marks a system disabled.
func (s *Service) DisableSystem(ctx context.Context, caller authz.Caller, tenant, systemId string) error {
	return s.setEnabled(ctx, caller, tenant, systemId, false, operation.Disable)
}

func (s *Service) setEnabled(ctx context.Context, caller authz.Caller, tenant, systemId string, enabled bool, aop operation.Type) error {
	const op = "lifecycle.(Service).setEnabled"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return err
	}
	if err := s.engine.CheckAuth(ctx, caller, aop, systemId, authz.WithOwner(sys.Owner)); err != nil {
		return err
	}
	if err := s.repo.SetEnabled(ctx, tenant, systemId, enabled); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	s.appendHistory(ctx, tenant, systemId, aop, fmt.Sprintf("enabled=%t", enabled), "")
	return nil
}

// ChangeSystemOwner transfers ownership, moving the wildcard permission from
// the old owner to the new one.  A failure rolls back the transfer.
func (s *Service) ChangeSystemOwner(ctx context.Context, caller authz.Caller, tenant, systemId, newOwner string) error {
	const op = "lifecycle.(Service).ChangeSystemOwner"
	if newOwner == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing new owner")
	}
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.ChangeOwner, systemId, authz.WithOwner(sys.Owner)); err != nil {
		return err
	}
	oldOwner := sys.Owner
	if newOwner == oldOwner {
		return nil
	}
	spec := perms.WildcardSpecStr(tenant, systemId)

	clog := compensate.New()
	if err := s.repo.SetOwner(ctx, tenant, systemId, newOwner); err != nil {
		return compensated(ctx, op, errors.Wrap(ctx, err, op), clog)
	}
	clog.Push("set owner column", func(ctx context.Context) error {
		return s.repo.SetOwner(ctx, tenant, systemId, oldOwner)
	})

	if err := s.authority.Grant(ctx, tenant, newOwner, spec); err != nil {
		origErr := errors.Wrap(ctx, err, op,
			errors.WithMsg(fmt.Sprintf("granting owner permission to %s failed", newOwner)))
		return compensated(ctx, op, origErr, clog)
	}
	clog.Push("grant new owner permission", func(ctx context.Context) error {
		return s.authority.Revoke(ctx, tenant, newOwner, spec)
	})

	if err := s.authority.Revoke(ctx, tenant, oldOwner, spec); err != nil {
		origErr := errors.Wrap(ctx, err, op,
			errors.WithMsg(fmt.Sprintf("revoking owner permission from %s failed", oldOwner)))
		return compensated(ctx, op, origErr, clog)
	}

	s.appendHistory(ctx, tenant, systemId, operation.ChangeOwner,
		fmt.Sprintf("owner changed from %s to %s", oldOwner, newOwner), "")
	return nil
}

// SoftDeleteSystem hides a system and strips access to it.  Stripping the
// owner permission and the stored credentials are unconditional forward
// steps, not compensations; failures are collected and reported together but
// the delete mark is never rolled back.
func (s *Service) SoftDeleteSystem(ctx context.Context, caller authz.Caller, tenant, systemId string) error {
	const op = "lifecycle.(Service).SoftDeleteSystem"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.Delete, systemId, authz.WithOwner(sys.Owner)); err != nil {
		return err
	}
	if err := s.repo.SetDeleted(ctx, tenant, systemId, true); err != nil {
		return errors.Wrap(ctx, err, op)
	}

	var merr *multierror.Error
	if err := s.authority.Revoke(ctx, tenant, sys.Owner, perms.WildcardSpecStr(tenant, systemId)); err != nil {
		merr = multierror.Append(merr, err)
	}
	merr = multierror.Append(merr, s.scrubCredentials(ctx, sys)...)
	merr = multierror.Append(merr, s.scrubShares(ctx, tenant, systemId)...)
	s.appendHistory(ctx, tenant, systemId, operation.Delete, "system soft deleted", "")
	if err := merr.ErrorOrNil(); err != nil {
		return errors.Wrap(ctx, err, op,
			errors.WithMsg("system was marked deleted but stripping access did not fully complete"))
	}
	return nil
}

// UndeleteSystem restores a soft-deleted system and the owner's wildcard
// permission.
func (s *Service) UndeleteSystem(ctx context.Context, caller authz.Caller, tenant, systemId string) error {
	const op = "lifecycle.(Service).UndeleteSystem"
	sys, err := s.lookup(ctx, op, tenant, systemId, true)
	if err != nil {
		return err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.Undelete, systemId, authz.WithOwner(sys.Owner)); err != nil {
		return err
	}
	if !sys.Deleted {
		return nil
	}
	if err := s.repo.SetDeleted(ctx, tenant, systemId, false); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if err := s.authority.Grant(ctx, tenant, sys.Owner, perms.WildcardSpecStr(tenant, systemId)); err != nil {
		return errors.Wrap(ctx, err, op,
			errors.WithMsg(fmt.Sprintf("system was restored but re-granting the owner permission to %s failed", sys.Owner)))
	}
	s.appendHistory(ctx, tenant, systemId, operation.Undelete, "system restored", "")
	return nil
}

// HardDeleteSystem removes a system row for good after scrubbing permissions
// and credentials.  The authorization engine restricts this to tenant admins.
func (s *Service) HardDeleteSystem(ctx context.Context, caller authz.Caller, tenant, systemId string) error {
	const op = "lifecycle.(Service).HardDeleteSystem"
	sys, err := s.lookup(ctx, op, tenant, systemId, true)
	if err != nil {
		return err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.HardDelete, systemId, authz.WithOwner(sys.Owner)); err != nil {
		return err
	}

	var merr *multierror.Error
	if err := s.authority.Revoke(ctx, tenant, sys.Owner, perms.WildcardSpecStr(tenant, systemId)); err != nil {
		merr = multierror.Append(merr, err)
	}
	merr = multierror.Append(merr, s.scrubCredentials(ctx, sys)...)
	merr = multierror.Append(merr, s.scrubShares(ctx, tenant, systemId)...)
	if err := s.repo.DeleteSystem(ctx, tenant, systemId); err != nil {
		merr = multierror.Append(merr, err)
	}
	s.appendHistory(ctx, tenant, systemId, operation.HardDelete, "system hard deleted", "")
	if err := merr.ErrorOrNil(); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithMsg("hard delete did not fully complete"))
	}
	return nil
}

// scrubCredentials removes the credentials the service can account for: the
// static credential when the effective user is static and the owner's dynamic
// credential otherwise.  Dynamic credentials of other users stay behind until
// their own delete; the store cannot enumerate them.
func (s *Service) scrubCredentials(ctx context.Context, sys *systems.System) []error {
	var errs []error
	if sys.IsDynamicEffectiveUser() {
		if _, err := s.broker.DeleteCredential(ctx, sys.Tenant, sys.Id, sys.Owner, false); err != nil {
			errs = append(errs, err)
		}
		return errs
	}
	if _, err := s.broker.DeleteCredential(ctx, sys.Tenant, sys.Id, sys.EffectiveUserId, true); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// scrubShares withdraws every share record of a system.  Failures are
// collected, not fatal, matching the forward-scrub contract of the delete
// operations.
func (s *Service) scrubShares(ctx context.Context, tenant, systemId string) []error {
	records, err := s.authority.GetShares(ctx, tenant, systemId)
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, rec := range records {
		if err := s.authority.DeleteShare(ctx, tenant, rec.Grantee, systemId, rec.Privilege); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// GrantUserPermissions grants targetUser the requested permissions on a
// system.
func (s *Service) GrantUserPermissions(ctx context.Context, caller authz.Caller, tenant, systemId, targetUser string, requested []perms.Permission) error {
	const op = "lifecycle.(Service).GrantUserPermissions"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.GrantPerms, systemId,
		authz.WithOwner(sys.Owner), authz.WithTargetUser(targetUser)); err != nil {
		return err
	}
	return s.engine.GrantPermissions(ctx, tenant, systemId, targetUser, requested)
}

// RevokeUserPermissions revokes the requested permissions from targetUser.
// The engine's self-revoke rule lets a user shed their own grants.
func (s *Service) RevokeUserPermissions(ctx context.Context, caller authz.Caller, tenant, systemId, targetUser string, requested []perms.Permission) error {
	const op = "lifecycle.(Service).RevokeUserPermissions"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.RevokePerms, systemId,
		authz.WithOwner(sys.Owner), authz.WithTargetUser(targetUser), authz.WithPerms(requested)); err != nil {
		return err
	}
	return s.engine.RevokePermissions(ctx, tenant, systemId, targetUser, requested)
}

// GetUserPermissions returns the permissions targetUser holds on a system.
func (s *Service) GetUserPermissions(ctx context.Context, caller authz.Caller, tenant, systemId, targetUser string) ([]perms.Permission, error) {
	const op = "lifecycle.(Service).GetUserPermissions"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.GetPerms, systemId,
		authz.WithOwner(sys.Owner), authz.WithTargetUser(targetUser)); err != nil {
		return nil, err
	}
	held, err := s.authority.GetPermissions(ctx, tenant, targetUser, systemId)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return held, nil
}

// CreateUserCredential stores a credential for targetUser on a system.
func (s *Service) CreateUserCredential(ctx context.Context, caller authz.Caller, tenant, systemId, targetUser string, cred *systems.Credential, opt ...Option) (*systems.Credential, error) {
	const op = "lifecycle.(Service).CreateUserCredential"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.SetCred, systemId,
		authz.WithOwner(sys.Owner), authz.WithTargetUser(targetUser)); err != nil {
		return nil, err
	}
	opts := getOpts(opt...)
	return s.broker.CreateCredential(ctx, sys, targetUser, cred,
		credential.WithSkipCheck(opts.withSkipCredentialCheck))
}

// GetUserCredential fetches a credential for targetUser.  The engine's
// allow-list confines this to the trusted internal services.
func (s *Service) GetUserCredential(ctx context.Context, caller authz.Caller, tenant, systemId, targetUser string, method systems.AuthnMethod) (*systems.Credential, error) {
	const op = "lifecycle.(Service).GetUserCredential"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.GetCred, systemId,
		authz.WithOwner(sys.Owner), authz.WithTargetUser(targetUser)); err != nil {
		return nil, err
	}
	return s.broker.GetCredential(ctx, sys, targetUser, method)
}

// DeleteUserCredential destroys the stored credential of targetUser and
// returns the number of credentials removed, 0 or 1.
func (s *Service) DeleteUserCredential(ctx context.Context, caller authz.Caller, tenant, systemId, targetUser string) (int, error) {
	const op = "lifecycle.(Service).DeleteUserCredential"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return 0, err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.RemoveCred, systemId,
		authz.WithOwner(sys.Owner), authz.WithTargetUser(targetUser)); err != nil {
		return 0, err
	}
	return s.broker.DeleteCredential(ctx, tenant, systemId, targetUser, !sys.IsDynamicEffectiveUser())
}

// CheckUserCredential runs a live verification of the stored credential for
// targetUser using the system's default authentication method.  A credential
// that fails the check is a normal result, not an error.
func (s *Service) CheckUserCredential(ctx context.Context, caller authz.Caller, tenant, systemId, targetUser string) (*systems.Credential, error) {
	const op = "lifecycle.(Service).CheckUserCredential"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.CheckCred, systemId,
		authz.WithOwner(sys.Owner), authz.WithTargetUser(targetUser)); err != nil {
		return nil, err
	}
	cred, err := s.broker.GetCredential(ctx, sys, targetUser, sys.DefaultAuthnMethod)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, errors.New(ctx, errors.RecordNotFound, op,
			fmt.Sprintf("no credential found for user %s on system %s", targetUser, systemId))
	}
	effectiveUser := cred.LoginUser
	if effectiveUser == "" {
		if effectiveUser, err = s.broker.ResolveEffectiveUserId(ctx, sys, targetUser); err != nil {
			return nil, err
		}
	}
	if err := s.broker.VerifyConnection(ctx, sys, sys.DefaultAuthnMethod, cred, effectiveUser); err != nil {
		return nil, err
	}
	s.appendHistory(ctx, tenant, systemId, operation.CheckCred,
		fmt.Sprintf("targetUser=%s valid=%t", targetUser, cred.Validation != nil && *cred.Validation), "")
	return cred, nil
}

// ShareSystem shares a system with the listed users, or publicly when public
// is set.  The engine checks modify authorization and rolls back partially
// applied share pairs.
func (s *Service) ShareSystem(ctx context.Context, caller authz.Caller, tenant, systemId string, users []string, public bool) error {
	const op = "lifecycle.(Service).ShareSystem"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return err
	}
	return s.engine.UpdateUserShares(ctx, caller, systemId, authz.Share, users, public, authz.WithOwner(sys.Owner))
}

// UnshareSystem removes shares from the listed users, or the public share
// when public is set.
func (s *Service) UnshareSystem(ctx context.Context, caller authz.Caller, tenant, systemId string, users []string, public bool) error {
	const op = "lifecycle.(Service).UnshareSystem"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return err
	}
	return s.engine.UpdateUserShares(ctx, caller, systemId, authz.Unshare, users, public, authz.WithOwner(sys.Owner))
}

// GetSystemShares returns the share records of a system.
func (s *Service) GetSystemShares(ctx context.Context, caller authz.Caller, tenant, systemId string) ([]perms.ShareRecord, error) {
	const op = "lifecycle.(Service).GetSystemShares"
	sys, err := s.lookup(ctx, op, tenant, systemId, false)
	if err != nil {
		return nil, err
	}
	return s.engine.GetShares(ctx, caller, systemId, authz.WithOwner(sys.Owner))
}

// GetSystemHistory returns the update history of a system.
func (s *Service) GetSystemHistory(ctx context.Context, caller authz.Caller, tenant, systemId string) ([]store.HistoryEntry, error) {
	const op = "lifecycle.(Service).GetSystemHistory"
	sys, err := s.lookup(ctx, op, tenant, systemId, true)
	if err != nil {
		return nil, err
	}
	if err := s.engine.CheckAuth(ctx, caller, operation.Read, systemId, authz.WithOwner(sys.Owner)); err != nil {
		return nil, err
	}
	entries, err := s.repo.GetHistory(ctx, tenant, systemId)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	return entries, nil
}

// lookup fetches a system, mapping absence to RecordNotFound so callers can
// tell "does not exist" from "not allowed".
func (s *Service) lookup(ctx context.Context, op errors.Op, tenant, systemId string, includeDeleted bool) (*systems.System, error) {
	if tenant == "" || systemId == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing tenant or system id")
	}
	sys, err := s.repo.GetSystem(ctx, tenant, systemId, includeDeleted)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	if sys == nil {
		return nil, errors.New(ctx, errors.RecordNotFound, op,
			fmt.Sprintf("system %s not found in tenant %s", systemId, tenant))
	}
	return sys, nil
}

// appendHistory writes an update-history record best effort.  A history
// failure never masks the outcome of the operation itself.
func (s *Service) appendHistory(ctx context.Context, tenant, systemId string, aop operation.Type, description, rawData string) {
	const op = "lifecycle.(Service).appendHistory"
	if err := s.repo.AppendHistory(ctx, tenant, systemId, aop, description, rawData); err != nil {
		event.WriteError(ctx, op, err)
	}
}

// compensated runs the compensation log and attaches any of its failures to
// the original error as warnings.  The original error always propagates.
func compensated(ctx context.Context, op errors.Op, origErr error, clog *compensate.Log) error {
	if warn := clog.Run(ctx); warn != nil {
		return errors.Wrap(ctx, origErr, op,
			errors.WithMsg(fmt.Sprintf("compensation warnings: %s", warn)))
	}
	return origErr
}

// systemRawData renders a system definition as JSON for a history record.
// System rows hold no secret material.
func systemRawData(sys *systems.System) string {
	b, err := json.Marshal(sys)
	if err != nil {
		return ""
	}
	return string(b)
}
