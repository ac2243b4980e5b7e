// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package perms

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tapis-project/systems/internal/systems"
)

// TestAuthority is an in-memory Authority for tests.  The *Err hook fields
// allow fault injection so compensation paths can be exercised.
type TestAuthority struct {
	mu sync.Mutex

	// userKey -> set of permSpecs
	grants map[string]map[string]bool
	// shareKey -> true
	shares map[string]bool
	// userKey -> admin role
	admins map[string]bool

	// Fault injection hooks.  When non-nil and returning a non-nil error the
	// corresponding operation fails without mutating state.
	GrantErr       func(tenant, user, permSpec string) error
	RevokeErr      func(tenant, user, permSpec string) error
	ShareErr       func(tenant, grantee, systemId string, priv Privilege) error
	DeleteShareErr func(tenant, grantee, systemId string, priv Privilege) error
}

var _ Authority = (*TestAuthority)(nil)

// NewTestAuthority creates an empty TestAuthority.
func NewTestAuthority() *TestAuthority {
	return &TestAuthority{
		grants: make(map[string]map[string]bool),
		shares: make(map[string]bool),
		admins: make(map[string]bool),
	}
}

func userKey(tenant, user string) string { return tenant + "|" + user }

func shareKey(tenant, grantee, systemId string, priv Privilege) string {
	return fmt.Sprintf("%s|%s|%s|%s", tenant, grantee, systemId, priv)
}

// SetAdmin marks user as holding the tenant admin role.
func (a *TestAuthority) SetAdmin(tenant, user string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.admins[userKey(tenant, user)] = true
}

// specMatches reports whether a stored grant satisfies a requested spec,
// honoring the stored wildcard.
func specMatches(stored, requested string) bool {
	if stored == requested {
		return true
	}
	sTenant, sPerm, sSystem, err := ParseSpecStr(stored)
	if err != nil {
		return false
	}
	rTenant, _, rSystem, err := ParseSpecStr(requested)
	if err != nil {
		return false
	}
	return sPerm == UnknownPermission && sTenant == rTenant && sSystem == rSystem
}

// IsPermitted implements Authority.
func (a *TestAuthority) IsPermitted(_ context.Context, tenant, user, permSpec string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for stored := range a.grants[userKey(tenant, user)] {
		if specMatches(stored, permSpec) {
			return true, nil
		}
	}
	return false, nil
}

// IsPermittedAny implements Authority.
func (a *TestAuthority) IsPermittedAny(ctx context.Context, tenant, user string, permSpecs []string) (bool, error) {
	for _, spec := range permSpecs {
		ok, err := a.IsPermitted(ctx, tenant, user, spec)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Grant implements Authority.
func (a *TestAuthority) Grant(_ context.Context, tenant, user, permSpec string) error {
	if a.GrantErr != nil {
		if err := a.GrantErr(tenant, user, permSpec); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := userKey(tenant, user)
	if a.grants[key] == nil {
		a.grants[key] = make(map[string]bool)
	}
	a.grants[key][permSpec] = true
	return nil
}

// Revoke implements Authority.
func (a *TestAuthority) Revoke(_ context.Context, tenant, user, permSpec string) error {
	if a.RevokeErr != nil {
		if err := a.RevokeErr(tenant, user, permSpec); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.grants[userKey(tenant, user)], permSpec)
	return nil
}

// GetPermissions implements Authority.
func (a *TestAuthority) GetPermissions(_ context.Context, tenant, user, systemId string) ([]Permission, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Permission
	for stored := range a.grants[userKey(tenant, user)] {
		sTenant, p, sSystem, err := ParseSpecStr(stored)
		if err != nil || sTenant != tenant || sSystem != systemId {
			continue
		}
		if p == UnknownPermission {
			return []Permission{Read, Modify, Execute}, nil
		}
		if !ContainsPermission(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// IsAdmin implements Authority.
func (a *TestAuthority) IsAdmin(_ context.Context, tenant, user string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.admins[userKey(tenant, user)], nil
}

// HasPrivilege implements Authority.  A public share satisfies the check for
// every user.
func (a *TestAuthority) HasPrivilege(_ context.Context, tenant, user, systemId string, priv Privilege) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shares[shareKey(tenant, user, systemId, priv)] {
		return true, nil
	}
	return a.shares[shareKey(tenant, systems.PublicGrantee, systemId, priv)], nil
}

// ShareResource implements Authority.
func (a *TestAuthority) ShareResource(_ context.Context, tenant, grantee, systemId string, priv Privilege) error {
	if a.ShareErr != nil {
		if err := a.ShareErr(tenant, grantee, systemId, priv); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shares[shareKey(tenant, grantee, systemId, priv)] = true
	return nil
}

// DeleteShare implements Authority.
func (a *TestAuthority) DeleteShare(_ context.Context, tenant, grantee, systemId string, priv Privilege) error {
	if a.DeleteShareErr != nil {
		if err := a.DeleteShareErr(tenant, grantee, systemId, priv); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.shares, shareKey(tenant, grantee, systemId, priv))
	return nil
}

// GetShares implements Authority.
func (a *TestAuthority) GetShares(_ context.Context, tenant, systemId string) ([]ShareRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []ShareRecord
	for key := range a.shares {
		parts := strings.Split(key, "|")
		if len(parts) != 4 {
			continue
		}
		if parts[0] != tenant || parts[2] != systemId {
			continue
		}
		priv := UnknownPrivilege
		switch parts[3] {
		case SharedRead.String():
			priv = SharedRead
		case SharedExecute.String():
			priv = SharedExecute
		}
		out = append(out, ShareRecord{Tenant: parts[0], SystemId: parts[2], Grantee: parts[1], Privilege: priv})
	}
	return out, nil
}
