// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package perms

import "context"

// Authority is the client contract for the external permission authority.
// It stores per-user permission specs, share relationships and the
// tenant-admin role predicate.  Implementations must treat every call as a
// synchronous, blocking request and honor ctx cancellation.
type Authority interface {
	// IsPermitted returns true if user holds a grant matching permSpec in
	// tenant.
	IsPermitted(ctx context.Context, tenant, user, permSpec string) (bool, error)

	// IsPermittedAny returns true if user holds a grant matching any of
	// permSpecs in tenant.
	IsPermittedAny(ctx context.Context, tenant, user string, permSpecs []string) (bool, error)

	// Grant stores permSpec for user in tenant.  Granting an already held
	// spec is not an error.
	Grant(ctx context.Context, tenant, user, permSpec string) error

	// Revoke removes permSpec for user in tenant.  Revoking a spec the user
	// does not hold is not an error.
	Revoke(ctx context.Context, tenant, user, permSpec string) error

	// GetPermissions returns the permissions user holds on systemId.
	GetPermissions(ctx context.Context, tenant, user, systemId string) ([]Permission, error)

	// IsAdmin returns true if user holds the tenant admin role.
	IsAdmin(ctx context.Context, tenant, user string) (bool, error)

	// HasPrivilege returns true if systemId is shared with user at the given
	// privilege.  A public share satisfies the check for every user.
	HasPrivilege(ctx context.Context, tenant, user, systemId string, priv Privilege) (bool, error)

	// ShareResource records a share of systemId with grantee at the given
	// privilege.
	ShareResource(ctx context.Context, tenant, grantee, systemId string, priv Privilege) error

	// DeleteShare removes a share of systemId with grantee at the given
	// privilege.
	DeleteShare(ctx context.Context, tenant, grantee, systemId string, priv Privilege) error

	// GetShares returns all share records for systemId.
	GetShares(ctx context.Context, tenant, systemId string) ([]ShareRecord, error)
}
