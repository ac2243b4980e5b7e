// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package authz implements the central policy decision point for operations
// against systems.  Decisions compose ownership, the tenant admin role,
// fine-grained permission grants, public and user sharing, service identity
// trust and impersonation, and always fail closed.
package authz

// ServiceIdentity is this service's own immutable identity.  It is injected
// at construction rather than read from process-wide state.
type ServiceIdentity struct {
	Tenant string
	User   string
}

// Caller carries the identities of an inbound request: the JWT identity of
// the caller itself and the on-behalf-of (obo) identity the caller is acting
// for.  For an end user the two are the same and IsService is false.
type Caller struct {
	JwtTenant string
	JwtUser   string
	IsService bool
	OboTenant string
	OboUser   string
}

// IsActingAsSelf returns true when a service's own identity equals the
// on-behalf-of identity, i.e. the service is not proxying for anyone.
func (c Caller) IsActingAsSelf() bool {
	return c.IsService && c.JwtTenant == c.OboTenant && c.JwtUser == c.OboUser
}
