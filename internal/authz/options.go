// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package authz

import "github.com/tapis-project/systems/internal/perms"

// getOpts - iterate the inbound Options and return a struct
func getOpts(opt ...Option) options {
	opts := getDefaultOptions()
	for _, o := range opt {
		if o != nil {
			o(&opts)
		}
	}
	return opts
}

// Option - how Options are passed as arguments
type Option func(*options)

// options = how options are represented
type options struct {
	withOwner               string
	withTargetUser          string
	withPerms               []perms.Permission
	withImpersonationId     string
	withSharedAppCtxGrantor string
	withResourceTenant      string
}

func getDefaultOptions() options {
	return options{}
}

// WithOwner supplies the system owner when the caller already knows it,
// saving the engine a record-store lookup.
func WithOwner(owner string) Option {
	return func(o *options) {
		o.withOwner = owner
	}
}

// WithTargetUser supplies the user a permission or credential operation is
// aimed at.
func WithTargetUser(user string) Option {
	return func(o *options) {
		o.withTargetUser = user
	}
}

// WithPerms supplies the permission set being granted or revoked.
func WithPerms(ps []perms.Permission) Option {
	return func(o *options) {
		o.withPerms = ps
	}
}

// WithImpersonationId requests that the decision be evaluated as if made by
// a different Tapis user.  Only admin humans and allow-listed services may
// use it.
func WithImpersonationId(id string) Option {
	return func(o *options) {
		o.withImpersonationId = id
	}
}

// WithSharedAppCtxGrantor declares a shared application context and names the
// grantor whose access rights may also satisfy the check.  Only allow-listed
// services may set it.
func WithSharedAppCtxGrantor(grantor string) Option {
	return func(o *options) {
		o.withSharedAppCtxGrantor = grantor
	}
}

// WithResourceTenant evaluates the decision against a tenant other than the
// on-behalf-of tenant.  Only allow-listed services may set it.
func WithResourceTenant(tenant string) Option {
	return func(o *options) {
		o.withResourceTenant = tenant
	}
}
