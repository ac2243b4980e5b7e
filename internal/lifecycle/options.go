// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package lifecycle

// Option configures a lifecycle operation.
type Option func(*options)

// options holds the operation settings.
type options struct {
	withSkipCredentialCheck bool
	withImpersonationId     string
}

func getOpts(opt ...Option) options {
	opts := options{}
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// WithSkipCredentialCheck bypasses live verification of a credential supplied
// at system creation time.
func WithSkipCredentialCheck(skip bool) Option {
	return func(o *options) {
		o.withSkipCredentialCheck = skip
	}
}

// WithImpersonation runs the operation's authorization check as id instead of
// the on-behalf-of user.  The engine confines impersonation to tenant admins
// and the allow-listed services.
func WithImpersonation(id string) Option {
	return func(o *options) {
		o.withImpersonationId = id
	}
}
