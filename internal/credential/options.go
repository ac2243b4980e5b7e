// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package credential

import "time"

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
	withSkipCheck     bool
	withCreateTMSKeys bool
	withSSHDialer     SSHDialer
	withS3Factory     S3ClientFactory
	withDialTimeout   time.Duration
}

func getDefaultOptions() options {
	return options{
		withDialTimeout: defaultDialTimeout,
	}
}

// WithSkipCheck skips live connection verification during credential
// creation.
func WithSkipCheck(skip bool) Option {
	return func(o *options) {
		o.withSkipCheck = skip
	}
}

// WithCreateTMSKeys requests issuance of a TMS keypair during credential
// creation.
func WithCreateTMSKeys(create bool) Option {
	return func(o *options) {
		o.withCreateTMSKeys = create
	}
}

// WithSSHDialer overrides how SSH connections are opened during
// verification.  Used by tests to exercise classification without a live
// host.
func WithSSHDialer(d SSHDialer) Option {
	return func(o *options) {
		o.withSSHDialer = d
	}
}

// WithS3ClientFactory overrides how S3 clients are constructed during
// verification.
func WithS3ClientFactory(f S3ClientFactory) Option {
	return func(o *options) {
		o.withS3Factory = f
	}
}

// WithDialTimeout bounds every live verification connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.withDialTimeout = d
		}
	}
}
