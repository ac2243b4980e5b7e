// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package credential brokers credentials between callers and the external
// secret store: it resolves the static/dynamic secret path for a system and
// target user, verifies credentials against the live remote host, issues TMS
// keys, and maintains the Tapis-user to host-login-user mapping.
package credential

import "context"

// SecretStore is the client contract for the external secrets vault.  Secrets
// are flat string-to-string maps addressed by Path.  A read of a missing
// secret returns nil, nil: absence is a normal outcome the broker must be
// able to distinguish from a failed check.
type SecretStore interface {
	// Write stores data at path, replacing any existing version.
	Write(ctx context.Context, path Path, data map[string]string) error

	// Read returns the data at path, or nil, nil when no secret exists there.
	Read(ctx context.Context, path Path) (map[string]string, error)

	// Exists reports whether a secret exists at path using a metadata-only
	// read, never fetching the secret material itself.
	Exists(ctx context.Context, path Path) (bool, error)

	// Destroy permanently removes the secret at path.  Destroying a missing
	// secret is not an error.
	Destroy(ctx context.Context, path Path) error
}
