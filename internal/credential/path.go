// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package credential

import "fmt"

// Path addresses one secret entry in the secret store.  The scope segment
// keeps static and dynamic credentials apart: a static username and a Tapis
// username spelled identically never collide because they live under
// different scope tokens.
type Path struct {
	Tenant     string
	SystemId   string
	Static     bool
	TargetUser string
	KeyType    KeyType
}

const (
	staticScope  = "static"
	dynamicScope = "dynamic"

	// scopeSeparator joins the scope and target user into one path segment.
	scopeSeparator = "+"
)

// ScopeToken returns the "<static|dynamic>+<targetUser>" segment.
func (p Path) ScopeToken() string {
	scope := dynamicScope
	if p.Static {
		scope = staticScope
	}
	return scope + scopeSeparator + p.TargetUser
}

// String returns the full secret path.
func (p Path) String() string {
	return fmt.Sprintf("tapis/tenant/%s/system/%s/user/%s/%s",
		p.Tenant, p.SystemId, p.ScopeToken(), p.KeyType)
}

// WithKeyType returns a copy of the path addressing a different key type.
func (p Path) WithKeyType(k KeyType) Path {
	p.KeyType = k
	return p
}
