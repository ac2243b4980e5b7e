// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package perms defines the fine-grained permission model for systems and the
// client contract for the external permission authority (the security
// kernel).  Permission specs use the canonical string encoding
// "system:<tenant>:<PERM|*>:<systemId>" and must stay bit-compatible with the
// authority's stored grants.
package perms

import (
	"fmt"
	"strings"
)

// Permission defines a type for the fine-grained permissions that can be
// granted to a user on a system.
type Permission int

const (
	UnknownPermission Permission = 0
	Read              Permission = 1
	Modify            Permission = 2
	Execute           Permission = 3
)

var PermissionMap = map[string]Permission{
	"unknown": UnknownPermission,
	"READ":    Read,
	"MODIFY":  Modify,
	"EXECUTE": Execute,
}

func (p Permission) String() string {
	return [...]string{
		"unknown",
		"READ",
		"MODIFY",
		"EXECUTE",
	}[p]
}

// Privilege defines a type for the privileges a share record carries.  Shares
// always grant and revoke Read and Execute together.
type Privilege int

const (
	UnknownPrivilege Privilege = 0
	SharedRead       Privilege = 1
	SharedExecute    Privilege = 2
)

func (p Privilege) String() string {
	return [...]string{
		"unknown",
		"READ",
		"EXECUTE",
	}[p]
}

// ShareRecord describes one share relationship for a system.  A Grantee of
// systems.PublicGrantee means the system is shared publicly.
type ShareRecord struct {
	Tenant    string
	SystemId  string
	Grantee   string
	Privilege Privilege
}

const permSpecPrefix = "system"

// Wildcard matches any permission in a spec.
const Wildcard = "*"

// SpecStr returns the canonical permission spec for one permission on one
// system.
func SpecStr(tenant string, p Permission, systemId string) string {
	return fmt.Sprintf("%s:%s:%s:%s", permSpecPrefix, tenant, p.String(), systemId)
}

// WildcardSpecStr returns the permission spec matching every permission on
// one system.
func WildcardSpecStr(tenant, systemId string) string {
	return fmt.Sprintf("%s:%s:%s:%s", permSpecPrefix, tenant, Wildcard, systemId)
}

// SpecStrs returns the canonical permission specs for a set of permissions on
// one system, in the order given.
func SpecStrs(tenant string, ps []Permission, systemId string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, SpecStr(tenant, p, systemId))
	}
	return out
}

// ParseSpecStr parses a canonical permission spec.  It returns the tenant,
// permission (UnknownPermission for the wildcard) and system id.
func ParseSpecStr(spec string) (tenant string, p Permission, systemId string, err error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 4 || parts[0] != permSpecPrefix {
		return "", UnknownPermission, "", fmt.Errorf("invalid permission spec %q", spec)
	}
	if parts[2] != Wildcard {
		var ok bool
		if p, ok = PermissionMap[parts[2]]; !ok {
			return "", UnknownPermission, "", fmt.Errorf("invalid permission %q in spec %q", parts[2], spec)
		}
	}
	return parts[1], p, parts[3], nil
}

// ContainsPermission reports whether ps contains p.
func ContainsPermission(ps []Permission, p Permission) bool {
	for _, have := range ps {
		if have == p {
			return true
		}
	}
	return false
}
