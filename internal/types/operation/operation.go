// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package operation defines the closed set of operations the authorization
// engine dispatches on.  Adding a member here forces every dispatch site to
// be revisited: the engine's switch is covered by a test asserting every
// member reaches a decision arm.
package operation

// Type defines a type for the operations performed against a system
type Type int

// not using iota intentionally, since the values appear in history records
const (
	Unknown                Type = 0
	Create                 Type = 1
	Read                   Type = 2
	Modify                 Type = 3
	Execute                Type = 4
	Delete                 Type = 5
	Undelete               Type = 6
	HardDelete             Type = 7
	Enable                 Type = 8
	Disable                Type = 9
	ChangeOwner            Type = 10
	GrantPerms             Type = 11
	RevokePerms            Type = 12
	GetPerms               Type = 13
	SetCred                Type = 14
	RemoveCred             Type = 15
	CheckCred              Type = 16
	GetCred                Type = 17
	SetAccessRefreshTokens Type = 18
	GetGlobusAuthInfo      Type = 19
)

var Map = map[string]Type{
	"unknown":                Unknown,
	"create":                 Create,
	"read":                   Read,
	"modify":                 Modify,
	"execute":                Execute,
	"delete":                 Delete,
	"undelete":               Undelete,
	"hardDelete":             HardDelete,
	"enable":                 Enable,
	"disable":                Disable,
	"changeOwner":            ChangeOwner,
	"grantPerms":             GrantPerms,
	"revokePerms":            RevokePerms,
	"getPerms":               GetPerms,
	"setCred":                SetCred,
	"removeCred":             RemoveCred,
	"checkCred":              CheckCred,
	"getCred":                GetCred,
	"setAccessRefreshTokens": SetAccessRefreshTokens,
	"getGlobusAuthInfo":      GetGlobusAuthInfo,
}

func (o Type) String() string {
	return [...]string{
		"unknown",
		"create",
		"read",
		"modify",
		"execute",
		"delete",
		"undelete",
		"hardDelete",
		"enable",
		"disable",
		"changeOwner",
		"grantPerms",
		"revokePerms",
		"getPerms",
		"setCred",
		"removeCred",
		"checkCred",
		"getCred",
		"setAccessRefreshTokens",
		"getGlobusAuthInfo",
	}[o]
}
