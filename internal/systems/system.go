// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package systems holds the domain types for registered remote systems and
// the credentials used to reach them.
package systems

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-secure-stdlib/strutil"
)

// DynamicEffectiveUser is the sentinel meaning the effective user is resolved
// per caller to their Tapis username, possibly remapped through a login-user
// mapping.
const DynamicEffectiveUser = "${apiUserId}"

// PublicGrantee is the reserved grantee name used when a system is shared
// publicly.
const PublicGrantee = "~public"

// Type defines a type for the kind of remote resource a system describes.
type Type int

const (
	UnknownType Type = 0
	Linux       Type = 1
	S3          Type = 2
	Irods       Type = 3
	Globus      Type = 4
)

var TypeMap = map[string]Type{
	"unknown": UnknownType,
	"LINUX":   Linux,
	"S3":      S3,
	"IRODS":   Irods,
	"GLOBUS":  Globus,
}

func (t Type) String() string {
	return [...]string{
		"unknown",
		"LINUX",
		"S3",
		"IRODS",
		"GLOBUS",
	}[t]
}

// AuthnMethod defines a type for the authentication methods a credential can
// carry.
type AuthnMethod int

const (
	UnknownMethod AuthnMethod = 0
	Password      AuthnMethod = 1
	PKIKeys       AuthnMethod = 2
	AccessKey     AuthnMethod = 3
	Token         AuthnMethod = 4
	TMSKeys       AuthnMethod = 5
	Cert          AuthnMethod = 6
)

var AuthnMethodMap = map[string]AuthnMethod{
	"unknown":    UnknownMethod,
	"PASSWORD":   Password,
	"PKI_KEYS":   PKIKeys,
	"ACCESS_KEY": AccessKey,
	"TOKEN":      Token,
	"TMS_KEYS":   TMSKeys,
	"CERT":       Cert,
}

func (m AuthnMethod) String() string {
	return [...]string{
		"unknown",
		"PASSWORD",
		"PKI_KEYS",
		"ACCESS_KEY",
		"TOKEN",
		"TMS_KEYS",
		"CERT",
	}[m]
}

// reservedIds are system ids that collide with service route segments and can
// never be registered.
var reservedIds = []string{
	"healthcheck",
	"readycheck",
	"search",
	"shared",
	"credential",
	"schedulerProfile",
}

// System describes a registered remote resource.  A system with Deleted=true
// is invisible to ordinary reads.
type System struct {
	Tenant             string
	Id                 string
	Description        string
	SystemType         Type
	Owner              string
	Host               string
	Port               int
	EffectiveUserId    string
	DefaultAuthnMethod AuthnMethod
	BucketName         string
	RootDir            string
	DtnSystemId        string
	ParentId           string
	CanExec            bool
	Enabled            bool
	Deleted            bool
}

// IsDynamicEffectiveUser returns true when the system resolves its effective
// user per caller.
func (s *System) IsDynamicEffectiveUser() bool {
	return s.EffectiveUserId == DynamicEffectiveUser
}

// Validate checks attribute and relationship constraints and returns all
// violations found, not just the first, so a caller can report them together.
func (s *System) Validate() []error {
	var errs []error
	if s.Tenant == "" {
		errs = append(errs, fmt.Errorf("attribute tenant must be set"))
	}
	if s.Id == "" {
		errs = append(errs, fmt.Errorf("attribute id must be set"))
	} else if strutil.StrListContains(reservedIds, s.Id) {
		errs = append(errs, fmt.Errorf("id %q is reserved and cannot be used for a system", s.Id))
	}
	if s.Owner == "" {
		errs = append(errs, fmt.Errorf("attribute owner must be set"))
	}
	if s.Host == "" {
		errs = append(errs, fmt.Errorf("attribute host must be set"))
	}
	if s.SystemType == UnknownType {
		errs = append(errs, fmt.Errorf("attribute systemType must be set"))
	}
	// effectiveUserId is either a non-empty literal or exactly the dynamic
	// sentinel; a partially substituted value is always a mistake.
	switch {
	case s.EffectiveUserId == "":
		errs = append(errs, fmt.Errorf("attribute effectiveUserId must be set"))
	case s.EffectiveUserId != DynamicEffectiveUser && strings.Contains(s.EffectiveUserId, "${"):
		errs = append(errs, fmt.Errorf("effectiveUserId %q contains an unresolved variable", s.EffectiveUserId))
	}
	if s.SystemType == S3 {
		if s.BucketName == "" {
			errs = append(errs, fmt.Errorf("attribute bucketName must be set for a system of type S3"))
		}
		if s.CanExec {
			errs = append(errs, fmt.Errorf("a system of type S3 cannot support exec"))
		}
	}
	if s.DtnSystemId == s.Id && s.Id != "" {
		errs = append(errs, fmt.Errorf("dtnSystemId cannot reference the system itself"))
	}
	return errs
}
