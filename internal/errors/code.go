// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

// Code specifies a code for the error.
type Code uint32

// String will return the Code's Info.Message
func (c Code) String() string {
	return c.Info().Message
}

// Info will look up the Code's Info.  If the Info is not found, it will return
// Info for an Unknown Code.
func (c Code) Info() Info {
	if info, ok := errorCodeInfo[c]; ok {
		return info
	}
	return errorCodeInfo[Unknown]
}

const (
	Unknown Code = 0 // Unknown will be equal to a zero value for Codes

	// General function errors are reserved Codes 100-999
	InvalidParameter Code = 100 // InvalidParameter represents a caller-supplied required field that is missing or malformed
	Internal         Code = 500 // Internal represents a condition where policy cannot be evaluated, e.g. an unresolvable owner

	// Record errors are reserved Codes 1000-1999
	RecordNotFound     Code = 1100 // RecordNotFound represents that a record/row was not found matching the criteria
	InvalidSystemState Code = 1200 // InvalidSystemState represents a write that would violate an attribute or relationship constraint

	// Authorization errors are reserved Codes 2000-2999
	Forbidden Code = 2000 // Forbidden represents an authorization denial for a resolvable policy reason

	// External system errors are reserved Codes 3000-3999
	Unavailable     Code = 3000 // Unavailable represents a failed call to the permission authority, secret store, or record store
	VaultEmptyField Code = 3001 // VaultEmptyField represents a secret read that returned data with a missing or non-string field
)
