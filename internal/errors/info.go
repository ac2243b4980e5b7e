// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

// Info contains details of the specific error code
type Info struct {
	// Kind specifies the kind of error (unknown, parameter, integrity, etc).
	Kind Kind

	// Message provides a default message for the error code
	Message string
}

// errorCodeInfo provides a map of unique Codes (IDs) to their
// corresponding Kind and a default Message.
var errorCodeInfo = map[Code]Info{
	Unknown: {
		Message: "unknown",
		Kind:    Other,
	},
	InvalidParameter: {
		Message: "invalid parameter",
		Kind:    Parameter,
	},
	Internal: {
		Message: "internal error",
		Kind:    Other,
	},
	RecordNotFound: {
		Message: "record not found",
		Kind:    Search,
	},
	InvalidSystemState: {
		Message: "system state was not valid for the requested operation",
		Kind:    Integrity,
	},
	Forbidden: {
		Message: "forbidden",
		Kind:    Authorization,
	},
	Unavailable: {
		Message: "external system unavailable",
		Kind:    External,
	},
	VaultEmptyField: {
		Message: "vault secret field is empty",
		Kind:    Integrity,
	},
}
