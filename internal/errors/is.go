// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

import "errors"

func isCode(err error, c Code) bool {
	if err == nil {
		return false
	}
	var e *Err
	if errors.As(err, &e) {
		return e.Code == c
	}
	return false
}

// IsNotFoundError returns a boolean indicating whether the error is known to
// report a "record not found" condition.
func IsNotFoundError(err error) bool {
	return isCode(err, RecordNotFound)
}

// IsForbiddenError returns a boolean indicating whether the error is known to
// report an authorization denial.
func IsForbiddenError(err error) bool {
	return isCode(err, Forbidden)
}

// IsInvalidParameterError returns a boolean indicating whether the error is
// known to report a missing or malformed caller-supplied field.
func IsInvalidParameterError(err error) bool {
	return isCode(err, InvalidParameter)
}

// IsUnavailableError returns a boolean indicating whether the error is known
// to report a failed call to an external collaborator (permission authority,
// secret store, record store).
func IsUnavailableError(err error) bool {
	return isCode(err, Unavailable)
}

// IsInvalidSystemStateError returns a boolean indicating whether the error is
// known to report an attribute or relationship constraint violation.
func IsInvalidSystemStateError(err error) bool {
	return isCode(err, InvalidSystemState)
}
