// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Err provides the ability to specify a Msg, Op, Code and Wrapped error.
// We've chosen Err over Error for the identifier to support the easy embedding
// of Errs.  Errs can be embedded without a conflict between the embedded Err
// and Err.Error().
type Err struct {
	// Code is the error's code, which can be used to get the error's
	// errorCodeInfo, which contains the error's Kind and Message
	Code Code

	// Msg for the error
	Msg string

	// Op represents the operation raising/propagating an error and is optional
	Op Op

	// Wrapped is the error which this Err wraps and will be nil if there's no
	// error to wrap.
	Wrapped error
}

// E creates a new Err with provided code and supports the options of:
//
// * WithOp() - allows you to specify an optional Op (operation)
//
// * WithMsg() - allows you to specify an optional error msg, if the default
// msg for the error Code is not sufficient
//
// * WithWrap() - allows you to specify an error to wrap
func E(ctx context.Context, opt ...Option) error {
	opts := GetOpts(opt...)
	return &Err{
		Code:    opts.withCode,
		Op:      opts.withOp,
		Wrapped: opts.withErrWrapped,
		Msg:     opts.withErrMsg,
	}
}

// New creates a new Err with provided code, op and msg.  It supports the
// option of WithWrap() which allows you to specify an error to wrap.  The
// ctx is not currently used, but is in the signature so we can pass the
// request context through in the future without changing every call site.
func New(ctx context.Context, c Code, op Op, msg string, opt ...Option) error {
	opt = append(opt, WithOp(op), WithCode(c), WithMsg(msg))
	return E(ctx, opt...)
}

// Wrap creates a new Err from the provided err and op, preserving the Code
// from the originating error if possible.  It supports the options of:
//
// * WithMsg() - allows you to specify an optional error msg
//
// * WithCode() - allows you to override the Code of the originating error
func Wrap(ctx context.Context, e error, op Op, opt ...Option) error {
	opts := GetOpts(opt...)
	if opts.withCode == Unknown {
		var err *Err
		if errors.As(e, &err) {
			opts.withCode = err.Code
		}
	}
	opt = append(opt, WithOp(op), WithWrap(e), WithCode(opts.withCode))
	return E(ctx, opt...)
}

// Convert converts a raw error from an external system (the permission
// authority, the secret store, the record store) into an Err with an
// Unavailable code, unless it's already an Err in which case it's returned
// as is.
func Convert(e error) error {
	if e == nil {
		return nil
	}
	var alreadyConverted *Err
	if errors.As(e, &alreadyConverted) {
		return alreadyConverted
	}
	return &Err{
		Code:    Unavailable,
		Msg:     e.Error(),
		Wrapped: e,
	}
}

// Info about the Err
func (e *Err) Info() Info {
	if e == nil {
		return errorCodeInfo[Unknown]
	}
	return e.Code.Info()
}

// Error satisfies the error interface and returns a string representation of
// the Err
func (e *Err) Error() string {
	var s strings.Builder
	if e.Op != "" {
		join(&s, ": ", string(e.Op))
	}
	if e.Msg != "" {
		join(&s, ": ", e.Msg)
	}

	if info, ok := errorCodeInfo[e.Code]; ok {
		if e.Msg == "" {
			join(&s, ": ", info.Message) // provide a default.
			join(&s, ", ", info.Kind.String())
		} else {
			join(&s, ": ", info.Kind.String())
		}
	}
	join(&s, ": ", fmt.Sprintf("error #%d", e.Code))

	if e.Wrapped != nil {
		join(&s, ": ", e.Wrapped.Error())
	}
	return s.String()
}

func join(str *strings.Builder, delim string, s string) {
	if str.Len() == 0 {
		_, _ = str.WriteString(s)
		return
	}
	_, _ = str.WriteString(delim + s)
}

// Unwrap implements the errors.Unwrap interface and allows callers to use the
// errors.Is() and errors.As() functions effectively for any wrapped errors.
func (e *Err) Unwrap() error {
	return e.Wrapped
}
