// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package event

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

type key int

const eventerKey key = iota

// NewEventerContext will return a context containing a value of the provided
// Eventer
func NewEventerContext(ctx context.Context, eventer *Eventer) (context.Context, error) {
	const op = "event.NewEventerContext"
	if ctx == nil {
		return nil, fmt.Errorf("%s: missing context: %w", op, ErrInvalidParameter)
	}
	if eventer == nil {
		return nil, fmt.Errorf("%s: missing eventer: %w", op, ErrInvalidParameter)
	}
	return context.WithValue(ctx, eventerKey, eventer), nil
}

// EventerFromContext attempts to get the eventer value from the context
// provided
func EventerFromContext(ctx context.Context) (*Eventer, bool) {
	if ctx == nil {
		return nil, false
	}
	eventer, ok := ctx.Value(eventerKey).(*Eventer)
	return eventer, ok
}

func fallbackLogger() hclog.Logger {
	return hclog.Default()
}

func eventerFromCtxOrSys(ctx context.Context) *Eventer {
	if eventer, ok := EventerFromContext(ctx); ok {
		return eventer
	}
	return SysEventer()
}

// WriteError will write an error event.  It will first check the ctx for an
// eventer, then try event.SysEventer() and if no eventer can be found an
// hclog.Logger is used so the error is not lost.
//
// The options WithId and WithInfo are supported and all other options are
// ignored.
func WriteError(ctx context.Context, caller Op, e error, opt ...Option) {
	const op = "event.WriteError"
	eventer := eventerFromCtxOrSys(ctx)
	if eventer == nil {
		fallbackLogger().Error(fmt.Sprintf("%s: no eventer available to write error: %v", op, e))
		return
	}
	ev, err := newError(caller, e, opt...)
	if err != nil {
		eventer.logger.Error(fmt.Sprintf("%s: unable to create new error to write error: %v", op, e))
		return
	}
	if err := eventer.writeError(ctx, ev); err != nil {
		eventer.logger.Error(fmt.Sprintf("%s: unable to write error: %v", op, e))
	}
}

// WriteSysEvent will write a sysevent.  It will first check the ctx for an
// eventer, then try event.SysEventer() and if no eventer can be found an
// hclog.Logger is used so the event is not lost.  This function should never
// be used when sending events while handling API requests.
func WriteSysEvent(ctx context.Context, caller Op, msg string, args ...any) {
	const op = "event.WriteSysEvent"
	eventer := eventerFromCtxOrSys(ctx)
	if eventer == nil {
		fallbackLogger().Info(fmt.Sprintf("%s: no eventer available to write sysevent: %s", op, msg))
		return
	}
	ev, err := newSysEvent(caller, msg, args...)
	if err != nil {
		eventer.logger.Error(fmt.Sprintf("%s: unable to create new sysevent: %v", op, err))
		return
	}
	if err := eventer.writeSysEvent(ctx, ev); err != nil {
		eventer.logger.Error(fmt.Sprintf("%s: unable to write sysevent: %v", op, err))
	}
}

// WriteAudit will write an audit event carrying the authorization decision
// details provided via WithInfo.  It will first check the ctx for an eventer,
// then try event.SysEventer() and if no eventer can be found an hclog.Logger
// is used so the audit record is not lost.
func WriteAudit(ctx context.Context, caller Op, opt ...Option) {
	const op = "event.WriteAudit"
	eventer := eventerFromCtxOrSys(ctx)
	if eventer == nil {
		opts := getOpts(opt...)
		fallbackLogger().Info(fmt.Sprintf("%s: no eventer available to write audit event", op), "op", caller, "info", opts.withInfo)
		return
	}
	ev, err := newAudit(caller, opt...)
	if err != nil {
		eventer.logger.Error(fmt.Sprintf("%s: unable to create new audit event: %v", op, err))
		return
	}
	if err := eventer.writeAudit(ctx, ev); err != nil {
		eventer.logger.Error(fmt.Sprintf("%s: unable to write audit event: %v", op, err))
	}
}
