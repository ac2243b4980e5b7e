// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package event provides the structured eventing used across the service:
// error events, system events and audit events for authorization decisions.
// Events flow through an eventlogger broker with a JSON sink; when no eventer
// has been configured an hclog logger is used as a fallback so events are
// never silently dropped.
package event

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// Op represents an operation (package.function).
type Op string

// Id represents a unique event id.
type Id string

// Type represents the event's type
type Type string

const (
	ErrorType  Type = "error"
	SystemType Type = "system"
	AuditType  Type = "audit"
)

var ErrInvalidParameter = errors.New("invalid parameter")

// errorVersion defines the version of error events
const errorVersion = "v0.1"

// auditVersion defines the version of audit events
const auditVersion = "v0.1"

// sysVersion defines the version of system events
const sysVersion = "v0.1"

type err struct {
	Error   string         `json:"error"`
	Id      Id             `json:"id,omitempty"`
	Version string         `json:"version"`
	Op      Op             `json:"op,omitempty"`
	Info    map[string]any `json:"info,omitempty"`
}

// EventType is required for all event types by the eventlogger broker
func (e *err) EventType() string { return string(ErrorType) }

func newError(fromOperation Op, e error, opt ...Option) (*err, error) {
	const op = "event.newError"
	if fromOperation == "" {
		return nil, fmt.Errorf("%s: missing operation: %w", op, ErrInvalidParameter)
	}
	if e == nil {
		return nil, fmt.Errorf("%s: missing error: %w", op, ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	if opts.withId == "" {
		id, err := NewId(string(ErrorType))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		opts.withId = id
	}
	return &err{
		Id:      Id(opts.withId),
		Op:      fromOperation,
		Version: errorVersion,
		Info:    opts.withInfo,
		Error:   e.Error(),
	}, nil
}

type sysEvent struct {
	Id      Id             `json:"id,omitempty"`
	Version string         `json:"version"`
	Op      Op             `json:"op,omitempty"`
	Data    map[string]any `json:"data"`
}

// EventType is required for all event types by the eventlogger broker
func (e *sysEvent) EventType() string { return string(SystemType) }

func newSysEvent(fromOperation Op, msg string, args ...any) (*sysEvent, error) {
	const op = "event.newSysEvent"
	if fromOperation == "" {
		return nil, fmt.Errorf("%s: missing operation: %w", op, ErrInvalidParameter)
	}
	id, err := NewId(string(SystemType))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	data := map[string]any{"msg": msg}
	for i := 0; i+1 < len(args); i += 2 {
		k, ok := args[i].(string)
		if !ok {
			k = fmt.Sprintf("%v", args[i])
		}
		data[k] = args[i+1]
	}
	return &sysEvent{
		Id:      Id(id),
		Version: sysVersion,
		Op:      fromOperation,
		Data:    data,
	}, nil
}

// audit events record every authorization decision so denials can be traced
// back to the actor, operation and resource involved.
type audit struct {
	Id      Id             `json:"id,omitempty"`
	Version string         `json:"version"`
	Op      Op             `json:"op,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventType is required for all event types by the eventlogger broker
func (a *audit) EventType() string { return string(AuditType) }

func newAudit(fromOperation Op, opt ...Option) (*audit, error) {
	const op = "event.newAudit"
	if fromOperation == "" {
		return nil, fmt.Errorf("%s: missing operation: %w", op, ErrInvalidParameter)
	}
	opts := getOpts(opt...)
	if opts.withId == "" {
		id, err := NewId(string(AuditType))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		opts.withId = id
	}
	return &audit{
		Id:      Id(opts.withId),
		Version: auditVersion,
		Op:      fromOperation,
		Data:    opts.withInfo,
	}, nil
}

// NewId creates a new Id with the given prefix.
func NewId(prefix string) (string, error) {
	const op = "event.NewId"
	if prefix == "" {
		return "", fmt.Errorf("%s: missing prefix: %w", op, ErrInvalidParameter)
	}
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, err)
	}
	return fmt.Sprintf("%s_%s", prefix, id), nil
}
