// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package event

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hashicorp/eventlogger"
	"github.com/hashicorp/eventlogger/sinks/writer"
	"github.com/hashicorp/go-hclog"
)

// Eventer provides an interface to the eventlogger broker for sending
// error, system and audit events.
type Eventer struct {
	broker *eventlogger.Broker
	logger hclog.Logger
}

var (
	sysEventer     *Eventer
	sysEventerOnce sync.Once
)

// InitSysEventer provides a mechanism to initialize a "system wide" eventer
// singleton. The first call wins; subsequent calls are ignored.
func InitSysEventer(e *Eventer) {
	sysEventerOnce.Do(func() {
		sysEventer = e
	})
}

// SysEventer returns the "system wide" eventer if one has been initialized,
// otherwise it returns nil.
func SysEventer() *Eventer {
	return sysEventer
}

// NewEventer creates a new Eventer with a JSON formatter node and a writer
// sink for each event type.  If w is nil, os.Stderr is used.
func NewEventer(logger hclog.Logger, w io.Writer) (*Eventer, error) {
	const op = "event.NewEventer"
	if logger == nil {
		return nil, fmt.Errorf("%s: missing logger: %w", op, ErrInvalidParameter)
	}
	if w == nil {
		w = os.Stderr
	}
	broker, err := eventlogger.NewBroker()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	fmtId := eventlogger.NodeID("json-formatter")
	if err := broker.RegisterNode(fmtId, &eventlogger.JSONFormatter{}); err != nil {
		return nil, fmt.Errorf("%s: unable to register formatter node: %w", op, err)
	}
	sinkId := eventlogger.NodeID("stderr-sink")
	if err := broker.RegisterNode(sinkId, &writer.Sink{Writer: w, Format: eventlogger.JSONFormat}); err != nil {
		return nil, fmt.Errorf("%s: unable to register sink node: %w", op, err)
	}
	for _, t := range []Type{ErrorType, SystemType, AuditType} {
		err := broker.RegisterPipeline(eventlogger.Pipeline{
			EventType:  eventlogger.EventType(t),
			PipelineID: eventlogger.PipelineID(fmt.Sprintf("%s-pipeline", t)),
			NodeIDs:    []eventlogger.NodeID{fmtId, sinkId},
		})
		if err != nil {
			return nil, fmt.Errorf("%s: unable to register %s pipeline: %w", op, t, err)
		}
	}
	return &Eventer{
		broker: broker,
		logger: logger,
	}, nil
}

func (e *Eventer) writeError(ctx context.Context, ev *err) error {
	const op = "event.(Eventer).writeError"
	if _, err := e.broker.Send(ctx, eventlogger.EventType(ErrorType), ev); err != nil {
		e.logger.Error("unable to send error event", "operation", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (e *Eventer) writeSysEvent(ctx context.Context, ev *sysEvent) error {
	const op = "event.(Eventer).writeSysEvent"
	if _, err := e.broker.Send(ctx, eventlogger.EventType(SystemType), ev); err != nil {
		e.logger.Error("unable to send system event", "operation", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (e *Eventer) writeAudit(ctx context.Context, ev *audit) error {
	const op = "event.(Eventer).writeAudit"
	if _, err := e.broker.Send(ctx, eventlogger.EventType(AuditType), ev); err != nil {
		e.logger.Error("unable to send audit event", "operation", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
