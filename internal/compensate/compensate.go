// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package compensate provides an undo log for multi-step operations that span
// services without a shared transaction.  Each forward step registers a
// compensating action; on failure the log runs them in reverse order.
package compensate

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/tapis-project/systems/internal/event"
)

// Action undoes one forward step.
type Action func(ctx context.Context) error

type step struct {
	name string
	fn   Action
}

// Log accumulates compensating actions for an in-flight operation.  Not safe
// for concurrent use; a Log belongs to a single request.
type Log struct {
	steps []step
}

// New creates an empty Log.
func New() *Log {
	return &Log{}
}

// Push registers the compensating action for a forward step that just
// succeeded.  The name identifies the step in warnings.
func (l *Log) Push(name string, fn Action) {
	l.steps = append(l.steps, step{name: name, fn: fn})
}

// Len returns the number of registered actions.
func (l *Log) Len() int {
	return len(l.steps)
}

// Run executes all registered actions in reverse order.  Every action is
// attempted even when earlier ones fail; failures are collected and returned
// so callers can attach them to the original error as warnings.  Run never
// panics the original failure away: callers must keep the triggering error
// and treat the returned error as supplementary.
func (l *Log) Run(ctx context.Context) error {
	const op = "compensate.(Log).Run"
	var result *multierror.Error
	for i := len(l.steps) - 1; i >= 0; i-- {
		s := l.steps[i]
		if err := s.fn(ctx); err != nil {
			event.WriteError(ctx, op, err,
				event.WithInfo(map[string]any{"msg": "compensating action failed", "step": s.name}))
			result = multierror.Append(result, fmt.Errorf("rollback of %s failed: %w", s.name, err))
		}
	}
	l.steps = nil
	return result.ErrorOrNil()
}
