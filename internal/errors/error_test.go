// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package errors_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapis-project/systems/internal/errors"
)

func TestNew(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tests := []struct {
		name     string
		code     errors.Code
		op       errors.Op
		msg      string
		opt      []errors.Option
		want     error
		wantIsFn func(error) bool
	}{
		{
			name:     "forbidden",
			code:     errors.Forbidden,
			op:       "authz.(Engine).CheckAuth",
			msg:      "not authorized",
			wantIsFn: errors.IsForbiddenError,
		},
		{
			name:     "invalid-parameter",
			code:     errors.InvalidParameter,
			op:       "credential.(Broker).CreateCredential",
			msg:      "missing target user",
			wantIsFn: errors.IsInvalidParameterError,
		},
		{
			name:     "not-found",
			code:     errors.RecordNotFound,
			op:       "store.(Repository).LookupSystem",
			msg:      "system not found",
			wantIsFn: errors.IsNotFoundError,
		},
		{
			name:     "unavailable-with-wrap",
			code:     errors.Unavailable,
			op:       "perms.(Client).Grant",
			msg:      "grant call failed",
			opt:      []errors.Option{errors.WithWrap(stderrors.New("connection refused"))},
			wantIsFn: errors.IsUnavailableError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			err := errors.New(ctx, tt.code, tt.op, tt.msg, tt.opt...)
			require.Error(err)
			assert.True(tt.wantIsFn(err))

			var e *errors.Err
			require.True(errors.As(err, &e))
			assert.Equal(tt.code, e.Code)
			assert.Equal(tt.op, e.Op)
			assert.Equal(tt.msg, e.Msg)
			assert.Contains(err.Error(), tt.msg)
			assert.Contains(err.Error(), string(tt.op))
		})
	}
}

func TestWrap(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("preserves-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		inner := errors.New(ctx, errors.Forbidden, "authz.checkOwner", "not the owner")
		outer := errors.Wrap(ctx, inner, "lifecycle.(Service).CreateSystem")
		require.Error(outer)
		assert.True(errors.IsForbiddenError(outer))
		assert.True(errors.Is(outer, inner))
	})

	t.Run("override-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		inner := stderrors.New("dial tcp: connection refused")
		outer := errors.Wrap(ctx, inner, "perms.(Client).IsPermitted", errors.WithCode(errors.Unavailable))
		require.Error(outer)
		assert.True(errors.IsUnavailableError(outer))
		assert.True(errors.Is(outer, inner))
	})

	t.Run("with-msg", func(t *testing.T) {
		assert := assert.New(t)
		inner := errors.New(ctx, errors.Unavailable, "vault.(secretStore).Write", "write failed")
		outer := errors.Wrap(ctx, inner, "credential.(Broker).CreateCredential", errors.WithMsg("unable to store password secret"))
		assert.Contains(outer.Error(), "unable to store password secret")
		assert.Contains(outer.Error(), "write failed")
	})
}

func TestConvert(t *testing.T) {
	t.Parallel()

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, errors.Convert(nil))
	})
	t.Run("raw-error", func(t *testing.T) {
		err := errors.Convert(stderrors.New("i/o timeout"))
		assert.True(t, errors.IsUnavailableError(err))
	})
	t.Run("already-converted", func(t *testing.T) {
		in := errors.New(context.Background(), errors.RecordNotFound, "op", "missing")
		out := errors.Convert(in)
		assert.True(t, errors.IsNotFoundError(out))
	})
}

func TestMatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	inner := stderrors.New("dial tcp: connection refused")
	err := errors.New(ctx, errors.Unavailable, "perms.(Client).Grant", "grant call failed",
		errors.WithWrap(inner))

	tests := []struct {
		name     string
		template *errors.Template
		err      error
		want     bool
	}{
		{
			name:     "code",
			template: errors.T(errors.Unavailable),
			err:      err,
			want:     true,
		},
		{
			name:     "code-mismatch",
			template: errors.T(errors.Forbidden),
			err:      err,
			want:     false,
		},
		{
			name:     "op",
			template: errors.T(errors.Op("perms.(Client).Grant")),
			err:      err,
			want:     true,
		},
		{
			name:     "op-mismatch",
			template: errors.T(errors.Op("perms.(Client).Revoke")),
			err:      err,
			want:     false,
		},
		{
			name:     "msg",
			template: errors.T("grant call failed"),
			err:      err,
			want:     true,
		},
		{
			name:     "kind-without-code",
			template: errors.T(errors.External),
			err:      err,
			want:     true,
		},
		{
			name:     "kind-mismatch",
			template: errors.T(errors.Authorization),
			err:      err,
			want:     false,
		},
		{
			name:     "wrapped-error",
			template: errors.T(inner),
			err:      err,
			want:     true,
		},
		{
			name:     "code-and-op",
			template: errors.T(errors.Unavailable, errors.Op("perms.(Client).Grant")),
			err:      err,
			want:     true,
		},
		{
			name:     "matches-through-outer-wrap",
			template: errors.T(errors.Unavailable),
			err:      errors.Wrap(ctx, err, "authz.(Engine).CheckAuth"),
			want:     true,
		},
		{
			name:     "not-a-domain-error",
			template: errors.T(errors.Unavailable),
			err:      stderrors.New("plain"),
			want:     false,
		},
		{
			name:     "nil-error",
			template: errors.T(errors.Unavailable),
			err:      nil,
			want:     false,
		},
		{
			name:     "nil-template",
			template: nil,
			err:      err,
			want:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Match(tt.template, tt.err))
		})
	}
}
