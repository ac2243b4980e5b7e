// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventer_WriteError(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	var buf bytes.Buffer
	eventer, err := NewEventer(hclog.NewNullLogger(), &buf)
	require.NoError(err)
	ctx, err := NewEventerContext(context.Background(), eventer)
	require.NoError(err)

	WriteError(ctx, "authz.(Engine).CheckAuth", errors.New("not authorized"), WithInfo(map[string]any{"system_id": "sys1"}))

	require.NotZero(buf.Len())
	var got map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &got))
	payload, ok := got["payload"].(map[string]any)
	require.True(ok)
	assert.Equal("authz.(Engine).CheckAuth", payload["op"])
	assert.Equal("not authorized", payload["error"])
}

func TestEventer_WriteAudit(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	var buf bytes.Buffer
	eventer, err := NewEventer(hclog.NewNullLogger(), &buf)
	require.NoError(err)
	ctx, err := NewEventerContext(context.Background(), eventer)
	require.NoError(err)

	WriteAudit(ctx, "authz.(Engine).CheckAuth", WithInfo(map[string]any{
		"user":      "carol",
		"operation": "read",
		"system_id": "sys1",
		"allowed":   false,
	}))

	require.NotZero(buf.Len())
	var got map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &got))
	payload, ok := got["payload"].(map[string]any)
	require.True(ok)
	data, ok := payload["data"].(map[string]any)
	require.True(ok)
	assert.Equal("carol", data["user"])
	assert.Equal(false, data["allowed"])
}

func TestEventer_WriteSysEvent(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	var buf bytes.Buffer
	eventer, err := NewEventer(hclog.NewNullLogger(), &buf)
	require.NoError(err)
	ctx, err := NewEventerContext(context.Background(), eventer)
	require.NoError(err)

	WriteSysEvent(ctx, "main.run", "service started", "tenant", "admin")

	require.NotZero(buf.Len())
	var got map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &got))
	payload, ok := got["payload"].(map[string]any)
	require.True(ok)
	assert.Equal(sysVersion, payload["version"])
	data, ok := payload["data"].(map[string]any)
	require.True(ok)
	assert.Equal("service started", data["msg"])
	assert.Equal("admin", data["tenant"])
}

func TestNewEventer_MissingLogger(t *testing.T) {
	t.Parallel()
	_, err := NewEventer(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
