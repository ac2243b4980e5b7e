// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package authz

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapis-project/systems/internal/errors"
	"github.com/tapis-project/systems/internal/perms"
	"github.com/tapis-project/systems/internal/systems"
)

func TestUpdateUserShares_UserSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, authority, repo := testEngine(t)
	testCreateSystem(t, repo, "dev", "sys1", "bob")
	owner := userCaller("dev", "bob")

	require.NoError(t, e.UpdateUserShares(ctx, owner, "sys1", Share, []string{"carol", "dave"}, false))

	// both privileges arrive together for every grantee
	for _, u := range []string{"carol", "dave"} {
		for _, priv := range []perms.Privilege{perms.SharedRead, perms.SharedExecute} {
			ok, err := authority.HasPrivilege(ctx, "dev", u, "sys1", priv)
			require.NoError(t, err)
			assert.Truef(t, ok, "%s missing %s", u, priv)
		}
	}

	require.NoError(t, e.UpdateUserShares(ctx, owner, "sys1", Unshare, []string{"carol"}, false))
	ok, err := authority.HasPrivilege(ctx, "dev", "carol", "sys1", perms.SharedRead)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = authority.HasPrivilege(ctx, "dev", "dave", "sys1", perms.SharedExecute)
	require.NoError(t, err)
	assert.True(t, ok, "unsharing carol must not touch dave")
}

func TestUpdateUserShares_PublicXorUserSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _, repo := testEngine(t)
	testCreateSystem(t, repo, "dev", "sys1", "bob")
	owner := userCaller("dev", "bob")

	err := e.UpdateUserShares(ctx, owner, "sys1", Share, []string{"carol"}, true)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidParameterError(err))

	err = e.UpdateUserShares(ctx, owner, "sys1", Share, nil, false)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidParameterError(err))
}

func TestUpdateUserShares_RequiresModifyAuth(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _, repo := testEngine(t)
	testCreateSystem(t, repo, "dev", "sys1", "bob")

	err := e.UpdateUserShares(ctx, userCaller("dev", "carol"), "sys1", Share, []string{"dave"}, false)
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err))
}

// A failure writing the second privilege of the pair rolls the first back so
// a grantee never ends up with only READ or only EXECUTE.
func TestUpdateUserShares_PairStaysAtomic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, authority, repo := testEngine(t)
	testCreateSystem(t, repo, "dev", "sys1", "bob")
	owner := userCaller("dev", "bob")

	boom := fmt.Errorf("authority write failed")
	authority.ShareErr = func(tenant, grantee, systemId string, priv perms.Privilege) error {
		if priv == perms.SharedExecute {
			return boom
		}
		return nil
	}

	err := e.UpdateUserShares(ctx, owner, "sys1", Share, []string{"carol"}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	authority.ShareErr = nil
	for _, priv := range []perms.Privilege{perms.SharedRead, perms.SharedExecute} {
		ok, hasErr := authority.HasPrivilege(ctx, "dev", "carol", "sys1", priv)
		require.NoError(t, hasErr)
		assert.Falsef(t, ok, "carol must not hold %s after the rollback", priv)
	}
}

func TestGetShares(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e, _, repo := testEngine(t)
	testCreateSystem(t, repo, "dev", "sys1", "bob")
	owner := userCaller("dev", "bob")

	require.NoError(t, e.UpdateUserShares(ctx, owner, "sys1", Share, nil, true))
	records, err := e.GetShares(ctx, owner, "sys1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, systems.PublicGrantee, rec.Grantee)
	}
}
