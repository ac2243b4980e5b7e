// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package store

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapis-project/systems/internal/errors"
	"github.com/tapis-project/systems/internal/systems"
	"github.com/tapis-project/systems/internal/types/operation"
)

func testSystem(tenant, id, owner string) *systems.System {
	return &systems.System{
		Tenant:             tenant,
		Id:                 id,
		Owner:              owner,
		Host:               "login1.example.org",
		SystemType:         systems.Linux,
		DefaultAuthnMethod: systems.PKIKeys,
		EffectiveUserId:    systems.DynamicEffectiveUser,
		CanExec:            true,
		Enabled:            true,
	}
}

func TestRepository_CreateGetSystem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := TestRepository(t)

	sys := testSystem("dev", "sys1", "owner1")
	require.NoError(t, repo.CreateSystem(ctx, sys))

	got, err := repo.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, cmp.Diff(sys, got))

	got, err = repo.GetSystem(ctx, "dev", "no-such-system", false)
	require.NoError(t, err)
	assert.Nil(t, got)

	// same id in another tenant is a different record
	got, err = repo.GetSystem(ctx, "other", "sys1", false)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_CreateSystem_BadInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := TestRepository(t)

	err := repo.CreateSystem(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidParameterError(err))

	err = repo.CreateSystem(ctx, &systems.System{Tenant: "dev"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidParameterError(err))
}

func TestRepository_SoftDeleteVisibility(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := TestRepository(t)

	require.NoError(t, repo.CreateSystem(ctx, testSystem("dev", "sys1", "owner1")))
	require.NoError(t, repo.SetDeleted(ctx, "dev", "sys1", true))

	got, err := repo.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	assert.Nil(t, got, "soft-deleted system must be hidden by default")

	got, err = repo.GetSystem(ctx, "dev", "sys1", true)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Deleted)

	exists, err := repo.CheckExists(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = repo.CheckExists(ctx, "dev", "sys1", true)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.SetDeleted(ctx, "dev", "sys1", false))
	got, err = repo.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Deleted)
}

func TestRepository_SetOwnerEnabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := TestRepository(t)

	require.NoError(t, repo.CreateSystem(ctx, testSystem("dev", "sys1", "owner1")))

	require.NoError(t, repo.SetOwner(ctx, "dev", "sys1", "owner2"))
	owner, err := repo.GetSystemOwner(ctx, "dev", "sys1")
	require.NoError(t, err)
	assert.Equal(t, "owner2", owner)

	require.NoError(t, repo.SetEnabled(ctx, "dev", "sys1", false))
	got, err := repo.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Enabled)

	// updating a missing system surfaces RecordNotFound
	err = repo.SetOwner(ctx, "dev", "no-such-system", "owner2")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	// missing system owner lookup is not an error
	owner, err = repo.GetSystemOwner(ctx, "dev", "no-such-system")
	require.NoError(t, err)
	assert.Empty(t, owner)
}

func TestRepository_GetDefaultAuthnMethod(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := TestRepository(t)

	require.NoError(t, repo.CreateSystem(ctx, testSystem("dev", "sys1", "owner1")))

	m, err := repo.GetDefaultAuthnMethod(ctx, "dev", "sys1")
	require.NoError(t, err)
	assert.Equal(t, systems.PKIKeys, m)

	m, err = repo.GetDefaultAuthnMethod(ctx, "dev", "no-such-system")
	require.NoError(t, err)
	assert.Equal(t, systems.UnknownMethod, m)
}

func TestRepository_LoginUserMapping(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := TestRepository(t)

	lu, err := repo.GetLoginUser(ctx, "dev", "sys1", "jdoe")
	require.NoError(t, err)
	assert.Empty(t, lu)

	require.NoError(t, repo.UpsertLoginUserMapping(ctx, "dev", "sys1", "jdoe", "jdoe_host"))
	lu, err = repo.GetLoginUser(ctx, "dev", "sys1", "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "jdoe_host", lu)

	// upsert replaces the existing mapping
	require.NoError(t, repo.UpsertLoginUserMapping(ctx, "dev", "sys1", "jdoe", "jdoe2"))
	lu, err = repo.GetLoginUser(ctx, "dev", "sys1", "jdoe")
	require.NoError(t, err)
	assert.Equal(t, "jdoe2", lu)

	require.NoError(t, repo.DeleteLoginUserMapping(ctx, "dev", "sys1", "jdoe"))
	lu, err = repo.GetLoginUser(ctx, "dev", "sys1", "jdoe")
	require.NoError(t, err)
	assert.Empty(t, lu)

	err = repo.UpsertLoginUserMapping(ctx, "dev", "sys1", "jdoe", "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidParameterError(err))
}

func TestRepository_History(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := TestRepository(t)

	require.NoError(t, repo.AppendHistory(ctx, "dev", "sys1", operation.Create, "created", `{"id":"sys1"}`))
	require.NoError(t, repo.AppendHistory(ctx, "dev", "sys1", operation.Enable, "enabled", ""))
	require.NoError(t, repo.AppendHistory(ctx, "dev", "sys2", operation.Create, "created", ""))

	entries, err := repo.GetHistory(ctx, "dev", "sys1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	ops := []string{entries[0].Operation, entries[1].Operation}
	assert.ElementsMatch(t, []string{"create", "enable"}, ops)
}

func TestRepository_SchedulerProfiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := TestRepository(t)

	p := &SchedulerProfile{Tenant: "dev", Name: "tacc-default", Owner: "owner1", ModuleLoads: "module load tacc-singularity"}
	require.NoError(t, repo.CreateSchedulerProfile(ctx, p))

	got, err := repo.GetSchedulerProfile(ctx, "dev", "tacc-default")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "owner1", got.Owner)

	got, err = repo.GetSchedulerProfile(ctx, "dev", "no-such-profile")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.DeleteSchedulerProfile(ctx, "dev", "tacc-default"))
	got, err = repo.GetSchedulerProfile(ctx, "dev", "tacc-default")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_HardDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := TestRepository(t)

	require.NoError(t, repo.CreateSystem(ctx, testSystem("dev", "sys1", "owner1")))
	require.NoError(t, repo.DeleteSystem(ctx, "dev", "sys1"))

	got, err := repo.GetSystem(ctx, "dev", "sys1", true)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_UpdateSystem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := TestRepository(t)

	sys := testSystem("dev", "sys1", "owner1")
	require.NoError(t, repo.CreateSystem(ctx, sys))

	updated := *sys
	updated.Description = "batch cluster"
	updated.Host = "login2.example.org"
	updated.Port = 2222
	updated.CanExec = false
	require.NoError(t, repo.UpdateSystem(ctx, &updated))

	got, err := repo.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, cmp.Diff(&updated, got))

	err = repo.UpdateSystem(ctx, testSystem("dev", "no-such-system", "owner1"))
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}
