// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package lifecycle

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tapis-project/systems/internal/authz"
	"github.com/tapis-project/systems/internal/credential"
	"github.com/tapis-project/systems/internal/errors"
	"github.com/tapis-project/systems/internal/perms"
	"github.com/tapis-project/systems/internal/store"
	"github.com/tapis-project/systems/internal/systems"
	"golang.org/x/crypto/ssh"
)

func testService(t *testing.T, opt ...credential.Option) (*Service, *perms.TestAuthority, *credential.TestSecretStore, *store.Repository) {
	t.Helper()
	ctx := context.Background()
	authority := perms.NewTestAuthority()
	repo := store.TestRepository(t)
	engine, err := authz.NewEngine(ctx, authority, repo,
		authz.ServiceIdentity{Tenant: "admin", User: "systems"}, authz.DefaultConfig())
	require.NoError(t, err)
	secrets := credential.NewTestSecretStore()
	broker, err := credential.NewBroker(ctx, secrets, repo, opt...)
	require.NoError(t, err)
	svc, err := NewService(ctx, engine, broker, repo, authority)
	require.NoError(t, err)
	return svc, authority, secrets, repo
}

func userCaller(tenant, user string) authz.Caller {
	return authz.Caller{JwtTenant: tenant, JwtUser: user, OboTenant: tenant, OboUser: user}
}

func serviceCaller(svcName, oboTenant, oboUser string) authz.Caller {
	return authz.Caller{JwtTenant: "admin", JwtUser: svcName, IsService: true, OboTenant: oboTenant, OboUser: oboUser}
}

func testDynamicSystem(id, owner string) *systems.System {
	return &systems.System{
		Tenant:             "dev",
		Id:                 id,
		Owner:              owner,
		Host:               "login1.example.org",
		SystemType:         systems.Linux,
		DefaultAuthnMethod: systems.Password,
		EffectiveUserId:    systems.DynamicEffectiveUser,
		CanExec:            true,
		Enabled:            true,
	}
}

func testStaticSystem(id, owner string) *systems.System {
	sys := testDynamicSystem(id, owner)
	sys.EffectiveUserId = "svcacct"
	return sys
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func acceptingDialer() credential.SSHDialer {
	return func(context.Context, string, *ssh.ClientConfig) (io.Closer, error) {
		return nopCloser{}, nil
	}
}

func rejectingDialer() credential.SSHDialer {
	return func(context.Context, string, *ssh.ClientConfig) (io.Closer, error) {
		return nil, fmt.Errorf("ssh: handshake failed: ssh: unable to authenticate")
	}
}

func TestCreateSystem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("owner-creates", func(t *testing.T) {
		t.Parallel()
		svc, authority, _, repo := testService(t)
		require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))

		got, err := repo.GetSystem(ctx, "dev", "sys1", false)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "bob", got.Owner)

		ok, err := authority.IsPermitted(ctx, "dev", "bob", perms.SpecStr("dev", perms.Modify, "sys1"))
		require.NoError(t, err)
		assert.True(t, ok, "the owner wildcard grant must cover every permission")
	})

	t.Run("validation-reports-all-violations", func(t *testing.T) {
		t.Parallel()
		svc, _, _, _ := testService(t)
		sys := testDynamicSystem("sys1", "bob")
		sys.Host = ""
		sys.SystemType = systems.UnknownType
		err := svc.CreateSystem(ctx, userCaller("dev", "bob"), sys, nil)
		require.Error(t, err)
		assert.True(t, errors.IsInvalidSystemStateError(err))
		assert.Contains(t, err.Error(), "host")
		assert.Contains(t, err.Error(), "systemType")
	})

	t.Run("duplicate-id", func(t *testing.T) {
		t.Parallel()
		svc, _, _, _ := testService(t)
		require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))
		err := svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil)
		require.Error(t, err)
		assert.True(t, errors.IsInvalidSystemStateError(err))
	})

	t.Run("non-owner-denied", func(t *testing.T) {
		t.Parallel()
		svc, _, _, repo := testService(t)
		err := svc.CreateSystem(ctx, userCaller("dev", "carol"), testDynamicSystem("sys1", "bob"), nil)
		require.Error(t, err)
		assert.True(t, errors.IsForbiddenError(err))
		exists, err := repo.CheckExists(ctx, "dev", "sys1", true)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("static-credential-written", func(t *testing.T) {
		t.Parallel()
		svc, _, secrets, _ := testService(t)
		cred := &systems.Credential{Password: "hunter2"}
		require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testStaticSystem("sys1", "bob"), cred,
			WithSkipCredentialCheck(true)))
		assert.Equal(t, 1, secrets.Len())
	})
}

// A failing step rolls back everything already done: the row is gone and the
// owner grant revoked, while the original error is what the caller sees.
func TestCreateSystem_RollsBackOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, authority, secrets, repo := testService(t)

	boom := fmt.Errorf("secret store down")
	secrets.WriteErr = func(credential.Path) error { return boom }

	cred := &systems.Credential{Password: "hunter2"}
	err := svc.CreateSystem(ctx, userCaller("dev", "bob"), testStaticSystem("sys1", "bob"), cred,
		WithSkipCredentialCheck(true))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom, "the original upstream error must propagate")

	exists, err := repo.CheckExists(ctx, "dev", "sys1", true)
	require.NoError(t, err)
	assert.False(t, exists, "the system row must be rolled back")
	ok, err := authority.IsPermitted(ctx, "dev", "bob", perms.SpecStr("dev", perms.Read, "sys1"))
	require.NoError(t, err)
	assert.False(t, ok, "the owner grant must be rolled back")
}

// A supplied credential that fails live verification aborts the create and
// rolls back; nothing is persisted anywhere.
func TestCreateSystem_FailedVerificationRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, secrets, repo := testService(t, credential.WithSSHDialer(rejectingDialer()))

	cred := &systems.Credential{Password: "wrong"}
	err := svc.CreateSystem(ctx, userCaller("dev", "bob"), testStaticSystem("sys1", "bob"), cred)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidSystemStateError(err))
	assert.Zero(t, secrets.Len())
	exists, err := repo.CheckExists(ctx, "dev", "sys1", true)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetSystem_NotFoundBeforeForbidden(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, _ := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))

	_, err := svc.GetSystem(ctx, userCaller("dev", "carol"), "dev", "nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err), "a missing system must never be reported as Forbidden")

	_, err = svc.GetSystem(ctx, userCaller("dev", "carol"), "dev", "sys1")
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err), "an existing but unreadable system must never be reported as NotFound")

	got, err := svc.GetSystem(ctx, userCaller("dev", "bob"), "dev", "sys1")
	require.NoError(t, err)
	assert.Equal(t, "sys1", got.Id)
}

func TestEnableDisableSystem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, repo := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))

	require.NoError(t, svc.DisableSystem(ctx, userCaller("dev", "bob"), "dev", "sys1"))
	got, err := repo.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	require.NoError(t, svc.EnableSystem(ctx, userCaller("dev", "bob"), "dev", "sys1"))
	got, err = repo.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	assert.True(t, got.Enabled)

	err = svc.DisableSystem(ctx, userCaller("dev", "carol"), "dev", "sys1")
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err))
}

func TestChangeSystemOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, authority, _, repo := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))

	require.NoError(t, svc.ChangeSystemOwner(ctx, userCaller("dev", "bob"), "dev", "sys1", "dave"))

	got, err := repo.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	assert.Equal(t, "dave", got.Owner)

	ok, err := authority.IsPermitted(ctx, "dev", "dave", perms.SpecStr("dev", perms.Modify, "sys1"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = authority.IsPermitted(ctx, "dev", "bob", perms.SpecStr("dev", perms.Read, "sys1"))
	require.NoError(t, err)
	assert.False(t, ok, "the old owner's wildcard grant must be revoked")
}

// A failure while revoking the old owner's grant restores the previous state:
// the owner column flips back and the new owner's grant is withdrawn.
func TestChangeSystemOwner_RollsBackOnFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, authority, _, repo := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))

	boom := fmt.Errorf("authority unavailable")
	authority.RevokeErr = func(_, user, _ string) error {
		if user == "bob" {
			return boom
		}
		return nil
	}

	err := svc.ChangeSystemOwner(ctx, userCaller("dev", "bob"), "dev", "sys1", "dave")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	authority.RevokeErr = nil
	got, err := repo.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Owner, "the owner column must be restored")
	ok, err := authority.IsPermitted(ctx, "dev", "dave", perms.SpecStr("dev", perms.Read, "sys1"))
	require.NoError(t, err)
	assert.False(t, ok, "the new owner's grant must be withdrawn")
}

func TestUpdateSystem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, repo := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))

	patch := testDynamicSystem("sys1", "mallory")
	patch.Host = "login2.example.org"
	patch.Description = "moved to the new cluster"
	patch.Enabled = false

	err := svc.UpdateSystem(ctx, userCaller("dev", "carol"), patch)
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err))

	require.NoError(t, svc.UpdateSystem(ctx, userCaller("dev", "bob"), patch))
	got, err := repo.GetSystem(ctx, "dev", "sys1", false)
	require.NoError(t, err)
	assert.Equal(t, "login2.example.org", got.Host)
	assert.Equal(t, "moved to the new cluster", got.Description)
	assert.Equal(t, "bob", got.Owner, "ownership only moves through changeOwner")
	assert.True(t, got.Enabled, "the enabled flag only moves through enable/disable")

	patch.Host = ""
	err = svc.UpdateSystem(ctx, userCaller("dev", "bob"), patch)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidSystemStateError(err))
}

func TestSoftDeleteSystem_StripsShares(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, authority, _, _ := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))
	require.NoError(t, svc.ShareSystem(ctx, userCaller("dev", "bob"), "dev", "sys1", []string{"carol"}, false))

	require.NoError(t, svc.SoftDeleteSystem(ctx, userCaller("dev", "bob"), "dev", "sys1"))
	records, err := authority.GetShares(ctx, "dev", "sys1")
	require.NoError(t, err)
	assert.Empty(t, records, "soft delete strips every share record")
}

func TestSoftDeleteAndUndelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, authority, secrets, _ := testService(t)
	cred := &systems.Credential{Password: "hunter2"}
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testStaticSystem("sys1", "bob"), cred,
		WithSkipCredentialCheck(true)))
	require.Equal(t, 1, secrets.Len())

	require.NoError(t, svc.SoftDeleteSystem(ctx, userCaller("dev", "bob"), "dev", "sys1"))

	_, err := svc.GetSystem(ctx, userCaller("dev", "bob"), "dev", "sys1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err), "a soft-deleted system reads as not found")
	assert.Zero(t, secrets.Len(), "stored credentials are stripped on soft delete")
	ok, err := authority.IsPermitted(ctx, "dev", "bob", perms.SpecStr("dev", perms.Read, "sys1"))
	require.NoError(t, err)
	assert.False(t, ok, "the owner grant is stripped on soft delete")

	require.NoError(t, svc.UndeleteSystem(ctx, userCaller("dev", "bob"), "dev", "sys1"))
	got, err := svc.GetSystem(ctx, userCaller("dev", "bob"), "dev", "sys1")
	require.NoError(t, err)
	assert.Equal(t, "sys1", got.Id)
	ok, err = authority.IsPermitted(ctx, "dev", "bob", perms.SpecStr("dev", perms.Read, "sys1"))
	require.NoError(t, err)
	assert.True(t, ok, "undelete restores the owner grant")
}

func TestHardDeleteSystem_AdminOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, authority, _, repo := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))
	authority.SetAdmin("dev", "root")

	err := svc.HardDeleteSystem(ctx, userCaller("dev", "bob"), "dev", "sys1")
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err), "even the owner cannot hard delete")

	require.NoError(t, svc.HardDeleteSystem(ctx, userCaller("dev", "root"), "dev", "sys1"))
	exists, err := repo.CheckExists(ctx, "dev", "sys1", true)
	require.NoError(t, err)
	assert.False(t, exists)
}

// Granting READ opens the system to the grantee and revoking closes it again,
// end to end through the service facade.
func TestPermissionLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, _ := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))

	_, err := svc.GetSystem(ctx, userCaller("dev", "carol"), "dev", "sys1")
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err))

	require.NoError(t, svc.GrantUserPermissions(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol",
		[]perms.Permission{perms.Read}))
	_, err = svc.GetSystem(ctx, userCaller("dev", "carol"), "dev", "sys1")
	require.NoError(t, err)

	held, err := svc.GetUserPermissions(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol")
	require.NoError(t, err)
	assert.ElementsMatch(t, []perms.Permission{perms.Read}, held)

	require.NoError(t, svc.RevokeUserPermissions(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol",
		[]perms.Permission{perms.Read}))
	_, err = svc.GetSystem(ctx, userCaller("dev", "carol"), "dev", "sys1")
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err))
}

func TestCredentialOperations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, _ := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))

	cred := &systems.Credential{Password: "hunter2"}
	_, err := svc.CreateUserCredential(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol", cred,
		WithSkipCredentialCheck(true))
	require.NoError(t, err)

	// only the allow-listed services may fetch secret material
	got, err := svc.GetUserCredential(ctx, serviceCaller("jobs", "dev", "carol"), "dev", "sys1", "carol", systems.Password)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hunter2", got.Password)

	_, err = svc.GetUserCredential(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol", systems.Password)
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err), "not even the owner may fetch secret material")

	n, err := svc.DeleteUserCredential(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = svc.DeleteUserCredential(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCheckUserCredential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, _ := testService(t, credential.WithSSHDialer(acceptingDialer()))
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))

	_, err := svc.CheckUserCredential(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err), "checking a missing credential reports not found")

	cred := &systems.Credential{Password: "hunter2"}
	_, err = svc.CreateUserCredential(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol", cred,
		WithSkipCredentialCheck(true))
	require.NoError(t, err)

	got, err := svc.CheckUserCredential(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol")
	require.NoError(t, err)
	require.NotNil(t, got.Validation)
	assert.True(t, *got.Validation)
}

func TestGetSystem_Impersonation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, _ := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))
	require.NoError(t, svc.GrantUserPermissions(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol",
		[]perms.Permission{perms.Read}))

	// an allow-listed service reads with carol's authorizations
	_, err := svc.GetSystem(ctx, serviceCaller("jobs", "dev", "someoneelse"), "dev", "sys1",
		WithImpersonation("carol"))
	require.NoError(t, err)

	// a human caller may not impersonate without the admin role
	_, err = svc.GetSystem(ctx, userCaller("dev", "mallory"), "dev", "sys1", WithImpersonation("carol"))
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err))
}

func TestGetSystemWithCredential(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, _ := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))
	_, err := svc.CreateUserCredential(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol",
		&systems.Credential{Password: "hunter2"}, WithSkipCredentialCheck(true))
	require.NoError(t, err)

	sys, cred, err := svc.GetSystemWithCredential(ctx, serviceCaller("files", "dev", "bob"),
		"dev", "sys1", "carol", systems.Password)
	require.NoError(t, err)
	assert.Equal(t, "sys1", sys.Id)
	require.NotNil(t, cred)
	assert.Equal(t, "hunter2", cred.Password)

	_, _, err = svc.GetSystemWithCredential(ctx, userCaller("dev", "bob"), "dev", "sys1", "carol", systems.Password)
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err), "the attachment path enforces the getCred allow-list")
}

func TestShareSystem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, _ := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))

	require.NoError(t, svc.ShareSystem(ctx, userCaller("dev", "bob"), "dev", "sys1", nil, true))
	_, err := svc.GetSystem(ctx, userCaller("dev", "carol"), "dev", "sys1")
	require.NoError(t, err, "a public share opens read to every user")

	records, err := svc.GetSystemShares(ctx, userCaller("dev", "bob"), "dev", "sys1")
	require.NoError(t, err)
	assert.NotEmpty(t, records)

	require.NoError(t, svc.UnshareSystem(ctx, userCaller("dev", "bob"), "dev", "sys1", nil, true))
	_, err = svc.GetSystem(ctx, userCaller("dev", "carol"), "dev", "sys1")
	require.Error(t, err)
	assert.True(t, errors.IsForbiddenError(err))
}

func TestGetSystemHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, _ := testService(t)
	require.NoError(t, svc.CreateSystem(ctx, userCaller("dev", "bob"), testDynamicSystem("sys1", "bob"), nil))
	require.NoError(t, svc.DisableSystem(ctx, userCaller("dev", "bob"), "dev", "sys1"))

	entries, err := svc.GetSystemHistory(ctx, userCaller("dev", "bob"), "dev", "sys1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	ops := []string{entries[0].Operation, entries[1].Operation}
	assert.ElementsMatch(t, []string{"create", "disable"}, ops)
}
