// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tapis-project/systems/internal/errors"
	"github.com/tapis-project/systems/internal/event"
	"github.com/tapis-project/systems/internal/store"
	"github.com/tapis-project/systems/internal/systems"
	"github.com/tapis-project/systems/internal/types/operation"
	"golang.org/x/crypto/ssh"
)

// Broker creates, reads, verifies and deletes credentials for a (system,
// target user, authn method) triple.  Credentials are stored in the external
// secret store; the broker only ever holds them in memory.
type Broker struct {
	secrets     SecretStore
	records     store.RecordStore
	sshDial     SSHDialer
	s3Factory   S3ClientFactory
	dialTimeout time.Duration
}

// NewBroker creates a Broker.  WithSSHDialer, WithS3ClientFactory and
// WithDialTimeout are supported.
func NewBroker(ctx context.Context, secrets SecretStore, records store.RecordStore, opt ...Option) (*Broker, error) {
	const op = "credential.NewBroker"
	if secrets == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing secret store")
	}
	if records == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing record store")
	}
	opts := getOpts(opt...)
	b := &Broker{
		secrets:     secrets,
		records:     records,
		sshDial:     opts.withSSHDialer,
		s3Factory:   opts.withS3Factory,
		dialTimeout: opts.withDialTimeout,
	}
	if b.sshDial == nil {
		b.sshDial = defaultSSHDialer
	}
	if b.s3Factory == nil {
		b.s3Factory = defaultS3ClientFactory
	}
	return b, nil
}

func (b *Broker) pathFor(sys *systems.System, targetUser string, k KeyType) Path {
	return Path{
		Tenant:     sys.Tenant,
		SystemId:   sys.Id,
		Static:     !sys.IsDynamicEffectiveUser(),
		TargetUser: targetUser,
		KeyType:    k,
	}
}

// ResolveEffectiveUserId resolves the host account a Tapis user reaches the
// system as.  A static effective user is returned verbatim regardless of who
// is asking; a dynamic one resolves through the login-user mapping and falls
// back to the Tapis username.
func (b *Broker) ResolveEffectiveUserId(ctx context.Context, sys *systems.System, tapisUser string) (string, error) {
	const op = "credential.(Broker).ResolveEffectiveUserId"
	if sys == nil {
		return "", errors.New(ctx, errors.InvalidParameter, op, "missing system")
	}
	if !sys.IsDynamicEffectiveUser() {
		return sys.EffectiveUserId, nil
	}
	if tapisUser == "" {
		return "", errors.New(ctx, errors.InvalidParameter, op, "missing tapis user")
	}
	mapped, err := b.records.GetLoginUser(ctx, sys.Tenant, sys.Id, tapisUser)
	if err != nil {
		return "", errors.Wrap(ctx, err, op)
	}
	if mapped != "" {
		return mapped, nil
	}
	return tapisUser, nil
}

// GetCredential reads the secret for the authn method and returns it as a
// Credential, or nil, nil when no secret exists: an absent credential is a
// normal outcome, not a fault.  For a dynamic system the host login user is
// resolved and stamped onto the result.
func (b *Broker) GetCredential(ctx context.Context, sys *systems.System, targetUser string, method systems.AuthnMethod) (*systems.Credential, error) {
	const op = "credential.(Broker).GetCredential"
	if sys == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing system")
	}
	if targetUser == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing target user")
	}
	if method == systems.UnknownMethod {
		method = sys.DefaultAuthnMethod
	}
	kt := keyTypeForMethod(method)
	if kt == UnknownKeyType {
		return nil, errors.New(ctx, errors.InvalidParameter, op,
			fmt.Sprintf("unsupported authn method %s", method))
	}
	data, err := b.secrets.Read(ctx, b.pathFor(sys, targetUser, kt))
	if err != nil {
		return nil, errors.Wrap(ctx, err, op,
			errors.WithMsg(fmt.Sprintf("unable to read credential for user %s on system %s", targetUser, sys.Id)))
	}
	if data == nil {
		return nil, nil
	}
	cred := credentialFromData(data)
	if sys.IsDynamicEffectiveUser() {
		loginUser, err := b.ResolveEffectiveUserId(ctx, sys, targetUser)
		if err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
		cred.LoginUser = loginUser
	}
	return cred, nil
}

// CreateCredential validates, optionally verifies and persists a credential.
// Validation failures reject the request before any write.  When live
// verification runs and explicitly fails the credential is returned with
// Validation=false and nothing is persisted, so an invalid credential can be
// reported back without ever being stored.
func (b *Broker) CreateCredential(ctx context.Context, sys *systems.System, targetUser string, cred *systems.Credential, opt ...Option) (*systems.Credential, error) {
	const op = "credential.(Broker).CreateCredential"
	if sys == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing system")
	}
	if targetUser == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing target user")
	}
	if cred == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing credential")
	}
	opts := getOpts(opt...)

	// A supplied private key must parse and must arrive with its public half
	// before anything is written.
	if cred.PrivateKey != "" {
		if cred.PublicKey == "" {
			return nil, errors.New(ctx, errors.InvalidParameter, op,
				"private key supplied without a matching public key")
		}
		if _, err := ssh.ParsePrivateKey([]byte(cred.PrivateKey)); err != nil {
			return nil, errors.New(ctx, errors.InvalidParameter, op,
				fmt.Sprintf("unsupported private key format: %v", err))
		}
	}

	if opts.withCreateTMSKeys {
		// TMS keys let a host trust Tapis-issued keys, so issuance is limited
		// to LINUX systems with a dynamic effective user and no login-user
		// override: an override would let a caller authenticate as an
		// arbitrary host account.
		if sys.SystemType != systems.Linux || !sys.IsDynamicEffectiveUser() || cred.LoginUser != "" {
			return nil, errors.New(ctx, errors.InvalidSystemState, op,
				"TMS key issuance requires a LINUX system with a dynamic effective user and no login user override")
		}
		pub, priv, fingerprint, err := generateTMSKeyPair(ctx)
		if err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
		cred.TmsPublicKey = pub
		cred.TmsPrivateKey = priv
		cred.TmsFingerprint = fingerprint
	}

	method := sys.DefaultAuthnMethod
	if !opts.withSkipCheck && supportsVerification(sys.SystemType, method) {
		effectiveUser := cred.LoginUser
		if effectiveUser == "" {
			var err error
			effectiveUser, err = b.ResolveEffectiveUserId(ctx, sys, targetUser)
			if err != nil {
				return nil, errors.Wrap(ctx, err, op)
			}
		}
		if err := b.VerifyConnection(ctx, sys, method, cred, effectiveUser); err != nil {
			return nil, errors.Wrap(ctx, err, op)
		}
		if cred.Validation != nil && !*cred.Validation {
			return cred, nil
		}
	}

	if err := b.writeSecretGroups(ctx, sys, targetUser, cred); err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}

	if sys.IsDynamicEffectiveUser() && cred.LoginUser != "" && cred.LoginUser != targetUser {
		if err := b.records.UpsertLoginUserMapping(ctx, sys.Tenant, sys.Id, targetUser, cred.LoginUser); err != nil {
			return nil, errors.Wrap(ctx, err, op,
				errors.WithMsg("unable to record login user mapping"))
		}
	}

	b.appendCredHistory(ctx, sys, operation.SetCred, targetUser, cred)
	return cred, nil
}

// writeSecretGroups persists each populated credential group as its own
// secret entry.  There is no overall transaction: a later group's failure
// leaves earlier groups written.
func (b *Broker) writeSecretGroups(ctx context.Context, sys *systems.System, targetUser string, cred *systems.Credential) error {
	const op = "credential.(Broker).writeSecretGroups"
	type group struct {
		keyType KeyType
		data    map[string]string
	}
	var groups []group
	if cred.HasPassword() {
		groups = append(groups, group{PasswordKey, map[string]string{
			fieldPassword: cred.Password,
		}})
	}
	if cred.HasPKIKeys() {
		groups = append(groups, group{SSHKey, map[string]string{
			fieldPublicKey:  cred.PublicKey,
			fieldPrivateKey: cred.PrivateKey,
		}})
	}
	if cred.HasAccessKeyPair() {
		groups = append(groups, group{AccessKeyPair, map[string]string{
			fieldAccessKey:    cred.AccessKey,
			fieldAccessSecret: cred.AccessSecret,
		}})
	}
	if cred.HasTokens() {
		groups = append(groups, group{TokenKey, map[string]string{
			fieldAccessToken:  cred.AccessToken,
			fieldRefreshToken: cred.RefreshToken,
		}})
	}
	if cred.HasTMSKeys() {
		groups = append(groups, group{TMSKey, map[string]string{
			fieldTmsPublicKey:   cred.TmsPublicKey,
			fieldTmsPrivateKey:  cred.TmsPrivateKey,
			fieldTmsFingerprint: cred.TmsFingerprint,
		}})
	}
	if cred.HasCertificate() {
		groups = append(groups, group{CertKey, map[string]string{
			fieldCertificate: cred.Certificate,
		}})
	}
	if len(groups) == 0 {
		return errors.New(ctx, errors.InvalidParameter, op, "credential has no secret fields to store")
	}
	for _, g := range groups {
		if cred.LoginUser != "" {
			g.data[fieldLoginUser] = cred.LoginUser
		}
		if err := b.secrets.Write(ctx, b.pathFor(sys, targetUser, g.keyType), g.data); err != nil {
			return errors.Wrap(ctx, err, op,
				errors.WithMsg(fmt.Sprintf("unable to write %s secret for user %s on system %s",
					g.keyType, targetUser, sys.Id)))
		}
	}
	return nil
}

// DeleteCredential removes every secret entry for the target user under the
// given scope.  It probes with metadata-only reads first so a target with no
// secrets returns 0 without any destroy side effects; otherwise it destroys
// all key types independently, swallowing per-key-type errors, and returns 1.
func (b *Broker) DeleteCredential(ctx context.Context, tenant, systemId, targetUser string, static bool) (int, error) {
	const op = "credential.(Broker).DeleteCredential"
	if tenant == "" || systemId == "" || targetUser == "" {
		return 0, errors.New(ctx, errors.InvalidParameter, op, "missing tenant, system id or target user")
	}
	base := Path{Tenant: tenant, SystemId: systemId, Static: static, TargetUser: targetUser}
	found := false
	for _, kt := range allKeyTypes {
		exists, err := b.secrets.Exists(ctx, base.WithKeyType(kt))
		if err != nil {
			return 0, errors.Wrap(ctx, err, op,
				errors.WithMsg(fmt.Sprintf("unable to check for %s secret", kt)))
		}
		if exists {
			found = true
			break
		}
	}
	if !found {
		return 0, nil
	}
	for _, kt := range allKeyTypes {
		// A missing key type during destroy is expected, not exceptional.
		if err := b.secrets.Destroy(ctx, base.WithKeyType(kt)); err != nil {
			event.WriteError(ctx, op, err,
				event.WithInfo(map[string]any{"keyType": kt.String(), "systemId": systemId}))
		}
	}
	if !static {
		if err := b.records.DeleteLoginUserMapping(ctx, tenant, systemId, targetUser); err != nil {
			event.WriteError(ctx, op, err,
				event.WithInfo(map[string]any{"msg": "unable to delete login user mapping", "systemId": systemId}))
		}
	}
	desc := fmt.Sprintf("targetUser=%s", targetUser)
	if err := b.records.AppendHistory(ctx, tenant, systemId, operation.RemoveCred, desc, ""); err != nil {
		event.WriteError(ctx, op, err)
	}
	return 1, nil
}

// appendCredHistory writes an update-history record with a secrets-masked
// description of the change.  Best effort: history must never mask the
// outcome of the credential write itself.
func (b *Broker) appendCredHistory(ctx context.Context, sys *systems.System, aop operation.Type, targetUser string, cred *systems.Credential) {
	const op = "credential.(Broker).appendCredHistory"
	masked, err := json.Marshal(cred.Masked())
	if err != nil {
		masked = nil
	}
	desc := fmt.Sprintf("targetUser=%s", targetUser)
	if err := b.records.AppendHistory(ctx, sys.Tenant, sys.Id, aop, desc, string(masked)); err != nil {
		event.WriteError(ctx, op, err)
	}
}

func credentialFromData(data map[string]string) *systems.Credential {
	return &systems.Credential{
		LoginUser:      data[fieldLoginUser],
		Password:       data[fieldPassword],
		PublicKey:      data[fieldPublicKey],
		PrivateKey:     data[fieldPrivateKey],
		AccessKey:      data[fieldAccessKey],
		AccessSecret:   data[fieldAccessSecret],
		AccessToken:    data[fieldAccessToken],
		RefreshToken:   data[fieldRefreshToken],
		TmsPublicKey:   data[fieldTmsPublicKey],
		TmsPrivateKey:  data[fieldTmsPrivateKey],
		TmsFingerprint: data[fieldTmsFingerprint],
		Certificate:    data[fieldCertificate],
	}
}
