// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package vault provides the Vault-backed SecretStore used in production.
// Secrets live in a KV v2 mount; the broker's Path maps directly onto the KV
// path under the mount.
package vault

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	rootcerts "github.com/hashicorp/go-rootcerts"
	vault "github.com/hashicorp/vault/api"
	"github.com/mitchellh/mapstructure"
	"github.com/tapis-project/systems/internal/credential"
	"github.com/tapis-project/systems/internal/errors"
)

const defaultMount = "secret"

// ClientConfig holds the connection settings for the Vault server.
type ClientConfig struct {
	// Addr is the Vault server address, e.g. https://vault.example.org:8200.
	Addr string

	// Token authenticates this service to Vault.
	Token string

	// Namespace is an optional Vault enterprise namespace.
	Namespace string

	// Mount is the KV v2 mount holding system credentials.  Defaults to
	// "secret".
	Mount string

	// CaCert is an optional PEM-encoded CA certificate to trust, in lieu of
	// the system bundle.
	CaCert string

	// TlsServerName is an optional expected TLS server name.
	TlsServerName string

	// TlsSkipVerify disables TLS certificate verification.  Never use outside
	// development.
	TlsSkipVerify bool

	// ClientTimeout bounds every request to Vault.
	ClientTimeout time.Duration
}

// SecretStore implements credential.SecretStore on a Vault KV v2 mount.
type SecretStore struct {
	kv *vault.KVv2
}

var _ credential.SecretStore = (*SecretStore)(nil)

// NewSecretStore creates a SecretStore from the client configuration.
func NewSecretStore(ctx context.Context, conf ClientConfig) (*SecretStore, error) {
	const op = "vault.NewSecretStore"
	if conf.Addr == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing vault address")
	}
	if conf.Token == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing vault token")
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: conf.TlsSkipVerify,
		ServerName:         conf.TlsServerName,
		MinVersion:         tls.VersionTLS12,
	}
	if err := rootcerts.ConfigureTLS(tlsConf, &rootcerts.Config{
		CACertificate: []byte(conf.CaCert),
	}); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithMsg("unable to configure TLS"))
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Transport.(*http.Transport).TLSClientConfig = tlsConf
	if conf.ClientTimeout > 0 {
		httpClient.Timeout = conf.ClientTimeout
	}

	vc := vault.DefaultConfig()
	vc.Address = conf.Addr
	vc.HttpClient = httpClient
	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable),
			errors.WithMsg("unable to create vault client"))
	}
	client.SetToken(conf.Token)
	if conf.Namespace != "" {
		client.SetNamespace(conf.Namespace)
	}
	mount := conf.Mount
	if mount == "" {
		mount = defaultMount
	}
	return &SecretStore{kv: client.KVv2(mount)}, nil
}

// Write implements credential.SecretStore.
func (s *SecretStore) Write(ctx context.Context, path credential.Path, data map[string]string) error {
	const op = "vault.(SecretStore).Write"
	payload := make(map[string]any, len(data))
	for k, v := range data {
		payload[k] = v
	}
	if _, err := s.kv.Put(ctx, path.String(), payload); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable),
			errors.WithMsg("unable to write secret"))
	}
	return nil
}

// Read implements credential.SecretStore.  A missing secret returns nil, nil.
func (s *SecretStore) Read(ctx context.Context, path credential.Path) (map[string]string, error) {
	const op = "vault.(SecretStore).Read"
	secret, err := s.kv.Get(ctx, path.String())
	switch {
	case errors.Is(err, vault.ErrSecretNotFound):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable),
			errors.WithMsg("unable to read secret"))
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}
	var out map[string]string
	if err := mapstructure.Decode(secret.Data, &out); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.VaultEmptyField),
			errors.WithMsg("secret data has an unexpected shape"))
	}
	return out, nil
}

// Exists implements credential.SecretStore using a metadata-only read, never
// fetching the secret material.
func (s *SecretStore) Exists(ctx context.Context, path credential.Path) (bool, error) {
	const op = "vault.(SecretStore).Exists"
	_, err := s.kv.GetMetadata(ctx, path.String())
	switch {
	case errors.Is(err, vault.ErrSecretNotFound):
		return false, nil
	case err != nil:
		return false, errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable),
			errors.WithMsg("unable to read secret metadata"))
	}
	return true, nil
}

// Destroy implements credential.SecretStore, removing all versions and the
// metadata.  Destroying a missing secret is not an error.
func (s *SecretStore) Destroy(ctx context.Context, path credential.Path) error {
	const op = "vault.(SecretStore).Destroy"
	err := s.kv.DeleteMetadata(ctx, path.String())
	switch {
	case errors.Is(err, vault.ErrSecretNotFound):
		return nil
	case err != nil:
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable),
			errors.WithMsg("unable to destroy secret"))
	}
	return nil
}
