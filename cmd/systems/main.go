// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// The systems binary wires the repository, the permission-authority client,
// the vault secret store, the authorization engine, the credential broker and
// the lifecycle service together and runs until signalled.  The transport
// surface mounts on top of the lifecycle service and lives outside this
// module.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	dbw "github.com/hashicorp/go-dbw"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/kelseyhightower/envconfig"
	"github.com/tapis-project/systems/internal/authz"
	"github.com/tapis-project/systems/internal/credential"
	"github.com/tapis-project/systems/internal/credential/vault"
	"github.com/tapis-project/systems/internal/event"
	"github.com/tapis-project/systems/internal/lifecycle"
	"github.com/tapis-project/systems/internal/perms"
	"github.com/tapis-project/systems/internal/store"
	"github.com/tapis-project/systems/version"
)

type config struct {
	ServiceTenant string `envconfig:"SERVICE_TENANT" default:"admin"`
	ServiceName   string `envconfig:"SERVICE_NAME" default:"systems"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`

	DbDialect string `envconfig:"DB_DIALECT" default:"postgres"`
	DbUrl     string `envconfig:"DB_URL" required:"true"`

	PermsAddr  string `envconfig:"PERMS_ADDR" required:"true"`
	PermsToken string `envconfig:"PERMS_TOKEN" required:"true"`

	VaultAddr      string        `envconfig:"VAULT_ADDR" required:"true"`
	VaultToken     string        `envconfig:"VAULT_TOKEN" required:"true"`
	VaultNamespace string        `envconfig:"VAULT_NAMESPACE"`
	VaultMount     string        `envconfig:"VAULT_MOUNT" default:"secret"`
	VaultCaCert    string        `envconfig:"VAULT_CACERT"`
	VaultTimeout   time.Duration `envconfig:"VAULT_TIMEOUT" default:"30s"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var conf config
	if err := envconfig.Process("systems", &conf); err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "systems",
		Level: hclog.LevelFromString(conf.LogLevel),
	})
	eventer, err := event.NewEventer(logger, os.Stdout)
	if err != nil {
		return fmt.Errorf("creating eventer: %w", err)
	}
	event.InitSysEventer(eventer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbType, err := dbw.StringToDbType(conf.DbDialect)
	if err != nil {
		return fmt.Errorf("resolving db dialect: %w", err)
	}
	conn, err := dbw.Open(dbType, conf.DbUrl)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	repo, err := store.NewRepository(ctx, conn)
	if err != nil {
		return fmt.Errorf("creating repository: %w", err)
	}

	authority, err := perms.NewClient(ctx, conf.PermsAddr, conf.PermsToken)
	if err != nil {
		return fmt.Errorf("creating permission authority client: %w", err)
	}
	secrets, err := vault.NewSecretStore(ctx, vault.ClientConfig{
		Addr:          conf.VaultAddr,
		Token:         conf.VaultToken,
		Namespace:     conf.VaultNamespace,
		Mount:         conf.VaultMount,
		CaCert:        conf.VaultCaCert,
		ClientTimeout: conf.VaultTimeout,
	})
	if err != nil {
		return fmt.Errorf("creating vault secret store: %w", err)
	}

	self := authz.ServiceIdentity{Tenant: conf.ServiceTenant, User: conf.ServiceName}
	engine, err := authz.NewEngine(ctx, authority, repo, self, authz.DefaultConfig())
	if err != nil {
		return fmt.Errorf("creating authorization engine: %w", err)
	}
	broker, err := credential.NewBroker(ctx, secrets, repo)
	if err != nil {
		return fmt.Errorf("creating credential broker: %w", err)
	}
	if _, err := lifecycle.NewService(ctx, engine, broker, repo, authority); err != nil {
		return fmt.Errorf("creating lifecycle service: %w", err)
	}

	event.WriteSysEvent(ctx, "main.run", "systems service started",
		"version", version.Get().VersionNumber(),
		"tenant", conf.ServiceTenant, "service", conf.ServiceName)
	<-ctx.Done()
	event.WriteSysEvent(ctx, "main.run", "systems service shutting down")
	return nil
}
