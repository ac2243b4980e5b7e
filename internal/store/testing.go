// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hashicorp/go-dbw"
	"github.com/stretchr/testify/require"
)

const createTablesSqlite = `
begin;

create table if not exists systems (
  tenant text not null,
  id text not null,
  description text,
  system_type int not null,
  owner text not null,
  host text not null,
  port int,
  effective_user_id text,
  default_authn_method int,
  bucket_name text,
  root_dir text,
  dtn_system_id text,
  parent_id text,
  can_exec boolean not null default false,
  enabled boolean not null default true,
  deleted boolean not null default false,
  constraint systems_pkey primary key(tenant, id)
);

create table if not exists system_login_users (
  tenant text not null,
  system_id text not null,
  tapis_user text not null,
  login_user text not null,
  constraint system_login_users_pkey primary key(tenant, system_id, tapis_user)
);

create table if not exists system_updates (
  id text not null constraint system_updates_pkey primary key,
  tenant text not null,
  system_id text not null,
  operation text not null,
  description text,
  raw_data text,
  create_time bigint not null
);

create table if not exists scheduler_profiles (
  tenant text not null,
  name text not null,
  description text,
  owner text,
  module_loads text,
  constraint scheduler_profiles_pkey primary key(tenant, name)
);

commit;
`

// TestRepository creates an in-memory sqlite database with the schema applied
// and returns a Repository using it.
func TestRepository(t *testing.T) *Repository {
	t.Helper()
	require := require.New(t)
	conn, _ := dbw.TestSetup(t, dbw.WithTestMigrationUsingDB(func(ctx context.Context, db *sql.DB) error {
		_, err := db.ExecContext(ctx, createTablesSqlite)
		return err
	}))
	repo, err := NewRepository(context.Background(), conn)
	require.NoError(err)
	return repo
}
