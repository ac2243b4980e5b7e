// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package store provides the relational persistence layer for system records,
// login-user mappings, update history and scheduler profiles.
package store

import (
	"context"

	"github.com/tapis-project/systems/internal/systems"
	"github.com/tapis-project/systems/internal/types/operation"
)

// RecordStore is the persistence contract consumed by the authorization
// engine, the credential broker and the system lifecycle.  Lookups of
// missing records return zero values, not errors; callers that require the
// record to exist raise their own RecordNotFound.
type RecordStore interface {
	// CreateSystem persists a new system record.
	CreateSystem(ctx context.Context, s *systems.System) error

	// GetSystem returns the system or nil, nil when it does not exist.  A
	// soft-deleted system is only returned when includeDeleted is set.
	GetSystem(ctx context.Context, tenant, id string, includeDeleted bool) (*systems.System, error)

	// GetSystemOwner returns the owner without loading the whole record, or
	// "" when the system does not exist.
	GetSystemOwner(ctx context.Context, tenant, id string) (string, error)

	// GetDefaultAuthnMethod returns the system's default authn method, or
	// UnknownMethod when the system does not exist.
	GetDefaultAuthnMethod(ctx context.Context, tenant, id string) (systems.AuthnMethod, error)

	// CheckExists reports whether the system exists; soft-deleted systems
	// count only when includeDeleted is set.
	CheckExists(ctx context.Context, tenant, id string, includeDeleted bool) (bool, error)

	// SetEnabled flips the enabled flag.
	SetEnabled(ctx context.Context, tenant, id string, enabled bool) error

	// SetDeleted flips the soft-delete flag.
	SetDeleted(ctx context.Context, tenant, id string, deleted bool) error

	// SetOwner replaces the owner.
	SetOwner(ctx context.Context, tenant, id, owner string) error

	// DeleteSystem removes the row.  Irreversible.
	DeleteSystem(ctx context.Context, tenant, id string) error

	// GetLoginUser returns the mapped host login user for tapisUser, or ""
	// when no mapping exists.
	GetLoginUser(ctx context.Context, tenant, systemId, tapisUser string) (string, error)

	// UpsertLoginUserMapping creates or replaces the mapping.
	UpsertLoginUserMapping(ctx context.Context, tenant, systemId, tapisUser, loginUser string) error

	// DeleteLoginUserMapping removes the mapping; removing a missing mapping
	// is not an error.
	DeleteLoginUserMapping(ctx context.Context, tenant, systemId, tapisUser string) error

	// AppendHistory appends an update-history record for the system.
	AppendHistory(ctx context.Context, tenant, systemId string, op operation.Type, description, rawData string) error
}

// systemRecord is the gorm row for a system.
type systemRecord struct {
	Tenant             string `gorm:"primaryKey;column:tenant"`
	Id                 string `gorm:"primaryKey;column:id"`
	Description        string `gorm:"column:description"`
	SystemType         int    `gorm:"column:system_type"`
	Owner              string `gorm:"column:owner"`
	Host               string `gorm:"column:host"`
	Port               int    `gorm:"column:port"`
	EffectiveUserId    string `gorm:"column:effective_user_id"`
	DefaultAuthnMethod int    `gorm:"column:default_authn_method"`
	BucketName         string `gorm:"column:bucket_name"`
	RootDir            string `gorm:"column:root_dir"`
	DtnSystemId        string `gorm:"column:dtn_system_id"`
	ParentId           string `gorm:"column:parent_id"`
	CanExec            bool   `gorm:"column:can_exec"`
	Enabled            bool   `gorm:"column:enabled"`
	Deleted            bool   `gorm:"column:deleted"`
}

// TableName is used by gorm to map the struct to its table.
func (systemRecord) TableName() string { return "systems" }

func toRecord(s *systems.System) *systemRecord {
	return &systemRecord{
		Tenant:             s.Tenant,
		Id:                 s.Id,
		Description:        s.Description,
		SystemType:         int(s.SystemType),
		Owner:              s.Owner,
		Host:               s.Host,
		Port:               s.Port,
		EffectiveUserId:    s.EffectiveUserId,
		DefaultAuthnMethod: int(s.DefaultAuthnMethod),
		BucketName:         s.BucketName,
		RootDir:            s.RootDir,
		DtnSystemId:        s.DtnSystemId,
		ParentId:           s.ParentId,
		CanExec:            s.CanExec,
		Enabled:            s.Enabled,
		Deleted:            s.Deleted,
	}
}

func (r *systemRecord) toSystem() *systems.System {
	return &systems.System{
		Tenant:             r.Tenant,
		Id:                 r.Id,
		Description:        r.Description,
		SystemType:         systems.Type(r.SystemType),
		Owner:              r.Owner,
		Host:               r.Host,
		Port:               r.Port,
		EffectiveUserId:    r.EffectiveUserId,
		DefaultAuthnMethod: systems.AuthnMethod(r.DefaultAuthnMethod),
		BucketName:         r.BucketName,
		RootDir:            r.RootDir,
		DtnSystemId:        r.DtnSystemId,
		ParentId:           r.ParentId,
		CanExec:            r.CanExec,
		Enabled:            r.Enabled,
		Deleted:            r.Deleted,
	}
}

// loginUserRecord maps (tenant, system, tapis user) to the host login user.
type loginUserRecord struct {
	Tenant    string `gorm:"primaryKey;column:tenant"`
	SystemId  string `gorm:"primaryKey;column:system_id"`
	TapisUser string `gorm:"primaryKey;column:tapis_user"`
	LoginUser string `gorm:"column:login_user"`
}

func (loginUserRecord) TableName() string { return "system_login_users" }

// historyRecord is one append-only update-history entry.
type historyRecord struct {
	Id          string `gorm:"primaryKey;column:id"`
	Tenant      string `gorm:"column:tenant"`
	SystemId    string `gorm:"column:system_id"`
	Operation   string `gorm:"column:operation"`
	Description string `gorm:"column:description"`
	RawData     string `gorm:"column:raw_data"`
	CreateTime  int64  `gorm:"column:create_time"`
}

func (historyRecord) TableName() string { return "system_updates" }

// SchedulerProfile describes a named batch-scheduler environment available to
// systems in a tenant.
type SchedulerProfile struct {
	Tenant      string `gorm:"primaryKey;column:tenant"`
	Name        string `gorm:"primaryKey;column:name"`
	Description string `gorm:"column:description"`
	Owner       string `gorm:"column:owner"`
	ModuleLoads string `gorm:"column:module_loads"`
}

// TableName is used by gorm to map the struct to its table.
func (SchedulerProfile) TableName() string { return "scheduler_profiles" }
