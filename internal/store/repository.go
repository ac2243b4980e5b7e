// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-dbw"
	"github.com/hashicorp/go-secure-stdlib/base62"
	"github.com/tapis-project/systems/internal/errors"
	"github.com/tapis-project/systems/internal/systems"
	"github.com/tapis-project/systems/internal/types/operation"
)

// Repository is the RecordStore implementation backed by go-dbw.
type Repository struct {
	reader *dbw.RW
	writer *dbw.RW
}

var _ RecordStore = (*Repository)(nil)

// NewRepository creates a Repository from an open connection.
func NewRepository(ctx context.Context, conn *dbw.DB) (*Repository, error) {
	const op = "store.NewRepository"
	if conn == nil {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing database connection")
	}
	rw := dbw.New(conn)
	return &Repository{
		reader: rw,
		writer: rw,
	}, nil
}

// CreateSystem implements RecordStore.
func (r *Repository) CreateSystem(ctx context.Context, s *systems.System) error {
	const op = "store.(Repository).CreateSystem"
	if s == nil {
		return errors.New(ctx, errors.InvalidParameter, op, "missing system")
	}
	if s.Tenant == "" || s.Id == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing tenant or id")
	}
	if err := r.writer.Create(ctx, toRecord(s)); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable),
			errors.WithMsg(fmt.Sprintf("unable to create system %s in tenant %s", s.Id, s.Tenant)))
	}
	return nil
}

// GetSystem implements RecordStore.
func (r *Repository) GetSystem(ctx context.Context, tenant, id string, includeDeleted bool) (*systems.System, error) {
	const op = "store.(Repository).GetSystem"
	if tenant == "" || id == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing tenant or id")
	}
	rec := &systemRecord{}
	err := r.reader.LookupWhere(ctx, rec, "tenant = ? and id = ?", []any{tenant, id})
	switch {
	case errors.Is(err, dbw.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	if rec.Deleted && !includeDeleted {
		return nil, nil
	}
	return rec.toSystem(), nil
}

// GetSystemOwner implements RecordStore.
func (r *Repository) GetSystemOwner(ctx context.Context, tenant, id string) (string, error) {
	const op = "store.(Repository).GetSystemOwner"
	sys, err := r.GetSystem(ctx, tenant, id, true)
	if err != nil {
		return "", errors.Wrap(ctx, err, op)
	}
	if sys == nil {
		return "", nil
	}
	return sys.Owner, nil
}

// GetDefaultAuthnMethod implements RecordStore.
func (r *Repository) GetDefaultAuthnMethod(ctx context.Context, tenant, id string) (systems.AuthnMethod, error) {
	const op = "store.(Repository).GetDefaultAuthnMethod"
	sys, err := r.GetSystem(ctx, tenant, id, true)
	if err != nil {
		return systems.UnknownMethod, errors.Wrap(ctx, err, op)
	}
	if sys == nil {
		return systems.UnknownMethod, nil
	}
	return sys.DefaultAuthnMethod, nil
}

// CheckExists implements RecordStore.
func (r *Repository) CheckExists(ctx context.Context, tenant, id string, includeDeleted bool) (bool, error) {
	const op = "store.(Repository).CheckExists"
	sys, err := r.GetSystem(ctx, tenant, id, includeDeleted)
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	return sys != nil, nil
}

func (r *Repository) setSystemColumn(ctx context.Context, op errors.Op, tenant, id, column string, value any) error {
	rows, err := r.writer.Exec(ctx,
		fmt.Sprintf("update systems set %s = ? where tenant = ? and id = ?", column),
		[]any{value, tenant, id})
	if err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	if rows == 0 {
		return errors.New(ctx, errors.RecordNotFound, op,
			fmt.Sprintf("system %s not found in tenant %s", id, tenant))
	}
	return nil
}

// UpdateSystem rewrites the mutable attributes of a system row.  The
// identity, owner, enabled and deleted columns are governed by their own
// operations and stay untouched.
func (r *Repository) UpdateSystem(ctx context.Context, s *systems.System) error {
	const op = "store.(Repository).UpdateSystem"
	if s == nil || s.Tenant == "" || s.Id == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing tenant or id")
	}
	rows, err := r.writer.Exec(ctx,
		`update systems set
			description = ?, system_type = ?, host = ?, port = ?,
			effective_user_id = ?, default_authn_method = ?, bucket_name = ?,
			root_dir = ?, dtn_system_id = ?, parent_id = ?, can_exec = ?
		where tenant = ? and id = ?`,
		[]any{
			s.Description, int(s.SystemType), s.Host, s.Port,
			s.EffectiveUserId, int(s.DefaultAuthnMethod), s.BucketName,
			s.RootDir, s.DtnSystemId, s.ParentId, s.CanExec,
			s.Tenant, s.Id,
		})
	if err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	if rows == 0 {
		return errors.New(ctx, errors.RecordNotFound, op,
			fmt.Sprintf("system %s not found in tenant %s", s.Id, s.Tenant))
	}
	return nil
}

// SetEnabled implements RecordStore.
func (r *Repository) SetEnabled(ctx context.Context, tenant, id string, enabled bool) error {
	const op = "store.(Repository).SetEnabled"
	return r.setSystemColumn(ctx, op, tenant, id, "enabled", enabled)
}

// SetDeleted implements RecordStore.
func (r *Repository) SetDeleted(ctx context.Context, tenant, id string, deleted bool) error {
	const op = "store.(Repository).SetDeleted"
	return r.setSystemColumn(ctx, op, tenant, id, "deleted", deleted)
}

// SetOwner implements RecordStore.
func (r *Repository) SetOwner(ctx context.Context, tenant, id, owner string) error {
	const op = "store.(Repository).SetOwner"
	if owner == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing owner")
	}
	return r.setSystemColumn(ctx, op, tenant, id, "owner", owner)
}

// DeleteSystem implements RecordStore.
func (r *Repository) DeleteSystem(ctx context.Context, tenant, id string) error {
	const op = "store.(Repository).DeleteSystem"
	rec := &systemRecord{Tenant: tenant, Id: id}
	if _, err := r.writer.Delete(ctx, rec); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	return nil
}

// GetLoginUser implements RecordStore.
func (r *Repository) GetLoginUser(ctx context.Context, tenant, systemId, tapisUser string) (string, error) {
	const op = "store.(Repository).GetLoginUser"
	rec := &loginUserRecord{}
	err := r.reader.LookupWhere(ctx, rec, "tenant = ? and system_id = ? and tapis_user = ?",
		[]any{tenant, systemId, tapisUser})
	switch {
	case errors.Is(err, dbw.ErrRecordNotFound):
		return "", nil
	case err != nil:
		return "", errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	return rec.LoginUser, nil
}

// UpsertLoginUserMapping implements RecordStore.
func (r *Repository) UpsertLoginUserMapping(ctx context.Context, tenant, systemId, tapisUser, loginUser string) error {
	const op = "store.(Repository).UpsertLoginUserMapping"
	if loginUser == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing login user")
	}
	existing, err := r.GetLoginUser(ctx, tenant, systemId, tapisUser)
	if err != nil {
		return errors.Wrap(ctx, err, op)
	}
	if existing == "" {
		rec := &loginUserRecord{Tenant: tenant, SystemId: systemId, TapisUser: tapisUser, LoginUser: loginUser}
		if err := r.writer.Create(ctx, rec); err != nil {
			return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
		}
		return nil
	}
	if _, err := r.writer.Exec(ctx,
		"update system_login_users set login_user = ? where tenant = ? and system_id = ? and tapis_user = ?",
		[]any{loginUser, tenant, systemId, tapisUser}); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	return nil
}

// DeleteLoginUserMapping implements RecordStore.
func (r *Repository) DeleteLoginUserMapping(ctx context.Context, tenant, systemId, tapisUser string) error {
	const op = "store.(Repository).DeleteLoginUserMapping"
	rec := &loginUserRecord{Tenant: tenant, SystemId: systemId, TapisUser: tapisUser}
	if _, err := r.writer.Delete(ctx, rec); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	return nil
}

// AppendHistory implements RecordStore.
func (r *Repository) AppendHistory(ctx context.Context, tenant, systemId string, op operation.Type, description, rawData string) error {
	const callerOp = "store.(Repository).AppendHistory"
	id, err := base62.Random(20)
	if err != nil {
		return errors.Wrap(ctx, err, callerOp, errors.WithCode(errors.Internal))
	}
	rec := &historyRecord{
		Id:          fmt.Sprintf("su_%s", id),
		Tenant:      tenant,
		SystemId:    systemId,
		Operation:   op.String(),
		Description: description,
		RawData:     rawData,
		CreateTime:  time.Now().UnixNano(),
	}
	if err := r.writer.Create(ctx, rec); err != nil {
		return errors.Wrap(ctx, err, callerOp, errors.WithCode(errors.Unavailable))
	}
	return nil
}

// GetHistory returns the update-history records for a system, oldest first.
func (r *Repository) GetHistory(ctx context.Context, tenant, systemId string) ([]HistoryEntry, error) {
	const op = "store.(Repository).GetHistory"
	var recs []*historyRecord
	if err := r.reader.SearchWhere(ctx, &recs, "tenant = ? and system_id = ?",
		[]any{tenant, systemId}); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	out := make([]HistoryEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, HistoryEntry{
			Operation:   rec.Operation,
			Description: rec.Description,
			RawData:     rec.RawData,
			CreateTime:  time.Unix(0, rec.CreateTime),
		})
	}
	return out, nil
}

// HistoryEntry is one returned update-history record.
type HistoryEntry struct {
	Operation   string
	Description string
	RawData     string
	CreateTime  time.Time
}

// CreateSchedulerProfile persists a new scheduler profile.
func (r *Repository) CreateSchedulerProfile(ctx context.Context, p *SchedulerProfile) error {
	const op = "store.(Repository).CreateSchedulerProfile"
	if p == nil || p.Tenant == "" || p.Name == "" {
		return errors.New(ctx, errors.InvalidParameter, op, "missing tenant or name")
	}
	if err := r.writer.Create(ctx, p); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	return nil
}

// GetSchedulerProfile returns the profile or nil, nil when it does not exist.
func (r *Repository) GetSchedulerProfile(ctx context.Context, tenant, name string) (*SchedulerProfile, error) {
	const op = "store.(Repository).GetSchedulerProfile"
	p := &SchedulerProfile{}
	err := r.reader.LookupWhere(ctx, p, "tenant = ? and name = ?", []any{tenant, name})
	switch {
	case errors.Is(err, dbw.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	return p, nil
}

// DeleteSchedulerProfile removes the profile; removing a missing profile is
// not an error.
func (r *Repository) DeleteSchedulerProfile(ctx context.Context, tenant, name string) error {
	const op = "store.(Repository).DeleteSchedulerProfile"
	p := &SchedulerProfile{Tenant: tenant, Name: name}
	if _, err := r.writer.Delete(ctx, p); err != nil {
		return errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	return nil
}
