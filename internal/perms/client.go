// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package perms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"github.com/tapis-project/systems/internal/errors"
)

const (
	// clientTimeout bounds every call to the permission authority; the
	// authorization engine must fail closed rather than hang.
	clientTimeout = 30 * time.Second

	defaultRetryMax = 2
)

// Client is an Authority implementation backed by the permission authority's
// REST API.  Calls use fixed connect/read timeouts and a small retry budget
// for idempotent requests.
type Client struct {
	addr  string
	token string
	http  *retryablehttp.Client
}

var _ Authority = (*Client)(nil)

// NewClient creates a Client for the authority at addr, authenticating with
// the provided service token.
func NewClient(ctx context.Context, addr, token string) (*Client, error) {
	const op = "perms.NewClient"
	if addr == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing address")
	}
	if token == "" {
		return nil, errors.New(ctx, errors.InvalidParameter, op, "missing token")
	}
	c := retryablehttp.NewClient()
	c.RetryMax = defaultRetryMax
	c.Logger = nil
	c.HTTPClient = cleanhttp.DefaultPooledClient()
	c.HTTPClient.Timeout = clientTimeout
	return &Client{
		addr:  addr,
		token: token,
		http:  c,
	}, nil
}

type permRequest struct {
	Tenant    string   `json:"tenant"`
	User      string   `json:"user,omitempty"`
	Grantee   string   `json:"grantee,omitempty"`
	SystemId  string   `json:"systemId,omitempty"`
	PermSpec  string   `json:"permSpec,omitempty"`
	PermSpecs []string `json:"permSpecs,omitempty"`
	Privilege string   `json:"privilege,omitempty"`
}

type permResponse struct {
	Allowed   bool     `json:"allowed"`
	PermSpecs []string `json:"permSpecs"`
	Shares    []struct {
		Grantee   string `json:"grantee"`
		Privilege string `json:"privilege"`
	} `json:"shares"`
}

func (c *Client) post(ctx context.Context, path string, body permRequest) (*permResponse, error) {
	const op = "perms.(Client).post"
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Internal))
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.addr+path, bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Internal))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tapis-Token", c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable),
			errors.WithMsg(fmt.Sprintf("permission authority call %s failed", path)))
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(ctx, errors.Unavailable, op,
			fmt.Sprintf("permission authority call %s returned status %d: %s", path, resp.StatusCode, string(raw)))
	}
	var out permResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(ctx, err, op, errors.WithCode(errors.Unavailable),
			errors.WithMsg("permission authority returned an unparsable response"))
	}
	return &out, nil
}

// IsPermitted implements Authority.
func (c *Client) IsPermitted(ctx context.Context, tenant, user, permSpec string) (bool, error) {
	const op = "perms.(Client).IsPermitted"
	resp, err := c.post(ctx, "/v3/perms/isPermitted", permRequest{Tenant: tenant, User: user, PermSpec: permSpec})
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	return resp.Allowed, nil
}

// IsPermittedAny implements Authority.
func (c *Client) IsPermittedAny(ctx context.Context, tenant, user string, permSpecs []string) (bool, error) {
	const op = "perms.(Client).IsPermittedAny"
	resp, err := c.post(ctx, "/v3/perms/isPermittedAny", permRequest{Tenant: tenant, User: user, PermSpecs: permSpecs})
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	return resp.Allowed, nil
}

// Grant implements Authority.
func (c *Client) Grant(ctx context.Context, tenant, user, permSpec string) error {
	const op = "perms.(Client).Grant"
	if _, err := c.post(ctx, "/v3/perms/grant", permRequest{Tenant: tenant, User: user, PermSpec: permSpec}); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// Revoke implements Authority.
func (c *Client) Revoke(ctx context.Context, tenant, user, permSpec string) error {
	const op = "perms.(Client).Revoke"
	if _, err := c.post(ctx, "/v3/perms/revoke", permRequest{Tenant: tenant, User: user, PermSpec: permSpec}); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// GetPermissions implements Authority.  Wildcard grants expand to every
// permission.
func (c *Client) GetPermissions(ctx context.Context, tenant, user, systemId string) ([]Permission, error) {
	const op = "perms.(Client).GetPermissions"
	resp, err := c.post(ctx, "/v3/perms/list", permRequest{Tenant: tenant, User: user, SystemId: systemId})
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	var out []Permission
	for _, spec := range resp.PermSpecs {
		specTenant, p, specSystem, err := ParseSpecStr(spec)
		if err != nil || specTenant != tenant || specSystem != systemId {
			continue
		}
		if p == UnknownPermission { // wildcard
			return []Permission{Read, Modify, Execute}, nil
		}
		if !ContainsPermission(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// IsAdmin implements Authority.
func (c *Client) IsAdmin(ctx context.Context, tenant, user string) (bool, error) {
	const op = "perms.(Client).IsAdmin"
	resp, err := c.post(ctx, "/v3/roles/isAdmin", permRequest{Tenant: tenant, User: user})
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	return resp.Allowed, nil
}

// HasPrivilege implements Authority.
func (c *Client) HasPrivilege(ctx context.Context, tenant, user, systemId string, priv Privilege) (bool, error) {
	const op = "perms.(Client).HasPrivilege"
	resp, err := c.post(ctx, "/v3/shares/has", permRequest{Tenant: tenant, Grantee: user, SystemId: systemId, Privilege: priv.String()})
	if err != nil {
		return false, errors.Wrap(ctx, err, op)
	}
	return resp.Allowed, nil
}

// ShareResource implements Authority.
func (c *Client) ShareResource(ctx context.Context, tenant, grantee, systemId string, priv Privilege) error {
	const op = "perms.(Client).ShareResource"
	if _, err := c.post(ctx, "/v3/shares/create", permRequest{Tenant: tenant, Grantee: grantee, SystemId: systemId, Privilege: priv.String()}); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// DeleteShare implements Authority.
func (c *Client) DeleteShare(ctx context.Context, tenant, grantee, systemId string, priv Privilege) error {
	const op = "perms.(Client).DeleteShare"
	if _, err := c.post(ctx, "/v3/shares/delete", permRequest{Tenant: tenant, Grantee: grantee, SystemId: systemId, Privilege: priv.String()}); err != nil {
		return errors.Wrap(ctx, err, op)
	}
	return nil
}

// GetShares implements Authority.
func (c *Client) GetShares(ctx context.Context, tenant, systemId string) ([]ShareRecord, error) {
	const op = "perms.(Client).GetShares"
	resp, err := c.post(ctx, "/v3/shares/list", permRequest{Tenant: tenant, SystemId: systemId})
	if err != nil {
		return nil, errors.Wrap(ctx, err, op)
	}
	out := make([]ShareRecord, 0, len(resp.Shares))
	for _, s := range resp.Shares {
		priv := UnknownPrivilege
		switch s.Privilege {
		case SharedRead.String():
			priv = SharedRead
		case SharedExecute.String():
			priv = SharedExecute
		}
		out = append(out, ShareRecord{
			Tenant:    tenant,
			SystemId:  systemId,
			Grantee:   s.Grantee,
			Privilege: priv,
		})
	}
	return out, nil
}
