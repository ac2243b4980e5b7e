// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package credential

import (
	"context"
	"fmt"
	"strings"

	"github.com/tapis-project/systems/internal/errors"
	"github.com/tapis-project/systems/internal/systems"
	"golang.org/x/crypto/ssh"
)

// supportsVerification reports whether a live connection check exists for the
// system type and authn method pair.
func supportsVerification(t systems.Type, m systems.AuthnMethod) bool {
	switch {
	case t == systems.Linux && (m == systems.Password || m == systems.PKIKeys):
		return true
	case t == systems.S3 && m == systems.AccessKey:
		return true
	}
	return false
}

// VerifyConnection performs the method-specific live check and stamps a
// definitive validation result and message onto cred.  A rejected or
// unverifiable credential is a result, never an error: the only errors are
// invalid arguments.  Unsupported (system type, method) pairs short-circuit
// with a false result and no network activity.
func (b *Broker) VerifyConnection(ctx context.Context, sys *systems.System, method systems.AuthnMethod, cred *systems.Credential, effectiveUser string) error {
	const op = "credential.(Broker).VerifyConnection"
	if sys == nil {
		return errors.New(ctx, errors.InvalidParameter, op, "missing system")
	}
	if cred == nil {
		return errors.New(ctx, errors.InvalidParameter, op, "missing credential")
	}
	if !supportsVerification(sys.SystemType, method) {
		cred.SetValidation(false, fmt.Sprintf(
			"credential verification is not supported for method %s on a system of type %s",
			method, sys.SystemType))
		return nil
	}

	var ok bool
	var msg string
	switch {
	case sys.SystemType == systems.Linux && method == systems.Password:
		if cred.Password == "" {
			cred.SetValidation(false, "no password provided to verify")
			return nil
		}
		ok, msg = b.verifySSH(ctx, sys.Host, sys.Port, effectiveUser,
			[]ssh.AuthMethod{ssh.Password(cred.Password)})

	case sys.SystemType == systems.Linux && method == systems.PKIKeys:
		signer, err := ssh.ParsePrivateKey([]byte(cred.PrivateKey))
		if err != nil {
			cred.SetValidation(false, fmt.Sprintf("unable to parse private key: %v", err))
			return nil
		}
		ok, msg = b.verifySSH(ctx, sys.Host, sys.Port, effectiveUser,
			[]ssh.AuthMethod{ssh.PublicKeys(signer)})

	case sys.SystemType == systems.S3 && method == systems.AccessKey:
		ok, msg = b.verifyS3(ctx, s3Endpoint(sys.Host), sys.BucketName, cred.AccessKey, cred.AccessSecret)
	}
	cred.SetValidation(ok, msg)
	return nil
}

// s3Endpoint normalizes a host attribute into an endpoint URL.
func s3Endpoint(host string) string {
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}
