// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package credential

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"

	"github.com/mikesmitty/edkey"
	"github.com/tapis-project/systems/internal/errors"
	"golang.org/x/crypto/ssh"
)

// generateTMSKeyPair issues a fresh ed25519 keypair in OpenSSH format along
// with its SHA256 fingerprint, for hosts configured to trust Tapis-issued
// keys.
func generateTMSKeyPair(ctx context.Context) (publicKey, privateKey, fingerprint string, err error) {
	const op = "credential.generateTMSKeyPair"
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", "", errors.Wrap(ctx, err, op, errors.WithCode(errors.Internal),
			errors.WithMsg("unable to generate keypair"))
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", "", "", errors.Wrap(ctx, err, op, errors.WithCode(errors.Internal),
			errors.WithMsg("unable to convert public key"))
	}
	privPem := pem.EncodeToMemory(&pem.Block{
		Type:  "OPENSSH PRIVATE KEY",
		Bytes: edkey.MarshalED25519PrivateKey(priv),
	})
	return string(ssh.MarshalAuthorizedKey(sshPub)),
		string(privPem),
		ssh.FingerprintSHA256(sshPub),
		nil
}
