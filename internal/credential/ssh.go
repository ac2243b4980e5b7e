// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package credential

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const defaultDialTimeout = 20 * time.Second

// SSHDialer opens an SSH connection to addr.  The returned closer is closed
// immediately by the verifier; opening the connection is the whole check.
type SSHDialer func(ctx context.Context, addr string, config *ssh.ClientConfig) (io.Closer, error)

func defaultSSHDialer(_ context.Context, addr string, config *ssh.ClientConfig) (io.Closer, error) {
	return ssh.Dial("tcp", addr, config)
}

// verifySSH attempts an SSH connection with the given auth methods and
// classifies the outcome.  It never fails for a credential the host
// rejected: rejection is a validation result, not a fault.
func (b *Broker) verifySSH(ctx context.Context, host string, port int, user string, auth []ssh.AuthMethod) (bool, string) {
	if port <= 0 {
		port = 22
	}
	config := &ssh.ClientConfig{
		User: user,
		Auth: auth,
		// Host keys are not pinned for verification probes; the check proves
		// the credential authenticates, not the host's identity.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         b.dialTimeout,
	}
	conn, err := b.sshDial(ctx, fmt.Sprintf("%s:%d", host, port), config)
	if err != nil {
		if isSSHAuthError(err) {
			return false, fmt.Sprintf("host %s rejected the credentials for user %s: %v", host, user, err)
		}
		return false, fmt.Sprintf("connection to host %s failed: %v", host, err)
	}
	conn.Close()
	return true, "credentials accepted"
}

// isSSHAuthError reports whether an SSH dial failure was an authentication
// rejection rather than a transport problem.
func isSSHAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain") ||
		strings.Contains(msg, "permission denied")
}
