// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package credential

import "github.com/tapis-project/systems/internal/systems"

// KeyType identifies one independently stored secret entry.  Each group of
// credential fields is stored under its own key type so partial credential
// sets are representable.
type KeyType int

const (
	UnknownKeyType KeyType = 0
	PasswordKey    KeyType = 1
	SSHKey         KeyType = 2
	AccessKeyPair  KeyType = 3
	TokenKey       KeyType = 4
	TMSKey         KeyType = 5
	CertKey        KeyType = 6
)

var KeyTypeMap = map[string]KeyType{
	"unknown":   UnknownKeyType,
	"password":  PasswordKey,
	"sshkey":    SSHKey,
	"accesskey": AccessKeyPair,
	"token":     TokenKey,
	"tmskey":    TMSKey,
	"cert":      CertKey,
}

func (k KeyType) String() string {
	return [...]string{
		"unknown",
		"password",
		"sshkey",
		"accesskey",
		"token",
		"tmskey",
		"cert",
	}[k]
}

// allKeyTypes is every storable key type, probed and destroyed as a set by
// DeleteCredential.
var allKeyTypes = []KeyType{PasswordKey, SSHKey, AccessKeyPair, TokenKey, TMSKey, CertKey}

// keyTypeForMethod maps an authn method to the key type its secret material
// is stored under.
func keyTypeForMethod(m systems.AuthnMethod) KeyType {
	switch m {
	case systems.Password:
		return PasswordKey
	case systems.PKIKeys:
		return SSHKey
	case systems.AccessKey:
		return AccessKeyPair
	case systems.Token:
		return TokenKey
	case systems.TMSKeys:
		return TMSKey
	case systems.Cert:
		return CertKey
	default:
		return UnknownKeyType
	}
}

// Secret data field names.  These are the keys inside a stored secret's data
// map and are part of the stored format; do not rename.
const (
	fieldPassword       = "password"
	fieldPublicKey      = "publicKey"
	fieldPrivateKey     = "privateKey"
	fieldAccessKey      = "accessKey"
	fieldAccessSecret   = "accessSecret"
	fieldAccessToken    = "accessToken"
	fieldRefreshToken   = "refreshToken"
	fieldTmsPublicKey   = "tmsPublicKey"
	fieldTmsPrivateKey  = "tmsPrivateKey"
	fieldTmsFingerprint = "tmsFingerprint"
	fieldCertificate    = "certificate"
	fieldLoginUser      = "loginUser"
)
