// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package systems

// Credential is a bundle of optional secret fields for one target user on one
// system.  It is never persisted here; it only lives in memory while being
// brokered to or from the secret store.
type Credential struct {
	// LoginUser is the host username the credential authenticates as.  Only
	// meaningful for systems with a dynamic effective user.
	LoginUser string

	Password string

	PublicKey  string
	PrivateKey string

	AccessKey    string
	AccessSecret string

	AccessToken  string
	RefreshToken string

	TmsPublicKey   string
	TmsPrivateKey  string
	TmsFingerprint string

	Certificate string

	// Validation is a tri-state: nil means the credential was never checked,
	// otherwise it reports the outcome of the live connection check.
	Validation    *bool
	ValidationMsg string
}

// HasPassword reports whether the password group is populated.
func (c *Credential) HasPassword() bool { return c.Password != "" }

// HasPKIKeys reports whether the PKI group is populated.
func (c *Credential) HasPKIKeys() bool { return c.PrivateKey != "" || c.PublicKey != "" }

// HasAccessKeyPair reports whether the access key group is populated.
func (c *Credential) HasAccessKeyPair() bool { return c.AccessKey != "" || c.AccessSecret != "" }

// HasTokens reports whether the token group is populated.
func (c *Credential) HasTokens() bool { return c.AccessToken != "" || c.RefreshToken != "" }

// HasTMSKeys reports whether the TMS group is populated.
func (c *Credential) HasTMSKeys() bool { return c.TmsPublicKey != "" || c.TmsPrivateKey != "" }

// HasCertificate reports whether the certificate group is populated.
func (c *Credential) HasCertificate() bool { return c.Certificate != "" }

// SetValidation stamps a definitive validation result and message onto the
// credential.
func (c *Credential) SetValidation(ok bool, msg string) {
	c.Validation = &ok
	c.ValidationMsg = msg
}

// Masked returns a copy with every secret field replaced by a fixed mask, for
// history records and logs.
func (c *Credential) Masked() Credential {
	const mask = "*****"
	out := Credential{
		LoginUser:      c.LoginUser,
		Validation:     c.Validation,
		ValidationMsg:  c.ValidationMsg,
		TmsFingerprint: c.TmsFingerprint,
	}
	if c.Password != "" {
		out.Password = mask
	}
	if c.PublicKey != "" {
		out.PublicKey = c.PublicKey // public half is not a secret
	}
	if c.PrivateKey != "" {
		out.PrivateKey = mask
	}
	if c.AccessKey != "" {
		out.AccessKey = mask
	}
	if c.AccessSecret != "" {
		out.AccessSecret = mask
	}
	if c.AccessToken != "" {
		out.AccessToken = mask
	}
	if c.RefreshToken != "" {
		out.RefreshToken = mask
	}
	if c.TmsPublicKey != "" {
		out.TmsPublicKey = c.TmsPublicKey
	}
	if c.TmsPrivateKey != "" {
		out.TmsPrivateKey = mask
	}
	if c.Certificate != "" {
		out.Certificate = mask
	}
	return out
}
