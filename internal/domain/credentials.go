package domain

import "errors"

// CredentialsProvider supplies the API credential pair. The core never
// reads the process environment; whatever loads the credentials (config
// file, env, vault) sits behind this interface.
type CredentialsProvider interface {
	APIKey() string
	APISecret() string
}

// Credentials holds the immutable API credential pair for the process
// lifetime. The fields are unexported and the Stringer masks them, so
// the secret cannot leak through struct printing.
type Credentials struct {
	apiKey    string
	apiSecret string
}

// NewCredentials validates and captures the provider's credential pair.
// Missing values surface as ConfigError before any request is attempted.
func NewCredentials(p CredentialsProvider) (Credentials, error) {
	if p == nil {
		return Credentials{}, &ConfigError{Field: "credentials", Err: errors.New("no credentials provider")}
	}
	key := p.APIKey()
	secret := p.APISecret()
	if key == "" {
		return Credentials{}, &ConfigError{Field: "api_key", Err: errors.New("API key is not set")}
	}
	if secret == "" {
		return Credentials{}, &ConfigError{Field: "api_secret", Err: errors.New("API secret is not set")}
	}
	return Credentials{apiKey: key, apiSecret: secret}, nil
}

// APIKey returns the public API key. Sent as a request header, never logged.
func (c Credentials) APIKey() string {
	return c.apiKey
}

// APISecret returns the signing secret. Used only as HMAC key material;
// must never appear in logs or error text.
func (c Credentials) APISecret() string {
	return c.apiSecret
}

// String masks both values so accidental %v/%s formatting stays safe.
func (c Credentials) String() string {
	return "credentials(***)"
}
