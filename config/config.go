// Package config holds the application configuration for the conduit
// server. Values are loaded once at startup and read-only afterwards; in
// particular the token signing secret and the bcrypt cost factor are never
// mutated after load.
package config

import (
	"fmt"
	"time"
)

// AppConfig is the root configuration container.
type AppConfig struct {
	Server      Server      `json:"server" yaml:"server"`
	Auth        Auth        `json:"auth" yaml:"auth"`
	Persistence Persistence `json:"persistence" yaml:"persistence"`
}

// Validate checks the invariants the server cannot start without.
func (a *AppConfig) Validate() error {
	if a.Auth.SigningKey == "" {
		return fmt.Errorf("config: auth.signing_key is required")
	}
	return nil
}

func (a *AppConfig) GetServer() *Server           { return &a.Server }
func (a *AppConfig) GetAuth() *Auth               { return &a.Auth }
func (a *AppConfig) GetPersistence() *Persistence { return &a.Persistence }

// Server holds the HTTP listener options.
type Server struct {
	Address string `json:"address" yaml:"address"`
}

func (s Server) GetAddress() string {
	if s.Address == "" {
		return ":8080"
	}
	return s.Address
}

// Auth holds the credential-issuance options.
type Auth struct {
	SigningKey         string `json:"signing_key" yaml:"signing_key"`
	TokenTTLExpression string `json:"token_ttl" yaml:"token_ttl"`
	Issuer             string `json:"issuer" yaml:"issuer"`
	Scheme             string `json:"scheme" yaml:"scheme"`
	ContextKey         string `json:"context_key" yaml:"context_key"`
	TokenLookup        string `json:"token_lookup" yaml:"token_lookup"`
	BcryptCost         int    `json:"bcrypt_cost" yaml:"bcrypt_cost"`
}

func (a Auth) GetSigningKey() string {
	return a.SigningKey
}

// GetTokenTTL parses the configured lifetime expression, defaulting to the
// fixed one-hour session window.
func (a Auth) GetTokenTTL() time.Duration {
	if a.TokenTTLExpression == "" {
		return time.Hour
	}
	dur, err := time.ParseDuration(a.TokenTTLExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", a.TokenTTLExpression),
		)
	}
	return dur
}

func (a Auth) GetIssuer() string {
	return a.Issuer
}

func (a Auth) GetAuthScheme() string {
	if a.Scheme == "" {
		return "Token"
	}
	return a.Scheme
}

func (a Auth) GetContextKey() string {
	if a.ContextKey == "" {
		return "user"
	}
	return a.ContextKey
}

func (a Auth) GetTokenLookup() string {
	if a.TokenLookup == "" {
		return "header:Authorization"
	}
	return a.TokenLookup
}

func (a Auth) GetBcryptCost() int {
	if a.BcryptCost == 0 {
		return 12
	}
	return a.BcryptCost
}

// Persistence holds the store options.
type Persistence struct {
	Driver                string `json:"driver" yaml:"driver"`
	DSN                   string `json:"dsn" yaml:"dsn"`
	Debug                 bool   `json:"debug" yaml:"debug"`
	PingTimeoutExpression string `json:"ping_timeout" yaml:"ping_timeout"`
}

func (p Persistence) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p Persistence) GetDSN() string {
	if p.DSN == "" {
		return "file:conduit.db?cache=shared&mode=rwc"
	}
	return p.DSN
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

func (p Persistence) GetPingTimeout() time.Duration {
	if p.PingTimeoutExpression == "" {
		return 5 * time.Second
	}
	dur, err := time.ParseDuration(p.PingTimeoutExpression)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", p.PingTimeoutExpression),
		)
	}
	return dur
}
