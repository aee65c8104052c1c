package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"strings"

	"github.com/forcessl/forcessl/internal/forcessl"
)

// Config holds all runtime configuration for the forcessl server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir             string
	HTTPPort            int
	HTTPSPort           int
	TLSCert             string
	TLSKey              string
	ACMEDomain          string // domain for automatic Let's Encrypt certificate
	ACMEEmail           string // contact email for Let's Encrypt account notifications
	RESTAPI             bool   // whether the JSON REST API subsystem is loaded
	TrustForwardedProto bool   // believe X-Forwarded-Proto and friends
	TrustedProxies      string // comma-separated CIDRs or IPs allowed to send forwarded headers
	RedirectAll         bool   // plain-HTTP listener redirects every path when TLS is on
	CORSOrigins         string
	JWTSecret           string // hex-encoded 32-byte secret for bearer token signing
	APIUser             string
	APIPassword         string
	RateLimit           float64 // REST API requests per second per client IP
	RateBurst           int
	LogLevel            string
	LogFormat           string // "text" or "json"
}

// defaults
const (
	defaultDataDir   = "./data"
	defaultHTTPPort  = 8080
	defaultHTTPSPort = 8443
	defaultRateLimit = 20
	defaultRateBurst = 40
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// envPrefix is the prefix for all forcessl environment variables.
const envPrefix = "FORCESSL_"

// Load parses configuration from os.Args and the environment.
func Load() (*Config, error) {
	return Parse(os.Args[1:], os.LookupEnv)
}

// Parse parses configuration from args and the environment as seen through
// lookupEnv. Precedence: CLI flags > env vars > defaults.
func Parse(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("forcessl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the posts database")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "plain HTTP listen port")
	fs.IntVar(&cfg.HTTPSPort, "https-port", defaultHTTPSPort, "HTTPS listen port (used when TLS is configured)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", "", "path to TLS certificate file")
	fs.StringVar(&cfg.TLSKey, "tls-key", "", "path to TLS private key file")
	fs.StringVar(&cfg.ACMEDomain, "acme-domain", "", "domain for automatic Let's Encrypt TLS certificate (e.g., api.example.com)")
	fs.StringVar(&cfg.ACMEEmail, "acme-email", "", "contact email for Let's Encrypt account notifications")
	fs.BoolVar(&cfg.RESTAPI, "rest-api", true, "load the JSON REST API (when false, SSL enforcement is not installed)")
	fs.BoolVar(&cfg.TrustForwardedProto, "trust-forwarded-proto", false, "treat X-Forwarded-Proto/Forwarded https from trusted proxies as secure")
	fs.StringVar(&cfg.TrustedProxies, "trusted-proxies", "", "comma-separated CIDRs or IPs of proxies allowed to send forwarded headers (empty trusts all)")
	fs.BoolVar(&cfg.RedirectAll, "redirect-all", false, "when TLS is on, redirect every plain HTTP path, not only the REST API")
	fs.StringVar(&cfg.CORSOrigins, "cors-origins", "", "comma-separated list of allowed CORS origins (use * for all)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "hex-encoded 32-byte secret for bearer token signing (auto-generated if empty)")
	fs.StringVar(&cfg.APIUser, "api-user", "", "username allowed to obtain REST API tokens")
	fs.StringVar(&cfg.APIPassword, "api-password", "", "password for api-user")
	fs.Float64Var(&cfg.RateLimit, "rate-limit", defaultRateLimit, "REST API requests per second per client IP")
	fs.IntVar(&cfg.RateBurst, "rate-burst", defaultRateBurst, "REST API burst size per client IP")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := applyEnvOverrides(fs, lookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides sets every flag that was not given on the command line
// from its FORCESSL_ environment variable (flag name upper-cased, dashes to
// underscores). Values go through the flag's own parser, so a malformed
// number or boolean is an error rather than silently ignored.
func applyEnvOverrides(fs *flag.FlagSet, lookupEnv func(string) (string, bool)) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	var firstErr error
	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] || firstErr != nil {
			return
		}
		envVar := EnvName(f.Name)
		val, ok := lookupEnv(envVar)
		if !ok || val == "" {
			return
		}
		if err := f.Value.Set(val); err != nil {
			firstErr = fmt.Errorf("parsing %s: %w", envVar, err)
		}
	})
	return firstErr
}

// EnvName returns the environment variable consulted for a flag.
func EnvName(flagName string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.HTTPSPort < 1 || c.HTTPSPort > 65535 {
		return fmt.Errorf("https-port must be between 1 and 65535, got %d", c.HTTPSPort)
	}
	if c.TLSEnabled() && c.HTTPPort == c.HTTPSPort {
		return fmt.Errorf("http-port and https-port must differ when TLS is enabled, both are %d", c.HTTPPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	// TLS cert and key must both be set or both be empty.
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls-cert and tls-key must both be provided or both be omitted")
	}
	if c.ACMEDomain != "" && c.TLSCert != "" {
		return fmt.Errorf("acme-domain and tls-cert/tls-key are mutually exclusive")
	}

	if c.RateLimit <= 0 {
		return fmt.Errorf("rate-limit must be positive, got %g", c.RateLimit)
	}
	if c.RateBurst < 1 {
		return fmt.Errorf("rate-burst must be at least 1, got %d", c.RateBurst)
	}

	if (c.APIUser == "") != (c.APIPassword == "") {
		return fmt.Errorf("api-user and api-password must both be provided or both be omitted")
	}

	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	if c.JWTSecret != "" {
		if _, err := c.JWTSecretBytes(); err != nil {
			return err
		}
	}

	return nil
}

// TLSEnabled returns true if either manual TLS certificates or automatic
// ACME (Let's Encrypt) certificates are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" || c.ACMEDomain != ""
}

// TrustedProxyPrefixes parses TrustedProxies. Bare IPs become single-address
// prefixes.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, raw := range strings.Split(c.TrustedProxies, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted-proxies: %w", err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted-proxies: %w", err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Trust returns the forwarded-protocol trust settings for the SSL filter.
func (c *Config) Trust() forcessl.Trust {
	// validate has already parsed the prefixes successfully.
	prefixes, _ := c.TrustedProxyPrefixes()
	return forcessl.Trust{
		ForwardedProto: c.TrustForwardedProto,
		Proxies:        prefixes,
	}
}

// RedirectPort is the port put in redirect targets: the local HTTPS port when
// this process terminates TLS, otherwise 0 to keep the Host header's port
// (a TLS-terminating proxy in front decides the public port).
func (c *Config) RedirectPort() int {
	if c.TLSEnabled() {
		return c.HTTPSPort
	}
	return 0
}

// JWTSecretBytes returns the decoded 32-byte bearer token signing secret.
// If no secret is configured, it generates a random 32-byte key and stores
// the hex-encoded value back in the config for the process lifetime.
func (c *Config) JWTSecretBytes() ([]byte, error) {
	if c.JWTSecret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		c.JWTSecret = hex.EncodeToString(key)
		slog.Warn("no jwt-secret configured, generated ephemeral key (tokens will not survive restart)")
		return key, nil
	}
	key, err := hex.DecodeString(c.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding jwt secret: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("jwt secret must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

