package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultEnvFile        = ".env"
	defaultSecretsFile    = ".secrets.local"
	defaultPort           = "3000"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultEnvironment    = "sandbox"
	defaultStaticDir      = "web"
	defaultCurrency       = "USD"
	defaultProduct        = "nft"
	defaultMailFrom       = "receipts@mintgate.example"
	defaultMailSubject    = "Thank you for purchasing our NFT!"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server  ServerConfig
	PSP     PSPConfig
	Email   EmailConfig
	Pricing PricingConfig
}

// ServerConfig configures HTTP server parameters and static asset serving.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	StaticDir    string
}

// PSPConfig collects credentials and environment selection for the payment provider.
type PSPConfig struct {
	PayPalClientID string
	PayPalSecret   string
	Environment    string
}

// EmailConfig holds the transactional-email delivery settings.
type EmailConfig struct {
	SendGridAPIKey string
	FromAddress    string
	Subject        string
}

// PricingConfig fixes the catalog currency and the product used when callers omit one.
type PricingConfig struct {
	Currency       string
	DefaultProduct string
}

// SecretResolver resolves references to externally stored secrets.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	secretsFile  string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithSecretsFile overrides the local secrets file consulted by the default resolver.
func WithSecretsFile(path string) Option {
	return func(o *loaderOptions) {
		o.secretsFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret resolution.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		secretsFile:  defaultSecretsFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.secret == nil {
		options.secret = fileSecretResolver{path: options.secretsFile}
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			StaticDir:    stringWithDefault(lookup, "STATIC_DIR", defaultStaticDir),
		},
		PSP: PSPConfig{
			PayPalClientID: stringWithDefault(lookup, "CLIENT_ID", ""),
			PayPalSecret:   stringWithDefault(lookup, "CLIENT_SECRET", ""),
			Environment:    strings.ToLower(stringWithDefault(lookup, "ENVIRONMENT", defaultEnvironment)),
		},
		Email: EmailConfig{
			SendGridAPIKey: stringWithDefault(lookup, "SENDGRID_API_KEY", ""),
			FromAddress:    stringWithDefault(lookup, "MAIL_FROM", defaultMailFrom),
			Subject:        stringWithDefault(lookup, "MAIL_SUBJECT", defaultMailSubject),
		},
		Pricing: PricingConfig{
			Currency:       strings.ToUpper(stringWithDefault(lookup, "PRICING_CURRENCY", defaultCurrency)),
			DefaultProduct: stringWithDefault(lookup, "PRICING_DEFAULT_PRODUCT", defaultProduct),
		},
	}

	// Resolve values that reference externally stored secrets.
	secretFields := []struct {
		name  string
		field *string
	}{
		{"PSP.PayPalSecret", &cfg.PSP.PayPalSecret},
		{"Email.SendGridAPIKey", &cfg.Email.SendGridAPIKey},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	ref := strings.TrimSpace(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errors.New("secret resolver not configured")}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.PSP.PayPalClientID == "" {
		missing = append(missing, "PSP.PayPalClientID")
	}
	if cfg.PSP.PayPalSecret == "" {
		missing = append(missing, "PSP.PayPalSecret")
	}
	if cfg.Email.SendGridAPIKey == "" {
		missing = append(missing, "Email.SendGridAPIKey")
	}
	if cfg.Pricing.Currency == "" {
		missing = append(missing, "Pricing.Currency")
	}
	if cfg.Pricing.DefaultProduct == "" {
		missing = append(missing, "Pricing.DefaultProduct")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "secret://")
}

// fileSecretResolver resolves secret://NAME references against a local key=value file.
type fileSecretResolver struct {
	path string
}

// ResolveSecret looks the reference up in the configured secrets file.
func (r fileSecretResolver) ResolveSecret(_ context.Context, ref string) (string, error) {
	name := strings.TrimPrefix(strings.TrimSpace(ref), "secret://")
	if name == "" {
		return "", errors.New("empty secret reference")
	}
	values, err := loadDotEnv(r.path)
	if err != nil {
		return "", err
	}
	if value, ok := values[name]; ok && value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret %q not found in %s", name, r.path)
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}
