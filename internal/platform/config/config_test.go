package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"PORT":             "8088",
		"ENVIRONMENT":      "sandbox",
		"CLIENT_ID":        "client-id",
		"CLIENT_SECRET":    "client-secret",
		"SENDGRID_API_KEY": "sg-key",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8088" {
		t.Fatalf("expected port 8088, got %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Fatalf("unexpected read timeout: %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.StaticDir != "web" {
		t.Fatalf("unexpected static dir: %q", cfg.Server.StaticDir)
	}
	if cfg.PSP.Environment != "sandbox" {
		t.Fatalf("unexpected environment: %q", cfg.PSP.Environment)
	}
	if cfg.Pricing.Currency != "USD" {
		t.Fatalf("unexpected currency: %q", cfg.Pricing.Currency)
	}
	if cfg.Pricing.DefaultProduct != "nft" {
		t.Fatalf("unexpected default product: %q", cfg.Pricing.DefaultProduct)
	}
	if cfg.Email.Subject == "" {
		t.Fatal("expected a default mail subject")
	}
}

func TestLoadNormalisesEnvironmentCase(t *testing.T) {
	env := baseEnv()
	env["ENVIRONMENT"] = "PRODUCTION"

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PSP.Environment != "production" {
		t.Fatalf("expected lowercased environment, got %q", cfg.PSP.Environment)
	}
}

func TestLoadValidationError(t *testing.T) {
	env := baseEnv()
	delete(env, "CLIENT_ID")
	delete(env, "SENDGRID_API_KEY")

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
	)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := strings.Join(vErr.Fields(), ",")
	if !strings.Contains(fields, "PSP.PayPalClientID") {
		t.Fatalf("expected PSP.PayPalClientID in missing fields, got %s", fields)
	}
	if !strings.Contains(fields, "Email.SendGridAPIKey") {
		t.Fatalf("expected Email.SendGridAPIKey in missing fields, got %s", fields)
	}
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := strings.Join([]string{
		"# local overrides",
		"PORT=9000",
		"export CLIENT_ID=dotenv-client",
		`CLIENT_SECRET="dotenv-secret"`,
		"SENDGRID_API_KEY=dotenv-key",
	}, "\n")
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("writing env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(envFile),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Fatalf("expected port from env file, got %q", cfg.Server.Port)
	}
	if cfg.PSP.PayPalClientID != "dotenv-client" {
		t.Fatalf("unexpected client id: %q", cfg.PSP.PayPalClientID)
	}
	if cfg.PSP.PayPalSecret != "dotenv-secret" {
		t.Fatalf("expected quotes stripped, got %q", cfg.PSP.PayPalSecret)
	}
}

func TestLoadEnvMapTakesPrecedenceOverDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("PORT=9000\n"), 0o600); err != nil {
		t.Fatalf("writing env file: %v", err)
	}

	cfg, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(envFile),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "8088" {
		t.Fatalf("expected env map value to win, got %q", cfg.Server.Port)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["CLIENT_SECRET"] = "secret://paypal-secret"
	env["SENDGRID_API_KEY"] = "secret://sendgrid-key"

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		switch ref {
		case "secret://paypal-secret":
			return "resolved-paypal", nil
		case "secret://sendgrid-key":
			return "resolved-sendgrid", nil
		default:
			return "", errors.New("unknown ref")
		}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PSP.PayPalSecret != "resolved-paypal" {
		t.Fatalf("unexpected resolved secret: %q", cfg.PSP.PayPalSecret)
	}
	if cfg.Email.SendGridAPIKey != "resolved-sendgrid" {
		t.Fatalf("unexpected resolved key: %q", cfg.Email.SendGridAPIKey)
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := baseEnv()
	env["CLIENT_SECRET"] = "secret://missing"

	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("not found")
	})

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err == nil {
		t.Fatal("expected error")
	}
	var sErr *SecretError
	if !errors.As(err, &sErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if sErr.Ref != "secret://missing" {
		t.Fatalf("unexpected ref: %q", sErr.Ref)
	}
}

func TestFileSecretResolver(t *testing.T) {
	dir := t.TempDir()
	secretsFile := filepath.Join(dir, ".secrets.local")
	if err := os.WriteFile(secretsFile, []byte("paypal-secret=from-file\n"), 0o600); err != nil {
		t.Fatalf("writing secrets file: %v", err)
	}

	env := baseEnv()
	env["CLIENT_SECRET"] = "secret://paypal-secret"

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretsFile(secretsFile),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PSP.PayPalSecret != "from-file" {
		t.Fatalf("unexpected secret value: %q", cfg.PSP.PayPalSecret)
	}
}
