// Package config loads the runtime's configuration: environment
// variables for secrets and network settings, plus an optional
// on-disk YAML file for the egress allowlist and credential mappings,
// hot-reloaded on change.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentcore/runtime/internal/egress"
)

// Config is the runtime's top-level configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Webhook   WebhookConfig
	WebAuth   WebAuthConfig
	LLM       LLMConfig
	Policy    PolicyConfig
	Workspace WorkspaceConfig
	Tracing   TracingConfig
}

// ServerConfig configures the HTTP listener that hosts the webhook,
// websocket, and per-job worker routes.
type ServerConfig struct {
	Host string
	Port uint16
}

// DatabaseConfig configures the persisted conversation/job store.
type DatabaseConfig struct {
	DriverName      string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// WebhookConfig configures the reference HTTP channel adapter.
type WebhookConfig struct {
	Secret string
	UserID string
}

// WebAuthConfig configures the web/websocket channel's bearer auth.
type WebAuthConfig struct {
	Token     string
	JWTSecret string
}

// LLMConfig names the default provider and holds each provider's API key.
type LLMConfig struct {
	DefaultProvider string
	AnthropicAPIKey string
	OpenAIAPIKey    string
}

// PolicyConfig points at the optional on-disk egress allowlist file.
type PolicyConfig struct {
	Path string
}

// WorkspaceConfig roots the sandboxed file tools (read/write/list) at a
// single directory; an empty Root disables those tools entirely.
type WorkspaceConfig struct {
	Root string
}

// TracingConfig configures the OTLP trace exporter; an empty Endpoint
// disables export and the runtime falls back to a no-op tracer.
type TracingConfig struct {
	Endpoint     string
	SamplingRate float64
	Insecure     bool
}

// Load builds a Config from environment variables, applying defaults
// for anything left unset. Ambient settings (ports, secrets, provider
// keys) are process environment by design; only the egress allowlist is
// a separate on-disk file, loaded independently via WatchPolicyFile.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: envOr("AGENTCORE_HOST", "0.0.0.0"),
			Port: 8080,
		},
		Database: DatabaseConfig{
			DriverName:      envOr("DATABASE_DRIVER", "sqlite"),
			DSN:             envOr("DATABASE_URL", "file:agentcore.db?_pragma=busy_timeout(5000)"),
			MaxOpenConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("HTTP_WEBHOOK_SECRET"),
			UserID: envOr("HTTP_WEBHOOK_USER_ID", "webhook"),
		},
		WebAuth: WebAuthConfig{
			Token:     os.Getenv("WEB_AUTH_TOKEN"),
			JWTSecret: os.Getenv("WEB_AUTH_JWT_SECRET"),
		},
		LLM: LLMConfig{
			DefaultProvider: envOr("LLM_DEFAULT_PROVIDER", "anthropic"),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
			OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		},
		Policy: PolicyConfig{
			Path: os.Getenv("AGENTCORE_POLICY_FILE"),
		},
		Workspace: WorkspaceConfig{
			Root: os.Getenv("AGENTCORE_WORKSPACE_ROOT"),
		},
		Tracing: TracingConfig{
			Endpoint:     os.Getenv("AGENTCORE_TRACING_ENDPOINT"),
			SamplingRate: 1.0,
			Insecure:     os.Getenv("AGENTCORE_TRACING_INSECURE") == "true",
		},
	}

	if raw := strings.TrimSpace(os.Getenv("AGENTCORE_TRACING_SAMPLING_RATE")); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid AGENTCORE_TRACING_SAMPLING_RATE: %w", err)
		}
		cfg.Tracing.SamplingRate = rate
	}

	if raw := strings.TrimSpace(os.Getenv("AGENTCORE_PORT")); raw != "" {
		port, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid AGENTCORE_PORT: %w", err)
		}
		cfg.Server.Port = uint16(port)
	}
	if raw := strings.TrimSpace(os.Getenv("DATABASE_MAX_CONNECTIONS")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_MAX_CONNECTIONS: %w", err)
		}
		cfg.Database.MaxOpenConns = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings required for the server to start
// safely; it does not require provider API keys, since a deployment
// may run with only one provider configured.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("config: server port must be non-zero")
	}
	if strings.TrimSpace(c.Webhook.Secret) == "" {
		return fmt.Errorf("config: HTTP_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(c.WebAuth.Token) == "" && strings.TrimSpace(c.WebAuth.JWTSecret) == "" {
		return fmt.Errorf("config: WEB_AUTH_TOKEN or WEB_AUTH_JWT_SECRET is required")
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EgressDefaults returns the runtime's default domain allowlist and
// credential mappings, used when no on-disk policy file is configured.
func EgressDefaults() (*egress.DomainAllowlist, []egress.CredentialMapping) {
	return egress.DefaultAllowlist(), egress.DefaultCredentialMappings()
}
