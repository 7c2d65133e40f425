package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AGENTCORE_HOST", "AGENTCORE_PORT", "DATABASE_DRIVER", "DATABASE_URL",
		"DATABASE_MAX_CONNECTIONS", "HTTP_WEBHOOK_SECRET", "HTTP_WEBHOOK_USER_ID",
		"WEB_AUTH_TOKEN", "WEB_AUTH_JWT_SECRET", "LLM_DEFAULT_PROVIDER",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "AGENTCORE_POLICY_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresWebhookSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEB_AUTH_TOKEN", "shared-secret")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error when HTTP_WEBHOOK_SECRET is unset")
	}
}

func TestLoadRequiresWebAuthCredential(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_WEBHOOK_SECRET", "wh-secret")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error when neither WEB_AUTH_TOKEN nor WEB_AUTH_JWT_SECRET is set")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_WEBHOOK_SECRET", "wh-secret")
	t.Setenv("WEB_AUTH_TOKEN", "shared-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Database.DriverName != "sqlite" {
		t.Fatalf("unexpected database driver: %s", cfg.Database.DriverName)
	}
	if cfg.LLM.DefaultProvider != "anthropic" {
		t.Fatalf("unexpected default provider: %s", cfg.LLM.DefaultProvider)
	}
}

func TestLoadHonorsPortOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_WEBHOOK_SECRET", "wh-secret")
	t.Setenv("WEB_AUTH_TOKEN", "shared-secret")
	t.Setenv("AGENTCORE_PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("expected port 9999, got %d", cfg.Server.Port)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_WEBHOOK_SECRET", "wh-secret")
	t.Setenv("WEB_AUTH_TOKEN", "shared-secret")
	t.Setenv("AGENTCORE_PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for a non-numeric AGENTCORE_PORT")
	}
}

func TestLoadPolicyFileParsesAllowlistAndCredentials(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
allowlist:
  - api.openai.com
  - "*.github.com"
credentials:
  - domain: api.openai.com
    secret_name: OPENAI_API_KEY
    location: authorization_bearer
  - domain: api.anthropic.com
    secret_name: ANTHROPIC_API_KEY
    location: "header:x-api-key"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	allowlist, creds, err := loadPolicyFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed, _ := allowlist.IsAllowed("api.openai.com"); !allowed {
		t.Fatalf("expected api.openai.com to be allowed")
	}
	if allowed, _ := allowlist.IsAllowed("docs.github.com"); !allowed {
		t.Fatalf("expected wildcard *.github.com to allow docs.github.com")
	}
	if len(creds) != 2 {
		t.Fatalf("expected 2 credential mappings, got %d", len(creds))
	}
}

func TestWatchPolicyFileLoadsInitialSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("allowlist:\n  - api.openai.com\n"), 0o600); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	store, stop, err := WatchPolicyFile(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stop()

	if allowed, _ := store.Allowlist().IsAllowed("api.openai.com"); !allowed {
		t.Fatalf("expected initial allowlist to permit api.openai.com")
	}
	if allowed, _ := store.Allowlist().IsAllowed("evil.example.com"); allowed {
		t.Fatalf("expected evil.example.com to be denied initially")
	}
}
