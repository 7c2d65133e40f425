package egress

import (
	"context"
	"os"
	"testing"
)

func TestEnvCredentialResolverResolvesSetVariable(t *testing.T) {
	t.Setenv("TEST_SECRET_NAME", "shh-token")
	resolver := EnvCredentialResolver{}
	value, err := resolver.Resolve(context.Background(), "TEST_SECRET_NAME", CredentialLocation{Kind: LocationAuthorizationBearer})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "shh-token" {
		t.Fatalf("unexpected value: %q", value)
	}
}

func TestEnvCredentialResolverFailsClosedWhenUnset(t *testing.T) {
	_ = os.Unsetenv("TEST_SECRET_MISSING")
	resolver := EnvCredentialResolver{}
	if _, err := resolver.Resolve(context.Background(), "TEST_SECRET_MISSING", CredentialLocation{}); err == nil {
		t.Fatalf("expected an error for an unset credential")
	}
}

func TestOAuth2CredentialResolverFallsBackForUnregisteredSecret(t *testing.T) {
	t.Setenv("PLAIN_SECRET", "plain-value")
	resolver := NewOAuth2CredentialResolver(nil)
	value, err := resolver.Resolve(context.Background(), "PLAIN_SECRET", CredentialLocation{Kind: LocationHeader, Name: "x-api-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "plain-value" {
		t.Fatalf("unexpected value: %q", value)
	}
}

func TestOAuth2CredentialResolverRequiresClientCredentials(t *testing.T) {
	resolver := NewOAuth2CredentialResolver(map[string]OAuth2Config{
		"PARTNER_API": {
			TokenURL:     "https://auth.partner.example/token",
			ClientIDEnv:  "PARTNER_CLIENT_ID",
			ClientSecEnv: "PARTNER_CLIENT_SECRET",
		},
	})
	if _, err := resolver.Resolve(context.Background(), "PARTNER_API", CredentialLocation{Kind: LocationAuthorizationBearer}); err == nil {
		t.Fatalf("expected an error when client id/secret are unset")
	}
}

func TestInjectAppliesEachLocationKind(t *testing.T) {
	headers := map[string]string{}
	query := map[string]string{}

	Inject(CredentialLocation{Kind: LocationAuthorizationBearer}, "tok", headers, query)
	if headers["Authorization"] != "Bearer tok" {
		t.Fatalf("expected Authorization header, got %+v", headers)
	}

	headers = map[string]string{}
	Inject(CredentialLocation{Kind: LocationHeader, Name: "x-api-key"}, "tok", headers, query)
	if headers["x-api-key"] != "tok" {
		t.Fatalf("expected x-api-key header, got %+v", headers)
	}

	Inject(CredentialLocation{Kind: LocationQueryParam, Name: "access_token"}, "tok", headers, query)
	if query["access_token"] != "tok" {
		t.Fatalf("expected access_token query param, got %+v", query)
	}
}
