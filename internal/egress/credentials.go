package egress

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

// OAuth2Config names the token endpoint for a credential mapping whose
// secret is an OAuth2 client-credentials grant rather than a static
// API key. Extensions that call OAuth2-flavored APIs (rather than the
// two reference LLM providers, which use static keys) resolve through
// this path instead of a plain environment variable.
type OAuth2Config struct {
	TokenURL     string
	ClientIDEnv  string
	ClientSecEnv string
	Scopes       []string
}

// CredentialResolver turns a NetworkDecision's secret reference into the
// literal value to inject, so the decider stays free of I/O.
type CredentialResolver interface {
	Resolve(ctx context.Context, secretName string, loc CredentialLocation) (string, error)
}

// EnvCredentialResolver resolves a secret name directly against the
// process environment, the default for the two reference LLM
// providers' static API keys.
type EnvCredentialResolver struct{}

func (EnvCredentialResolver) Resolve(_ context.Context, secretName string, _ CredentialLocation) (string, error) {
	value := strings.TrimSpace(os.Getenv(secretName))
	if value == "" {
		return "", fmt.Errorf("egress: credential %q is not set", secretName)
	}
	return value, nil
}

// OAuth2CredentialResolver resolves secret names registered in
// Configs to a bearer token minted via the client-credentials grant,
// falling back to EnvCredentialResolver for anything not registered.
type OAuth2CredentialResolver struct {
	Configs map[string]OAuth2Config
	Fallback CredentialResolver
}

// NewOAuth2CredentialResolver builds a resolver over configs, falling
// back to environment-variable lookup for unregistered secret names.
func NewOAuth2CredentialResolver(configs map[string]OAuth2Config) *OAuth2CredentialResolver {
	return &OAuth2CredentialResolver{Configs: configs, Fallback: EnvCredentialResolver{}}
}

func (r *OAuth2CredentialResolver) Resolve(ctx context.Context, secretName string, loc CredentialLocation) (string, error) {
	cfg, ok := r.Configs[secretName]
	if !ok {
		return r.Fallback.Resolve(ctx, secretName, loc)
	}

	clientID := strings.TrimSpace(os.Getenv(cfg.ClientIDEnv))
	clientSecret := strings.TrimSpace(os.Getenv(cfg.ClientSecEnv))
	if clientID == "" || clientSecret == "" {
		return "", fmt.Errorf("egress: oauth2 credential %q missing client id/secret", secretName)
	}

	source := (&clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}).TokenSource(ctx)

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("egress: oauth2 token fetch for %q: %w", secretName, err)
	}
	return token.AccessToken, nil
}

// Inject applies a resolved credential to an outbound request
// descriptor, mutating headers/query as loc dictates. Callers (the
// http tool, extension host) pass in the maps they will actually send.
func Inject(loc CredentialLocation, value string, headers map[string]string, query map[string]string) {
	switch loc.Kind {
	case LocationAuthorizationBearer:
		headers["Authorization"] = "Bearer " + value
	case LocationHeader:
		if loc.Name != "" {
			headers[loc.Name] = value
		}
	case LocationQueryParam:
		if loc.Name != "" {
			query[loc.Name] = value
		}
	}
}
