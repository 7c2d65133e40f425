package egress

import "testing"

func TestEmptyAllowlistDeniesAll(t *testing.T) {
	a := EmptyDomainAllowlist()
	allowed, reason := a.IsAllowed("example.com")
	if allowed {
		t.Fatal("expected empty allowlist to deny")
	}
	if reason != "empty allowlist" {
		t.Fatalf("unexpected reason: %q", reason)
	}
}

func TestExactMatchDoesNotBleed(t *testing.T) {
	a := NewDomainAllowlist("api.example.com")
	if allowed, _ := a.IsAllowed("foo.api.example.com"); allowed {
		t.Fatal("exact pattern should not match a subdomain")
	}
	if allowed, _ := a.IsAllowed("example.com"); allowed {
		t.Fatal("exact pattern should not match the parent domain")
	}
	if allowed, _ := a.IsAllowed("api.example.com"); !allowed {
		t.Fatal("exact pattern should match itself")
	}
}

func TestWildcardMatchesBaseAndSubdomains(t *testing.T) {
	a := NewDomainAllowlist("*.example.com")
	for _, host := range []string{"example.com", "a.example.com", "a.b.example.com"} {
		if allowed, reason := a.IsAllowed(host); !allowed {
			t.Fatalf("expected %q to match wildcard, got denied: %s", host, reason)
		}
	}
	if allowed, _ := a.IsAllowed("exampleXcom"); allowed {
		t.Fatal("wildcard must not match a look-alike domain")
	}
}

func TestExtractHostRoundTrip(t *testing.T) {
	cases := map[string]string{
		"https://api.example.com/v1/endpoint": "api.example.com",
		"http://localhost:8080/api":           "localhost",
		"https://EXAMPLE.COM":                 "example.com",
	}
	for url, want := range cases {
		got, ok := ExtractHost(url)
		if !ok || got != want {
			t.Fatalf("ExtractHost(%q) = (%q, %v), want %q", url, got, ok, want)
		}
	}
	if _, ok := ExtractHost("not-a-url"); ok {
		t.Fatal("expected ExtractHost to reject a non-URL string")
	}
}

func TestExtractHostIPv6(t *testing.T) {
	got, ok := ExtractHost("https://[::1]:8443/path")
	if !ok || got != "::1" {
		t.Fatalf("ExtractHost ipv6 = (%q, %v)", got, ok)
	}
}
