package egress

import "testing"

func TestDefaultPolicyDeciderDeniesOutsideAllowlist(t *testing.T) {
	decider := NewDefaultPolicyDecider(NewDomainAllowlist("api.openai.com"), nil)
	req, _ := RequestFromURL("GET", "https://evil.example.com/steal")
	decision := decider.Decide(req)
	if decision.Kind != DecisionDeny {
		t.Fatalf("expected Deny, got %+v", decision)
	}
}

func TestDefaultPolicyDeciderInjectsCredentials(t *testing.T) {
	decider := NewDefaultPolicyDecider(DefaultAllowlist(), DefaultCredentialMappings())
	req, ok := RequestFromURL("POST", "https://api.openai.com/v1/chat/completions")
	if !ok {
		t.Fatal("expected a valid request fingerprint")
	}
	decision := decider.Decide(req)
	if decision.Kind != DecisionAllowWithCredentials {
		t.Fatalf("expected AllowWithCredentials, got %+v", decision)
	}
	if decision.SecretName != "OPENAI_API_KEY" {
		t.Fatalf("unexpected secret name: %s", decision.SecretName)
	}
	if decision.Location.Kind != LocationAuthorizationBearer {
		t.Fatalf("unexpected location: %+v", decision.Location)
	}
}

func TestDefaultPolicyDeciderPlainAllow(t *testing.T) {
	decider := NewDefaultPolicyDecider(NewDomainAllowlist("github.com"), nil)
	req, _ := RequestFromURL("GET", "https://github.com/agentcore/runtime")
	decision := decider.Decide(req)
	if decision.Kind != DecisionAllow {
		t.Fatalf("expected plain Allow, got %+v", decision)
	}
}

func TestAllowAllAndDenyAllDeciders(t *testing.T) {
	req, _ := RequestFromURL("GET", "https://anything.example.com")
	if d := (AllowAllDecider{}).Decide(req); !d.IsAllowed() {
		t.Fatal("AllowAllDecider should always allow")
	}
	if d := (DenyAllDecider{Reason: "no network"}).Decide(req); d.IsAllowed() {
		t.Fatal("DenyAllDecider should never allow")
	}
}
