package workerauth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestCreateTokenAndValidate(t *testing.T) {
	store := NewTokenStore()
	jobID := uuid.New()

	token, err := store.CreateToken(jobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(token) != tokenBytes*2 {
		t.Fatalf("expected %d hex chars, got %d", tokenBytes*2, len(token))
	}

	if !store.Validate(jobID, token) {
		t.Fatalf("expected token to validate")
	}
	if store.Validate(jobID, "wrong-token") {
		t.Fatalf("expected wrong token to fail validation")
	}
	if store.Validate(uuid.New(), token) {
		t.Fatalf("expected token to be scoped to its own job")
	}
}

func TestRevoke(t *testing.T) {
	store := NewTokenStore()
	jobID := uuid.New()

	token, err := store.CreateToken(jobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.Validate(jobID, token) {
		t.Fatalf("expected token to validate before revoke")
	}

	store.Revoke(jobID)
	if store.Validate(jobID, token) {
		t.Fatalf("expected token to fail validation after revoke")
	}
}

func TestTokensAreRandom(t *testing.T) {
	store := NewTokenStore()
	t1, err := store.CreateToken(uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t2, err := store.CreateToken(uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if t1 == t2 {
		t.Fatalf("expected distinct tokens")
	}
}

func TestExtractJobID(t *testing.T) {
	id := uuid.New()
	if got, ok := extractJobID("/worker/" + id.String() + "/llm/complete"); !ok || got != id {
		t.Fatalf("expected %s, got %s (ok=%v)", id, got, ok)
	}
	if _, ok := extractJobID("/other/path"); ok {
		t.Fatalf("expected non-worker path to fail extraction")
	}
	if _, ok := extractJobID("/worker/not-a-uuid/foo"); ok {
		t.Fatalf("expected malformed job id to fail extraction")
	}
}

func TestMiddlewareRejectsMismatchedJob(t *testing.T) {
	store := NewTokenStore()
	jobA := uuid.New()
	jobB := uuid.New()
	tokenA, err := store.CreateToken(jobA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.CreateToken(jobB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/worker/"+jobB.String()+"/complete", nil)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for cross-job token, got %d", rec.Code)
	}
}

func TestMiddlewareAllowsMatchingJob(t *testing.T) {
	store := NewTokenStore()
	jobID := uuid.New()
	token, err := store.CreateToken(jobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/worker/"+jobID.String()+"/complete", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	store := NewTokenStore()
	jobID := uuid.New()
	if _, err := store.CreateToken(jobID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/worker/"+jobID.String()+"/complete", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %d", rec.Code)
	}
}
