// Package workerauth implements the per-job bearer token scheme that
// gates the worker-facing routes under /worker/{job_id}/..., so a
// token minted for one job can never be replayed against another.
package workerauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// tokenBytes is the random token length in bytes (64 hex characters).
const tokenBytes = 32

// TokenStore is an in-memory, per-job bearer token table. Tokens are
// never persisted or logged; they live only for the life of the job.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[uuid.UUID]string
}

// NewTokenStore returns an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[uuid.UUID]string)}
}

// CreateToken mints and stores a fresh token for jobID, replacing any
// prior token for that job.
func (s *TokenStore) CreateToken(jobID uuid.UUID) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tokens[jobID] = token
	s.mu.Unlock()
	return token, nil
}

// Validate reports whether token is the current token for jobID,
// compared in constant time.
func (s *TokenStore) Validate(jobID uuid.UUID, token string) bool {
	s.mu.RLock()
	stored, ok := s.tokens[jobID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1
}

// Revoke removes jobID's token, e.g. on job completion.
func (s *TokenStore) Revoke(jobID uuid.UUID) {
	s.mu.Lock()
	delete(s.tokens, jobID)
	s.mu.Unlock()
}

// ActiveCount reports the number of live tokens, for diagnostics.
func (s *TokenStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Middleware validates the per-job bearer token on requests whose
// path matches /worker/{job_id}/.... A path that isn't scoped to a
// job, or a token that doesn't match the stored token for that job,
// is rejected before next ever runs.
func Middleware(store *TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jobID, ok := extractJobID(r.URL.Path)
			if !ok {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if !store.Validate(jobID, token) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractJobID parses the job id out of a path shaped
// /worker/{job_id}/....
func extractJobID(path string) (uuid.UUID, bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "worker" {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.UUID{}, false
	}
	return id, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
