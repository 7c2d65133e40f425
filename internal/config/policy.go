package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/agentcore/runtime/internal/egress"
)

// policyFile is the on-disk shape of the egress allowlist/credential
// policy file.
type policyFile struct {
	Allowlist   []string           `yaml:"allowlist"`
	Credentials []credentialEntry  `yaml:"credentials"`
}

type credentialEntry struct {
	Domain     string `yaml:"domain"`
	SecretName string `yaml:"secret_name"`
	Location   string `yaml:"location"` // "authorization_bearer", "header:<name>", "query_param:<name>"
}

func parseLocation(s string) (egress.CredentialLocation, error) {
	switch {
	case s == "" || s == "authorization_bearer":
		return egress.CredentialLocation{Kind: egress.LocationAuthorizationBearer}, nil
	case len(s) > 7 && s[:7] == "header:":
		return egress.CredentialLocation{Kind: egress.LocationHeader, Name: s[7:]}, nil
	case len(s) > 12 && s[:12] == "query_param:":
		return egress.CredentialLocation{Kind: egress.LocationQueryParam, Name: s[12:]}, nil
	default:
		return egress.CredentialLocation{}, fmt.Errorf("config: unrecognized credential location %q", s)
	}
}

func loadPolicyFile(path string) (*egress.DomainAllowlist, []egress.CredentialMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read policy file: %w", err)
	}
	var parsed policyFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, nil, fmt.Errorf("config: parse policy file: %w", err)
	}

	allowlist := egress.NewDomainAllowlist(parsed.Allowlist...)
	creds := make([]egress.CredentialMapping, 0, len(parsed.Credentials))
	for _, entry := range parsed.Credentials {
		loc, err := parseLocation(entry.Location)
		if err != nil {
			return nil, nil, err
		}
		creds = append(creds, egress.CredentialMapping{
			Domain:     entry.Domain,
			SecretName: entry.SecretName,
			Location:   loc,
		})
	}
	return allowlist, creds, nil
}

// PolicyStore holds the current egress allowlist/credential set,
// swapped atomically when the on-disk file changes. The zero value is
// unusable; build one with NewStaticPolicyStore or WatchPolicyFile.
type PolicyStore struct {
	current atomic.Pointer[policySnapshot]
}

type policySnapshot struct {
	allowlist *egress.DomainAllowlist
	creds     []egress.CredentialMapping
}

// NewStaticPolicyStore wraps a fixed allowlist/credential set that
// never reloads, used when no on-disk policy file is configured.
func NewStaticPolicyStore(allowlist *egress.DomainAllowlist, creds []egress.CredentialMapping) *PolicyStore {
	s := &PolicyStore{}
	s.current.Store(&policySnapshot{allowlist: allowlist, creds: creds})
	return s
}

// Allowlist returns the current allowlist.
func (s *PolicyStore) Allowlist() *egress.DomainAllowlist {
	return s.current.Load().allowlist
}

// Credentials returns the current credential mappings.
func (s *PolicyStore) Credentials() []egress.CredentialMapping {
	return s.current.Load().creds
}

// Decider builds a NetworkPolicyDecider over the current snapshot. The
// decider is a fresh value per call so that concurrent hot reloads
// never race a decider mid-use; it keeps the snapshot it was built
// from, so a reload after this call is not seen by the returned value.
func (s *PolicyStore) Decider() egress.NetworkPolicyDecider {
	snap := s.current.Load()
	return egress.NewDefaultPolicyDecider(snap.allowlist, snap.creds)
}

// WatchPolicyFile loads path and starts watching it for changes via
// fsnotify, reloading the snapshot on every write. The returned
// stop function closes the watcher; callers should call it on
// shutdown. Reload failures are logged and the previous snapshot is
// kept, so a bad edit never takes the egress policy down to "deny
// everything".
func WatchPolicyFile(path string, logger *slog.Logger) (*PolicyStore, func() error, error) {
	allowlist, creds, err := loadPolicyFile(path)
	if err != nil {
		return nil, nil, err
	}
	store := NewStaticPolicyStore(allowlist, creds)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("config: create policy watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, nil, fmt.Errorf("config: watch policy file: %w", err)
	}

	var once sync.Once
	stop := func() error {
		var closeErr error
		once.Do(func() { closeErr = watcher.Close() })
		return closeErr
	}

	go watchPolicyLoop(watcher, path, store, logger)
	return store, stop, nil
}

func watchPolicyLoop(watcher *fsnotify.Watcher, path string, store *PolicyStore, logger *slog.Logger) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			allowlist, creds, err := loadPolicyFile(path)
			if err != nil {
				if logger != nil {
					logger.Warn("policy file reload failed, keeping previous snapshot", "path", path, "error", err)
				}
				continue
			}
			store.current.Store(&policySnapshot{allowlist: allowlist, creds: creds})
			if logger != nil {
				logger.Info("policy file reloaded", "path", path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if logger != nil {
				logger.Warn("policy watcher error", "error", err)
			}
		}
	}
}
