// Package credentials holds the rotating set of API keys used to reach the
// model service.
//
// A Pool is shared by every in-flight call. Rotation is cyclic and guarded
// by a mutex; readers only ever see a valid index.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrNoCredentials is returned when a pool would be built without a single
// usable credential. The process must not start any work in that case.
var ErrNoCredentials = errors.New("no API credentials configured")

// Credential is one interchangeable API key.
type Credential struct {
	// Name identifies the credential in logs. The key itself is never logged.
	Name string
	Key  string
}

// String redacts the key.
func (c Credential) String() string {
	return c.Name
}

// Pool is an ordered set of credentials with a current index.
//
// Example:
//
//	pool, err := credentials.New(
//	    credentials.Credential{Name: "primary", Key: "sk-..."},
//	    credentials.Credential{Name: "backup", Key: "sk-..."},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cred := pool.Current()
//	next := pool.Rotate()
type Pool struct {
	mu      sync.RWMutex
	creds   []Credential
	current int
}

// New creates a pool. It fails with ErrNoCredentials when creds is empty or
// contains a credential with a blank key.
func New(creds ...Credential) (*Pool, error) {
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	for i, c := range creds {
		if strings.TrimSpace(c.Key) == "" {
			return nil, fmt.Errorf("credential %d (%q) has an empty key: %w", i, c.Name, ErrNoCredentials)
		}
	}

	owned := make([]Credential, len(creds))
	copy(owned, creds)
	return &Pool{creds: owned}, nil
}

// Current returns the active credential.
func (p *Pool) Current() Credential {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.creds[p.current]
}

// Rotate advances to the next credential, wrapping around, and returns it.
func (p *Pool) Rotate() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = (p.current + 1) % len(p.creds)
	return p.creds[p.current]
}

// Len returns the number of credentials in the pool.
func (p *Pool) Len() int {
	return len(p.creds)
}

// Names lists credential names in pool order.
func (p *Pool) Names() []string {
	names := make([]string, len(p.creds))
	for i, c := range p.creds {
		names[i] = c.Name
	}
	return names
}

// Environment variables read by FromEnv.
const (
	EnvKey  = "OPENAI_API_KEY"
	EnvKeys = "OPENAI_API_KEYS"
)

// FromEnv builds a pool from OPENAI_API_KEY and the comma separated
// OPENAI_API_KEYS. Duplicate keys are dropped, first occurrence wins.
// lookup defaults to os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (*Pool, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var creds []Credential
	seen := make(map[string]bool)
	add := func(name, key string) {
		key = strings.TrimSpace(key)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		creds = append(creds, Credential{Name: name, Key: key})
	}

	if v, ok := lookup(EnvKey); ok {
		add(EnvKey, v)
	}
	if v, ok := lookup(EnvKeys); ok {
		for i, key := range strings.Split(v, ",") {
			add(fmt.Sprintf("%s[%d]", EnvKeys, i), key)
		}
	}

	pool, err := New(creds...)
	if err != nil {
		return nil, fmt.Errorf("set %s or %s: %w", EnvKey, EnvKeys, err)
	}
	return pool, nil
}
