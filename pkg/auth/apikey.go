package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// APIKeyConfig configures an APIKeyProvider
type APIKeyConfig struct {
	// Keys maps user names to pre-shared keys, as in bridge.api_keys
	Keys map[string]string
	// Prefix and Size shape generated keys; defaults "acp_" and 32 bytes
	Prefix string
	Size   int
}

// APIKeyProvider authenticates bridge clients by pre-shared key. Only
// SHA-256 digests of the keys are kept.
type APIKeyProvider struct {
	prefix string
	size   int

	mu   sync.Mutex
	keys []*apiKey
}

type apiKey struct {
	digest   [sha256.Size]byte
	user     *User
	added    time.Time
	lastUsed time.Time
	revoked  bool
}

func NewAPIKeyProvider(config *APIKeyConfig) *APIKeyProvider {
	if config == nil {
		config = &APIKeyConfig{}
	}
	p := &APIKeyProvider{prefix: config.Prefix, size: config.Size}
	if p.prefix == "" {
		p.prefix = "acp_"
	}
	if p.size <= 0 {
		p.size = 32
	}
	for name, key := range config.Keys {
		p.AddKey(name, key)
	}
	return p
}

func (p *APIKeyProvider) Scheme() string { return "apikey" }

// Len returns the number of registered keys, revoked ones included
func (p *APIKeyProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// AddKey registers key for the named user
func (p *APIKeyProvider) AddKey(name, key string) {
	entry := &apiKey{
		digest: sha256.Sum256([]byte(key)),
		user:   &User{ID: "user-" + name, Name: name},
		added:  time.Now(),
	}
	p.mu.Lock()
	p.keys = append(p.keys, entry)
	p.mu.Unlock()
}

// GenerateKey registers a random key for the named user and returns it
func (p *APIKeyProvider) GenerateKey(name string) (string, error) {
	raw := make([]byte, p.size)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	key := p.prefix + hex.EncodeToString(raw)
	p.AddKey(name, key)
	return key, nil
}

func (p *APIKeyProvider) Validate(ctx context.Context, credential string) (*User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, refuse(ReasonMissing, "api key required")
	}
	entry := p.lookup(credential)
	if entry == nil {
		return nil, refuse(ReasonInvalid, "invalid api key")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if entry.revoked {
		return nil, refuse(ReasonRevoked, "api key has been revoked")
	}
	entry.lastUsed = time.Now()
	return entry.user, nil
}

// Revoke disables key; later Validate calls fail with ReasonRevoked
func (p *APIKeyProvider) Revoke(ctx context.Context, key string) error {
	entry := p.lookup(key)
	if entry == nil {
		return refuse(ReasonInvalid, "api key not found")
	}
	p.mu.Lock()
	entry.revoked = true
	p.mu.Unlock()
	return nil
}

// lookup scans every key, so the time taken does not depend on which
// key matched
func (p *APIKeyProvider) lookup(key string) *apiKey {
	digest := sha256.Sum256([]byte(key))
	p.mu.Lock()
	defer p.mu.Unlock()
	var found *apiKey
	for _, k := range p.keys {
		if subtle.ConstantTimeCompare(k.digest[:], digest[:]) == 1 {
			found = k
		}
	}
	return found
}
