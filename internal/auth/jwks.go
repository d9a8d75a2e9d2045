package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	defaultKeySetTTL = time.Hour
	maxKeySetBytes   = 1 << 20
)

// KeySetCache keeps the signing keys published at each JWKS URL.
type KeySetCache struct {
	client *http.Client
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]keySetEntry
}

type keySetEntry struct {
	set       jwk.Set
	fetchedAt time.Time
}

// NewKeySetCache creates a cache that fetches through client, or through a client with a
// 10 second timeout when client is nil.
func NewKeySetCache(client *http.Client) *KeySetCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySetCache{
		client:  client,
		ttl:     defaultKeySetTTL,
		now:     time.Now,
		entries: make(map[string]keySetEntry),
	}
}

// Get returns the key set published at url. Sets older than the TTL are refetched; if the
// refetch fails the old set keeps being served.
func (c *KeySetCache) Get(ctx context.Context, url string) (jwk.Set, error) {
	c.mu.Lock()
	entry, cached := c.entries[url]
	c.mu.Unlock()

	if cached && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.set, nil
	}

	set, err := c.fetch(ctx, url)
	if err != nil {
		if cached {
			return entry.set, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.entries[url] = keySetEntry{set: set, fetchedAt: c.now()}
	c.mu.Unlock()
	return set, nil
}

// Forget drops the set cached for url so the next Get refetches it.
func (c *KeySetCache) Forget(url string) {
	c.mu.Lock()
	delete(c.entries, url)
	c.mu.Unlock()
}

func (c *KeySetCache) fetch(ctx context.Context, url string) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build key set request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set endpoint returned status %d", resp.StatusCode)
	}

	set, err := jwk.ParseReader(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse key set: %w", err)
	}
	return set, nil
}
