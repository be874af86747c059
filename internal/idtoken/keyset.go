// internal/idtoken/keyset.go
package idtoken

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campushq/ltibridge/internal/keys"
)

// ErrKeysetUnavailable means the remote keyset could not be fetched.
var ErrKeysetUnavailable = errors.New("idtoken: keyset fetch failed")

const maxKeysetBytes = 1 << 20

// KeysetCache verifies tool JWTs against remote JWKS documents with an
// optimistic cache: verification is first tried against the cached copy,
// and only a failure (bad signature, unknown kid, rotten cache) triggers
// a refetch and a second attempt. A failure after a fresh fetch is final.
type KeysetCache struct {
	HTTPClient *http.Client

	mu    sync.Mutex
	cache map[string][]byte // client_id -> raw keyset document
}

func (c *KeysetCache) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Verify checks raw against the tool's keyset, fetching or refreshing
// the cached document as needed.
func (c *KeysetCache) Verify(ctx context.Context, clientID, keysetURL, raw string) (jwt.MapClaims, error) {
	c.mu.Lock()
	cached := c.cache[clientID]
	c.mu.Unlock()

	if cached != nil {
		if out, err := verifyAgainstKeyset(cached, raw); err == nil {
			return out, nil
		}
	}

	fresh, err := c.fetch(ctx, keysetURL)
	if err != nil {
		return nil, err
	}
	out, err := verifyAgainstKeyset(fresh, raw)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.cache == nil {
		c.cache = make(map[string][]byte)
	}
	c.cache[clientID] = fresh
	c.mu.Unlock()
	return out, nil
}

func (c *KeysetCache) fetch(ctx context.Context, keysetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, keysetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeysetUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeysetUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrKeysetUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeysetBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeysetUnavailable, err)
	}
	return body, nil
}

func verifyAgainstKeyset(rawKeyset []byte, rawJWT string) (jwt.MapClaims, error) {
	set, err := keys.ParseJWKS(rawKeyset)
	if err != nil {
		return nil, err
	}
	out := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(rawJWT, out, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		pubs, err := keys.RSAPublicKeys(set, kid)
		if err != nil {
			return nil, err
		}
		if kid != "" {
			return pubs[kid], nil
		}
		// No kid in the header; with a single usable key the choice is
		// forced, more than one is ambiguous.
		if len(pubs) == 1 {
			for _, pub := range pubs {
				return pub, nil
			}
		}
		return nil, keys.ErrNoUsableKeys
	}, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
	if err != nil {
		return nil, fmt.Errorf("idtoken: verify: %w", err)
	}
	return out, nil
}
