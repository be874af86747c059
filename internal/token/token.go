// internal/token/token.go
//
// Opaque scoped access tokens for LTI service calls. Tokens are random
// 128-bit hex strings persisted server-side; the bearer value carries no
// structure, so possession plus the stored row is the whole credential.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campushq/ltibridge/internal/tool"
)

// ErrGenerationFailed means we could not mint a unique token value.
var ErrGenerationFailed = errors.New("token: could not generate a unique token")

// Lifetime is how long an issued token stays valid.
const Lifetime = time.Hour

// issueAttempts bounds collision retries during generation.
const issueAttempts = 5

// Service issues and resolves access tokens against a TokenStore.
type Service struct {
	Store tool.TokenStore
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue mints a new token for the tool with the given scopes. The token
// value is checked for collisions before saving; with 128 random bits a
// retry is already extraordinary, so exhausting the attempts is reported
// rather than looped on.
func (s *Service) Issue(ctx context.Context, toolTypeID int64, scopes []string) (tool.AccessToken, error) {
	var value string
	for attempt := 0; ; attempt++ {
		if attempt == issueAttempts {
			return tool.AccessToken{}, ErrGenerationFailed
		}
		value = randomToken()
		exists, err := s.Store.TokenExists(ctx, value)
		if err != nil {
			return tool.AccessToken{}, fmt.Errorf("token: check collision: %w", err)
		}
		if !exists {
			break
		}
	}

	now := s.now()
	at := tool.AccessToken{
		ToolTypeID: toolTypeID,
		Token:      value,
		Scope:      scopes,
		CreatedAt:  now,
		ValidUntil: now.Add(Lifetime),
	}
	if err := s.Store.SaveToken(ctx, &at); err != nil {
		return tool.AccessToken{}, fmt.Errorf("token: save: %w", err)
	}
	return at, nil
}

// Result classifies an Authorization header check.
type Result int

const (
	// Denied means the header was present but did not authorize the call.
	Denied Result = iota
	// Anonymous means no credentials were presented and none were required.
	Anonymous
	// OAuthConsumer means the header carried an OAuth 1.0 signature; the
	// caller must verify it against ConsumerKey separately.
	OAuthConsumer
	// Authorized means a live bearer token with a sufficient scope matched.
	Authorized
)

// Identity is the outcome of resolving an Authorization header.
type Identity struct {
	Result      Result
	ToolTypeID  int64
	ConsumerKey string
}

// FromHeader resolves the Authorization header of a service request.
//
// An empty header is Anonymous only when the endpoint demands no scopes.
// An "OAuth" scheme defers to signature verification and just surfaces
// the consumer key. A "Bearer" scheme must name a stored, unexpired
// token whose scopes intersect the required ones; toolTypeID restricts
// the lookup to one tool, zero accepts any. Matching touches the token's
// last-access time.
func (s *Service) FromHeader(ctx context.Context, header string, toolTypeID int64, scopes []string) Identity {
	header = strings.TrimSpace(header)
	if header == "" {
		if len(scopes) == 0 {
			return Identity{Result: Anonymous}
		}
		return Identity{Result: Denied}
	}

	if strings.HasPrefix(header, "OAuth ") || header == "OAuth" {
		params := parseOAuthParams(header)
		return Identity{Result: OAuthConsumer, ConsumerKey: params["oauth_consumer_key"]}
	}

	const bearer = "Bearer "
	if !strings.HasPrefix(header, bearer) {
		return Identity{Result: Denied}
	}
	value := strings.TrimSpace(header[len(bearer):])
	at, err := s.Store.FindToken(ctx, value, toolTypeID)
	if err != nil {
		return Identity{Result: Denied}
	}
	if !at.ValidUntil.After(s.now()) {
		return Identity{Result: Denied}
	}
	if !scopesSatisfied(at.Scope, scopes) {
		return Identity{Result: Denied}
	}
	// Best effort; an untouched last-access must not fail the request.
	_ = s.Store.TouchToken(ctx, at.ID, s.now())
	return Identity{Result: Authorized, ToolTypeID: at.ToolTypeID}
}

// scopesSatisfied reports whether the token grants at least one of the
// required scopes. No required scopes means any live token passes.
func scopesSatisfied(granted, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(granted))
	for _, s := range granted {
		have[s] = true
	}
	for _, s := range required {
		if have[s] {
			return true
		}
	}
	return false
}

// Intersect returns the requested scopes the tool is allowed, preserving
// request order. Used by the token endpoint to narrow a grant.
func Intersect(requested, allowed []string) []string {
	permit := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		permit[s] = true
	}
	var out []string
	for _, s := range requested {
		if permit[s] {
			out = append(out, s)
		}
	}
	return out
}

func parseOAuthParams(header string) map[string]string {
	out := make(map[string]string)
	rest := strings.TrimPrefix(header, "OAuth")
	for _, part := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		out[key] = strings.Trim(value, `"`)
	}
	return out
}

func randomToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
