// internal/idtoken/verify.go
package idtoken

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/campushq/ltibridge/internal/claims"
	"github.com/campushq/ltibridge/internal/contentitem"
	"github.com/campushq/ltibridge/internal/keys"
	"github.com/campushq/ltibridge/internal/tool"
)

var (
	// ErrUnsupportedVersion means the tool registration speaks a version
	// that never signs JWTs (LTI 2.0 tools sign with OAuth 1.0a).
	ErrUnsupportedVersion = errors.New("idtoken: tool version does not use JWT security")
	// ErrClientMismatch means the presented client_id is not the one the
	// tool registered.
	ErrClientMismatch = errors.New("idtoken: client_id does not match registration")
	// ErrConfiguration means the registration lacks the key material its
	// declared key type requires.
	ErrConfiguration = errors.New("idtoken: registration has no usable key material")
	// ErrMalformedToken means the compact JWT could not even be split
	// and decoded, before any signature question arises.
	ErrMalformedToken = errors.New("idtoken: malformed JWT")
)

// Verifier checks tool-signed JWTs (deep-linking responses, service
// calls) against the tool's registered public key or remote keyset.
type Verifier struct {
	Keyset *KeysetCache
}

// PeekIssuer decodes the payload of a compact JWT without verifying it,
// returning the iss claim. Used to pick the registration to verify
// against before any trust exists.
func PeekIssuer(raw string) (string, error) {
	payload, err := decodePart(raw, 1)
	if err != nil {
		return "", err
	}
	var body struct {
		Iss string `json:"iss"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return body.Iss, nil
}

// VerifySignature validates raw against the tool's key material and
// returns the claim payload. consumerKey, when non-empty, must match
// the registered client_id; LTI 2.0 registrations are rejected outright.
func (v *Verifier) VerifySignature(ctx context.Context, tt *tool.ToolType, consumerKey, raw string) (map[string]any, error) {
	if tt.LTIVersion == tool.VersionLTI2 {
		return nil, ErrUnsupportedVersion
	}
	if consumerKey != "" && tt.ClientID != "" && consumerKey != tt.ClientID {
		return nil, ErrClientMismatch
	}

	switch {
	case tt.KeyType == tool.KeyTypeJWKS && tt.KeysetURL != "":
		return v.Keyset.Verify(ctx, tt.ClientID, tt.KeysetURL, raw)
	case tt.PublicKey != "":
		// Empty key type defaults to a pasted RSA PEM key.
		pub, err := keys.ParseRSAPublicKeyPEM(tt.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		out := jwt.MapClaims{}
		_, err = jwt.ParseWithClaims(raw, out, func(*jwt.Token) (any, error) { return pub, nil },
			jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}))
		if err != nil {
			return nil, fmt.Errorf("idtoken: verify: %w", err)
		}
		return out, nil
	default:
		return nil, ErrConfiguration
	}
}

// ConvertFromJWT verifies a tool JWT and flattens it back into 1.x
// launch parameters. The message type is translated to its 1.x name and
// a deep-linking content_items claim is re-wrapped in the JSON-LD
// envelope legacy consumers expect.
func (v *Verifier) ConvertFromJWT(ctx context.Context, tt *tool.ToolType, raw string) (map[string]string, error) {
	iss, err := PeekIssuer(raw)
	if err != nil {
		return nil, err
	}
	if iss == "" {
		return nil, claims.ErrMissingIssuer
	}

	payload, err := v.VerifySignature(ctx, tt, iss, raw)
	if err != nil {
		return nil, err
	}
	params, err := claims.FromClaims(payload)
	if err != nil {
		return nil, err
	}
	if mt, ok := messageTypeFrom13[params["lti_message_type"]]; ok {
		params["lti_message_type"] = mt
	}
	if flat, ok := params["content_items"]; ok {
		env, err := contentitem.FlatToEnvelopeJSON(flat)
		if err != nil {
			return nil, err
		}
		params["content_items"] = env
	}
	return params, nil
}

func decodePart(raw string, idx int) ([]byte, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken
	}
	b, err := base64.RawURLEncoding.DecodeString(parts[idx])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return b, nil
}
