// internal/tool/keys.go
package tool

import (
	"context"
	"fmt"
)

// Signature schemes a tool resolves to.
type Scheme string

const (
	SchemeOAuth1 Scheme = "oauth1"
	SchemeRSA    Scheme = "rsa"
	SchemeJWKS   Scheme = "jwks"
	SchemeNone   Scheme = "none"
)

// KeyMaterial is the credential set resolved for one tool type. Fields are
// populated according to Scheme; the rest are empty.
type KeyMaterial struct {
	Scheme       Scheme
	ConsumerKey  string
	SharedSecret string
	PublicKey    string // PEM
	KeysetURL    string
	ClientID     string
}

// ResolveKey maps a tool type id to its authoritative key material. A
// proxy-backed tool always signs with the proxy GUID/secret; otherwise the
// LTI version selects between OAuth 1.0a credentials and 1.3 key modes.
// An empty KeyType on a 1.3 tool means RSA-key mode (legacy rows).
func ResolveKey(ctx context.Context, s Store, toolTypeID int64) (KeyMaterial, error) {
	t, err := s.GetToolType(ctx, toolTypeID)
	if err != nil {
		return KeyMaterial{}, err
	}

	if t.ProxyID != 0 {
		p, err := s.GetProxy(ctx, t.ProxyID)
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("tool %d: proxy %d: %w", t.ID, t.ProxyID, err)
		}
		return KeyMaterial{
			Scheme:       SchemeOAuth1,
			ConsumerKey:  p.GUID,
			SharedSecret: p.Secret,
		}, nil
	}

	if t.LTIVersion == VersionLTI13 {
		if t.KeyType == KeyTypeJWKS {
			if t.KeysetURL == "" {
				return KeyMaterial{Scheme: SchemeNone, ClientID: t.ClientID}, nil
			}
			return KeyMaterial{Scheme: SchemeJWKS, KeysetURL: t.KeysetURL, ClientID: t.ClientID}, nil
		}
		if t.PublicKey == "" {
			return KeyMaterial{Scheme: SchemeNone, ClientID: t.ClientID}, nil
		}
		return KeyMaterial{Scheme: SchemeRSA, PublicKey: t.PublicKey, ClientID: t.ClientID}, nil
	}

	if t.ConsumerKey == "" || t.SharedSecret == "" {
		return KeyMaterial{Scheme: SchemeNone}, nil
	}
	return KeyMaterial{
		Scheme:       SchemeOAuth1,
		ConsumerKey:  t.ConsumerKey,
		SharedSecret: t.SharedSecret,
	}, nil
}

// ResolveConsumerSecret finds the shared secret for an inbound OAuth 1.0a
// consumer key. Proxy GUIDs take precedence over plain tool credentials.
func ResolveConsumerSecret(ctx context.Context, s Store, consumerKey string) (string, error) {
	if p, err := s.GetProxyByGUID(ctx, consumerKey); err == nil {
		return p.Secret, nil
	}
	t, err := s.GetToolTypeByConsumerKey(ctx, consumerKey)
	if err != nil {
		return "", err
	}
	return t.SharedSecret, nil
}
