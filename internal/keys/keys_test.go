package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignAndVerifyViaJWKS(t *testing.T) {
	m := &Manager{Storage: NewInMemoryStorage(), RSAKeyBits: 2048}
	ctx := context.Background()

	signed, err := m.Sign(ctx, jwt.MapClaims{"iss": "https://lms.example.edu", "sub": "u-1"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	set, err := m.PublicJWKS(ctx)
	if err != nil {
		t.Fatalf("PublicJWKS: %v", err)
	}
	if len(set.Keys) != 1 {
		t.Fatalf("keyset size = %d", len(set.Keys))
	}
	pubs, err := RSAPublicKeys(set, "")
	if err != nil {
		t.Fatalf("RSAPublicKeys: %v", err)
	}

	tok, err := jwt.Parse(signed, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return pubs[kid], nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !tok.Valid {
		t.Fatalf("verify signed token: %v", err)
	}
}

func TestPublicJWKSHonorsOverlap(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	m := &Manager{
		Storage:          NewInMemoryStorage(),
		RotationInterval: 24 * time.Hour,
		Overlap:          time.Hour,
		Now:              func() time.Time { return now },
	}
	ctx := context.Background()
	if _, err := m.Sign(ctx, jwt.MapClaims{"sub": "x"}); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	// Still visible just inside the overlap window after expiry.
	now = now.Add(24*time.Hour + 30*time.Minute)
	set, err := m.PublicJWKS(ctx)
	if err != nil {
		t.Fatalf("PublicJWKS: %v", err)
	}
	if len(set.Keys) != 1 {
		t.Fatalf("expected retired key in overlap window, got %d keys", len(set.Keys))
	}

	// Gone once the overlap has passed.
	now = now.Add(2 * time.Hour)
	set, err = m.PublicJWKS(ctx)
	if err != nil {
		t.Fatalf("PublicJWKS: %v", err)
	}
	if len(set.Keys) != 0 {
		t.Fatalf("expected empty keyset past overlap, got %d keys", len(set.Keys))
	}
}

func TestRSAPublicKeysByKid(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	kid := MakeKID(&priv.PublicKey)
	set := JWKS{Keys: []RSAPublicJWK{
		PublicJWK(&priv.PublicKey, kid),
		{Kty: "EC", Kid: "ignored"},
	}}

	raw, _ := json.Marshal(set)
	parsed, err := ParseJWKS(raw)
	if err != nil {
		t.Fatalf("ParseJWKS: %v", err)
	}
	pubs, err := RSAPublicKeys(parsed, kid)
	if err != nil {
		t.Fatalf("RSAPublicKeys: %v", err)
	}
	if pubs[kid] == nil || pubs[kid].N.Cmp(priv.PublicKey.N) != 0 {
		t.Fatal("round-tripped key does not match original")
	}

	if _, err := RSAPublicKeys(parsed, "no-such-kid"); err == nil {
		t.Fatal("expected error for unknown kid")
	}
}

func TestParseRSAPublicKeyPEM(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	pkix, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pemPKIX := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix}))
	pemPKCS1 := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey)}))

	for _, text := range []string{pemPKIX, pemPKCS1} {
		pub, err := ParseRSAPublicKeyPEM(text)
		if err != nil {
			t.Fatalf("ParseRSAPublicKeyPEM: %v", err)
		}
		if pub.N.Cmp(priv.PublicKey.N) != 0 {
			t.Fatal("parsed key does not match original")
		}
	}

	if _, err := ParseRSAPublicKeyPEM("not pem"); err == nil {
		t.Fatal("expected error for junk input")
	}
}
