// internal/keys/jwk.go
package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

// RSAPublicJWK is the public half of an RSA key in JWK form.
type RSAPublicJWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is a JSON Web Key Set.
type JWKS struct {
	Keys []RSAPublicJWK `json:"keys"`
}

// ErrNoUsableKeys means a keyset contained no RSA signing key we could
// decode (or none matching the requested kid).
var ErrNoUsableKeys = errors.New("keys: no usable RSA keys in set")

// ParseJWKS decodes a raw keyset document.
func ParseJWKS(raw []byte) (JWKS, error) {
	var set JWKS
	if err := json.Unmarshal(raw, &set); err != nil {
		return JWKS{}, fmt.Errorf("keys: parse jwks: %w", err)
	}
	return set, nil
}

// RSAPublicKeys extracts the usable RSA public keys from a set, keyed by
// kid. When kid is non-empty only that key is returned. Entries that are
// not RSA, are marked for encryption, or fail to decode are skipped.
func RSAPublicKeys(set JWKS, kid string) (map[string]*rsa.PublicKey, error) {
	out := make(map[string]*rsa.PublicKey)
	for _, k := range set.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		if kid != "" && k.Kid != kid {
			continue
		}
		pub, err := jwkToRSA(k)
		if err != nil {
			continue
		}
		out[k.Kid] = pub
	}
	if len(out) == 0 {
		return nil, ErrNoUsableKeys
	}
	return out, nil
}

func jwkToRSA(k RSAPublicJWK) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("keys: decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("keys: decode exponent: %w", err)
	}
	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, errors.New("keys: zero exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

// PublicJWK renders an RSA public key as a signing JWK.
func PublicJWK(pub *rsa.PublicKey, kid string) RSAPublicJWK {
	return RSAPublicJWK{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// ParseRSAPublicKeyPEM decodes a PEM public key, accepting both PKIX
// ("BEGIN PUBLIC KEY") and PKCS#1 ("BEGIN RSA PUBLIC KEY") encodings,
// since tool registrations paste in both.
func ParseRSAPublicKeyPEM(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("keys: no PEM block found")
	}
	if pub, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("keys: PEM key is not RSA")
		}
		return rsaPub, nil
	}
	rsaPub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keys: parse public key: %w", err)
	}
	return rsaPub, nil
}
