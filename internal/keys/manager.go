// internal/keys/manager.go
//
// Platform signing keys for LTI 1.3 id_tokens. The Manager generates
// RSA-2048 keys, rotates them on a schedule and publishes the public
// halves as a JWKS. Retired keys stay visible in the keyset for an
// overlap window so tokens signed near the end of a key's life still
// verify.
package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoActiveKey means no signing key is currently within its validity
// window and one could not be generated.
var ErrNoActiveKey = errors.New("keys: no active signing key")

// KeyRecord holds one signing key and its lifecycle window.
type KeyRecord struct {
	KID       string
	CreatedAt time.Time
	NotBefore time.Time
	NotAfter  time.Time
	Private   *rsa.PrivateKey
}

// IsActive reports whether the key may sign new tokens at 'now'.
func (k KeyRecord) IsActive(now time.Time) bool {
	return !now.Before(k.NotBefore) && now.Before(k.NotAfter)
}

// Storage persists signing keys. The in-memory implementation backs
// tests and single-node deployments; production uses the SQL store.
type Storage interface {
	List(ctx context.Context) ([]KeyRecord, error)
	Save(ctx context.Context, rec KeyRecord) error
}

// InMemoryStorage is a process-local Storage.
type InMemoryStorage struct {
	mu   sync.RWMutex
	data map[string]KeyRecord
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{data: make(map[string]KeyRecord)}
}

func (s *InMemoryStorage) List(_ context.Context) ([]KeyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KeyRecord, 0, len(s.data))
	for _, rec := range s.data {
		out = append(out, rec)
	}
	return out, nil
}

func (s *InMemoryStorage) Save(_ context.Context, rec KeyRecord) error {
	if rec.KID == "" {
		return errors.New("keys: kid required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.KID] = rec
	return nil
}

// Manager generates, rotates and signs with platform keys.
type Manager struct {
	Storage Storage

	RSAKeyBits       int           // default 2048
	RotationInterval time.Duration // default 90 days
	Overlap          time.Duration // default 7 days of JWKS visibility past NotAfter

	Now func() time.Time // test clock

	mu sync.Mutex // serializes rotation
}

// Sign signs claims as an RS256 JWT using the current key, rotating
// first if none is active. The kid travels in the token header.
func (m *Manager) Sign(ctx context.Context, claims jwt.MapClaims) (string, error) {
	if m.Storage == nil {
		return "", errors.New("keys: storage not configured")
	}
	rec, err := m.ensureCurrentKey(ctx)
	if err != nil {
		return "", err
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = rec.KID
	signed, err := tok.SignedString(rec.Private)
	if err != nil {
		return "", fmt.Errorf("keys: sign: %w", err)
	}
	return signed, nil
}

// PublicJWKS returns every key that is or was recently valid, newest
// first.
func (m *Manager) PublicJWKS(ctx context.Context) (JWKS, error) {
	if m.Storage == nil {
		return JWKS{}, errors.New("keys: storage not configured")
	}
	recs, err := m.Storage.List(ctx)
	if err != nil {
		return JWKS{}, err
	}
	now := m.now()
	var set JWKS
	for _, rec := range recs {
		if now.Before(rec.NotBefore) || now.After(rec.NotAfter.Add(m.overlap())) {
			continue
		}
		set.Keys = append(set.Keys, PublicJWK(&rec.Private.PublicKey, rec.KID))
	}
	sort.SliceStable(set.Keys, func(i, j int) bool { return set.Keys[i].Kid > set.Keys[j].Kid })
	return set, nil
}

func (m *Manager) ensureCurrentKey(ctx context.Context) (KeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recs, err := m.Storage.List(ctx)
	if err != nil {
		return KeyRecord{}, err
	}
	now := m.now()
	var current *KeyRecord
	for i := range recs {
		if recs[i].IsActive(now) && (current == nil || recs[i].CreatedAt.After(current.CreatedAt)) {
			current = &recs[i]
		}
	}
	if current != nil {
		return *current, nil
	}

	rec, err := m.generateKey(now)
	if err != nil {
		return KeyRecord{}, err
	}
	if err := m.Storage.Save(ctx, rec); err != nil {
		return KeyRecord{}, err
	}
	return rec, nil
}

func (m *Manager) generateKey(now time.Time) (KeyRecord, error) {
	bits := m.RSAKeyBits
	if bits == 0 {
		bits = 2048
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return KeyRecord{}, fmt.Errorf("keys: generate: %w", err)
	}
	return KeyRecord{
		KID:       MakeKID(&priv.PublicKey),
		CreatedAt: now,
		NotBefore: now,
		NotAfter:  now.Add(m.rotateEvery()),
		Private:   priv,
	}, nil
}

// MakeKID derives a stable key id from the public modulus.
func MakeKID(pub *rsa.PublicKey) string {
	sum := sha256.Sum256(pub.N.Bytes())
	return hex.EncodeToString(sum[:8])
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) rotateEvery() time.Duration {
	if m.RotationInterval > 0 {
		return m.RotationInterval
	}
	return 90 * 24 * time.Hour
}

func (m *Manager) overlap() time.Duration {
	if m.Overlap > 0 {
		return m.Overlap
	}
	return 7 * 24 * time.Hour
}
