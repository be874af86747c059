// internal/tool/memory.go
package tool

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store + TokenStore for dev and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	types   map[int64]ToolType
	proxies map[int64]ToolProxy
	tokens  map[string]AccessToken
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		types:   make(map[int64]ToolType),
		proxies: make(map[int64]ToolProxy),
		tokens:  make(map[string]AccessToken),
	}
}

func (m *MemoryStore) GetToolType(_ context.Context, id int64) (ToolType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.types[id]
	if !ok {
		return ToolType{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) GetToolTypeByClientID(_ context.Context, clientID string) (ToolType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.types {
		if t.ClientID != "" && t.ClientID == clientID {
			return t, nil
		}
	}
	return ToolType{}, ErrNotFound
}

func (m *MemoryStore) GetToolTypeByConsumerKey(_ context.Context, consumerKey string) (ToolType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.types {
		if t.ProxyID == 0 && t.ConsumerKey != "" && t.ConsumerKey == consumerKey {
			return t, nil
		}
	}
	return ToolType{}, ErrNotFound
}

func (m *MemoryStore) ListToolTypes(_ context.Context, courseID int64) ([]ToolType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ToolType
	for _, t := range m.types {
		if courseID == SiteCourseID || t.CourseID == SiteCourseID || t.CourseID == courseID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStore) SaveToolType(_ context.Context, t *ToolType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		m.nextID++
		t.ID = m.nextID
	}
	m.types[t.ID] = *t
	return nil
}

func (m *MemoryStore) DeleteToolType(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.types[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.types, id)

	// Drop the owning proxy when this was its last tool.
	if t.ProxyID != 0 {
		orphaned := true
		for _, other := range m.types {
			if other.ProxyID == t.ProxyID {
				orphaned = false
				break
			}
		}
		if orphaned {
			delete(m.proxies, t.ProxyID)
		}
	}
	return nil
}

func (m *MemoryStore) GetProxy(_ context.Context, id int64) (ToolProxy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proxies[id]
	if !ok {
		return ToolProxy{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) GetProxyByGUID(_ context.Context, guid string) (ToolProxy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.proxies {
		if p.GUID == guid {
			return p, nil
		}
	}
	return ToolProxy{}, ErrNotFound
}

func (m *MemoryStore) SaveProxy(_ context.Context, p *ToolProxy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		m.nextID++
		p.ID = m.nextID
	}
	m.proxies[p.ID] = *p
	return nil
}

func (m *MemoryStore) TokenExists(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tokens[token]
	return ok, nil
}

func (m *MemoryStore) SaveToken(_ context.Context, t *AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		m.nextID++
		t.ID = m.nextID
	}
	m.tokens[t.Token] = *t
	return nil
}

func (m *MemoryStore) FindToken(_ context.Context, token string, toolTypeID int64) (AccessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[token]
	if !ok {
		return AccessToken{}, ErrNotFound
	}
	if toolTypeID != 0 && t.ToolTypeID != toolTypeID {
		return AccessToken{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) TouchToken(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.tokens {
		if t.ID == id {
			t.LastAccess = &at
			m.tokens[k] = t
			return nil
		}
	}
	return ErrNotFound
}
