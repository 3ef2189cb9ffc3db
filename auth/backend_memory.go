package auth

import "sync"

// MemoryBackend keeps items in process memory. Tokens do not survive a restart.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string][]byte)}
}

func itemKey(service, account string) string {
	return service + "/" + account
}

// Find returns a copy of the stored item.
func (m *MemoryBackend) Find(service, account string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.items[itemKey(service, account)]
	if !ok {
		return nil, ErrItemNotFound
	}
	return append([]byte(nil), data...), nil
}

// Insert adds a new item.
func (m *MemoryBackend) Insert(service, account string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := itemKey(service, account)
	if _, exists := m.items[key]; exists {
		return ErrDuplicateItem
	}
	m.items[key] = append([]byte(nil), data...)
	return nil
}

// Update replaces an existing item.
func (m *MemoryBackend) Update(service, account string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := itemKey(service, account)
	if _, exists := m.items[key]; !exists {
		return ErrItemNotFound
	}
	m.items[key] = append([]byte(nil), data...)
	return nil
}
