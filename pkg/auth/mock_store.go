package auth

import "sync"

// MockStore implements TokenStore for testing purposes.
type MockStore struct {
	tokens map[string]*Token
	mu     sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock token store.
func NewMockStore() *MockStore {
	return &MockStore{tokens: make(map[string]*Token)}
}

// Store saves a token to the mock store.
func (m *MockStore) Store(token *Token) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if token == nil || token.Label == "" {
		return ErrInvalidToken
	}
	tokenCopy := *token
	m.tokens[token.Label] = &tokenCopy
	return nil
}

// Retrieve gets a token from the mock store.
func (m *MockStore) Retrieve(label string) (*Token, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if label == "" {
		return nil, ErrInvalidToken
	}
	token, exists := m.tokens[label]
	if !exists {
		return nil, ErrTokenNotFound
	}
	tokenCopy := *token
	return &tokenCopy, nil
}

// List returns all tokens from the mock store.
func (m *MockStore) List() ([]*Token, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var tokens []*Token
	for _, token := range m.tokens {
		tokenCopy := *token
		tokens = append(tokens, &tokenCopy)
	}
	return tokens, nil
}

// Delete removes a token from the mock store.
func (m *MockStore) Delete(label string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if label == "" {
		return ErrInvalidToken
	}
	if _, exists := m.tokens[label]; !exists {
		return ErrTokenNotFound
	}
	delete(m.tokens, label)
	return nil
}

// Exists checks if a token exists in the mock store.
func (m *MockStore) Exists(label string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.tokens[label]
	return exists
}

// Count returns the number of tokens in the mock store.
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

// NewMockManager creates a Manager with a mock store for testing.
func NewMockManager() (*Manager, *MockStore) {
	mockStore := NewMockStore()
	return &Manager{stores: []TokenStore{mockStore}}, mockStore
}

// NewMockManagerWithStores creates a Manager with the given stores for testing.
func NewMockManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}
