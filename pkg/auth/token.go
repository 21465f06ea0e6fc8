package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Token is a stored HipChat user token, identified by an operator-chosen
// label ("work", "default", ...).
type Token struct {
	Label        string    `json:"label"`
	Value        string    `json:"value"`
	LastModified time.Time `json:"last_modified"`
}

// TokenStore is the interface for storing and retrieving user tokens.
type TokenStore interface {
	Store(token *Token) error
	Retrieve(label string) (*Token, error)
	List() ([]*Token, error)
	Delete(label string) error
	Exists(label string) bool
}

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// Manager chains token stores with fallback: system keychain first, then an
// encrypted file, then environment variables.
type Manager struct {
	stores []TokenStore
}

// NewManager creates a Manager with the available storage backends.
func NewManager() (*Manager, error) {
	var stores []TokenStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "tokens.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves a token using the first store that accepts it.
func (m *Manager) Store(token *Token) error {
	if token.Label == "" {
		return errors.New("label is required")
	}
	if token.Value == "" {
		return errors.New("token value is required")
	}
	token.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(token); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store token: %w", lastErr)
	}
	return errors.New("no available token stores")
}

// Retrieve gets a token from the first store that has it.
func (m *Manager) Retrieve(label string) (*Token, error) {
	for _, store := range m.stores {
		if token, err := store.Retrieve(label); err == nil && token != nil {
			return token, nil
		}
	}
	return nil, fmt.Errorf("token not found for label: %s", label)
}

// RetrieveDefault gets the environment token if set, else the first stored one.
func (m *Manager) RetrieveDefault() (*Token, error) {
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if token, err := envStore.Retrieve(""); err == nil && token != nil {
			return token, nil
		}
	}

	tokens, err := m.List()
	if err == nil && len(tokens) > 0 {
		return tokens[0], nil
	}
	return nil, errors.New("no stored token found")
}

// List returns all stored tokens across stores, most recent version winning.
func (m *Manager) List() ([]*Token, error) {
	tokenMap := make(map[string]*Token)
	for _, store := range m.stores {
		tokens, err := store.List()
		if err != nil {
			continue
		}
		for _, token := range tokens {
			if existing, ok := tokenMap[token.Label]; !ok || token.LastModified.After(existing.LastModified) {
				tokenMap[token.Label] = token
			}
		}
	}

	var result []*Token
	for _, token := range tokenMap {
		result = append(result, token)
	}
	return result, nil
}

// Delete removes a token from every store that has it.
func (m *Manager) Delete(label string) error {
	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(label); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}
	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("token not found for label: %s", label)
	}
	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	var configDir string
	switch runtime.GOOS {
	case "darwin":
		configDir = filepath.Join(home, "Library", "Application Support", "hcexport")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			configDir = filepath.Join(appData, "hcexport")
		} else {
			configDir = filepath.Join(home, "hcexport")
		}
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "hcexport")
		} else {
			configDir = filepath.Join(home, ".config", "hcexport")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}
