package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements TokenStore over the HCEXPORT_USER_TOKEN
// environment variable. Read-only; it exists so CI and one-off runs never
// need the keychain or the encrypted file.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based token store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables.
func (e *EnvironmentStore) Store(token *Token) error {
	return ErrStoreUnavailable
}

// Retrieve gets the token from the environment.
func (e *EnvironmentStore) Retrieve(label string) (*Token, error) {
	value := os.Getenv("HCEXPORT_USER_TOKEN")
	if value == "" {
		return nil, ErrTokenNotFound
	}
	if label == "" {
		label = "default"
	}
	return &Token{
		Label:        label,
		Value:        value,
		LastModified: time.Now(),
	}, nil
}

// List returns a single token if the environment variable is set.
func (e *EnvironmentStore) List() ([]*Token, error) {
	token, err := e.Retrieve("")
	if err != nil {
		return []*Token{}, nil
	}
	return []*Token{token}, nil
}

// Delete is not supported for environment variables.
func (e *EnvironmentStore) Delete(label string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment token is set.
func (e *EnvironmentStore) Exists(label string) bool {
	return os.Getenv("HCEXPORT_USER_TOKEN") != ""
}
