package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredentials is returned when no token has been stored yet.
var ErrNoCredentials = errors.New("not logged in")

type storedCredentials struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// CredentialStore keeps the access and refresh tokens of the CLI user. When
// path is non-empty every change is persisted to that file with mode 0600.
type CredentialStore struct {
	mu    sync.RWMutex
	path  string
	creds storedCredentials
}

// NewMemoryCredentialStore returns a store that never touches disk.
func NewMemoryCredentialStore(token, refreshToken string) *CredentialStore {
	return &CredentialStore{creds: storedCredentials{Token: token, RefreshToken: refreshToken}}
}

// OpenCredentialStore loads the credentials file at path. A missing file is
// not an error; the store starts empty.
func OpenCredentialStore(path string) (*CredentialStore, error) {
	s := &CredentialStore{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if err := json.Unmarshal(data, &s.creds); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return s, nil
}

func (s *CredentialStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Token
}

func (s *CredentialStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.RefreshToken
}

// Update replaces both tokens and persists them.
func (s *CredentialStore) Update(token, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = storedCredentials{Token: token, RefreshToken: refreshToken}
	return s.persist()
}

// Clear forgets both tokens and removes the credentials file.
func (s *CredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = storedCredentials{}
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

func (s *CredentialStore) persist() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(s.creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Claims returns the claims of the stored access token without verifying
// its signature. The platform API verifies tokens; the client only needs to
// know who it is acting as.
func (s *CredentialStore) Claims() (*Claims, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNoCredentials
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}

// Subject returns the user id of the stored access token.
func (s *CredentialStore) Subject() (string, error) {
	claims, err := s.Claims()
	if err != nil {
		return "", err
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	return "", fmt.Errorf("access token has no subject")
}
