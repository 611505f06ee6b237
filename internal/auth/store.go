package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// ErrNoCredential is returned by a CredentialStore that holds nothing yet.
var ErrNoCredential = errors.New("no stored credential")

// CredentialStore persists the OAuth token between runs.
type CredentialStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// FileStore keeps the token as JSON in a single file.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load() (*oauth2.Token, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCredential
		}
		return nil, err
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("decode %s: token has neither access nor refresh token", s.Path)
	}
	return &tok, nil
}

// Save writes the token atomically, overwriting any previous one.
func (s *FileStore) Save(tok *oauth2.Token) error {
	tmp := s.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}
