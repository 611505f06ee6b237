package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"promosweep/internal/logger"
)

// AuthError means no usable credential could be obtained. It is fatal.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConsentFunc runs the interactive consent flow and returns a fresh token.
type ConsentFunc func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)

// Authenticator obtains a credential for the Gmail API: cached token first,
// then a silent refresh, then interactive consent. Whatever it ends up with
// is persisted before it is returned.
type Authenticator struct {
	cfg     *oauth2.Config
	store   CredentialStore
	consent ConsentFunc
	log     logger.Logger
}

func NewAuthenticator(cfg *oauth2.Config, store CredentialStore, consent ConsentFunc, log logger.Logger) *Authenticator {
	if log == nil {
		log = logger.Discard()
	}
	return &Authenticator{cfg: cfg, store: store, consent: consent, log: log}
}

// ConfigFromFile reads an OAuth client secret (the JSON downloaded from the
// Google Cloud console) and builds the oauth2 config for the given scopes.
func ConfigFromFile(path string, scopes []string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &AuthError{Op: "read client secret", Err: fmt.Errorf("%s: %w", path, err)}
	}
	cfg, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, &AuthError{Op: "parse client secret", Err: err}
	}
	return cfg, nil
}

// Credential returns a valid token, refreshing or re-consenting as needed.
func (a *Authenticator) Credential(ctx context.Context) (*oauth2.Token, error) {
	tok, err := a.store.Load()
	switch {
	case errors.Is(err, ErrNoCredential):
		a.log.Info("No stored credential, starting consent flow")
		return a.consentAndSave(ctx)
	case err != nil:
		return nil, &AuthError{Op: "load stored credential", Err: err}
	}

	if tok.Valid() {
		return tok, nil
	}

	if tok.RefreshToken != "" {
		refreshed, err := a.cfg.TokenSource(ctx, tok).Token()
		if err == nil {
			a.log.Debug("Refreshed expired credential")
			if err := a.store.Save(refreshed); err != nil {
				return nil, &AuthError{Op: "save credential", Err: err}
			}
			return refreshed, nil
		}
		a.log.Warn(fmt.Sprintf("Credential refresh failed, falling back to consent: %v", err))
	}

	return a.consentAndSave(ctx)
}

// Reauthorize ignores any stored credential and runs consent.
func (a *Authenticator) Reauthorize(ctx context.Context) (*oauth2.Token, error) {
	return a.consentAndSave(ctx)
}

func (a *Authenticator) consentAndSave(ctx context.Context) (*oauth2.Token, error) {
	if a.consent == nil {
		return nil, &AuthError{Op: "consent", Err: errors.New("interactive consent is not available")}
	}
	tok, err := a.consent(ctx, a.cfg)
	if err != nil {
		return nil, &AuthError{Op: "consent", Err: err}
	}
	if err := a.store.Save(tok); err != nil {
		return nil, &AuthError{Op: "save credential", Err: err}
	}
	return tok, nil
}

// HTTPClient returns an HTTP client authorized with the credential. Tokens
// refreshed mid-run are written back to the store.
func (a *Authenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := a.Credential(ctx)
	if err != nil {
		return nil, err
	}
	src := &savingSource{
		base:  oauth2.ReuseTokenSource(tok, a.cfg.TokenSource(ctx, tok)),
		store: a.store,
		last:  tok.AccessToken,
		log:   a.log,
	}
	return oauth2.NewClient(ctx, src), nil
}

type savingSource struct {
	mu    sync.Mutex
	base  oauth2.TokenSource
	store CredentialStore
	last  string
	log   logger.Logger
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Save(tok); err != nil {
			s.log.Warn(fmt.Sprintf("Could not persist refreshed credential: %v", err))
		}
	}
	return tok, nil
}
