package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DefaultScopes are requested when refreshing the OneDrive token.
var DefaultScopes = []string{"offline_access", "Files.ReadWrite.All", "User.Read"}

// TokenConfig identifies the app registration and where the token lives.
type TokenConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	// RefreshToken seeds the token when TokenFile does not exist yet.
	RefreshToken string
	// TokenFile persists the latest token between runs.
	TokenFile string
	// Endpoint overrides the Azure AD endpoint derived from TenantID.
	Endpoint *oauth2.Endpoint
}

// ErrNoToken is returned when neither a token file nor a refresh token is available.
var ErrNoToken = errors.New("no onedrive token: set onedrive.refresh_token or provide a token file")

// TokenSource hands out access tokens, refreshing them as needed and writing
// every new token to disk so a restart does not need a new sign-in.
type TokenSource struct {
	src    oauth2.TokenSource
	file   string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

// NewTokenSource builds a refreshing token source from cfg.
func NewTokenSource(ctx context.Context, cfg TokenConfig, logger *slog.Logger) (*TokenSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tok, err := loadToken(cfg.TokenFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	if tok == nil {
		if cfg.RefreshToken == "" {
			return nil, ErrNoToken
		}
		tok = &oauth2.Token{RefreshToken: cfg.RefreshToken}
	}

	tenant := cfg.TenantID
	if tenant == "" {
		tenant = "common"
	}
	endpoint := endpoints.AzureAD(tenant)
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       DefaultScopes,
	}
	return &TokenSource{
		src:    oc.TokenSource(ctx, tok),
		file:   cfg.TokenFile,
		logger: logger,
		last:   tok.AccessToken,
	}, nil
}

// Token returns a valid token, persisting it when it changed.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := saveToken(s.file, tok); err != nil {
			s.logger.Warn("persisting onedrive token failed", "file", s.file, "error", err)
		}
	}
	return tok, nil
}

// HTTPClient returns an http.Client that authorizes requests with s.
func (s *TokenSource) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, s)
}

// KeepAlive forces a token check so a long idle period does not let the
// refresh token lapse. Failures are logged, never returned.
func (s *TokenSource) KeepAlive(ctx context.Context) {
	tok, err := s.Token()
	if err != nil {
		s.logger.Warn("onedrive token keep-alive failed", "error", err)
		return
	}
	s.logger.Info("onedrive token is valid", "expires", tok.Expiry)
}

func loadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if tok.RefreshToken == "" && tok.AccessToken == "" {
		return nil, os.ErrNotExist
	}
	return &tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
