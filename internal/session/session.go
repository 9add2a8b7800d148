package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/clustervision/lunactl/internal/logging"
	"github.com/clustervision/lunactl/internal/luna"
)

// ErrCredentials reports that no usable username/password pair is available,
// or that the daemon rejected it.
var ErrCredentials = errors.New("invalid or missing credentials")

// expiryLeeway treats tokens that expire within this window as expired.
const expiryLeeway = 30 * time.Second

// Authenticator exchanges credentials for a token. *luna.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Options configure a Session.
type Options struct {
	Auth      Authenticator
	CachePath string
	Endpoint  string
	Username  string
	Password  string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Session supplies validated access tokens to the transport. It caches the
// token in memory and in a file so later invocations can reuse it.
type Session struct {
	auth      Authenticator
	cachePath string
	endpoint  string
	username  string
	password  string
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	token string
}

var _ luna.TokenSource = (*Session)(nil)

type cachedToken struct {
	Token    string    `toml:"token"`
	Username string    `toml:"username"`
	Endpoint string    `toml:"endpoint"`
	SavedAt  time.Time `toml:"saved_at"`
}

// New builds a Session.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		auth:      opts.Auth,
		cachePath: strings.TrimSpace(opts.CachePath),
		endpoint:  opts.Endpoint,
		username:  strings.TrimSpace(opts.Username),
		password:  opts.Password,
		logger:    logger,
		now:       now,
	}
}

// Username returns the account the session authenticates as.
func (s *Session) Username() string {
	return s.username
}

// Token returns a token that is valid for at least expiryLeeway, refreshing
// it from the daemon when the cached one is missing, undecodable or expired.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		s.token = s.loadCache()
	}
	if s.token != "" {
		err := s.validate(s.token)
		if err == nil {
			return s.token, nil
		}
		s.logger.Debug("cached token unusable, refreshing", slog.String("reason", err.Error()))
	}
	return s.refreshLocked(ctx)
}

// Refresh discards any cached token and logs in again.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return s.refreshLocked(ctx)
}

// Invalidate drops the in-memory and on-disk token.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.removeCache()
}

// Logout invalidates the token and forgets the stored password.
func (s *Session) Logout() error {
	s.Invalidate()
	if s.username == "" {
		return nil
	}
	if err := DeletePassword(s.username); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *Session) refreshLocked(ctx context.Context) (string, error) {
	if s.auth == nil {
		return "", fmt.Errorf("session has no authenticator")
	}
	password, err := s.resolvePassword()
	if err != nil {
		return "", err
	}

	token, err := s.auth.Login(ctx, s.username, password)
	if err != nil {
		var apiErr *luna.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return "", fmt.Errorf("%w: %s", ErrCredentials, apiErr.Message)
		}
		return "", fmt.Errorf("refresh token: %w", err)
	}
	s.token = token
	if err := s.saveCache(token); err != nil {
		s.logger.Warn("could not cache token", slog.String("path", s.cachePath), slog.String("error", err.Error()))
	}
	s.logger.Debug("token refreshed", slog.String("username", s.username))
	return token, nil
}

func (s *Session) resolvePassword() (string, error) {
	if s.username == "" {
		return "", fmt.Errorf("%w: no username configured", ErrCredentials)
	}
	if s.password != "" {
		return s.password, nil
	}
	password, err := LookupPassword(s.username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: no password for %q (run `luna login`)", ErrCredentials, s.username)
		}
		return "", err
	}
	return password, nil
}

// validate decodes the token locally and checks its expiry. The signature is
// not verified; only the daemon holds the key.
func (s *Session) validate(token string) error {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	if !claims.ExpiresAt.Time.After(s.now().Add(expiryLeeway)) {
		return fmt.Errorf("token expired at %s", claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return nil
}

func (s *Session) loadCache() string {
	if s.cachePath == "" {
		return ""
	}
	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		return ""
	}
	var cached cachedToken
	if err := toml.Unmarshal(data, &cached); err != nil {
		s.logger.Debug("token cache unreadable", slog.String("error", err.Error()))
		return ""
	}
	if cached.Username != s.username || cached.Endpoint != s.endpoint {
		return ""
	}
	return strings.TrimSpace(cached.Token)
}

func (s *Session) saveCache(token string) error {
	if s.cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.cachePath), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	data, err := toml.Marshal(cachedToken{
		Token:    token,
		Username: s.username,
		Endpoint: s.endpoint,
		SavedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(s.cachePath, data, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

func (s *Session) removeCache() {
	if s.cachePath == "" {
		return
	}
	if err := os.Remove(s.cachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("could not remove token cache", slog.String("error", err.Error()))
	}
}
