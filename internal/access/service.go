package access

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"lukechampine.com/blake3"

	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/services"
)

// Locator resolves a published artifact name to something the caller can
// serve: a local path or a URL. Missing artifacts wrap services.ErrNotFound.
type Locator interface {
	Locate(ctx context.Context, name string) (string, error)
}

// Service issues and validates download tokens.
type Service struct {
	key     [32]byte
	ttl     time.Duration
	baseURL string
	locator Locator
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the issuing clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocator sets the artifact resolver used by Redeem.
func WithLocator(locator Locator) Option {
	return func(s *Service) {
		s.locator = locator
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService builds a token service. An empty signing key generates a key
// that lives only as long as the process, so links do not survive restarts.
func NewService(signingKey string, ttl time.Duration, opts ...Option) (*Service, error) {
	if ttl <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "access", "new service", fmt.Sprintf("ttl must be positive, got %s", ttl), nil)
	}
	s := &Service{
		ttl:    ttl,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "access")

	if secret := strings.TrimSpace(signingKey); secret != "" {
		s.key = blake3.Sum256([]byte(secret))
		return s, nil
	}
	if _, err := rand.Read(s.key[:]); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "access", "new service", "generate signing key", err)
	}
	logging.WarnWithContext(s.logger, "no signing key configured; using an ephemeral key", "access_ephemeral_key",
		logging.String(logging.FieldErrorHint, "set access.signing_key or CAPTIONER_SIGNING_KEY"),
		logging.String(logging.FieldImpact, "download links stop working when the process exits"),
	)
	return s, nil
}

// NewFromConfig builds a Service from the access section of cfg.
func NewFromConfig(cfg *config.Config, locator Locator, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "access", "new service", "config is nil", nil)
	}
	s, err := NewService(cfg.Access.SigningKey, cfg.TokenTTL(), WithLocator(locator), WithLogger(logger))
	if err != nil {
		return nil, err
	}
	s.baseURL = cfg.Access.BaseURL
	return s, nil
}

// TTL is the lifetime given to tokens issued by Issue.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// URL renders the public download link for token.
func (s *Service) URL(token Token) string {
	return token.Path(s.baseURL)
}

// Issue creates a token for filename valid for the configured TTL.
func (s *Service) Issue(filename string) (Token, error) {
	return s.IssueWithTTL(filename, s.ttl)
}

// IssueWithTTL creates a token for filename valid for ttl.
func (s *Service) IssueWithTTL(filename string, ttl time.Duration) (Token, error) {
	if err := checkFilename(filename); err != nil {
		return Token{}, services.Wrap(services.ErrValidation, "access", "issue token", "", err)
	}
	if ttl <= 0 {
		return Token{}, services.Wrap(services.ErrValidation, "access", "issue token", fmt.Sprintf("ttl must be positive, got %s", ttl), nil)
	}
	nonce, err := newNonce()
	if err != nil {
		return Token{}, services.Wrap(services.ErrTransient, "access", "issue token", "generate nonce", err)
	}
	expiresAt := s.now().Add(ttl).Truncate(time.Microsecond)
	expires := formatExpires(expiresAt)
	mac := sign(&s.key, filename, expires, nonce)
	return Token{
		Filename:  filename,
		Value:     nonce + "." + encoding.EncodeToString(mac),
		ExpiresAt: time.UnixMicro(expiresAt.UnixMicro()),
	}, nil
}

// Validate checks a presented link at instant now and returns the filename
// it grants. A token is still valid at exactly its expiry instant.
func (s *Service) Validate(filename, token, expires string, now time.Time) (string, error) {
	switch {
	case filename == "":
		return "", &InvalidTokenError{Reason: "missing filename"}
	case token == "":
		return "", &InvalidTokenError{Reason: "missing token"}
	case expires == "":
		return "", &InvalidTokenError{Reason: "missing expires"}
	}
	if err := checkFilename(filename); err != nil {
		return "", &InvalidTokenError{Reason: err.Error()}
	}
	expiresAt, ok := parseExpires(expires)
	if !ok {
		return "", &InvalidTokenError{Reason: "malformed expires"}
	}
	if !verify(&s.key, filename, expires, token) {
		return "", &InvalidTokenError{Reason: "signature mismatch"}
	}
	if now.After(expiresAt) {
		return "", &ExpiredTokenError{ExpiresAt: expiresAt}
	}
	return filename, nil
}

// Redeem validates a link against the current time and resolves the artifact
// it grants.
func (s *Service) Redeem(ctx context.Context, filename, token, expires string) (string, error) {
	logger := logging.WithContext(ctx, s.logger)
	name, err := s.Validate(filename, token, expires, s.now())
	if err != nil {
		var expired *ExpiredTokenError
		reason := "invalid"
		if errors.As(err, &expired) {
			reason = "expired"
		}
		logger.Info("download token rejected",
			logging.String("filename", filename),
			logging.String("reason", reason),
		)
		return "", err
	}
	if s.locator == nil {
		return "", services.Wrap(services.ErrConfiguration, "access", "redeem token", "no artifact locator configured", nil)
	}
	location, err := s.locator.Locate(ctx, name)
	if err != nil {
		return "", err
	}
	logger.Debug("download token redeemed", logging.String("filename", name))
	return location, nil
}

func checkFilename(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("filename is empty")
	case name == "." || name == "..":
		return fmt.Errorf("filename %q is not a file", name)
	case strings.ContainsAny(name, "/\\\x00"), filepath.Base(name) != name:
		return fmt.Errorf("filename %q must not contain a path", name)
	}
	return nil
}
