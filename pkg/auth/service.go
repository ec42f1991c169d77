package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// AuthService defines the interface for request authentication.
// This abstraction keeps HTTP handling apart from token logic so both are
// easy to test.
type AuthService interface {
	// ValidateRequest extracts and validates a session token from the request.
	// It checks for the token in:
	//   1. The signed session cookie (browser clients)
	//   2. Authorization header with "Bearer" scheme (API clients)
	// Returns the validated claims, the raw token string, or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

type authService struct {
	tokens   TokenManager
	sessions *SessionStore
	logger   *zap.Logger
}

// NewAuthService creates an AuthService. sessions may be nil for API-only use.
func NewAuthService(tokens TokenManager, sessions *SessionStore, logger *zap.Logger) AuthService {
	return &authService{
		tokens:   tokens,
		sessions: sessions,
		logger:   logger,
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	var tokenString string
	var tokenSource string

	if token, ok := s.sessionToken(r); ok {
		tokenString = token
		tokenSource = "cookie"
	} else {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.logger.Debug("No token found in request",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method))
			return nil, "", ErrMissingAuthorization
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			s.logger.Debug("Invalid Authorization header format",
				zap.String("path", r.URL.Path))
			return nil, "", ErrInvalidAuthFormat
		}
		tokenString = parts[1]
		tokenSource = "header"
	}

	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		s.logger.Debug("Token validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", tokenSource))
		return nil, "", err
	}

	return claims, tokenString, nil
}

func (s *authService) sessionToken(r *http.Request) (string, bool) {
	if s.sessions == nil {
		return "", false
	}
	return s.sessions.Token(r)
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)
