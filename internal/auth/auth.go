// Package auth implements the inbound bearer-token gate.
package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Decision is the outcome of an authentication check.
type Decision int

const (
	Denied Decision = iota
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

var (
	// ErrMissingCredential is returned when no Authorization header is present.
	ErrMissingCredential = errors.New("missing Authorization header")
	// ErrMalformedCredential is returned when the header is not a bearer token.
	ErrMalformedCredential = errors.New("invalid Authorization header format")
	// ErrInvalidCredential is returned when the token does not match.
	ErrInvalidCredential = errors.New("invalid authentication token")
)

// Authenticate compares a presented token against the configured one in
// constant time. An empty token on either side is always denied.
func Authenticate(presented, configured string) Decision {
	if presented == "" || configured == "" {
		return Denied
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1 {
		return Allowed
	}
	return Denied
}

// ExtractBearer extracts the token from an Authorization header value.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingCredential
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", ErrMalformedCredential
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMalformedCredential
	}
	return token, nil
}

// Gate validates inbound requests against a single configured token.
// Paths listed in Public bypass the check entirely.
type Gate struct {
	token  string
	public map[string]struct{}
	logger *slog.Logger
}

// NewGate creates a gate for token with an explicit public allow-list.
func NewGate(token string, public []string, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		token:  token,
		public: make(map[string]struct{}, len(public)),
		logger: logger,
	}
	for _, p := range public {
		g.public[p] = struct{}{}
	}
	return g
}

// IsPublic reports whether path is on the allow-list.
func (g *Gate) IsPublic(path string) bool {
	_, ok := g.public[path]
	return ok
}

// Check authenticates r. It returns nil for public paths and valid tokens.
func (g *Gate) Check(r *http.Request) error {
	if g.IsPublic(r.URL.Path) {
		return nil
	}

	token, err := ExtractBearer(r.Header.Get("Authorization"))
	if err != nil {
		g.logDenied(r, err)
		return err
	}

	if Authenticate(token, g.token) != Allowed {
		g.logDenied(r, ErrInvalidCredential)
		return ErrInvalidCredential
	}

	g.logger.Debug("auth allowed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	return nil
}

func (g *Gate) logDenied(r *http.Request, reason error) {
	g.logger.Warn("auth denied",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("reason", reason.Error()),
	)
}
