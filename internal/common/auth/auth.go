// Package auth resolves the calling principal from a bearer token. The
// orchestrator only needs identity and ownership; everything else about
// authentication stays behind this interface.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// ErrInvalidToken is returned when a token is missing, malformed or unknown.
var ErrInvalidToken = errors.New("auth: invalid token")

// Principal is the resolved caller identity.
type Principal struct {
	UserID string
	Email  string
}

// Authenticator resolves bearer tokens to principals.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// DBAuthenticator looks tokens up in the users table.
type DBAuthenticator struct {
	db *sql.DB
}

func NewDBAuthenticator(db *sql.DB) *DBAuthenticator {
	return &DBAuthenticator{db: db}
}

func (a *DBAuthenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	var p Principal
	err := a.db.QueryRowContext(ctx,
		`SELECT id, email FROM users WHERE api_token = $1`,
		token,
	).Scan(&p.UserID, &p.Email)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// TokenFromHeader extracts a bearer token from an Authorization header value.
func TokenFromHeader(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
