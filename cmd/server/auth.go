package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/db"
)

var (
	ErrAuthRequired     = errors.New("authentication required: send AUTH JWT <token>")
	ErrAuthNotEnabled   = errors.New("authentication not configured")
	ErrTokenExpired     = errors.New("token expired: authenticate again")
	ErrMissingIdentity  = errors.New("token missing identity claims")
	ErrNotAnAuthCommand = errors.New("not an AUTH command")
)

// AuthConfig configures server authentication.
type AuthConfig struct {
	// Enabled requires every connection to send AUTH before any statement.
	Enabled bool

	// JWTSecret is the shared secret for HS256/HS384/HS512 tokens.
	JWTSecret string

	// Issuer and Audience, when set, must match the token's claims.
	Issuer   string
	Audience string

	// NameClaim and EmailClaim name the claims the identity is read from
	// (default "name" and "email").
	NameClaim  string
	EmailClaim string
}

// Session is the per-connection state: the engine the connection executes
// on and who it is authenticated as.
type Session struct {
	engine        *db.Engine
	authenticated bool
	tokenExpiry   time.Time
}

func (session *Session) IsAuthenticated() bool {
	return session.authenticated
}

func (session *Session) Identity() core.Identity {
	return session.engine.Identity()
}

// authorize reports whether the session may execute statements.
func (s *Server) authorize(session *Session) error {
	if s.authConfig == nil || !s.authConfig.Enabled {
		return nil
	}
	if !session.authenticated {
		return ErrAuthRequired
	}
	if !session.tokenExpiry.IsZero() && time.Now().After(session.tokenExpiry) {
		session.authenticated = false
		return ErrTokenExpired
	}
	return nil
}

// validateJWT verifies a token and returns the identity it carries.
func (s *Server) validateJWT(tokenString string) (core.Identity, time.Time, error) {
	if s.authConfig == nil || s.authConfig.JWTSecret == "" {
		return core.Identity{}, time.Time{}, ErrAuthNotEnabled
	}

	var opts []jwt.ParserOption
	opts = append(opts, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if s.authConfig.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.authConfig.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(s.authConfig.JWTSecret), nil
	}, opts...)
	if err != nil {
		return core.Identity{}, time.Time{}, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return core.Identity{}, time.Time{}, errors.New("invalid token claims")
	}

	if s.authConfig.Audience != "" {
		audiences, _ := claims.GetAudience()
		if !slices.Contains(audiences, s.authConfig.Audience) {
			return core.Identity{}, time.Time{}, fmt.Errorf("invalid audience: expected %s", s.authConfig.Audience)
		}
	}

	identity, err := s.identityFromClaims(claims)
	if err != nil {
		return core.Identity{}, time.Time{}, err
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	return identity, expiresAt, nil
}

func (s *Server) identityFromClaims(claims jwt.MapClaims) (core.Identity, error) {
	nameClaim := s.authConfig.NameClaim
	if nameClaim == "" {
		nameClaim = "name"
	}
	emailClaim := s.authConfig.EmailClaim
	if emailClaim == "" {
		emailClaim = "email"
	}

	name, _ := claims[nameClaim].(string)
	email, _ := claims[emailClaim].(string)
	if name == "" && email == "" {
		return core.Identity{}, fmt.Errorf("%w (%s or %s)", ErrMissingIdentity, nameClaim, emailClaim)
	}
	return core.Identity{Name: name, Email: email}, nil
}

// parseAuthCommand splits "AUTH JWT <token>" into its type and token.
func parseAuthCommand(line string) (authType, token string, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 || !strings.EqualFold(parts[0], "AUTH") {
		return "", "", ErrNotAnAuthCommand
	}
	if len(parts) != 3 {
		return "", "", errors.New("invalid AUTH command: expected AUTH <type> <credentials>")
	}

	authType = strings.ToUpper(parts[1])
	if authType != "JWT" {
		return "", "", fmt.Errorf("unsupported auth type: %s", parts[1])
	}
	return authType, parts[2], nil
}

func isAuthCommand(line string) bool {
	return len(line) >= 5 && strings.EqualFold(line[:5], "AUTH ")
}

// handleAuth authenticates the session. The token's identity becomes the
// identity statements run as, so CURRENT_USER() reports it.
func (s *Server) handleAuth(line string, session *Session) Response {
	_, token, err := parseAuthCommand(line)
	if err != nil {
		return Response{Success: false, Type: "auth", Error: err.Error()}
	}

	identity, expiresAt, err := s.validateJWT(token)
	if err != nil {
		s.logger.Warn("authentication failed", "error", err)
		return Response{Success: false, Type: "auth", Error: err.Error()}
	}

	session.engine.SetIdentity(identity)
	session.authenticated = true
	session.tokenExpiry = expiresAt
	s.logger.Info("authenticated", "identity", identity.String())

	ar := AuthResponse{
		Authenticated: true,
		Identity:      identity.String(),
	}
	if !expiresAt.IsZero() {
		ar.ExpiresIn = int(time.Until(expiresAt).Seconds())
	}

	data, _ := json.Marshal(ar)
	return Response{Success: true, Type: "auth", Result: data}
}
