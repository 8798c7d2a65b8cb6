// Package auth verifies the session tokens issued by the account service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	userserrors "seva/internal/users/errors"
	usersrepo "seva/internal/users/repository"
	apperrors "seva/pkg/errors"
	"seva/pkg/logger"
	"seva/pkg/model"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenQueryParam = "token"
	TokenCookie     = "token"

	claimUserID  = "userId"
	claimSubject = "sub"
)

var (
	ErrMissingToken = errors.New("token required")
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier resolves a bearer token to a principal. The user must still
// exist; a token for a deleted account is rejected.
type Verifier struct {
	secret []byte
	users  usersrepo.UserRepository
	log    *logger.Logger
}

func NewVerifier(secret string, users usersrepo.UserRepository, log *logger.Logger) *Verifier {
	return &Verifier{secret: []byte(secret), users: users, log: log}
}

// Verify never says why a token was rejected to the caller; the reason is
// logged at debug level.
func (v *Verifier) Verify(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, apperrors.Unauthorized("Authentication required")
	}

	userID, err := v.parse(token)
	if err != nil {
		v.log.Debug("Token rejected", "error", err)
		return model.Principal{}, apperrors.Unauthorized("Invalid or expired token")
	}

	user, err := v.users.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, userserrors.ErrNotFound) {
			v.log.Warn("Failed to load token user", "user_id", userID, "error", err)
		}
		return model.Principal{}, apperrors.Unauthorized("Invalid or expired token")
	}

	return model.Principal{UserID: user.ID, Name: user.Name}, nil
}

func (v *Verifier) parse(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	for _, name := range []string{claimUserID, claimSubject} {
		if id, ok := claims[name].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("user id not found in token")
}

// Sign issues a token in the account service's format. Used by local tools
// and tests.
func Sign(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		claimUserID: userID,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// TokenFromRequest looks in the query string, then the Authorization
// header, then the session cookie. Browsers cannot set headers on a
// websocket handshake, hence the query parameter.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get(TokenQueryParam); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
