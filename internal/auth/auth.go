// Package auth issues signed session tokens on login/registration and
// optionally checks that tab requests are made by the owning user. Tokens
// travel in the Authorization header (optionally "Bearer "-prefixed) or in
// a cookie.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/patric-chuzhbe/scratchpad/internal/models"
)

const tokenLifetime = 30 * 24 * time.Hour

// Auth handles token issuing and verification.
type Auth struct {
	// authCookieName is the name of the cookie used to store the JWT.
	authCookieName string

	// signingKey is the key used to sign JWTs.
	signingKey []byte

	// enforceOwnership makes CheckOwner reject requests without a matching token.
	enforceOwnership bool
}

// Claims represents the JWT claims used by the system.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key holding the user ID taken from a valid token.
const UserIDKey ContextKey = "userID"

func New(authCookieName string, signingKey []byte, enforceOwnership bool) *Auth {
	return &Auth{
		authCookieName:   authCookieName,
		signingKey:       signingKey,
		enforceOwnership: enforceOwnership,
	}
}

// IssueToken signs a token for userID and hands it to the client both as the
// Authorization response header and as a cookie.
func (a *Auth) IssueToken(response http.ResponseWriter, userID string) error {
	now := time.Now()
	JWTString, err := a.buildJWTString(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
		UserID: userID,
	})
	if err != nil {
		return err
	}

	response.Header().Set("Authorization", JWTString)
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.authCookieName,
			Value:    JWTString,
			Path:     "/",
			HttpOnly: true,
			Expires:  now.Add(tokenLifetime),
		},
	)

	return nil
}

// AuthenticateUser is an HTTP middleware that puts the user ID of a valid
// token into the request context. Requests without a valid token pass through
// unchanged.
func (a *Auth) AuthenticateUser(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		userID := a.getUserIDFromAuthorizationHeaderOrCookie(request)
		if userID == "" {
			h.ServeHTTP(response, request)
			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, userID)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// CheckOwner reports whether the authenticated caller may touch the tabs of
// ownerID. When ownership is not enforced every caller may.
func (a *Auth) CheckOwner(ctx context.Context, ownerID string) error {
	if !a.enforceOwnership {
		return nil
	}

	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok || userID == "" {
		return models.ErrAuth
	}
	if userID != ownerID {
		return models.ErrForbidden
	}

	return nil
}

// GetUserIDFromToken validates tokenString and returns the user ID it carries.
func (a *Auth) GetUserIDFromToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingKey, nil
		},
	)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", models.ErrAuth
	}

	return claims.UserID, nil
}

func (a *Auth) getTokenStringFromAuthorizationHeaderOrCookie(request *http.Request) string {
	tokenString := strings.TrimSpace(strings.TrimPrefix(request.Header.Get("Authorization"), "Bearer "))
	if tokenString != "" {
		return tokenString
	}
	cookie, err := request.Cookie(a.authCookieName)
	if err == nil {
		tokenString = cookie.Value
	}

	return tokenString
}

func (a *Auth) getUserIDFromAuthorizationHeaderOrCookie(request *http.Request) string {
	tokenString := a.getTokenStringFromAuthorizationHeaderOrCookie(request)
	if tokenString == "" {
		return ""
	}

	userID, err := a.GetUserIDFromToken(tokenString)
	if err != nil {
		return ""
	}

	return userID
}

func (a *Auth) buildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	return token.SignedString(a.signingKey)
}
