package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type JWT struct {
	key []byte
	ttl time.Duration
}

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewJWT returns nil when secret is empty; a nil *JWT issues no tokens.
func NewJWT(secret string, ttl time.Duration) (*JWT, error) {
	if secret == "" {
		return nil, nil
	}
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWT{key: []byte(secret), ttl: ttl}, nil
}

func (j *JWT) Issue(userID, username string) (string, error) {
	if j == nil {
		return "", nil
	}
	now := time.Now()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.key)
}

func (j *JWT) Parse(token string) (*Claims, error) {
	if j == nil {
		return nil, ErrInvalidToken
	}
	tok, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) { return j.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if c, ok := tok.Claims.(*Claims); ok && tok.Valid {
		return c, nil
	}
	return nil, ErrInvalidToken
}

type ctxKey struct{}

// FromContext returns the claims attached by Guard, nil for static-token or
// unauthenticated requests.
func FromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(ctxKey{}).(*Claims)
	return c
}

// Guard accepts either the static bearer token or a valid JWT. With neither
// configured every request passes.
type Guard struct {
	JWT    *JWT
	Static string
}

func (g Guard) Enabled() bool { return g.JWT != nil || g.Static != "" }

func (g Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		tok := parts[1]
		if g.Static != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(g.Static)) == 1 {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := g.JWT.Parse(tok)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}
