package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Identity é quem está chamando
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) Admin() bool { return i.Role == RoleAdmin }

// Resolver extrai a identidade da requisição (HTTP ou upgrade do WS)
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWT valida tokens HS256 com claims userId/role
type JWT struct {
	Secret   []byte
	TokenTTL time.Duration
}

func (j JWT) Sign(userID, role string) (string, error) {
	now := time.Now().UTC()
	ttl := j.TokenTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	c := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "livebet-ledger",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.Secret)
}

func (j JWT) Verify(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.Secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || c.UserID == "" {
		return Claims{}, errors.New("invalid token")
	}
	return *c, nil
}

// Resolve aceita "Authorization: Bearer" ou ?token= (browsers não mandam
// header no upgrade do websocket)
func (j JWT) Resolve(r *http.Request) (Identity, error) {
	tok := bearerToken(r.Header.Get("Authorization"))
	if tok == "" {
		tok = r.URL.Query().Get("token")
	}
	if tok == "" {
		return Identity{}, ErrUnauthenticated
	}
	c, err := j.Verify(tok)
	if err != nil {
		return Identity{}, ErrUnauthenticated
	}
	role := c.Role
	if role == "" {
		role = RoleUser
	}
	return Identity{UserID: c.UserID, Role: role}, nil
}

// Header confia em X-User-ID/X-User-Role; só para ENV=local sem JWT_SECRET
type Header struct{}

func (Header) Resolve(r *http.Request) (Identity, error) {
	uid := r.Header.Get("X-User-ID")
	if uid == "" {
		uid = r.URL.Query().Get("userId")
	}
	if uid == "" {
		return Identity{}, ErrUnauthenticated
	}
	role := r.Header.Get("X-User-Role")
	if role == "" {
		role = RoleUser
	}
	return Identity{UserID: uid, Role: role}, nil
}

type ctxKey int

const identityKey ctxKey = 1

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func bearerToken(v string) string {
	parts := strings.SplitN(strings.TrimSpace(v), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
