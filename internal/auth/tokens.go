package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/UkralStul/rubbhub/internal/domain"
	apperr "github.com/UkralStul/rubbhub/internal/errors"
)

const codeInvalidToken = "INVALID_TOKEN"

// Claims - содержимое токена доступа.
type Claims struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens выпускает и проверяет HS256-токены.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(u *domain.User) (string, error) {
	now := t.now()
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", apperr.WrapInternal(err, "failed to sign token")
	}
	return signed, nil
}

func invalidToken(msg string) error {
	return apperr.New(apperr.KindUnauthorized, codeInvalidToken, msg)
}

// Verify разбирает токен и возвращает его claims.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, invalidToken("token expired")
		}
		return nil, invalidToken("invalid token")
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, invalidToken("invalid token")
	}
	return claims, nil
}

func (c *Claims) Identity() *domain.Identity {
	return &domain.Identity{UserID: c.UserID, Role: c.Role}
}
