package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const emailTokenIssuer = "proofpass"

// ErrInvalidEmailToken токен не прошёл проверку подписи, срока или клеймов.
var ErrInvalidEmailToken = errors.New("invalid email verification token")

// EmailToken подтверждённый email из токена.
type EmailToken struct {
	Email     string
	ExpiresAt time.Time
}

// TokenManager отвечает за выпуск и проверку JWT подтверждённого email.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// IssueEmailToken выпускает токен после успешной проверки кода.
func (m *TokenManager) IssueEmailToken(email string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    emailTokenIssuer,
		Subject:   email,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseEmailToken проверяет токен и возвращает email.
func (m *TokenManager) ParseEmailToken(token string) (*EmailToken, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(emailTokenIssuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidEmailToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidEmailToken
	}

	return &EmailToken{Email: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}
