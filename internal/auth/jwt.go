package auth

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 1440 * time.Minute

// ErrInvalidToken covers every verification failure; callers only learn that
// the token was rejected.
var ErrInvalidToken = errors.New("invalid token")

type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	// Now defaults to time.Now.
	Now func() time.Time
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenManager(cfg TokenConfig) (*TokenManager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	m := &TokenManager{
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTokenTTL
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for userID that expires after ttl; ttl <= 0 uses the
// configured lifetime.
func (m *TokenManager) Issue(userID uint, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = m.ttl
	}
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *TokenManager) IssueDefault(userID uint) (string, error) {
	return m.Issue(userID, m.ttl)
}

// Verify checks signature and expiry and returns the subject's user id.
func (m *TokenManager) Verify(tokenStr string) (uint, error) {
	if tokenStr == "" {
		return 0, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		log.Printf("token rejected: %v", err)
		return 0, ErrInvalidToken
	}

	if claims.Subject == "" {
		log.Printf("token rejected: missing subject")
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		log.Printf("token rejected: bad subject %q", claims.Subject)
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}
