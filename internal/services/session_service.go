package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tradersage/bastion/internal/aegis"
)

const sessionTTL = 24 * time.Hour

var ErrInvalidSession = errors.New("invalid session token")

// SessionService issues and parses the signed session tokens that carry a
// session id and subscription tier. Tokens are stateless; the CSRF manager
// keys its per-session tokens off the session id embedded here.
type SessionService struct {
	secret []byte
	now    func() time.Time
}

// NewSessionService returns a service signing with the given HMAC secret.
func NewSessionService(secret string) *SessionService {
	return &SessionService{secret: []byte(secret), now: time.Now}
}

// Issue creates a new session and returns its signed token and session id.
func (s *SessionService) Issue(tier aegis.Tier) (token, sessionID string, err error) {
	sessionID = uuid.NewString()
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  sessionID,
		"tier": string(tier),
		"iat":  now.Unix(),
		"exp":  now.Add(sessionTTL).Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign session token: %w", err)
	}
	return token, sessionID, nil
}

// Parse validates a token and returns the session id and tier it carries.
func (s *SessionService) Parse(token string) (sessionID string, tier aegis.Tier, err error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidSession
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidSession
	}
	sessionID, _ = claims["sub"].(string)
	if sessionID == "" {
		return "", "", ErrInvalidSession
	}
	if raw, _ := claims["tier"].(string); raw != "" {
		tier = aegis.Tier(raw)
	} else {
		tier = aegis.TierBasic
	}
	return sessionID, tier, nil
}
