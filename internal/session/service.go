package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/offsetgrid/backend/internal/models"
	"github.com/offsetgrid/backend/internal/registry"
)

// ErrUnauthenticated is returned when no resolved identity is available for
// an operation that requires one.
var ErrUnauthenticated = errors.New("unauthenticated")

// Session is a validated local session: who the caller is plus the session id
// that keys their cart. A fresh login starts a fresh session, so carts do not
// survive logouts.
type Session struct {
	Identity models.Identity
	ID       string
}

type Service interface {
	Login(ctx context.Context, email, password string) (token string, identity *models.Identity, err error)
	Validate(ctx context.Context, token string) (*Session, error)
}

type service struct {
	registry registry.Port
	secret   []byte
	ttl      time.Duration
}

// NewService creates a session service. Login is delegated to the registry;
// on success a local HS256 token is issued so later requests do not round-trip
// to the registry for identity.
func NewService(reg registry.Port, secret string) Service {
	return &service{registry: reg, secret: []byte(secret), ttl: 7 * 24 * time.Hour}
}

var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
	OrgID string `json:"org"`
}

func (s *service) Login(ctx context.Context, email, password string) (string, *models.Identity, error) {
	_, user, err := s.registry.Login(ctx, email, password)
	if err != nil {
		return "", nil, err
	}
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: user.Email,
		Role:  user.Role,
		OrgID: user.OrgID,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, user, nil
}

func (s *service) Validate(_ context.Context, token string) (*Session, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, ErrUnauthenticated
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return nil, ErrUnauthenticated
	}
	return &Session{
		Identity: models.Identity{ID: c.Subject, Email: c.Email, Role: c.Role, OrgID: c.OrgID},
		ID:       c.ID,
	}, nil
}
