package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"resort_hub/internal/domain"
)

type AuthOptions struct {
	Secret            string
	TokenTTL          time.Duration
	BcryptCost        int
	AllowRegistration bool
}

type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AuthService struct {
	admins domain.AdminRepository
	opts   AuthOptions
	now    func() time.Time
}

var emailRE = regexp.MustCompile(`^\S+@\S+\.\S+$`)

const minPasswordLen = 6

var ErrEmptySecret = errors.New("auth: empty signing secret")

func NewAuthService(a domain.AdminRepository, opts AuthOptions) (*AuthService, error) {
	if opts.Secret == "" {
		return nil, ErrEmptySecret
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{admins: a, opts: opts, now: time.Now}, nil
}

func (s *AuthService) Register(ctx context.Context, email, password, name string) (domain.Admin, error) {
	if !s.opts.AllowRegistration {
		return domain.Admin{}, fmt.Errorf("registration disabled: %w", domain.ErrForbidden)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailRE.MatchString(email) {
		return domain.Admin{}, domain.Invalid("email", "must be a valid email address")
	}
	if len(password) < minPasswordLen {
		return domain.Admin{}, domain.Invalid("password", "must be at least %d characters", minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return domain.Admin{}, fmt.Errorf("hash password: %w", err)
	}
	a, err := s.admins.CreateAdmin(ctx, domain.Admin{
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
		IsAdmin:      true,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return domain.Admin{}, fmt.Errorf("create admin: %w", err)
	}
	log.Info().Str("admin", a.ID).Msg("admin registered")
	return a, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Token, domain.Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Token{}, domain.Admin{}, domain.Invalid("credentials", "email and password required")
	}
	a, err := s.admins.FindAdminByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return Token{}, domain.Admin{}, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return Token{}, domain.Admin{}, fmt.Errorf("find admin: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return Token{}, domain.Admin{}, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}
	if !a.IsActive {
		return Token{}, domain.Admin{}, fmt.Errorf("admin inactive: %w", domain.ErrForbidden)
	}

	now := s.now().UTC()
	exp := now.Add(s.opts.TokenTTL)
	claims := jwt.MapClaims{
		"sub":   a.ID,
		"email": a.Email,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.opts.Secret))
	if err != nil {
		return Token{}, domain.Admin{}, fmt.Errorf("sign token: %w", err)
	}

	if err := s.admins.TouchLastLogin(ctx, a.ID, now); err != nil {
		log.Warn().Err(err).Str("admin", a.ID).Msg("record last login failed")
	} else {
		a.LastLogin = &now
	}
	return Token{Token: signed, ExpiresAt: exp}, a, nil
}

// Authenticate validates a bearer token and returns its active admin.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (domain.Admin, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.opts.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Admin{}, fmt.Errorf("token expired: %w", domain.ErrUnauthorized)
		}
		return domain.Admin{}, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Admin{}, fmt.Errorf("invalid claims: %w", domain.ErrUnauthorized)
	}

	a, err := s.admins.GetAdmin(ctx, sub)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Admin{}, fmt.Errorf("admin not found: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return domain.Admin{}, fmt.Errorf("get admin: %w", err)
	}
	if !a.IsActive {
		return domain.Admin{}, fmt.Errorf("admin inactive: %w", domain.ErrForbidden)
	}
	return a, nil
}
