package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/auth"
	"github.com/medicorex/hms/internal/platform/db"
	"github.com/medicorex/hms/internal/platform/idgen"
)

// errBadCredentials is returned for every failed login so callers cannot
// tell an unknown user from a wrong password.
var errBadCredentials = apperr.Unauthorized("invalid username or password")

type Service struct {
	tx       db.Transactor
	repo     Repository
	ids      idgen.Generator
	sessions *auth.Sessions
	revoked  *auth.Revocations
	logger   zerolog.Logger
	cost     int
	// dummyHash is compared against when the user does not exist so both
	// failure paths spend the same bcrypt time.
	dummyHash []byte
}

type Option func(*Service)

// WithRevocations lets SetActive revoke the tokens a disabled user holds.
func WithRevocations(r *auth.Revocations) Option {
	return func(s *Service) { s.revoked = r }
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(tx db.Transactor, repo Repository, ids idgen.Generator, sessions *auth.Sessions, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{tx: tx, repo: repo, ids: ids, sessions: sessions, logger: logger, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	return s
}

// CreateUser registers a staff account with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperr.Validation(entity, "password", "must be at most 72 bytes")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{Username: in.Username, PasswordHash: string(hash), Role: in.Role, Active: true}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		id, err := s.ids.Next(ctx, idgen.User)
		if err != nil {
			return err
		}
		u.ID = id
		return s.repo.Create(ctx, u)
	})
	if err != nil {
		if apperr.IsKind(err, apperr.KindDuplicateKey) {
			return nil, apperr.Duplicate(entity, "username", in.Username)
		}
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID).Str("username", u.Username).Str("role", u.Role).Msg("user created")
	return u, nil
}

// Authenticate checks the password of an active user and issues a session.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*auth.Session, error) {
	in := NewUser{Username: username}
	in.Normalize()

	u, err := s.repo.GetByUsername(ctx, in.Username)
	if err != nil {
		if !apperr.IsKind(err, apperr.KindNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.logger.Warn().Str("username", in.Username).Msg("login failed: unknown user")
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("user_id", u.ID).Msg("login failed: wrong password")
		return nil, errBadCredentials
	}
	if !u.Active {
		s.logger.Warn().Str("user_id", u.ID).Msg("login failed: account disabled")
		return nil, errBadCredentials
	}

	sess, err := s.sessions.Issue(u.ID, u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID).Str("role", u.Role).Msg("login")
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	if !idgen.Valid(idgen.User, id) {
		return nil, apperr.NotFound(entity, id)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// SetActive enables or disables login for a user. Disabling revokes every
// token the user already holds when the service has a revocation store;
// enabling leaves those tokens revoked.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*User, error) {
	if !idgen.Valid(idgen.User, id) {
		return nil, apperr.NotFound(entity, id)
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	if !active && s.revoked != nil {
		s.revoked.RevokeUser(id)
	}
	return s.repo.GetByID(ctx, id)
}
