package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"chatd/internal/domain"
	"chatd/internal/security"
)

// AuthService verifies logins and registers unseen usernames on the fly.
type AuthService struct {
	accounts     domain.AccountRepository
	groups       domain.GroupRepository
	hash         *security.PasswordHasher
	audit        *AuditService
	log          *slog.Logger
	defaultGroup string
}

func NewAuthService(
	accounts domain.AccountRepository,
	groups domain.GroupRepository,
	hash *security.PasswordHasher,
	audit *AuditService,
	log *slog.Logger,
	defaultGroup string,
) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{
		accounts:     accounts,
		groups:       groups,
		hash:         hash,
		audit:        audit,
		log:          log.With("component", "auth"),
		defaultGroup: defaultGroup,
	}
}

type LoginInput struct {
	Username   string
	Password   string
	RemoteAddr string
}

type LoginResult struct {
	Account    domain.Account
	Registered bool
}

// Login returns the account for valid credentials. An unknown username is
// registered with the given password and joined to the default group.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	if !domain.ValidUsername(in.Username) {
		return LoginResult{}, fmt.Errorf("username %q: %w", in.Username, domain.ErrInvalidInput)
	}
	if in.Password == "" {
		return LoginResult{}, fmt.Errorf("empty password: %w", domain.ErrInvalidInput)
	}

	if acc, ok := s.accounts.FindByUsername(in.Username); ok {
		return s.verify(ctx, acc, in)
	}

	acc, err := s.register(ctx, in)
	if errors.Is(err, domain.ErrConflict) {
		// lost a race with a concurrent first login of the same name
		if existing, ok := s.accounts.FindByUsername(in.Username); ok {
			return s.verify(ctx, existing, in)
		}
	}
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Account: acc, Registered: true}, nil
}

func (s *AuthService) verify(ctx context.Context, acc domain.Account, in LoginInput) (LoginResult, error) {
	if err := s.hash.Verify(in.Password, acc.Password); err != nil {
		s.audit.Record(ctx, in.Username, "login.fail", hostOf(in.RemoteAddr))
		return LoginResult{}, domain.ErrBadCredentials
	}
	return LoginResult{Account: acc}, nil
}

func (s *AuthService) register(ctx context.Context, in LoginInput) (domain.Account, error) {
	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	acc := domain.Account{
		ID:       s.accounts.NextID(),
		Username: in.Username,
		Password: hashed,
		Address:  hostOf(in.RemoteAddr),
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return domain.Account{}, fmt.Errorf("register: %w", err)
	}
	s.audit.Record(ctx, acc.Username, "register", fmt.Sprintf("id=%d addr=%s", acc.ID, acc.Address))

	s.joinDefaultGroup(ctx, acc.Username)
	return acc, nil
}

func (s *AuthService) joinDefaultGroup(ctx context.Context, username string) {
	gid, ok := s.groups.IDByName(s.defaultGroup)
	if !ok {
		s.log.Warn("default group missing", "group", s.defaultGroup)
		return
	}
	if err := s.groups.JoinGroup(gid, username); err != nil {
		s.log.Warn("join default group", "user", username, "err", err)
		return
	}
	if err := s.groups.Save(ctx); err != nil {
		s.log.Error("save groups", "err", err)
	}
}

func hostOf(addr string) string {
	if addr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
