package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordsNotMatch  = errors.New("passwords do not match")
)

const resetMailSubject = "Your password reset from Conduit"

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Service struct {
	users    UserStore
	sessions *TokenCodec
	resets   *TokenCodec
	mailer   Mailer
	cost     int
	log      *slog.Logger

	// dummyHash is compared against when a login names no account, so both
	// paths pay for one bcrypt comparison.
	dummyHash []byte
	compare   func(hash, password []byte) error
}

type ServiceConfig struct {
	Sessions   *TokenCodec
	Resets     *TokenCodec
	Mailer     Mailer
	BcryptCost int
	Logger     *slog.Logger
}

func NewService(userStore UserStore, cfg ServiceConfig) (*Service, error) {
	if userStore == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session token codec is required")
	}
	if cfg.Resets == nil {
		return nil, fmt.Errorf("reset token codec is required")
	}
	if cfg.Mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	dummyHash, err := bcrypt.GenerateFromPassword([]byte("conduit-no-such-user"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Service{
		users:     userStore,
		sessions:  cfg.Sessions,
		resets:    cfg.Resets,
		mailer:    cfg.Mailer,
		cost:      cost,
		log:       log,
		dummyHash: dummyHash,
		compare:   bcrypt.CompareHashAndPassword,
	}, nil
}

func (s *Service) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *Service) VerifyPassword(password, storedHash string) bool {
	return s.compare([]byte(storedHash), []byte(password)) == nil
}

// Signup returns a *ValidationError for bad input and ErrDuplicateEmail or
// ErrDuplicateUsername when the account already exists.
func (s *Service) Signup(ctx context.Context, username, email, password string) (string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := ValidateSignup(username, email, password); err != nil {
		return "", err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return "", err
	}
	if err := s.users.Create(ctx, User{Username: username, Email: email, PasswordHash: hash}); err != nil {
		return "", err
	}
	return s.sessions.Issue(username)
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = s.compare(s.dummyHash, []byte(password))
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !s.VerifyPassword(password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.sessions.Issue(u.Username)
}

func (s *Service) CurrentUser(ctx context.Context, username string) (User, error) {
	return s.users.GetByUsername(ctx, username)
}

func (s *Service) UpdateSettings(ctx context.Context, username string, in SettingsInput) error {
	if in.Password != "" {
		if in.Password != in.ConfirmPassword {
			return ErrPasswordsNotMatch
		}
		if err := ValidatePassword(in.Password); err != nil {
			return err
		}
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	u.Email = in.Email
	u.Bio = in.Bio
	u.Image = in.Image
	if in.Password != "" {
		hash, err := s.HashPassword(in.Password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
	}
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return &ValidationError{Field: "email", Message: "Duplicated email"}
		}
		return err
	}
	return nil
}

// RequestPasswordReset mails a reset link when the email belongs to a user.
// Unknown emails are not an error so callers cannot discover which accounts exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email, linkBase string) error {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.log.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("lookup reset email: %w", err)
	}
	token, err := s.resets.Issue(u.Email)
	if err != nil {
		return err
	}
	link := strings.TrimSuffix(linkBase, "/") + "/reset_password?token=" + url.QueryEscape(token)
	body := "You can reset your password accessing the following link: " + link
	if err := s.mailer.Send(ctx, u.Email, resetMailSubject, body); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// ResetPassword returns ErrInvalidToken for any token problem, including a
// subject that no longer matches a user.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if password != confirm {
		return ErrPasswordsNotMatch
	}
	claims, err := s.resets.Verify(token)
	if err != nil {
		return ErrInvalidToken
	}
	u, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("store reset password: %w", err)
	}
	return nil
}
