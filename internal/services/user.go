package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bloglist/apiserver/internal/auth"
	"github.com/bloglist/apiserver/types"
)

const minCredentialLength = 3

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Reset(ctx context.Context) error
}

// SessionStore keeps the server side of login sessions.
type SessionStore interface {
	Save(ctx context.Context, session types.Session) error
	Get(ctx context.Context, id string) (types.Session, error)
	Delete(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}

// UserService encapsulates registration, login and session resolution.
type UserService struct {
	repo     UserRepository
	sessions SessionStore
	tokens   *auth.TokenIssuer
	hashCost int
}

func NewUserService(repo UserRepository, sessions SessionStore, tokens *auth.TokenIssuer) *UserService {
	return &UserService{
		repo:     repo,
		sessions: sessions,
		tokens:   tokens,
		hashCost: bcrypt.DefaultCost,
	}
}

func (s *UserService) GetByID(ctx context.Context, id int64) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

// Register creates a user with a hashed password. A taken username yields
// ErrConflict.
func (s *UserService) Register(ctx context.Context, name, username, password string) (types.User, error) {
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)
	if name == "" ||
		utf8.RuneCountInString(username) < minCredentialLength ||
		utf8.RuneCountInString(password) < minCredentialLength {
		return types.User{}, ErrInvalidInput
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return types.User{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return types.User{}, fmt.Errorf("check username: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         name,
		Username:     username,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return types.User{}, ErrConflict
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate checks the credentials and opens a session. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.Session, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Session{}, ErrInvalidCredentials
		}
		return types.Session{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.Session{}, ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := s.tokens.Issue(user.ID, sessionID)
	if err != nil {
		return types.Session{}, fmt.Errorf("issue token: %w", err)
	}

	session := types.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Username:  user.Username,
		Name:      user.Name,
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return types.Session{}, fmt.Errorf("save session: %w", err)
	}

	session.Token = token
	return session, nil
}

// Resolve turns a bearer token back into its live session.
func (s *UserService) Resolve(ctx context.Context, token string) (types.Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return types.Session{}, ErrUnauthenticated
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Session{}, ErrUnauthenticated
		}
		return types.Session{}, fmt.Errorf("load session: %w", err)
	}
	if session.UserID != claims.UserID {
		return types.Session{}, ErrUnauthenticated
	}

	user, err := s.repo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Session{}, ErrUnauthenticated
		}
		return types.Session{}, fmt.Errorf("load user: %w", err)
	}

	session.Username = user.Username
	session.Name = user.Name
	return session, nil
}

// Verify checks that the session was not logged out or reset and that its
// user still exists.
func (s *UserService) Verify(ctx context.Context, session *types.Session) error {
	if session == nil {
		return ErrUnauthenticated
	}

	stored, err := s.sessions.Get(ctx, session.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("load session: %w", err)
	}
	if stored.UserID != session.UserID {
		return ErrUnauthenticated
	}

	if _, err := s.repo.GetByID(ctx, stored.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("load user: %w", err)
	}
	return nil
}

// Logout destroys the session. Tokens issued for it stop resolving.
func (s *UserService) Logout(ctx context.Context, session *types.Session) error {
	if session == nil {
		return ErrUnauthenticated
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
