package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"sandwich_hub/internal/authz"
	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/security"
)

// UserService provides user-related operations.
type UserService struct {
	users domain.UserRepository
	hash  *security.PasswordHasher
	log   *slog.Logger
}

func NewUserService(users domain.UserRepository, hash *security.PasswordHasher, log *slog.Logger) *UserService {
	return &UserService{users: users, hash: hash, log: log}
}

type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
	Role        string
	Permissions []string
}

// Create registers a user on behalf of actorID, who must hold manage_users.
func (s *UserService) Create(ctx context.Context, actorID string, in RegisterInput) (*domain.User, error) {
	if err := requireCapability(ctx, s.users, actorID, authz.ManageUsers); err != nil {
		return nil, err
	}
	return s.Register(ctx, in)
}

// Register creates a user without an acting user. It backs the operator CLI and restores.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrValidation)
	}
	role := lo.Ternary(in.Role == "", authz.RoleVolunteer, in.Role)
	if !authz.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	if bad, ok := lo.Find(in.Permissions, func(p string) bool { return !authz.ValidCapability(p) }); ok {
		return nil, fmt.Errorf("%w: unknown permission %q", domain.ErrValidation, bad)
	}

	hashed, err := s.hash.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := &domain.User{
		ID:             NewUserID(now),
		Email:          email,
		DisplayName:    lo.Ternary(strings.TrimSpace(in.DisplayName) == "", email, strings.TrimSpace(in.DisplayName)),
		Role:           role,
		Permissions:    lo.Uniq(in.Permissions),
		HashedPassword: hashed,
		IsActive:       true,
		CreatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// NewUserID returns an id shaped like user_<unix-ms>_<9 random chars>.
func NewUserID(at time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("user_%d_%s", at.UnixMilli(), random[:9])
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	return s.users.List(ctx, offset, limit)
}
