package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sandwich_hub/internal/authz"
	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/security"
	"sandwich_hub/internal/service"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	return nil, nil // Not used in auth tests
}

func TestLogin(t *testing.T) {
	mockRepo := new(MockUserRepo)
	tokenSvc := security.NewTokenService("secret", time.Hour)
	hasher := security.NewPasswordHasher(4) // low cost for tests

	svc := service.NewAuthService(mockRepo, tokenSvc, hasher)

	hashed, err := hasher.Hash("Password1!")
	require.NoError(t, err)
	alice := &domain.User{ID: "user_1_alice", Email: "alice@example.org", HashedPassword: hashed, Role: authz.RoleVolunteer, IsActive: true}
	idle := &domain.User{ID: "user_2_idle", Email: "idle@example.org", HashedPassword: hashed, IsActive: false}

	mockRepo.On("GetByEmail", mock.Anything, "alice@example.org").Return(alice, nil)
	mockRepo.On("GetByEmail", mock.Anything, "idle@example.org").Return(idle, nil)
	mockRepo.On("GetByEmail", mock.Anything, "ghost@example.org").Return(nil, domain.ErrNotFound)

	t.Run("Success", func(t *testing.T) {
		res, err := svc.Login(context.Background(), service.LoginInput{Email: " Alice@Example.org ", Password: "Password1!"})
		assert.NoError(t, err)
		assert.Equal(t, "bearer", res.TokenType)
		assert.Equal(t, alice, res.User)

		subject, err := tokenSvc.Subject(res.AccessToken)
		assert.NoError(t, err)
		assert.Equal(t, alice.ID, subject)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		res, err := svc.Login(context.Background(), service.LoginInput{Email: "alice@example.org", Password: "nope"})
		assert.Nil(t, res)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "ghost@example.org", Password: "Password1!"})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("Inactive", func(t *testing.T) {
		_, err := svc.Login(context.Background(), service.LoginInput{Email: "idle@example.org", Password: "Password1!"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestAuthenticate(t *testing.T) {
	mockRepo := new(MockUserRepo)
	tokenSvc := security.NewTokenService("secret", time.Hour)
	svc := service.NewAuthService(mockRepo, tokenSvc, security.NewPasswordHasher(4))

	alice := &domain.User{ID: "user_1_alice", IsActive: true}
	mockRepo.On("GetByID", mock.Anything, "user_1_alice").Return(alice, nil)
	mockRepo.On("GetByID", mock.Anything, "user_9_gone").Return(nil, domain.ErrNotFound)

	t.Run("Success", func(t *testing.T) {
		token, err := tokenSvc.CreateForUser("user_1_alice")
		require.NoError(t, err)

		user, err := svc.Authenticate(context.Background(), token)
		assert.NoError(t, err)
		assert.Equal(t, alice, user)
	})

	t.Run("DeletedUser", func(t *testing.T) {
		token, err := tokenSvc.CreateForUser("user_9_gone")
		require.NoError(t, err)

		_, err = svc.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.Authenticate(context.Background(), "not-a-token")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	mockRepo.AssertExpectations(t)
}

func TestRegisterUser(t *testing.T) {
	mockRepo := new(MockUserRepo)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewUserService(mockRepo, security.NewPasswordHasher(4), log)

	t.Run("Success", func(t *testing.T) {
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "new@example.org"
		})).Return(nil).Once()

		user, err := svc.Register(context.Background(), service.RegisterInput{
			Email:       "New@Example.org",
			Password:    "Password1!",
			Permissions: []string{string(authz.CreateChannels)},
		})
		assert.NoError(t, err)
		assert.Regexp(t, `^user_\d+_[0-9a-f]{9}$`, user.ID)
		assert.Equal(t, authz.RoleVolunteer, user.Role)
		assert.Equal(t, "new@example.org", user.DisplayName)
		assert.True(t, user.IsActive)
		assert.NotEqual(t, "Password1!", user.HashedPassword)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Email == "taken@example.org"
		})).Return(domain.ErrConflict).Once()

		user, err := svc.Register(context.Background(), service.RegisterInput{Email: "taken@example.org", Password: "Password1!"})
		assert.Nil(t, user)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("UnknownRole", func(t *testing.T) {
		_, err := svc.Register(context.Background(), service.RegisterInput{Email: "x@example.org", Password: "pw", Role: "wizard"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("UnknownPermission", func(t *testing.T) {
		_, err := svc.Register(context.Background(), service.RegisterInput{Email: "x@example.org", Password: "pw", Permissions: []string{"fly"}})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("CreateNeedsManageUsers", func(t *testing.T) {
		mockRepo.On("GetByID", mock.Anything, "vol").Return(&domain.User{ID: "vol", Role: authz.RoleVolunteer, IsActive: true}, nil)

		_, err := svc.Create(context.Background(), "vol", service.RegisterInput{Email: "y@example.org", Password: "pw"})
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}
