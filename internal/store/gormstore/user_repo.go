package gormstore

import (
	"context"

	"gorm.io/gorm"

	"sandwich_hub/internal/domain"
)

type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return translate("create user", r.db.WithContext(ctx).Create(u).Error)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate("get user", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&u).Error; err != nil {
		return nil, translate("get user by email", err)
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	q := r.db.WithContext(ctx).Order("display_name").Order("id").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var users []*domain.User
	if err := q.Find(&users).Error; err != nil {
		return nil, translate("list users", err)
	}
	return users, nil
}
