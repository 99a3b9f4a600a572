package memory

import (
	"context"
	"sort"
	"strings"

	"sandwich_hub/internal/domain"
)

type UserRepo struct {
	db *DB
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[u.ID]; ok {
		return domain.ErrConflict
	}
	for _, existing := range r.db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrConflict
		}
	}
	cp := *u
	cp.Permissions = append([]string(nil), u.Permissions...)
	r.db.users[u.ID] = &cp
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *UserRepo) List(_ context.Context, offset, limit int) ([]*domain.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	all := make([]*domain.User, 0, len(r.db.users))
	for _, u := range r.db.users {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].DisplayName < all[j].DisplayName })
	return page(all, offset, limit), nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
