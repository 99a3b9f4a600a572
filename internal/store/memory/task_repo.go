package memory

import (
	"context"
	"sort"
	"time"

	"sandwich_hub/internal/domain"
)

type ProjectRepo struct {
	db *DB
}

var _ domain.ProjectRepository = (*ProjectRepo)(nil)

func (r *ProjectRepo) Create(_ context.Context, p *domain.Project) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := time.Now().UTC()
	p.ID = r.db.next("projects")
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	r.db.projects[p.ID] = &cp
	return nil
}

func (r *ProjectRepo) GetByID(_ context.Context, id int64) (*domain.Project, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *ProjectRepo) List(_ context.Context) ([]*domain.Project, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	res := make([]*domain.Project, 0, len(r.db.projects))
	for _, p := range r.db.projects {
		cp := *p
		res = append(res, &cp)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

type TaskRepo struct {
	db *DB
}

var _ domain.TaskRepository = (*TaskRepo)(nil)

func (r *TaskRepo) Create(_ context.Context, t *domain.Task) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.projects[t.ProjectID]; !ok {
		return domain.ErrNotFound
	}
	for _, uid := range t.AssigneeIDs {
		if _, ok := r.db.users[uid]; !ok {
			return domain.ErrNotFound
		}
	}

	now := time.Now().UTC()
	t.ID = r.db.next("tasks")
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	cp.AssigneeIDs = nil
	r.db.tasks[t.ID] = &cp
	r.db.assignments[t.ID] = append([]string(nil), t.AssigneeIDs...)
	return nil
}

// load copies a stored task with its assignees. Callers hold mu.
func (r *TaskRepo) load(t *domain.Task) *domain.Task {
	cp := *t
	cp.AssigneeIDs = append([]string{}, r.db.assignments[t.ID]...)
	sort.Strings(cp.AssigneeIDs)
	return &cp
}

func (r *TaskRepo) GetByID(_ context.Context, id int64) (*domain.Task, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	t, ok := r.db.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.load(t), nil
}

func (r *TaskRepo) ListForProject(_ context.Context, projectID int64) ([]*domain.Task, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var res []*domain.Task
	for _, t := range r.db.tasks {
		if t.ProjectID == projectID {
			res = append(res, r.load(t))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (r *TaskRepo) Update(_ context.Context, t *domain.Task) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.tasks[t.ID]
	if !ok {
		return domain.ErrNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	stored.Title = t.Title
	stored.Description = t.Description
	stored.Status = t.Status
	stored.CompletedAt = t.CompletedAt
	stored.UpdatedAt = t.UpdatedAt
	return nil
}

func (r *TaskRepo) AddCompletion(_ context.Context, c *domain.TaskCompletion) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.tasks[c.TaskID]; !ok {
		return false, domain.ErrNotFound
	}
	for _, existing := range r.db.completions {
		if existing.TaskID == c.TaskID && existing.UserID == c.UserID {
			return false, nil
		}
	}
	c.ID = r.db.next("task_completions")
	cp := *c
	r.db.completions[c.ID] = &cp
	return true, nil
}

func (r *TaskRepo) ListCompletions(_ context.Context, taskID int64) ([]*domain.TaskCompletion, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var res []*domain.TaskCompletion
	for _, c := range r.db.completions {
		if c.TaskID == taskID {
			cp := *c
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}
