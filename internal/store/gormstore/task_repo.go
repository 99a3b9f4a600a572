package gormstore

import (
	"context"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sandwich_hub/internal/domain"
)

type ProjectRepo struct {
	db *gorm.DB
}

func NewProjectRepo(db *gorm.DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

var _ domain.ProjectRepository = (*ProjectRepo)(nil)

func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	return translate("create project", r.db.WithContext(ctx).Create(p).Error)
}

func (r *ProjectRepo) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	var p domain.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate("get project", err)
	}
	return &p, nil
}

func (r *ProjectRepo) List(ctx context.Context) ([]*domain.Project, error) {
	var ps []*domain.Project
	if err := r.db.WithContext(ctx).Order("id").Find(&ps).Error; err != nil {
		return nil, translate("list projects", err)
	}
	return ps, nil
}

type TaskRepo struct {
	db *gorm.DB
}

func NewTaskRepo(db *gorm.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

var _ domain.TaskRepository = (*TaskRepo)(nil)

func (r *TaskRepo) Create(ctx context.Context, t *domain.Task) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		if len(t.AssigneeIDs) == 0 {
			return nil
		}
		rows := lo.Map(t.AssigneeIDs, func(uid string, _ int) domain.TaskAssignment {
			return domain.TaskAssignment{TaskID: t.ID, UserID: uid}
		})
		return tx.Create(&rows).Error
	})
	return translate("create task", err)
}

func (r *TaskRepo) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	var t domain.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate("get task", err)
	}
	if err := r.loadAssignees(ctx, []*domain.Task{&t}); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) ListForProject(ctx context.Context, projectID int64) ([]*domain.Task, error) {
	var ts []*domain.Task
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id").Find(&ts).Error; err != nil {
		return nil, translate("list tasks", err)
	}
	if err := r.loadAssignees(ctx, ts); err != nil {
		return nil, err
	}
	return ts, nil
}

func (r *TaskRepo) loadAssignees(ctx context.Context, ts []*domain.Task) error {
	if len(ts) == 0 {
		return nil
	}
	ids := lo.Map(ts, func(t *domain.Task, _ int) int64 { return t.ID })
	var rows []domain.TaskAssignment
	err := r.db.WithContext(ctx).
		Where("task_id IN ?", ids).
		Order("user_id").
		Find(&rows).Error
	if err != nil {
		return translate("load assignees", err)
	}
	byTask := lo.GroupBy(rows, func(a domain.TaskAssignment) int64 { return a.TaskID })
	for _, t := range ts {
		t.AssigneeIDs = lo.Map(byTask[t.ID], func(a domain.TaskAssignment, _ int) string { return a.UserID })
	}
	return nil
}

func (r *TaskRepo) Update(ctx context.Context, t *domain.Task) error {
	t.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("id = ?", t.ID).
		Updates(map[string]any{
			"title":        t.Title,
			"description":  t.Description,
			"status":       t.Status,
			"completed_at": t.CompletedAt,
			"updated_at":   t.UpdatedAt,
		})
	return translate("update task", affected(res))
}

func (r *TaskRepo) AddCompletion(ctx context.Context, c *domain.TaskCompletion) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "task_id"}, {Name: "user_id"}}, DoNothing: true}).
		Create(c)
	if res.Error != nil {
		return false, translate("add completion", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *TaskRepo) ListCompletions(ctx context.Context, taskID int64) ([]*domain.TaskCompletion, error) {
	var cs []*domain.TaskCompletion
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("id").Find(&cs).Error; err != nil {
		return nil, translate("list completions", err)
	}
	return cs, nil
}
