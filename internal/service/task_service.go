package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"sandwich_hub/internal/authz"
	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/events"
)

// TaskService coordinates projects and tasks shared between several volunteers.
type TaskService struct {
	users    domain.UserRepository
	projects domain.ProjectRepository
	tasks    domain.TaskRepository
	events   events.Publisher
	log      *slog.Logger
	now      func() time.Time
}

func NewTaskService(
	users domain.UserRepository,
	projects domain.ProjectRepository,
	tasks domain.TaskRepository,
	publisher events.Publisher,
	log *slog.Logger,
) *TaskService {
	return &TaskService{
		users:    users,
		projects: projects,
		tasks:    tasks,
		events:   publisher,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type ProjectInput struct {
	Title       string
	Description string
}

type TaskInput struct {
	Title       string
	Description string
	AssigneeIDs []string
}

// TaskProgress reports how far a team has got with a task.
type TaskProgress struct {
	Task          *domain.Task `json:"task"`
	CompletedBy   []string     `json:"completed_by"`
	FullyComplete bool         `json:"fully_complete"`
}

func (s *TaskService) CreateProject(ctx context.Context, actorID string, in ProjectInput) (*domain.Project, error) {
	if err := s.require(ctx, actorID, authz.ManageTasks); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: project title is required", domain.ErrValidation)
	}
	now := s.now()
	p := &domain.Project{
		Title:       title,
		Description: in.Description,
		Status:      "active",
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

func (s *TaskService) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	return s.projects.List(ctx)
}

// CreateTask adds a pending task to a project. Every assignee must exist.
func (s *TaskService) CreateTask(ctx context.Context, actorID string, projectID int64, in TaskInput) (*domain.Task, error) {
	if err := s.require(ctx, actorID, authz.ManageTasks); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: task title is required", domain.ErrValidation)
	}
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	assignees := lo.Uniq(lo.Compact(in.AssigneeIDs))
	for _, id := range assignees {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			return nil, fmt.Errorf("get assignee %s: %w", id, err)
		}
	}

	now := s.now()
	t := &domain.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: in.Description,
		Status:      domain.TaskPending,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
		AssigneeIDs: assignees,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.events.Publish(ctx, events.ForTask(t.ID))
	return t, nil
}

func (s *TaskService) ListTasks(ctx context.Context, projectID int64) ([]*domain.Task, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return s.tasks.ListForProject(ctx, projectID)
}

func (s *TaskService) GetTask(ctx context.Context, taskID int64) (*domain.Task, error) {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskService) Completions(ctx context.Context, taskID int64) ([]*domain.TaskCompletion, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return s.tasks.ListCompletions(ctx, taskID)
}

// MarkPersonalCompletion records that userID finished their part. Repeating it
// changes nothing. The last assignee to finish completes the task.
func (s *TaskService) MarkPersonalCompletion(ctx context.Context, taskID int64, userID string) (*TaskProgress, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(t.AssigneeIDs, userID) {
		return nil, fmt.Errorf("%w: only assignees can complete their part of a task", domain.ErrForbidden)
	}

	added, err := s.tasks.AddCompletion(ctx, &domain.TaskCompletion{TaskID: t.ID, UserID: userID, CompletedAt: s.now()})
	if err != nil {
		return nil, fmt.Errorf("add completion: %w", err)
	}
	progress, err := s.progress(ctx, t)
	if err != nil {
		return nil, err
	}

	changed := added
	if progress.FullyComplete && t.Status != domain.TaskCompleted {
		if err := s.setStatus(ctx, t, domain.TaskCompleted); err != nil {
			return nil, err
		}
		s.log.Info("task completed by its team", "task_id", t.ID, "assignees", len(t.AssigneeIDs))
		changed = true
	}
	if changed {
		s.events.Publish(ctx, events.ForTask(t.ID))
	}
	return progress, nil
}

// IsTaskFullyComplete reports whether every assignee has recorded a completion.
// A task without assignees is never fully complete: nobody can complete it
// personally, so it only reaches completed through UpdateStatus.
func (s *TaskService) IsTaskFullyComplete(ctx context.Context, taskID int64) (bool, error) {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return false, err
	}
	progress, err := s.progress(ctx, t)
	if err != nil {
		return false, err
	}
	return progress.FullyComplete, nil
}

// UpdateStatus changes the task status. A shared task cannot be marked
// completed until all of its assignees are done; for a single assignee the
// status change also records their completion.
func (s *TaskService) UpdateStatus(ctx context.Context, taskID int64, actorID string, status domain.TaskStatus) (*domain.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown task status %q", domain.ErrValidation, status)
	}
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !lo.Contains(t.AssigneeIDs, actorID) {
		if err := s.require(ctx, actorID, authz.ManageTasks); err != nil {
			return nil, err
		}
	}
	if t.Status == status {
		return t, nil
	}

	if status == domain.TaskCompleted {
		switch len(t.AssigneeIDs) {
		case 0:
		case 1:
			only := t.AssigneeIDs[0]
			if _, err := s.tasks.AddCompletion(ctx, &domain.TaskCompletion{TaskID: t.ID, UserID: only, CompletedAt: s.now()}); err != nil {
				return nil, fmt.Errorf("add completion: %w", err)
			}
		default:
			progress, err := s.progress(ctx, t)
			if err != nil {
				return nil, err
			}
			if !progress.FullyComplete {
				return nil, fmt.Errorf("%w: %d of %d done", domain.ErrIncompleteTeam, len(progress.CompletedBy), len(t.AssigneeIDs))
			}
		}
	}

	if err := s.setStatus(ctx, t, status); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, events.ForTask(t.ID))
	return t, nil
}

func (s *TaskService) setStatus(ctx context.Context, t *domain.Task, status domain.TaskStatus) error {
	now := s.now()
	t.Status = status
	t.UpdatedAt = now
	t.CompletedAt = nil
	if status == domain.TaskCompleted {
		t.CompletedAt = &now
	}
	if err := s.tasks.Update(ctx, t); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (s *TaskService) progress(ctx context.Context, t *domain.Task) (*TaskProgress, error) {
	completions, err := s.tasks.ListCompletions(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	done := lo.Map(completions, func(c *domain.TaskCompletion, _ int) string { return c.UserID })
	done = lo.Intersect(t.AssigneeIDs, done)
	return &TaskProgress{
		Task:          t,
		CompletedBy:   done,
		FullyComplete: len(t.AssigneeIDs) > 0 && len(done) == len(t.AssigneeIDs),
	}, nil
}

func (s *TaskService) require(ctx context.Context, actorID string, c authz.Capability) error {
	return requireCapability(ctx, s.users, actorID, c)
}

func requireCapability(ctx context.Context, users domain.UserRepository, actorID string, c authz.Capability) error {
	actor, err := users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("get actor: %w", err)
	}
	if !authz.Can(actor, c) {
		return fmt.Errorf("%w: %s required", domain.ErrForbidden, c)
	}
	return nil
}
