package httpserver

import (
	"log/slog"
	"net/http"

	"sandwich_hub/internal/domain"
	"sandwich_hub/internal/service"
)

type projectCreateRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
}

type taskCreateRequest struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description"`
	AssigneeIDs []string `json:"assignee_ids" validate:"dive,required"`
}

type taskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed"`
}

// @Summary      List projects
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  domain.Project
// @Router       /projects [get]
func handleListProjects(taskSvc *service.TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := taskSvc.ListProjects(r.Context())
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	}
}

// @Summary      Create a project
// @Description  Requires manage_tasks
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        input body projectCreateRequest true "Project"
// @Success      201  {object}  domain.Project
// @Failure      403  {object}  map[string]string
// @Router       /projects [post]
func handleCreateProject(taskSvc *service.TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req projectCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		project, err := taskSvc.CreateProject(r.Context(), CurrentUser(r).ID, service.ProjectInput{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, project)
	}
}

// @Summary      List a project's tasks
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        projectID path int true "Project ID"
// @Success      200  {array}  domain.Task
// @Failure      404  {object}  map[string]string
// @Router       /projects/{projectID}/tasks [get]
func handleListTasks(taskSvc *service.TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "projectID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		tasks, err := taskSvc.ListTasks(r.Context(), id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

// @Summary      Create a task
// @Description  Requires manage_tasks. Every assignee must exist.
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        projectID path int true "Project ID"
// @Param        input body taskCreateRequest true "Task"
// @Success      201  {object}  domain.Task
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /projects/{projectID}/tasks [post]
func handleCreateTask(taskSvc *service.TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "projectID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var req taskCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		task, err := taskSvc.CreateTask(r.Context(), CurrentUser(r).ID, id, service.TaskInput{
			Title:       req.Title,
			Description: req.Description,
			AssigneeIDs: req.AssigneeIDs,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, task)
	}
}

// @Summary      Get a task
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        taskID path int true "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  map[string]string
// @Router       /tasks/{taskID} [get]
func handleGetTask(taskSvc *service.TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "taskID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		task, err := taskSvc.GetTask(r.Context(), id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

// @Summary      Change a task's status
// @Description  Completing a shared task fails with 409 until every assignee is done
// @Tags         tasks
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        taskID path int true "Task ID"
// @Param        input body taskStatusRequest true "Status"
// @Success      200  {object}  domain.Task
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /tasks/{taskID} [patch]
func handleUpdateTaskStatus(taskSvc *service.TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "taskID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		var req taskStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		task, err := taskSvc.UpdateStatus(r.Context(), id, CurrentUser(r).ID, domain.TaskStatus(req.Status))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

// @Summary      List completions
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        taskID path int true "Task ID"
// @Success      200  {array}  domain.TaskCompletion
// @Router       /tasks/{taskID}/completions [get]
func handleListCompletions(taskSvc *service.TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "taskID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		completions, err := taskSvc.Completions(r.Context(), id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, completions)
	}
}

// @Summary      Complete my part
// @Description  Idempotent. The last assignee to finish completes the task.
// @Tags         tasks
// @Security     BearerAuth
// @Produce      json
// @Param        taskID path int true "Task ID"
// @Success      200  {object}  service.TaskProgress
// @Failure      403  {object}  map[string]string
// @Router       /tasks/{taskID}/completions [post]
func handleCompleteTask(taskSvc *service.TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "taskID")
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		progress, err := taskSvc.MarkPersonalCompletion(r.Context(), id, CurrentUser(r).ID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, progress)
	}
}
