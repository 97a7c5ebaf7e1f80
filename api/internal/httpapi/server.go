// Package httpapi exposes the command and query sides over JSON/HTTP.
package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"collab-workspace-system/api/internal/app"
	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/projection"
	"collab-workspace-system/shared/httpx"
	"collab-workspace-system/shared/logx"
)

type Server struct {
	commands *app.Commands
	queries  *projection.Queries
	logger   logx.Logger
}

func New(commands *app.Commands, queries *projection.Queries, logger logx.Logger) *Server {
	return &Server{commands: commands, queries: queries, logger: logger}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/workspaces", s.createWorkspace)
	mux.HandleFunc("GET /api/v1/workspaces", s.listWorkspaces)
	mux.HandleFunc("GET /api/v1/workspaces/{id}", s.getWorkspace)
	mux.HandleFunc("PATCH /api/v1/workspaces/{id}", s.updateWorkspace)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/members", s.addMember)
	mux.HandleFunc("DELETE /api/v1/workspaces/{id}/members/{userId}", s.removeMember)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/archive", s.archiveWorkspace)
	mux.HandleFunc("POST /api/v1/workspaces/{id}/unarchive", s.unarchiveWorkspace)
	mux.HandleFunc("DELETE /api/v1/workspaces/{id}", s.deleteWorkspace)
	mux.HandleFunc("GET /api/v1/workspaces/{id}/projects", s.listProjects)

	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)
	mux.HandleFunc("PATCH /api/v1/projects/{id}", s.updateProject)
	mux.HandleFunc("POST /api/v1/projects/{id}/status", s.changeProjectStatus)
	mux.HandleFunc("POST /api/v1/projects/{id}/owner", s.changeProjectOwner)
	mux.HandleFunc("POST /api/v1/projects/{id}/archive", s.archiveProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.deleteProject)
	mux.HandleFunc("GET /api/v1/projects/{id}/tasks", s.listProjectTasks)

	mux.HandleFunc("POST /api/v1/tasks", s.createTask)
	mux.HandleFunc("GET /api/v1/tasks", s.listTasks)
	mux.HandleFunc("GET /api/v1/tasks/{id}", s.getTask)
	mux.HandleFunc("PATCH /api/v1/tasks/{id}", s.updateTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/assign", s.assignTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/unassign", s.unassignTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/status", s.changeTaskStatus)
	mux.HandleFunc("POST /api/v1/tasks/{id}/complete", s.completeTask)
	mux.HandleFunc("PUT /api/v1/tasks/{id}/recurrence", s.setRecurrence)
	mux.HandleFunc("POST /api/v1/tasks/{id}/comments", s.addComment)
	mux.HandleFunc("POST /api/v1/tasks/{id}/attachments", s.addAttachment)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}/attachments/{attachmentId}", s.removeAttachment)
	mux.HandleFunc("PUT /api/v1/tasks/{id}/labels", s.updateLabels)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", s.deleteTask)

	mux.HandleFunc("GET /api/v1/users", s.listUsers)
	mux.HandleFunc("GET /api/v1/users/by-email/{email}", s.getUserByEmail)
	mux.HandleFunc("GET /api/v1/users/{id}", s.getUser)
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func list[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

// decode reads the request body into dst. An empty body leaves dst as is.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil && !errors.Is(err, io.EOF) {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid JSON body", map[string]any{"error": err.Error()})
		return false
	}
	return true
}

// reply writes v, or maps err onto the HTTP error envelope.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, status, v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	var domain *es.Error
	if errors.As(err, &domain) {
		msg = domain.Message
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request_failed", "request failed",
			slog.String("error_code", code),
			slog.String("error", err.Error()),
		)
		msg = "internal error"
	}
	httpx.WriteError(w, r, status, code, msg, nil)
}

func statusFor(err error) (int, string) {
	switch es.KindOf(err) {
	case es.KindValidation:
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case es.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case es.KindAlreadyDeleted:
		return http.StatusGone, "ALREADY_DELETED"
	case es.KindInvalidTransition:
		return http.StatusConflict, "FAILED_PRECONDITION"
	case es.KindConcurrencyConflict:
		return http.StatusConflict, "ABORTED"
	case es.KindPublishFailure:
		return http.StatusBadGateway, "UNAVAILABLE"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func queryBool(r *http.Request, key string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, es.Validation("%s must be a boolean", key)
	}
	return &v, nil
}

func queryFlag(r *http.Request, key string) (bool, error) {
	v, err := queryBool(r, key)
	if err != nil || v == nil {
		return false, err
	}
	return *v, nil
}
