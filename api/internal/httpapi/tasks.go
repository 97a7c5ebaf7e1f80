package httpapi

import (
	"net/http"
	"time"

	"collab-workspace-system/api/internal/projection"
	"collab-workspace-system/api/internal/task"
)

type taskRequest struct {
	ID             string               `json:"id"`
	WorkspaceID    string               `json:"workspaceId"`
	ProjectID      string               `json:"projectId"`
	Title          *string              `json:"title"`
	Description    *string              `json:"description"`
	AssignedUserID string               `json:"assignedUserId"`
	Priority       *string              `json:"priority"`
	Deadline       *time.Time           `json:"deadline"`
	ClearDeadline  bool                 `json:"clearDeadline"`
	Recurrence     *task.RecurrenceRule `json:"recurrenceRule"`
	Tags           []string             `json:"tags"`
	Categories     []string             `json:"categories"`
}

type assignRequest struct {
	UserID string `json:"userId"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type completeRequest struct {
	CompletedBy string `json:"completedBy"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type attachmentRequest struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Size     int64  `json:"size"`
}

type labelsRequest struct {
	Tags       []string `json:"tags"`
	Categories []string `json:"categories"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decode(w, r, &req) {
		return
	}
	cmd := task.CreateTask{
		TaskID:         req.ID,
		WorkspaceID:    req.WorkspaceID,
		ProjectID:      req.ProjectID,
		AssignedUserID: req.AssignedUserID,
		Deadline:       req.Deadline,
		Recurrence:     req.Recurrence,
		Tags:           req.Tags,
		Categories:     req.Categories,
	}
	if req.Title != nil {
		cmd.Title = *req.Title
	}
	if req.Description != nil {
		cmd.Description = *req.Description
	}
	if req.Priority != nil {
		cmd.Priority = *req.Priority
	}
	t, err := s.commands.CreateTask(r.Context(), cmd)
	s.reply(w, r, http.StatusCreated, t, err)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.queries.FindTaskByID(r.Context(), r.PathValue("id"))
	s.reply(w, r, http.StatusOK, t, err)
}

func taskFilter(r *http.Request) (projection.TaskFilter, error) {
	q := r.URL.Query()
	f := projection.TaskFilter{
		WorkspaceID:    q.Get("workspaceId"),
		ProjectID:      q.Get("projectId"),
		AssignedUserID: q.Get("assignedUserId"),
		Status:         q.Get("status"),
		Priority:       q.Get("priority"),
	}
	var err error
	f.RecurringOnly, err = queryFlag(r, "recurring")
	return f, err
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	f, err := taskFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.queries.FindTasks(r.Context(), f)
	s.reply(w, r, http.StatusOK, list(items), err)
}

func (s *Server) listProjectTasks(w http.ResponseWriter, r *http.Request) {
	f, err := taskFilter(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.queries.FindTasksByProject(r.Context(), r.PathValue("id"), f)
	s.reply(w, r, http.StatusOK, list(items), err)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.commands.UpdateTaskDetails(r.Context(), task.UpdateTaskDetails{
		TaskID:        r.PathValue("id"),
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		Deadline:      req.Deadline,
		ClearDeadline: req.ClearDeadline,
	})
	s.reply(w, r, http.StatusOK, t, err)
}

func (s *Server) assignTask(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.commands.AssignTask(r.Context(), task.AssignTask{TaskID: r.PathValue("id"), UserID: req.UserID})
	s.reply(w, r, http.StatusOK, t, err)
}

func (s *Server) unassignTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.commands.UnassignTask(r.Context(), r.PathValue("id"))
	s.reply(w, r, http.StatusOK, t, err)
}

func (s *Server) changeTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.commands.ChangeTaskStatus(r.Context(), task.ChangeTaskStatus{TaskID: r.PathValue("id"), Status: req.Status})
	s.reply(w, r, http.StatusOK, t, err)
}

func (s *Server) completeTask(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.commands.CompleteTask(r.Context(), task.CompleteTask{TaskID: r.PathValue("id"), CompletedBy: req.CompletedBy})
	s.reply(w, r, http.StatusOK, t, err)
}

// setRecurrence takes the rule as the whole body; null stops the series.
func (s *Server) setRecurrence(w http.ResponseWriter, r *http.Request) {
	var rule *task.RecurrenceRule
	if !decode(w, r, &rule) {
		return
	}
	t, err := s.commands.SetRecurrence(r.Context(), task.SetRecurrence{TaskID: r.PathValue("id"), Rule: rule})
	s.reply(w, r, http.StatusOK, t, err)
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.commands.AddComment(r.Context(), task.AddComment{TaskID: r.PathValue("id"), Content: req.Content})
	s.reply(w, r, http.StatusCreated, t, err)
}

func (s *Server) addAttachment(w http.ResponseWriter, r *http.Request) {
	var req attachmentRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.commands.AddAttachment(r.Context(), task.AddAttachment{
		TaskID:       r.PathValue("id"),
		AttachmentID: req.ID,
		FileName:     req.FileName,
		FileType:     req.FileType,
		Size:         req.Size,
	})
	s.reply(w, r, http.StatusCreated, t, err)
}

func (s *Server) removeAttachment(w http.ResponseWriter, r *http.Request) {
	t, err := s.commands.RemoveAttachment(r.Context(), task.RemoveAttachment{TaskID: r.PathValue("id"), AttachmentID: r.PathValue("attachmentId")})
	s.reply(w, r, http.StatusOK, t, err)
}

func (s *Server) updateLabels(w http.ResponseWriter, r *http.Request) {
	var req labelsRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := s.commands.UpdateTaskLabels(r.Context(), task.UpdateTaskLabels{TaskID: r.PathValue("id"), Tags: req.Tags, Categories: req.Categories})
	s.reply(w, r, http.StatusOK, t, err)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.commands.DeleteTask(r.Context(), r.PathValue("id"))
	s.reply(w, r, http.StatusOK, t, err)
}
