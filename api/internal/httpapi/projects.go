package httpapi

import (
	"net/http"

	"collab-workspace-system/api/internal/project"
	"collab-workspace-system/api/internal/projection"
)

type projectRequest struct {
	ID          string  `json:"id"`
	WorkspaceID string  `json:"workspaceId"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	OwnerID     string  `json:"ownerId"`
	Status      string  `json:"status"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decode(w, r, &req) {
		return
	}
	cmd := project.CreateProject{
		ProjectID:   req.ID,
		WorkspaceID: req.WorkspaceID,
		OwnerID:     req.OwnerID,
		Status:      req.Status,
	}
	if req.Name != nil {
		cmd.Name = *req.Name
	}
	if req.Description != nil {
		cmd.Description = *req.Description
	}
	p, err := s.commands.CreateProject(r.Context(), cmd)
	s.reply(w, r, http.StatusCreated, p, err)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.queries.FindProjectByID(r.Context(), r.PathValue("id"))
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := projection.ProjectFilter{OwnerID: q.Get("ownerId"), Status: q.Get("status")}
	var err error
	if f.Archived, err = queryBool(r, "archived"); err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.queries.FindProjectsByWorkspace(r.Context(), r.PathValue("id"), f)
	s.reply(w, r, http.StatusOK, list(items), err)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.commands.UpdateProject(r.Context(), project.UpdateProject{
		ProjectID:   r.PathValue("id"),
		Name:        req.Name,
		Description: req.Description,
	})
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) changeProjectStatus(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.commands.ChangeProjectStatus(r.Context(), project.ChangeProjectStatus{ProjectID: r.PathValue("id"), Status: req.Status})
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) changeProjectOwner(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.commands.ChangeProjectOwner(r.Context(), project.ChangeProjectOwner{ProjectID: r.PathValue("id"), OwnerID: req.OwnerID})
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) archiveProject(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.commands.ArchiveProject(r.Context(), project.ArchiveProject{ProjectID: r.PathValue("id"), Reason: req.Reason})
	s.reply(w, r, http.StatusOK, p, err)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.commands.DeleteProject(r.Context(), project.DeleteProject{ProjectID: r.PathValue("id"), Reason: req.Reason})
	s.reply(w, r, http.StatusOK, p, err)
}
