package httpapi

import (
	"net/http"

	"collab-workspace-system/api/internal/projection"
	"collab-workspace-system/api/internal/workspace"
)

type workspaceRequest struct {
	ID          string  `json:"id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	OwnerID     string  `json:"ownerId"`
}

type memberRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) createWorkspace(w http.ResponseWriter, r *http.Request) {
	var req workspaceRequest
	if !decode(w, r, &req) {
		return
	}
	cmd := workspace.CreateWorkspace{WorkspaceID: req.ID, OwnerID: req.OwnerID}
	if req.Title != nil {
		cmd.Title = *req.Title
	}
	if req.Description != nil {
		cmd.Description = *req.Description
	}
	ws, err := s.commands.CreateWorkspace(r.Context(), cmd)
	s.reply(w, r, http.StatusCreated, ws, err)
}

func (s *Server) listWorkspaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := projection.WorkspaceFilter{OwnerID: q.Get("ownerId"), MemberID: q.Get("memberId")}
	var err error
	if f.Archived, err = queryBool(r, "archived"); err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.queries.FindAllWorkspaces(r.Context(), f)
	s.reply(w, r, http.StatusOK, list(items), err)
}

func (s *Server) getWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.queries.FindWorkspaceByID(r.Context(), r.PathValue("id"))
	s.reply(w, r, http.StatusOK, ws, err)
}

func (s *Server) updateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req workspaceRequest
	if !decode(w, r, &req) {
		return
	}
	ws, err := s.commands.UpdateWorkspace(r.Context(), workspace.UpdateWorkspace{
		WorkspaceID: r.PathValue("id"),
		Title:       req.Title,
		Description: req.Description,
	})
	s.reply(w, r, http.StatusOK, ws, err)
}

func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	ws, err := s.commands.AddMember(r.Context(), workspace.AddMember{WorkspaceID: r.PathValue("id"), UserID: req.UserID})
	s.reply(w, r, http.StatusOK, ws, err)
}

func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	ws, err := s.commands.RemoveMember(r.Context(), workspace.RemoveMember{WorkspaceID: r.PathValue("id"), UserID: r.PathValue("userId")})
	s.reply(w, r, http.StatusOK, ws, err)
}

func (s *Server) archiveWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.commands.ArchiveWorkspace(r.Context(), r.PathValue("id"))
	s.reply(w, r, http.StatusOK, ws, err)
}

func (s *Server) unarchiveWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.commands.UnarchiveWorkspace(r.Context(), r.PathValue("id"))
	s.reply(w, r, http.StatusOK, ws, err)
}

func (s *Server) deleteWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := s.commands.DeleteWorkspace(r.Context(), r.PathValue("id"))
	s.reply(w, r, http.StatusOK, ws, err)
}
