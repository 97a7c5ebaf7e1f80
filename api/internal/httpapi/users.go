package httpapi

import (
	"net/http"

	"collab-workspace-system/api/internal/projection"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := projection.UserFilter{Role: q.Get("role"), Email: q.Get("email"), NameContains: q.Get("name")}
	var err error
	if f.Active, err = queryBool(r, "active"); err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.queries.FindUsers(r.Context(), f)
	s.reply(w, r, http.StatusOK, list(items), err)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.queries.FindUserByID(r.Context(), r.PathValue("id"))
	s.reply(w, r, http.StatusOK, u, err)
}

func (s *Server) getUserByEmail(w http.ResponseWriter, r *http.Request) {
	u, err := s.queries.FindUserByEmail(r.Context(), r.PathValue("email"))
	s.reply(w, r, http.StatusOK, u, err)
}
