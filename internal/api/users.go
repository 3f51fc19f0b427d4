package api

import (
	"net/http"

	"github.com/viniciushammett/go-weblog-analyzer/internal/auth"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Fullname string `json:"fullname"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decode(w, r, &c) {
		return
	}
	u, err := s.d.Users.Register(c.Username, c.Password, c.Fullname)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Registration successful", "user_id": u.ID, "username": u.Username})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decode(w, r, &c) {
		return
	}
	sess, err := s.d.Users.Login(c.Username, c.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		auth.Session
	}{"Login successful", sess})
}
