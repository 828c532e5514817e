package http

import (
	"net/http"

	"quizzz-service/internal/auth"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	DisplayName *string `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

type passwordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid register payload")
		return
	}
	session, err := s.identity.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, session)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid login payload")
		return
	}
	session, err := s.identity.SignIn(r.Context(), auth.Credentials{
		Method:   auth.MethodPassword,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, session)
}

func (s *Server) guest(w http.ResponseWriter, r *http.Request) {
	session, err := s.identity.SignIn(r.Context(), auth.Credentials{Method: auth.MethodGuest})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusCreated, session)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	// Pending notices go out with this last response.
	notices := s.pendingNotices(r)
	if err := s.identity.SignOut(r.Context(), tokenFrom(r.Context())); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: map[string]bool{"signedOut": true}, Notices: notices})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	identity, _ := sessionFrom(r.Context()).Identity()
	s.respond(w, r, http.StatusOK, identity)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid profile payload")
		return
	}
	current, _ := sessionFrom(r.Context()).Identity()
	identity, err := s.identity.UpdateProfile(r.Context(), current.UID, auth.ProfileUpdate{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, identity)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, r, "invalid password payload")
		return
	}
	current, _ := sessionFrom(r.Context()).Identity()
	if err := s.identity.ChangePassword(r.Context(), current.UID, req.OldPassword, req.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]bool{"changed": true})
}
