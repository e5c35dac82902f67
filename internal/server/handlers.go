package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/michaelbrown/turtle/internal/apidoc"
	"github.com/michaelbrown/turtle/internal/auth"
	"github.com/michaelbrown/turtle/internal/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps storage sentinels to status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("storage failure", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Docs ---

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	docs, err := apidoc.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// --- Challenges ---

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := s.store.ListChallenges(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challenges)
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	ch, err := s.store.GetChallenge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

// --- Submissions ---

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	username, _ := auth.UserFromContext(r.Context())
	ch, err := s.store.GetChallenge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	sub, err := s.store.GetSubmission(r.Context(), username, ch.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type submitRequest struct {
	Code *string `json:"code"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	username, _ := auth.UserFromContext(r.Context())

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Code == nil {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}
	if err := s.runs.Policy().CheckSource(*req.Code); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	ch, err := s.store.GetChallenge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	sub, err := s.store.SaveSubmission(r.Context(), username, ch.ID, *req.Code)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// --- Accounts ---

type credentialsRequest struct {
	Username string `json:"username"`
	PIN      string `json:"pin"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	pin, err := s.auth.Register(r.Context(), req.Username)
	switch {
	case errors.Is(err, auth.ErrInvalidUsername):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "username is taken")
		return
	case err != nil:
		s.writeStoreError(w, r, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	if err := s.auth.SetSession(w, username); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"username": username, "pin": pin})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := s.auth.Login(r.Context(), req.Username, req.PIN); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.writeStoreError(w, r, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	if err := s.auth.SetSession(w, username); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"username": username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheckUser(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	exists, err := s.auth.Exists(r.Context(), req.Username)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}
