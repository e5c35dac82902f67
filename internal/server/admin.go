package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/michaelbrown/turtle/internal/storage"
)

// errChallengeActive blocks challenge edits while the challenge timespan is
// running.
var errChallengeActive = errors.New("challenges cannot be changed during the active challenge timespan")

func (s *Server) checkChallengesEditable(ctx context.Context) error {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings.ChallengeTimespan.Contains(s.now()) {
		return errChallengeActive
	}
	return nil
}

func (s *Server) writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errChallengeActive) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeStoreError(w, r, err)
}

type challengeRequest struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Position int    `json:"position"`
}

func (req challengeRequest) validate() error {
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.checkChallengesEditable(r.Context()); err != nil {
		s.writeAdminError(w, r, err)
		return
	}

	ch := &storage.Challenge{
		ID:       uuid.New().String(),
		Title:    strings.TrimSpace(req.Title),
		ImageURL: req.ImageURL,
		Position: req.Position,
	}
	if err := s.store.CreateChallenge(r.Context(), ch); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (s *Server) handleUpdateChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.checkChallengesEditable(r.Context()); err != nil {
		s.writeAdminError(w, r, err)
		return
	}

	ch, err := s.store.GetChallenge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	ch.Title = strings.TrimSpace(req.Title)
	ch.ImageURL = req.ImageURL
	if req.Position != 0 {
		ch.Position = req.Position
	}
	if err := s.store.UpdateChallenge(r.Context(), ch); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleDeleteChallenge(w http.ResponseWriter, r *http.Request) {
	if err := s.checkChallengesEditable(r.Context()); err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	if err := s.store.DeleteChallenge(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	ch, err := s.store.GetChallenge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	subs, err := s.store.ListSubmissions(r.Context(), ch.ID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "":
		writeJSON(w, http.StatusOK, subs)
	case "json":
		data, err := storage.ExportJSON(ch, subs)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ch.ID+".json"))
		w.Write(data)
	case "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ch.ID+".md"))
		w.Write([]byte(storage.ExportMarkdown(ch, subs)))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings storage.Settings
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if ts := settings.ChallengeTimespan; ts != nil && !ts.End.After(ts.Start) {
		writeError(w, http.StatusBadRequest, "challenge timespan must end after it starts")
		return
	}
	if err := s.store.SaveSettings(r.Context(), &settings); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
