package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/michaelbrown/turtle/internal/cache"
	"github.com/michaelbrown/turtle/internal/observability"
	"github.com/michaelbrown/turtle/internal/render"
	"github.com/michaelbrown/turtle/internal/sandbox"
	"github.com/michaelbrown/turtle/internal/turtle"
)

// maxRenderPixels bounds either side of a rendered image.
const maxRenderPixels = 2048

// errPlaygroundClosed is returned once the admin close time has passed.
var errPlaygroundClosed = errors.New("the playground is closed")

type runRequest struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

type runResponse struct {
	ID      string     `json:"id"`
	Actions turtle.Log `json:"actions"`
}

type runFailure struct {
	Error  string         `json:"error"`
	Reason sandbox.Reason `json:"reason"`
}

// checkPlayground fails when scripts may no longer be run.
func (s *Server) checkPlayground(ctx context.Context) error {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	if settings.PlaygroundClosed(s.now()) {
		return errPlaygroundClosed
	}
	return nil
}

// execute runs code to completion under the manager's policy. The run is
// registered under id (fresh when empty) until it settles.
func (s *Server) execute(ctx context.Context, id, code string) (string, turtle.Log, error) {
	id, exec, err := s.runs.GetOrCreate(id, code)
	if err != nil {
		return "", nil, err
	}
	defer s.runs.Remove(id)

	log, err := exec.Run(ctx)
	return id, log, err
}

// writeRunError maps a failed execute to a response.
func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errPlaygroundClosed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, sandbox.ErrSourceTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case sandbox.ReasonOf(err) != "":
		writeJSON(w, http.StatusUnprocessableEntity, runFailure{Error: err.Error(), Reason: sandbox.ReasonOf(err)})
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		s.writeStoreError(w, r, err)
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := s.checkPlayground(r.Context()); err != nil {
		s.writeRunError(w, r, err)
		return
	}

	id, log, err := s.execute(r.Context(), req.ID, req.Code)
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}
	if log == nil {
		log = turtle.Log{}
	}
	writeJSON(w, http.StatusOK, runResponse{ID: id, Actions: log})
}

func (s *Server) handleDisposeRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.runs.Get(id); !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.runs.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

type renderRequest struct {
	Code     string   `json:"code"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	Scale    float64  `json:"scale"`
	Distance *float64 `json:"distance"`
	Turtle   bool     `json:"turtle"`
}

// config fills unset geometry from the canvas defaults.
func (req renderRequest) config(def render.Config) (render.Config, error) {
	cfg := def
	if req.Width > 0 {
		cfg.Width = req.Width
	}
	if req.Height > 0 {
		cfg.Height = req.Height
	}
	if req.Scale > 0 {
		cfg.Scale = req.Scale
	}
	w, h := cfg.PixelSize()
	if w <= 0 || h <= 0 || w > maxRenderPixels || h > maxRenderPixels {
		return cfg, fmt.Errorf("image must be between 1 and %d pixels per side", maxRenderPixels)
	}
	return cfg, nil
}

func (req renderRequest) budget() float64 {
	if req.Distance == nil {
		return render.Unbounded
	}
	return *req.Distance
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	cfg, err := req.config(s.cfg.Canvas.Render(req.Turtle))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.checkPlayground(r.Context()); err != nil {
		s.writeRunError(w, r, err)
		return
	}

	budget := req.budget()
	key := cache.Key(req.Code, cfg.Width, cfg.Height, cfg.Scale, budget, cfg.DrawTurtle)
	if png, ok := s.cachedRender(r.Context(), key); ok {
		writePNG(w, png)
		return
	}

	_, log, err := s.execute(r.Context(), "", req.Code)
	if err != nil {
		s.writeRunError(w, r, err)
		return
	}

	start := time.Now()
	png, _, err := renderPNG(cfg, log, budget)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.ObserveRender("png", start)

	if err := s.renders.Set(r.Context(), key, png); err != nil {
		s.logger.Warn("render cache store failed", "error", err)
	}
	writePNG(w, png)
}

// cachedRender looks key up in the render cache. Cache failures count as
// misses.
func (s *Server) cachedRender(ctx context.Context, key string) ([]byte, bool) {
	png, err := s.renders.Get(ctx, key)
	switch {
	case err == nil:
		observability.RenderCacheTotal.WithLabelValues("hit").Inc()
		return png, true
	case errors.Is(err, cache.ErrMiss):
		observability.RenderCacheTotal.WithLabelValues("miss").Inc()
	default:
		observability.RenderCacheTotal.WithLabelValues("error").Inc()
		s.logger.Warn("render cache lookup failed", "error", err)
	}
	return nil, false
}

// renderPNG rasterizes log up to budget.
func renderPNG(cfg render.Config, log turtle.Log, budget float64) ([]byte, render.Frame, error) {
	w, h := cfg.PixelSize()
	raster := render.NewRaster(w, h)
	frame := render.Render(cfg, raster, log, budget)

	var buf bytes.Buffer
	if err := raster.EncodePNG(&buf); err != nil {
		return nil, frame, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), frame, nil
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// frameDistance is the travel budget of frame n at speed units per frame.
func frameDistance(n int, speed float64) float64 {
	if speed <= 0 || math.IsNaN(speed) {
		return render.Unbounded
	}
	return float64(n) * speed
}
