package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/michaelbrown/turtle/internal/observability"
	"github.com/michaelbrown/turtle/internal/render"
	"github.com/michaelbrown/turtle/internal/sandbox"
	"github.com/michaelbrown/turtle/internal/turtle"
)

var upgrader = websocket.Upgrader{}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type     string   `json:"type"`
	Content  string   `json:"content,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Distance *float64 `json:"distance,omitempty"`
	Image    string   `json:"image,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
}

// maxAnimationFrames caps one animation; the last frame is drawn in full.
const maxAnimationFrames = 3600

// handleAnimate streams frames of a script's drawing. Runs are animated one
// after another. Closing the socket disposes the in-flight run.
func (s *Server) handleAnimate(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	observability.AnimationConnections.Inc()
	defer observability.AnimationConnections.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	incoming := make(chan wsIncoming)
	go func() {
		defer cancel()
		defer close(incoming)
		for {
			var msg wsIncoming
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("websocket read ended", "error", err)
				}
				return
			}
			select {
			case incoming <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-incoming:
			if !ok {
				return
			}
			if msg.Type != "run" || msg.Content == "" {
				s.wsWriteJSON(conn, wsOutgoing{Type: "error", Content: "invalid message"})
				continue
			}
			s.animate(ctx, conn, msg.Content)
		}
	}
}

// animate runs code and sends one frame per interval until the drawing is
// complete or ctx ends.
func (s *Server) animate(ctx context.Context, conn *websocket.Conn, code string) {
	if err := s.checkPlayground(ctx); err != nil {
		s.wsWriteJSON(conn, wsOutgoing{Type: "error", Content: err.Error()})
		return
	}

	id, exec, err := s.runs.GetOrCreate("", code)
	if err != nil {
		s.wsWriteJSON(conn, wsOutgoing{Type: "error", Content: err.Error()})
		return
	}
	defer s.runs.Remove(id)

	log, err := exec.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.wsWriteJSON(conn, wsOutgoing{Type: "error", Content: err.Error(), Reason: string(sandbox.ReasonOf(err))})
		return
	}

	cfg := s.cfg.Canvas.Render(true)
	interval := s.cfg.Animation.FrameInterval
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	total := log.PathLength()
	for n := 0; ; n++ {
		distance := frameDistance(n, s.cfg.Animation.Speed)
		if distance >= total || n >= maxAnimationFrames {
			distance = render.Unbounded
		}
		frame, err := s.sendFrame(conn, cfg, log, distance)
		if err != nil {
			return
		}
		if frame.Complete {
			s.wsWriteJSON(conn, wsOutgoing{Type: "done"})
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) sendFrame(conn *websocket.Conn, cfg render.Config, log turtle.Log, distance float64) (render.Frame, error) {
	start := time.Now()
	png, frame, err := renderPNG(cfg, log, distance)
	if err != nil {
		s.wsWriteJSON(conn, wsOutgoing{Type: "error", Content: err.Error()})
		return frame, err
	}
	observability.ObserveRender("frame", start)

	traveled := frame.Traveled
	x, y := frame.Position.X, frame.Position.Y
	return frame, s.wsWriteJSON(conn, wsOutgoing{
		Type:     "frame",
		Distance: &traveled,
		Image:    base64.StdEncoding.EncodeToString(png),
		X:        &x,
		Y:        &y,
	})
}

func (s *Server) wsWriteJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("websocket marshal failed", "error", err)
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			s.logger.Debug("websocket write failed", "error", err)
		}
		return err
	}
	return nil
}
