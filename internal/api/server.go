// Package api is the HTTP control surface: security mode, alert history,
// email recipient, latest frames, and the websocket alert feed.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/mikeyg42/sentinel/internal/alert"
	"github.com/mikeyg42/sentinel/internal/appstate"
	"github.com/mikeyg42/sentinel/internal/stream"
)

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	state      *appstate.State
	history    *alert.History
	frames     *stream.Table
	hub        *AlertHub
	logger     *zap.Logger
}

func NewServer(addr string, state *appstate.State, history *alert.History,
	frames *stream.Table, hub *AlertHub, logger *zap.Logger) *Server {
	s := &Server{
		state:   state,
		history: history,
		frames:  frames,
		hub:     hub,
		logger:  logger.Named("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/security_mode", s.handleSecurityMode)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/recipient", s.handleRecipient)
	mux.HandleFunc("/api/frame/", s.handleFrame)
	mux.HandleFunc("/api/health", s.handleHealth)
	if hub != nil {
		mux.Handle("/ws/alerts", hub)
	}

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// StartInBackground serves until Shutdown; listen errors are logged, not
// returned, so a port clash does not take the capture pipeline down.
func (s *Server) StartInBackground() {
	go func() {
		s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server failed", zap.Error(err))
		}
	}()
}

// Shutdown stops the listener and disconnects websocket subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleSecurityMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{
			"mode": s.state.SecurityMode().String(),
		})
	case http.MethodPost:
		var req struct {
			Mode string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		mode, err := appstate.ParseSecurityMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.state.SetSecurityMode(mode)
		s.logger.Info("security mode changed", zap.String("mode", mode.String()))
		writeJSON(w, http.StatusOK, map[string]string{"mode": mode.String()})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	records := s.history.Records()
	if records == nil {
		records = []alert.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleRecipient(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Email == "" || !strings.Contains(req.Email, "@") {
			writeError(w, http.StatusBadRequest, "invalid email address")
			return
		}
		s.state.SetRecipient(req.Email)
		s.logger.Info("alert recipient set", zap.String("email", req.Email))
		writeJSON(w, http.StatusOK, map[string]string{"email": req.Email})
	case http.MethodDelete:
		s.state.SetRecipient("")
		s.logger.Info("alert recipient cleared")
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleFrame serves a one-shot JPEG of the camera's most recent frame.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cameraID := strings.TrimPrefix(r.URL.Path, "/api/frame/")
	if cameraID == "" {
		writeError(w, http.StatusBadRequest, "missing camera id")
		return
	}

	frame, ok := s.frames.Latest(cameraID)
	if !ok {
		writeError(w, http.StatusNotFound, "no frame available for camera")
		return
	}
	defer frame.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, frame)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "frame encoding failed")
		return
	}
	defer buf.Close()

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.GetBytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"mode":    s.state.SecurityMode().String(),
		"cameras": s.frames.CameraIDs(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
