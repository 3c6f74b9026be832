// Package web serves the planner over HTTP and websockets and provides the clients the follower
// uses to reach it.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"go.viam.com/utils"
	"goji.io"
	"goji.io/pat"

	"go.viam.com/gridnav/logging"
	"go.viam.com/gridnav/services/replan"
	"go.viam.com/gridnav/spatialmath"
)

const (
	// APIPrefix is the path prefix of every endpoint.
	APIPrefix = "/api/v1"

	maxBodyBytes = 1 << 20
	writeTimeout = 5 * time.Second
)

// Server exposes a replan.Coordinator.
//
//	POST /api/v1/plan         synchronous plan request, ?debug=<key> logs the search
//	GET  /api/v1/plan         the complete plan so far
//	GET  /api/v1/plan/stream  websocket of plan emissions
//	POST /api/v1/source       source update
//	POST /api/v1/target       target update
//	POST /api/v1/goal         goal update, the previous target becomes the source
type Server struct {
	coordinator *replan.Coordinator
	broadcaster *Broadcaster
	upgrader    websocket.Upgrader
	logger      logging.Logger
}

// NewServer returns a server for coordinator. Plan streams are fed by broadcaster, which should
// be the coordinator's sink.
func NewServer(coordinator *replan.Coordinator, broadcaster *Broadcaster, logger logging.Logger) *Server {
	return &Server{
		coordinator: coordinator,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.Sublogger("web"),
	}
}

// Handler returns the routed handler with permissive CORS.
func (s *Server) Handler() http.Handler {
	mux := goji.NewMux()
	mux.HandleFunc(pat.Post(APIPrefix+"/plan"), s.handlePlanRequest)
	mux.HandleFunc(pat.Get(APIPrefix+"/plan"), s.handleGetPlan)
	mux.HandleFunc(pat.Get(APIPrefix+"/plan/stream"), s.handlePlanStream)
	mux.HandleFunc(pat.Post(APIPrefix+"/source"), s.handlePose(func(c spatialmath.Configuration) {
		s.coordinator.Update(&c, nil)
	}))
	mux.HandleFunc(pat.Post(APIPrefix+"/target"), s.handlePose(func(c spatialmath.Configuration) {
		s.coordinator.Update(nil, &c)
	}))
	mux.HandleFunc(pat.Post(APIPrefix+"/goal"), s.handlePose(s.coordinator.PushGoal))
	return cors.AllowAll().Handler(mux)
}

// Serve serves on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Addr:              listener.Addr().String(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Handler:           s.Handler(),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	utils.PanicCapturingGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Errorw("error shutting down", "error", err)
		}
	})

	s.logger.Infow("serving", "url", fmt.Sprintf("http://%s", listener.Addr().String()))
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunWeb listens on address and serves until ctx is done.
func (s *Server) RunWeb(ctx context.Context, address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

func (s *Server) handlePlanRequest(w http.ResponseWriter, r *http.Request) {
	var msg PlanRequestMessage
	if err := decodeBody(w, r, &msg); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	source, err := spatialmath.ConfigurationFromSlice(msg.Source)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "source"))
		return
	}
	target, err := spatialmath.ConfigurationFromSlice(msg.Target)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "target"))
		return
	}

	ctx := r.Context()
	if key := r.URL.Query().Get("debug"); key != "" {
		ctx = logging.EnableDebugMode(ctx, key)
	}
	resp, err := s.coordinator.GetPlan(ctx, replan.PlanRequest{Source: source, Target: target})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, NewPlanMessage(s.coordinator.CompletePlan()))
}

func (s *Server) handlePose(apply func(spatialmath.Configuration)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg PoseMessage
		if err := decodeBody(w, r, &msg); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		cfg, err := msg.Configuration()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		apply(cfg)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handlePlanStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Debugw("websocket upgrade failed", "error", err)
		return
	}
	defer utils.UncheckedErrorFunc(conn.Close)

	id, plans := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)
	s.logger.Debugw("plan stream subscribed", "id", id.String())

	// The client never sends anything; reading only detects that it went away.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	utils.PanicCapturingGo(func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Debugw("plan stream closed", "id", id.String())
			return
		case plan := <-plans:
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(NewPlanMessage(plan)); err != nil {
				s.logger.Debugw("plan stream write failed", "id", id.String(), "error", err)
				return
			}
		}
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}

type errorMessage struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Debugw("request failed", "status", status, "error", err)
	s.writeJSON(w, status, errorMessage{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debugw("could not write response", "error", err)
	}
}
