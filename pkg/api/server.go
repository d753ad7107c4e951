// Zaparoo DOS Drives
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo DOS Drives.
//
// Zaparoo DOS Drives is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo DOS Drives is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo DOS Drives.  If not, see <http://www.gnu.org/licenses/>.

// Package api serves the local JSON-RPC 2.0 WebSocket API used by
// frontends to list, mount and open drives.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/methods"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/middleware"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/models/requests"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/api/validation"
	"github.com/ZaparooProject/zaparoo-dosdrives/pkg/config"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

var (
	JSONRPCErrorParseError = models.ErrorObject{
		Code:    models.ErrCodeParse,
		Message: "Parse error",
	}
	JSONRPCErrorInvalidRequest = models.ErrorObject{
		Code:    models.ErrCodeInvalidRequest,
		Message: "Invalid Request",
	}
	JSONRPCErrorMethodNotFound = models.ErrorObject{
		Code:    models.ErrCodeMethodNotFound,
		Message: "Method not found",
	}
)

type handlerFunc func(requests.RequestEnv) (any, error)

var methodMap = map[string]handlerFunc{
	models.MethodDrives:             methods.HandleDrives,
	models.MethodDrivesAll:          methods.HandleDrivesAll,
	models.MethodDrivesMount:        methods.HandleMount,
	models.MethodDrivesUnmount:      methods.HandleUnmount,
	models.MethodDrivesUnmountAll:   methods.HandleUnmountAll,
	models.MethodDrivesOpen:         methods.HandleOpen,
	models.MethodDrivesMountOptical: methods.HandleMountOptical,
	models.MethodVersion:            methods.HandleVersion,
}

type Server struct {
	drives  requests.DriveService
	cfg     *config.Instance
	limiter *middleware.IPRateLimiter
	session *melody.Melody
}

func NewServer(cfg *config.Instance, svc requests.DriveService, clock clockwork.Clock) *Server {
	s := &Server{
		drives:  svc,
		cfg:     cfg,
		limiter: middleware.NewIPRateLimiter(clock),
		session: melody.New(),
	}
	s.session.Upgrader.CheckOrigin = func(r *http.Request) bool {
		return originAllowed(r.Header.Get("Origin"), cfg.AllowedOrigins())
	}
	s.session.HandleMessage(middleware.WebSocketRateLimitHandler(s.limiter, s.handleWSMessage))
	return s
}

// Router returns the HTTP handler for the API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.NoCache)
	r.Use(middleware.HTTPRateLimitMiddleware(s.limiter))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins(),
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept"},
		ExposedHeaders: []string{},
	}))

	r.Get("/api", func(w http.ResponseWriter, r *http.Request) {
		if err := s.session.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	})

	return r
}

// Serve listens on the loopback interface and blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, notifications <-chan models.Notification) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.cfg.APIPort()))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln, notifications)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener, notifications <-chan models.Notification) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.limiter.StartCleanup(ctx)
	go s.broadcastNotifications(ctx, notifications)

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("api server listening")
		errs <- srv.Serve(ln)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	log.Debug().Msg("closing api server via context cancellation")
	if err := s.session.Close(); err != nil && !errors.Is(err, melody.ErrClosed) {
		log.Warn().Err(err).Msg("closing websocket sessions")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down api server: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) broadcastNotifications(ctx context.Context, notifications <-chan models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-notifications:
			if !ok {
				return
			}
			data, err := json.Marshal(models.NotificationObject{
				JSONRPC: "2.0",
				Method:  notif.Method,
				Params:  notif.Params,
			})
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := s.session.Broadcast(data); err != nil && !errors.Is(err, melody.ErrClosed) {
				log.Error().Err(err).Str("method", notif.Method).Msg("broadcasting notification")
			}
		}
	}
}

func (s *Server) handleWSMessage(session *melody.Session, msg []byte) {
	resp := s.processMessage(session.Request.RemoteAddr, msg)
	if resp == nil {
		return
	}
	if err := session.Write(resp); err != nil {
		log.Error().Err(err).Msg("sending response")
	}
}

// processMessage returns the encoded reply to msg, or nil when no reply is
// due (JSON-RPC notifications from the client).
func (s *Server) processMessage(remoteAddr string, msg []byte) []byte {
	// heartbeat
	if bytes.Equal(msg, []byte("ping")) {
		return []byte("pong")
	}

	if !json.Valid(msg) {
		log.Warn().Msg("data not valid json")
		return errorResponse(models.RPCID{}, JSONRPCErrorParseError)
	}

	var req models.RequestObject
	if err := json.Unmarshal(msg, &req); err != nil {
		log.Warn().Err(err).Msg("message is not a request object")
		return errorResponse(models.RPCID{}, JSONRPCErrorInvalidRequest)
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		log.Warn().Str("jsonrpc", req.JSONRPC).Str("method", req.Method).Msg("invalid request")
		return errorResponse(req.ID, JSONRPCErrorInvalidRequest)
	}
	if req.ID.IsAbsent() {
		log.Debug().Str("method", req.Method).Msg("received notification, ignoring")
		return nil
	}

	fn, ok := methodMap[strings.ToLower(req.Method)]
	if !ok {
		log.Warn().Str("method", req.Method).Msg("unknown method")
		return errorResponse(req.ID, JSONRPCErrorMethodNotFound)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.APIRequestTimeout)
	defer cancel()

	log.Debug().Str("method", req.Method).Str("id", req.ID.String()).Msg("received request")
	result, err := fn(requests.RequestEnv{
		Context: ctx,
		Drives:  s.drives,
		Config:  s.cfg,
		Params:  req.Params,
		ID:      req.ID,
		IsLocal: middleware.IsLoopbackAddr(remoteAddr),
	})
	if err != nil {
		return errorResponse(req.ID, handlerError(err))
	}

	data, err := json.Marshal(models.ResponseObject{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	})
	if err != nil {
		log.Error().Err(err).Msg("marshalling response")
		return errorResponse(req.ID, models.ErrorObject{Code: models.ErrCodeInternal, Message: "Internal error"})
	}
	return data
}

// handlerError maps handler failures to JSON-RPC errors. Drive errors keep
// their text so frontends can show why a mount failed.
func handlerError(err error) models.ErrorObject {
	if validation.IsParamsError(err) {
		return models.ErrorObject{Code: models.ErrCodeInvalidParams, Message: err.Error()}
	}
	log.Warn().Err(err).Msg("request failed")
	return models.ErrorObject{Code: models.ErrCodeServer, Message: err.Error()}
}

func errorResponse(id models.RPCID, errObj models.ErrorObject) []byte {
	data, err := json.Marshal(models.ResponseErrorObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	})
	if err != nil {
		log.Error().Err(err).Msg("marshalling error response")
		return nil
	}
	return data
}

// originAllowed matches browser origins against patterns with at most one
// "*" wildcard. Non-browser clients send no origin and are allowed.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	origin = strings.ToLower(origin)
	for _, pattern := range allowed {
		pattern = strings.ToLower(pattern)
		if pattern == "*" || pattern == origin {
			return true
		}
		prefix, suffix, found := strings.Cut(pattern, "*")
		if found && len(origin) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
