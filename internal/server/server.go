/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes the player over HTTP: sessions are created from the
// story entry (or a save slot), stepped with choices, and stream their frames
// over a websocket.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vnengine/internal/engine"
	"vnengine/internal/frame"
	applog "vnengine/internal/log"
	"vnengine/internal/player"
	"vnengine/internal/storage"
	"vnengine/internal/version"
)

// Options configures a Server.
type Options struct {
	Root  string
	Entry string
	// Frames receives one sub directory of rendered frames per session.
	Frames string
	// Cache enables the render cache for every session when set.
	Cache   string
	MaxSkip int
	// Renderer builds the frame renderer for a session rooted at root.
	Renderer func(root string) frame.Renderer
	// Store backs save slots; nil disables them.
	Store *storage.Store
}

// Server holds the live sessions. Each session is guarded by its own lock.
type Server struct {
	opts     Options
	mu       sync.Mutex
	sessions map[string]*session
	upgrader websocket.Upgrader
	log      *slog.Logger
}

type session struct {
	mu sync.Mutex
	id string
	p  *player.Player
}

func New(opts Options) *Server {
	return &Server{
		opts:     opts,
		sessions: make(map[string]*session),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		log:      applog.WithComponent("server"),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.String()})
	})
	g := r.Group("/sessions")
	g.POST("", s.create)
	g.GET("/:id", s.withSession(s.get))
	g.DELETE("/:id", s.remove)
	g.POST("/:id/next", s.withSession(s.next))
	g.POST("/:id/back", s.withSession(s.rewind(true)))
	g.POST("/:id/forward", s.withSession(s.rewind(false)))
	g.GET("/:id/frame", s.withSession(s.frame))
	g.PUT("/:id/saves/:slot", s.withSession(s.save))
	g.GET("/:id/ws", s.withSession(s.stream))
	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(start)))
	}
}

type createRequest struct {
	Slot string `json:"slot"`
}

type stepView struct {
	player.Step
	Frame string `json:"frame,omitempty"`
}

type sessionView struct {
	ID    string       `json:"id"`
	Step  stepView     `json:"step"`
	State engine.State `json:"state"`
}

func (s *Server) create(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	e, err := s.openEngine(c, req.Slot)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, storage.ErrNoSave) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	sess := &session{id: uuid.NewString()}
	sess.p = player.New(e, s.opts.Renderer(e.Root()), filepath.Join(s.opts.Frames, sess.id))
	if _, err := sess.p.Start(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.log.Info("session started", slog.String("id", sess.id), slog.String("slot", req.Slot))
	c.JSON(http.StatusCreated, s.view(sess))
}

func (s *Server) openEngine(c *gin.Context, slot string) (*engine.Engine, error) {
	opts := engine.Options{Root: s.opts.Root, MaxSkip: s.opts.MaxSkip}
	var (
		e   *engine.Engine
		err error
	)
	if slot == "" {
		e, err = engine.FromFile(s.opts.Entry, opts)
	} else {
		if s.opts.Store == nil {
			return nil, errors.New("save slots are not configured")
		}
		var sv storage.Save
		if sv, err = s.opts.Store.Get(c.Request.Context(), slot); err != nil {
			return nil, err
		}
		e, err = engine.Restore(sv.State, opts)
	}
	if err != nil {
		return nil, err
	}
	if s.opts.Cache != "" {
		if err := e.EnableCache(s.opts.Cache); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (s *Server) withSession(h func(*gin.Context, *session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		sess, ok := s.sessions[c.Param("id")]
		s.mu.Unlock()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
			return
		}
		h(c, sess)
	}
}

func (s *Server) view(sess *session) sessionView {
	return sessionView{ID: sess.id, Step: s.stepView(sess, sess.p.Last()), State: sess.p.Engine().Snapshot()}
}

func (s *Server) stepView(sess *session, st player.Step) stepView {
	v := stepView{Step: st}
	if !st.Done {
		v.Frame = fmt.Sprintf("/sessions/%s/frame?n=%d", sess.id, st.N)
	}
	return v
}

func (s *Server) get(c *gin.Context, sess *session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	c.JSON(http.StatusOK, s.view(sess))
}

func (s *Server) remove(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown session"})
		return
	}
	c.Status(http.StatusNoContent)
}

type nextRequest struct {
	Choice bool `json:"choice"`
}

func (s *Server) next(c *gin.Context, sess *session) {
	var req nextRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	st, err := sess.p.Advance(req.Choice)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "step": s.stepView(sess, st)})
		return
	}
	c.JSON(http.StatusOK, s.stepView(sess, st))
}

// rewind steps through the session history. Nothing to step to is a 409.
func (s *Server) rewind(back bool) func(*gin.Context, *session) {
	return func(c *gin.Context, sess *session) {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		move := sess.p.Forward
		if back {
			move = sess.p.Back
		}
		st, ok, err := move()
		switch {
		case err != nil:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case !ok:
			c.JSON(http.StatusConflict, gin.H{"error": "nothing to step to", "step": s.stepView(sess, st)})
		default:
			c.JSON(http.StatusOK, s.stepView(sess, st))
		}
	}
}

func (s *Server) frame(c *gin.Context, sess *session) {
	sess.mu.Lock()
	st := sess.p.Last()
	sess.mu.Unlock()
	if st.Done || st.Path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no frame"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.File(st.Path)
}

func (s *Server) save(c *gin.Context, sess *session) {
	if s.opts.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "save slots are not configured"})
		return
	}
	sess.mu.Lock()
	st := sess.p.Engine().Snapshot()
	sess.mu.Unlock()
	sv, err := s.opts.Store.Put(c.Request.Context(), c.Param("slot"), st)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": sv.ID, "slot": sv.Slot, "updated_at": sv.UpdatedAt})
}

// stream upgrades to a websocket. The current step is sent on connect; every
// {"choice": bool} message advances the session and is answered with the
// new step.
func (s *Server) stream(c *gin.Context, sess *session) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer func() { _ = conn.Close() }()
	l := s.log.With(slog.String("session", sess.id))

	sess.mu.Lock()
	first := s.stepView(sess, sess.p.Last())
	sess.mu.Unlock()
	if err := conn.WriteJSON(gin.H{"step": first}); err != nil {
		return
	}
	for {
		var req nextRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.Debug("websocket closed", slog.Any("err", err))
			}
			return
		}
		sess.mu.Lock()
		st, err := sess.p.Advance(req.Choice)
		sess.mu.Unlock()
		msg := gin.H{"step": s.stepView(sess, st)}
		if err != nil {
			msg["error"] = err.Error()
		}
		if err := conn.WriteJSON(msg); err != nil {
			l.Debug("websocket write failed", slog.Any("err", err))
			return
		}
	}
}
