package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/bebetter/internal/api"
	"github.com/roach88/bebetter/internal/store"
)

func (s *Server) handleRegister(c *gin.Context) {
	var req api.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Missing fields"})
		return
	}
	if err := requestValidate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: validationMessage(err)})
		return
	}

	u, err := s.store.CreateUser(c.Request.Context(), req.Username, req.Email, req.Password)
	switch {
	case store.IsCode(err, store.ErrCodeUsernameTaken):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Username already taken"})
		return
	case store.IsCode(err, store.ErrCodeInvalidInput):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Missing fields"})
		return
	case err != nil:
		s.internalError(c, "register failed", err)
		return
	}

	c.JSON(http.StatusOK, api.RegisterResponse{OK: true, ID: u.ID})
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.limiter.Allow(c.ClientIP()) {
		s.metrics.LoginThrottled.Inc()
		c.JSON(http.StatusTooManyRequests, api.ErrorResponse{Error: "Too many login attempts"})
		return
	}

	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Missing fields"})
		return
	}
	if err := requestValidate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: validationMessage(err)})
		return
	}

	ctx := c.Request.Context()
	u, err := s.store.Authenticate(ctx, req.Username, req.Password)
	if store.IsCode(err, store.ErrCodeInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid credentials"})
		return
	}
	if err != nil {
		s.internalError(c, "login failed", err)
		return
	}

	token, err := s.store.CreateSession(ctx, u.ID)
	if err != nil {
		s.internalError(c, "create session failed", err)
		return
	}
	c.JSON(http.StatusOK, api.LoginResponse{OK: true, Token: token})
}

func (s *Server) handleLogout(c *gin.Context) {
	if err := s.store.DeleteSession(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		s.internalError(c, "logout failed", err)
		return
	}
	c.JSON(http.StatusOK, api.OKResponse{OK: true})
}

func (s *Server) handleGetUser(c *gin.Context) {
	u, err := s.store.UserByID(c.Request.Context(), c.GetString(userIDKey))
	if store.IsCode(err, store.ErrCodeNotFound) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "User not found"})
		return
	}
	if err != nil {
		s.internalError(c, "get user failed", err)
		return
	}
	c.JSON(http.StatusOK, api.UserResponse{User: toAPIUser(u, true)})
}

func (s *Server) handleModify(c *gin.Context) {
	// An empty body means zero deltas.
	var req api.ModifyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	u, applied, err := s.store.Modify(c.Request.Context(), c.GetString(userIDKey), store.Delta{
		XP:        req.XPDelta,
		Coins:     req.CoinsDelta,
		RequestID: req.RequestID,
	})
	if store.IsCode(err, store.ErrCodeNotFound) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "User not found"})
		return
	}
	if err != nil {
		s.internalError(c, "modify failed", err)
		return
	}

	result := "applied"
	if !applied {
		result = "replayed"
	}
	s.metrics.ModifyTotal.WithLabelValues(result).Inc()

	c.JSON(http.StatusOK, api.ModifyResponse{OK: true, User: toAPIUser(u, false)})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func toAPIUser(u store.User, withCreated bool) api.User {
	out := api.User{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		XP:       u.XP,
		Coins:    u.Coins,
		Level:    u.Level,
	}
	if withCreated {
		out.CreatedAt = u.CreatedAt.UTC().Format(time.RFC3339)
	}
	return out
}
