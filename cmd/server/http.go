package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nickyhof/SqlLikeMem/core"
)

const contextKeySession = "session"

// HTTPHandler returns the HTTP API:
//
//	POST /query    {"query": "...", "params": {...}}
//	POST /explain  {"query": "...", "params": {...}}
//	GET  /tables
//
// Each request runs on a fresh session, so transactions do not span requests.
// With auth enabled, requests carry "Authorization: Bearer <jwt>".
func (s *Server) HTTPHandler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.sessionMiddleware())

	router.POST("/query", s.handleQuery)
	router.POST("/explain", s.handleExplain)
	router.GET("/tables", s.handleTables)
	return router
}

// StartHTTP serves the HTTP API until Stop is called.
func (s *Server) StartHTTP(addr string) (*http.Server, error) {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start HTTP server: %w", err)
	}
	s.logger.Info("HTTP API listening", "addr", listener.Addr().String())

	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", "error", err)
		}
	}()
	go func() {
		<-s.done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(ctx)
	}()
	return httpServer, nil
}

func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := s.newSession()

		if s.authConfig != nil && s.authConfig.Enabled {
			header := c.GetHeader("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Error: ErrAuthRequired.Error()})
				return
			}
			identity, expiresAt, err := s.validateJWT(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Type: "auth", Error: err.Error()})
				return
			}
			session.engine.SetIdentity(identity)
			session.authenticated = true
			session.tokenExpiry = expiresAt
		}

		c.Set(contextKeySession, session)
		c.Next()

		if session.engine.Transaction() != nil {
			session.engine.Rollback()
		}
	}
}

func sessionFrom(c *gin.Context) *Session {
	return c.MustGet(contextKeySession).(*Session)
}

func bindRequest(c *gin.Context) (Request, bool) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: fmt.Sprintf("invalid request: %v", err)})
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "query is required"})
		return req, false
	}
	return req, true
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(response Response) int {
	if response.Success {
		return http.StatusOK
	}
	switch response.Code {
	case core.ErrNumUnknownTable, core.ErrNumProcedureNotFound:
		return http.StatusNotFound
	case core.ErrNumDuplicateKey, core.ErrNumRowIsReferenced, core.ErrNumNoReferencedRow:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleQuery(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	response := s.execute(sessionFrom(c), req)
	c.JSON(statusFor(response), response)
}

func (s *Server) handleExplain(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	executed, err := sessionFrom(c).engine.Explain(req.Query, req.Params)
	if err != nil {
		response := errorResponse(err)
		c.JSON(statusFor(response), response)
		return
	}
	c.JSON(http.StatusOK, planResponse(executed))
}

type tableInfo struct {
	Schema    string `json:"schema"`
	Name      string `json:"name"`
	Rows      int    `json:"rows"`
	Temporary bool   `json:"temporary,omitempty"`
}

func (s *Server) handleTables(c *gin.Context) {
	database := s.instance.Database
	database.RLock()
	defer database.RUnlock()

	tables := []tableInfo{}
	for _, table := range database.Tables() {
		tables = append(tables, tableInfo{
			Schema:    table.Schema().Name,
			Name:      table.Name,
			Rows:      table.Count(),
			Temporary: table.Temporary,
		})
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}
