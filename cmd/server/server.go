package main

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/nickyhof/SqlLikeMem"
	"github.com/nickyhof/SqlLikeMem/core"
	"github.com/nickyhof/SqlLikeMem/db"
	"github.com/nickyhof/SqlLikeMem/plan"
)

// Server is a TCP SQL server over one shared database. Every connection
// gets its own engine, so transactions and identities are per connection.
type Server struct {
	listener    net.Listener
	instance    *SqlLikeMem.Instance
	identity    core.Identity
	authConfig  *AuthConfig
	tlsEnabled  bool
	logger      *slog.Logger
	planContext string
	done        chan struct{}
	wg          sync.WaitGroup
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPlanContext(context string) ServerOption {
	return func(s *Server) {
		s.planContext = context
	}
}

// NewServer creates a server whose connections run as identity. Connections
// run concurrently, so the database lock is switched on.
func NewServer(instance *SqlLikeMem.Instance, identity core.Identity, opts ...ServerOption) *Server {
	instance.Database.ThreadSafe = true
	s := &Server{
		instance:    instance,
		identity:    identity,
		logger:      slog.New(slog.DiscardHandler),
		planContext: "dev",
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServerWithAuth creates a server that requires AUTH JWT before statements.
func NewServerWithAuth(instance *SqlLikeMem.Instance, authConfig *AuthConfig, opts ...ServerOption) *Server {
	s := NewServer(instance, core.Identity{Name: "anonymous"}, opts...)
	s.authConfig = authConfig
	return s
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener
	s.logger.Info("SQL server listening", "addr", listener.Addr().String(), "dialect", s.instance.Database.Dialect.String())

	go s.acceptLoop()
	return nil
}

// StartTLS begins listening for TLS connections using the given certificate.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	listener, err := tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.listener = listener
	s.tlsEnabled = true
	s.logger.Info("SQL server listening", "addr", listener.Addr().String(), "tls", true)

	go s.acceptLoop()
	return nil
}

func (s *Server) TLSEnabled() bool {
	return s.tlsEnabled
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) newSession() *Session {
	engine := s.instance.Engine(s.identity,
		db.WithLogger(s.logger),
		db.WithPlanContext(s.planContext))
	return &Session{engine: engine}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				s.logger.Error("accept failed", "error", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.logger.Debug("client connected", "remote", remote)

	session := s.newSession()
	defer func() {
		// An open transaction dies with its connection.
		if session.engine.Transaction() != nil {
			session.engine.Rollback()
		}
	}()

	reader := bufio.NewReader(conn)
	for {
		select {
		case <-s.done:
			return
		default:
		}

		// One request per line
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				s.logger.Warn("read failed", "remote", remote, "error", err)
			}
			return
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "quit") || strings.EqualFold(text, "exit") {
			s.logger.Debug("client disconnected", "remote", remote)
			return
		}

		var response Response
		if isAuthCommand(text) {
			response = s.handleAuth(text, session)
		} else if req, err := DecodeRequest([]byte(text)); err != nil {
			response = Response{Success: false, Error: fmt.Sprintf("invalid request: %v", err)}
		} else {
			response = s.execute(session, req)
		}

		data, err := EncodeResponse(response)
		if err != nil {
			s.logger.Error("failed to encode response", "error", err)
			continue
		}
		if _, err := conn.Write(data); err != nil {
			s.logger.Warn("write failed", "remote", remote, "error", err)
			return
		}
	}
}

// execute runs one request on the session's engine. "EXPLAIN <query>"
// returns the query's plan instead of its rows.
func (s *Server) execute(session *Session, req Request) Response {
	if err := s.authorize(session); err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	if rest, ok := cutExplain(req.Query); ok {
		executed, err := session.engine.Explain(rest, req.Params)
		if err != nil {
			return errorResponse(err)
		}
		return planResponse(executed)
	}

	result, err := session.engine.Execute(req.Query, req.Params)
	if err != nil {
		s.logger.Debug("statement failed", "error", err, "code", core.ErrorNumber(err))
		return errorResponse(err)
	}
	return resultResponse(result)
}

func cutExplain(query string) (string, bool) {
	fields := strings.Fields(query)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "EXPLAIN") {
		return "", false
	}
	return strings.TrimSpace(query[len(fields[0]):]), true
}

func errorResponse(err error) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
		Code:    core.ErrorNumber(err),
	}
}

func planResponse(executed *plan.Plan) Response {
	data, err := plan.FormatJSON(executed)
	if err != nil {
		return errorResponse(err)
	}
	return Response{Success: true, Type: "plan", Result: data}
}

func resultResponse(result db.Result) Response {
	switch r := result.(type) {
	case db.QueryResult:
		data, _ := json.Marshal(newQueryResponse(r))
		return Response{Success: true, Type: "query", Result: data}

	case db.CommitResult:
		data, _ := json.Marshal(newCommitResponse(r))
		return Response{Success: true, Type: "commit", Result: data}

	default:
		return errorResponse(errors.New("unknown result type"))
	}
}

func newQueryResponse(r db.QueryResult) QueryResponse {
	return QueryResponse{
		Columns:     r.ColumnNames(),
		Data:        r.Data(),
		RecordsRead: r.RecordsRead,
		TimeMs:      r.ExecutionTimeSec * 1000,
	}
}

func newCommitResponse(r db.CommitResult) CommitResponse {
	return CommitResponse{
		Transaction:    r.Transaction,
		TablesCreated:  r.TablesCreated,
		TablesDeleted:  r.TablesDeleted,
		RecordsWritten: r.RecordsWritten,
		RecordsDeleted: r.RecordsDeleted,
		RowsAffected:   r.RowsAffected,
		LastInsertId:   r.LastInsertId,
		OutParams:      r.OutParams,
		Message:        r.Message,
		TimeMs:         r.ExecutionTimeSec * 1000,
	}
}
