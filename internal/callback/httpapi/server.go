// Package httpapi is the browser-facing side of the completion handler. The
// identity service redirects the user here once they have finished (or
// declined) the consent screen.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/dmitrijs2005/kusogate/internal/completion"
	"github.com/dmitrijs2005/kusogate/internal/logging"
	"github.com/dmitrijs2005/kusogate/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	shutdownTimeout = 5 * time.Second
)

// Completer settles outbound authorization sessions.
type Completer interface {
	Complete(ctx context.Context, sessionID string) error
	Fail(ctx context.Context, sessionID, reason string) error
}

// InboundCompleter finishes the agent's own sign-in for a known user id.
type InboundCompleter interface {
	CompleteUserAuth(ctx context.Context, sessionURI, userID string) error
}

type Server struct {
	address   string
	completer Completer
	inbound   InboundCompleter
	logger    logging.Logger
}

// NewServer builds the server. inbound may be nil, in which case /inbound
// is not served.
func NewServer(address string, c Completer, inbound InboundCompleter, l logging.Logger) *Server {
	return &Server{
		address:   address,
		completer: c,
		inbound:   inbound,
		logger:    l.With("module", "http_server"),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/callback", s.callback)
	if s.inbound != nil {
		r.GET("/inbound", s.inboundCallback)
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Set("request_id", id)

		start := time.Now()
		c.Next()

		s.logger.Info(c.Request.Context(), "request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) callback(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(pageMissingSession))
		return
	}
	ctx := c.Request.Context()

	// The provider reports a declined consent screen as ?error=...
	if reason := c.Query("error"); reason != "" {
		if err := s.completer.Fail(ctx, sessionID, reason); err != nil {
			s.fail(c, sessionID, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageDenied))
		return
	}

	err := s.completer.Complete(ctx, sessionID)
	var settled *completion.SettledError
	switch {
	case errors.As(err, &settled) && settled.Status == models.StatusFailed:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageDenied))
	case err != nil:
		s.fail(c, sessionID, err)
	default:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageComplete))
	}
}

func (s *Server) inboundCallback(c *gin.Context) {
	sessionID := c.Query("session_id")
	userID := c.Query("user_id")
	if sessionID == "" || userID == "" {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", []byte(pageMissingSession))
		return
	}

	if err := s.inbound.CompleteUserAuth(c.Request.Context(), sessionID, userID); err != nil {
		s.fail(c, sessionID, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageComplete))
}

func (s *Server) fail(c *gin.Context, sessionID string, err error) {
	if errors.Is(err, common.ErrorNotFound) {
		c.Data(http.StatusGone, "text/html; charset=utf-8", []byte(pageExpired))
		return
	}
	s.logger.Error(c.Request.Context(), "completion failed", "session_id", sessionID, "error", err)
	c.Data(http.StatusBadGateway, "text/html; charset=utf-8", []byte(pageError))
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
