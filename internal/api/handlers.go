package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"submission-relay/internal/apperr"
	"submission-relay/internal/auth"
	"submission-relay/internal/config"
	"submission-relay/internal/configstore"
	"submission-relay/internal/models"
	"submission-relay/internal/monitor"
	"submission-relay/internal/producer"
	"submission-relay/internal/ratelimit"
)

// Server holds all HTTP handlers and dependencies.
type Server struct {
	cfg         *config.Config
	producer    *producer.Producer
	verifier    *auth.IdentityVerifier
	keys        auth.KeyPolicy
	configStore *configstore.Store
	sse         *monitor.Gateway
	ws          *monitor.WSGateway
	rateLimiter *ratelimit.RateLimiter
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, p *producer.Producer, verifier *auth.IdentityVerifier, cs *configstore.Store, sse *monitor.Gateway, ws *monitor.WSGateway) *Server {
	return &Server{
		cfg:         cfg,
		producer:    p,
		verifier:    verifier,
		keys:        auth.KeyPolicy{Production: cfg.Production(), SecretKey: cfg.SecretKey},
		configStore: cs,
		sse:         sse,
		ws:          ws,
		rateLimiter: ratelimit.New(cfg.SubmitsPerMinute),
	}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS(s.cfg.CORSAllowOrigins))

	r.POST("/api/submit", s.Submit)
	r.POST("/api/submit-via-token", s.SubmitViaToken)
	r.GET("/api/monitor", gin.WrapH(s.sse))
	r.GET("/ws", gin.WrapH(s.ws))
	r.GET("/api/config", s.GetConfig)
	r.POST("/api/config", s.SetConfig)
	r.DELETE("/api/config", s.ResetConfig)

	return r
}

// Submit handles direct artifact submissions (multipart form with file,
// username and secretKey fields).
func (s *Server) Submit(c *gin.Context) {
	teamname := c.PostForm("username")
	secretKey := c.PostForm("secretKey")

	if !s.rateLimiter.Allow(teamname) {
		log.Printf("[RATE_LIMIT] Team %s exceeded submission rate limit", teamname)
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	filename, data := s.readUpload(c)

	receipt, err := s.producer.Submit(c.Request.Context(), producer.SubmitRequest{
		Filename:  filename,
		Data:      data,
		Teamname:  teamname,
		SecretKey: secretKey,
		Source:    models.SourceDirect,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

// SubmitViaToken handles submissions authenticated against the third-party
// identity service instead of the shared secret key.
func (s *Server) SubmitViaToken(c *gin.Context) {
	if !s.cfg.TokenSubmitEnabled {
		c.String(http.StatusServiceUnavailable, "Token submission is disabled")
		return
	}

	token := c.GetHeader("X-Bearer-Token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
		return
	}

	var claimed auth.Identity
	if info := c.GetHeader("X-User-Info"); info != "" {
		if err := json.Unmarshal([]byte(info), &claimed); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user info"})
			return
		}
	}

	if err := s.verifier.Verify(c.Request.Context(), token, claimed); err != nil {
		s.writeError(c, err)
		return
	}

	if !s.rateLimiter.Allow(claimed.Username) {
		log.Printf("[RATE_LIMIT] User %s exceeded submission rate limit", claimed.Username)
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	filename, data := s.readUpload(c)

	receipt, err := s.producer.SubmitVerified(c.Request.Context(), producer.SubmitRequest{
		Filename: filename,
		Data:     data,
		Teamname: claimed.Username,
		Source:   models.SourceToken,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

// GetConfig returns the worker configuration fields.
func (s *Server) GetConfig(c *gin.Context) {
	wc, err := s.configStore.Get(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"css_string": wc.CSSString,
		"quotes":     wc.Quotes,
	})
}

// SetConfig updates the worker configuration fields.
func (s *Server) SetConfig(c *gin.Context) {
	if err := s.keys.Check(c.PostForm("secretKey")); err != nil {
		s.writeError(c, err)
		return
	}

	cssString := c.PostForm("css_string")
	quotesString := c.PostForm("quotes")

	if err := s.configStore.Set(c.Request.Context(), cssString, quotesString); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Configuration updated successfully",
		"css_string": cssString,
		"quotes":     quotesString,
	})
}

// ResetConfig clears the worker configuration fields.
func (s *Server) ResetConfig(c *gin.Context) {
	if err := s.keys.Check(c.PostForm("secretKey")); err != nil {
		s.writeError(c, err)
		return
	}

	if err := s.configStore.Reset(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reset successfully",
	})
}

// readUpload pulls the multipart file out of the request. A missing or
// unreadable file yields empty data; the producer rejects it in order.
func (s *Server) readUpload(c *gin.Context) (string, []byte) {
	header, err := c.FormFile("file")
	if err != nil {
		return "", nil
	}

	f, err := header.Open()
	if err != nil {
		return header.Filename, nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return header.Filename, nil
	}
	return header.Filename, data
}

// writeError maps an error kind onto its HTTP status and body.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Status != 0 {
		status = ae.Status
	} else {
		switch {
		case errors.Is(err, apperr.ErrAuthorization):
			status = http.StatusUnauthorized
		case errors.Is(err, apperr.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperr.ErrUpstream), errors.Is(err, apperr.ErrQueue):
			status = http.StatusInternalServerError
		}
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
