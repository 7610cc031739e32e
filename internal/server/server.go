// Package server is the reference remote store: a small gin API that keeps
// one budget per (user, month) and overwrites it wholesale on sync.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/theirongolddev/budgetbox/internal/model"
)

const userIDKey = "userID"

// Config controls the server.
type Config struct {
	Addr           string
	AllowedOrigins []string
	Logger         *slog.Logger
	Now            func() time.Time
}

// Server serves the remote store API.
type Server struct {
	cfg    Config
	repo   *Repo
	tokens *Tokens
	log    *slog.Logger
	now    func() time.Time
}

// New returns a server over repo issuing tokens with tokens.
func New(cfg Config, repo *Repo, tokens *Tokens) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":5000"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{cfg: cfg, repo: repo, tokens: tokens, log: cfg.Logger, now: cfg.Now}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())

	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/auth/login", s.handleLogin)
		api.POST("/auth/register", s.handleRegister)

		protected := api.Group("/budget")
		protected.Use(s.requireAuth())
		{
			protected.GET("/latest", s.handleLatest)
			protected.POST("/sync", s.handleSync)
		}
	}
	return router
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("remote store listening", "addr", s.cfg.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("remote store http server: %w", err)
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "No token provided"})
			return
		}
		userID, err := s.tokens.Verify(token, s.now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userJSON struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "timestamp": s.now().UTC().Format(time.RFC3339Nano)})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}

	user, err := s.repo.UserByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if errors.Is(err, ErrUserNotFound) || (err == nil && !CheckPassword(req.Password, user.PasswordHash)) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}
	if err != nil {
		s.log.Error("login lookup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	s.issue(c, http.StatusOK, user)
}

func (s *Server) handleRegister(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}
	if len(req.Password) < MinPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
		})
		return
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		s.log.Error("hashing password failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	user, err := s.repo.CreateUser(c.Request.Context(), strings.TrimSpace(req.Email), hash, s.now())
	if errors.Is(err, ErrEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"message": "Email already registered"})
		return
	}
	if err != nil {
		s.log.Error("creating user failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	s.issue(c, http.StatusCreated, user)
}

func (s *Server) issue(c *gin.Context, status int, user User) {
	token, err := s.tokens.Issue(user.ID, user.Email, s.now())
	if err != nil {
		s.log.Error("issuing token failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(status, gin.H{
		"token": token,
		"user":  userJSON{ID: user.ID, Email: user.Email},
	})
}

func (s *Server) handleLatest(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		month = model.MonthOf(s.now())
	}
	if _, err := time.Parse(model.MonthLayout, month); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "month must be YYYY-MM"})
		return
	}

	b, err := s.repo.BudgetFor(c.Request.Context(), c.GetString(userIDKey), month, s.now())
	if err != nil {
		s.log.Error("get budget failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleSync(c *gin.Context) {
	var b model.Budget
	if err := c.ShouldBindJSON(&b); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid budget payload"})
		return
	}
	if b.Month == "" {
		b.Month = model.MonthOf(s.now())
	}
	if err := b.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	now := s.now()
	stored, err := s.repo.UpsertBudget(c.Request.Context(), c.GetString(userIDKey), b, now)
	if err != nil {
		s.log.Error("sync budget failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}
	c.JSON(http.StatusOK, model.UpsertResult{
		Success:   true,
		Timestamp: now.UTC(),
		Budget:    stored,
	})
}
