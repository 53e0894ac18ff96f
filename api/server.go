// Package api provides the HTTP REST surface of the Dirigo identity console
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/dirigo-idm/dirigo/pkg/config"
	"github.com/dirigo-idm/dirigo/pkg/interfaces"
	"github.com/dirigo-idm/dirigo/pkg/operators"
)

// Server represents the API server instance
type Server struct {
	core      interfaces.IdentityCore
	operators *operators.Manager
	config    *config.CoreConfig
	logger    interfaces.Logger
	router    *gin.Engine
	server    *http.Server
	startTime time.Time
}

// NewServer creates a new API server instance
func NewServer(identityCore interfaces.IdentityCore, operatorManager *operators.Manager, cfg *config.CoreConfig, logger interfaces.Logger) *Server {
	if cfg.LogLevel == "error" || cfg.LogLevel == "warn" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	s := &Server{
		core:      identityCore,
		operators: operatorManager,
		config:    cfg,
		logger:    logger,
		router:    router,
		startTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Router returns the underlying gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	if s.config.API != nil && s.config.API.CORSEnabled {
		corsConfig := cors.DefaultConfig()
		if len(s.config.API.CORSOrigins) > 0 {
			corsConfig.AllowOrigins = s.config.API.CORSOrigins
			corsConfig.AllowAllOrigins = len(s.config.API.CORSOrigins) == 1 && s.config.API.CORSOrigins[0] == "*"
			if corsConfig.AllowAllOrigins {
				corsConfig.AllowOrigins = nil
			}
		}
		corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
		s.router.Use(cors.New(corsConfig))
	}

	s.router.Use(s.requestIDMiddleware())
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", s.getMetrics)
	s.router.GET("/openapi.json", s.getOpenAPISpec)

	auth := s.router.Group("/auth")
	{
		auth.POST("/login", s.login)
		auth.POST("/refresh", s.refreshToken)
		auth.POST("/logout", s.authMiddleware(), s.logout)
	}

	accounts := s.router.Group("/accounts", s.authMiddleware())
	{
		accounts.POST("", s.requirePermission("accounts", "create"), s.activateAccount)
		accounts.GET("/:uid", s.requirePermission("accounts", "read"), s.getAccount)
		accounts.GET("/:uid/status", s.requirePermission("accounts", "read"), s.getAccountStatus)
		accounts.PATCH("/:uid", s.requirePermission("accounts", "update"), s.updateAccount)
		accounts.DELETE("/:uid", s.requirePermission("accounts", "delete"), s.deactivateAccount)
		accounts.PUT("/:uid/trust", s.requirePermission("trust", "update"), s.setUserTrust)
	}

	groups := s.router.Group("/groups", s.authMiddleware())
	{
		groups.POST("", s.requirePermission("groups", "create"), s.createGroup)
		groups.GET("/:cn", s.requirePermission("groups", "read"), s.getGroup)
		groups.DELETE("/:cn", s.requirePermission("groups", "delete"), s.deleteGroup)
		groups.PUT("/:cn/trust", s.requirePermission("trust", "update"), s.setGroupTrust)
		groups.PUT("/:cn/members/:uid", s.requirePermission("groups", "update"), s.addGroupMember)
		groups.DELETE("/:cn/members/:uid", s.requirePermission("groups", "update"), s.removeGroupMember)
	}
}

// Start starts the API server and blocks until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	host := "localhost"
	port := 8080
	readTimeout := 15 * time.Second
	if s.config.API != nil {
		host = s.config.API.Host
		port = s.config.API.Port
		if s.config.API.Timeout > 0 {
			readTimeout = s.config.API.Timeout
		}
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: readTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", map[string]interface{}{
		"addr": s.server.Addr,
		"mode": gin.Mode(),
	})

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.API != nil && s.config.API.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.API.TLSCert, s.config.API.TLSKey)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop gracefully stops the API server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
