// server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"backend/internal/logger"
	"backend/middleware"
)

type Server struct {
	router *gin.Engine
	srv    *http.Server
}

func NewServer(allowlistEnabled bool, allowlist []string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// 配置CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 来源IP白名单
	router.Use(middleware.IPAllowlist(allowlistEnabled, allowlist))

	// 使用自定义logger中间件
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		logger.Info("[%s] %s %s %v", c.Request.Method, path, c.ClientIP(), latency)
	})

	return &Server{
		router: router,
	}
}

// Router 供路由注册使用
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	logger.Info("HTTP服务启动: %s", addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
