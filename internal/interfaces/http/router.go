// Package http wires the entitlement service emulator onto a Gin engine.
package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/interfaces/http/handlers"
	"github.com/turtacn/entitle/internal/interfaces/http/middleware"
	"github.com/turtacn/entitle/pkg/constants"
	"github.com/turtacn/entitle/pkg/logger"
)

// Router HTTP 路由器
type Router struct {
	engine             *gin.Engine
	config             config.EmulatorConfig
	logger             logger.Logger
	entitlementHandler *handlers.EntitlementHandler
	healthHandler      *handlers.HealthHandler
	tracer             trace.Tracer
	registry           *prometheus.Registry

	mu     sync.Mutex
	server *http.Server
}

// NewRouter 创建路由器并注册全部路由
func NewRouter(
	cfg config.EmulatorConfig,
	log logger.Logger,
	entitlementHandler *handlers.EntitlementHandler,
	healthHandler *handlers.HealthHandler,
	tracer trace.Tracer,
	registry *prometheus.Registry,
) *Router {
	r := &Router{
		engine:             gin.New(),
		config:             cfg,
		logger:             log.WithComponent("emulator_router"),
		entitlementHandler: entitlementHandler,
		healthHandler:      healthHandler,
		tracer:             tracer,
		registry:           registry,
	}
	r.setupRoutes()
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 全局中间件
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.ObservabilityMiddleware(r.tracer, middleware.NewHTTPMetrics(r.registry)))

	// CORS 配置
	if len(r.config.CORSOrigins) > 0 {
		corsConfig := cors.Config{
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", constants.HeaderMachineID},
			ExposeHeaders: []string{"Content-Type"},
			MaxAge:        12 * time.Hour,
		}
		for _, origin := range r.config.CORSOrigins {
			if origin == "*" {
				corsConfig.AllowAllOrigins = true
			}
		}
		if !corsConfig.AllowAllOrigins {
			corsConfig.AllowOrigins = r.config.CORSOrigins
		}
		r.engine.Use(cors.New(corsConfig))
	}

	r.engine.GET("/health", r.healthHandler.Liveness)
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))

	if r.config.PprofEnabled {
		pprof.Register(r.engine)
	}

	api := r.engine.Group("/")
	api.Use(middleware.RequireBearer(r.config.AcceptedTokens, r.logger))
	{
		api.POST(constants.EntitlementAuthorizationsPath, r.entitlementHandler.Authorize)
		api.POST(constants.EntitlementAuthorizationsPath+"/:item", r.entitlementHandler.AuthorizeItem)
		api.POST(constants.EntitlementReleasesPath, r.entitlementHandler.Release)
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "The requested resource was not found",
		})
	})
}

// Engine exposes the configured engine, mainly for in-process tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Start serves on the configured listen address until Stop is called.
func (r *Router) Start() error {
	ln, err := net.Listen("tcp", r.config.ListenAddress)
	if err != nil {
		return err
	}
	return r.Serve(ln)
}

// Serve 在给定监听器上启动 HTTP 服务器
func (r *Router) Serve(ln net.Listener) error {
	server := &http.Server{
		Handler:           r.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	r.mu.Lock()
	r.server = server
	r.mu.Unlock()

	r.logger.Info(context.Background(), "Starting emulator HTTP server", logger.String("address", ln.Addr().String()))

	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop 停止 HTTP 服务器
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	server := r.server
	r.mu.Unlock()
	if server == nil {
		return nil
	}

	r.logger.Info(ctx, "Stopping emulator HTTP server")
	return server.Shutdown(ctx)
}
