// Package server exposes the REST API: device registry, reading ingestion,
// order and payment management, and administrative sweep triggers.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gridora/gridora/internal/config"
	devicedomain "github.com/gridora/gridora/internal/device/domain"
	obslogger "github.com/gridora/gridora/internal/observability/logger"
	obsmetrics "github.com/gridora/gridora/internal/observability/metrics"
	orderdomain "github.com/gridora/gridora/internal/order/domain"
	paymentdomain "github.com/gridora/gridora/internal/payment/domain"
	"github.com/gridora/gridora/internal/ratelimit"
	"github.com/gridora/gridora/internal/scheduler"
	telemetrydomain "github.com/gridora/gridora/internal/telemetry/domain"
	"github.com/gridora/gridora/pkg/apperr"
	"github.com/gridora/gridora/pkg/tenantctx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(register),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger, metrics *obsmetrics.Metrics) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(obslogger.GinMiddleware(log))
	engine.Use(obsmetrics.GinMiddleware(metrics))
	engine.Use(ErrorHandlingMiddleware())
	return engine
}

func run(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	deviceSvc     devicedomain.Service
	telemetrySvc  telemetrydomain.Service
	orderSvc      orderdomain.Service
	paymentSvc    paymentdomain.Service
	scheduler     *scheduler.Scheduler
	ingestLimiter *ratelimit.IngestLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	DeviceSvc     devicedomain.Service
	TelemetrySvc  telemetrydomain.Service
	OrderSvc      orderdomain.Service
	PaymentSvc    paymentdomain.Service
	Scheduler     *scheduler.Scheduler     `optional:"true"`
	IngestLimiter *ratelimit.IngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		deviceSvc:     p.DeviceSvc,
		telemetrySvc:  p.TelemetrySvc,
		orderSvc:      p.OrderSvc,
		paymentSvc:    p.PaymentSvc,
		scheduler:     p.Scheduler,
		ingestLimiter: p.IngestLimiter,
	}
}

func register(s *Server) {
	s.RegisterRoutes()
}

// Engine returns the underlying gin engine, used by tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1", TenantMiddleware())
	{
		v1.POST("/devices", s.registerDevice)
		v1.GET("/devices", s.listDevices)
		v1.GET("/devices/:id", s.getDevice)
		v1.PATCH("/devices/:id", s.updateDevice)
		v1.DELETE("/devices/:id", s.deleteDevice)
		v1.POST("/devices/:id/restore", s.restoreDevice)

		v1.POST("/readings", s.ingestLimit(), s.ingestReading)
		v1.POST("/readings/bulk", s.ingestLimit(), s.ingestReadingBatch)
		v1.GET("/readings", s.listReadings)
		v1.GET("/aggregates", s.listAggregates)

		v1.POST("/orders", s.createOrder)
		v1.GET("/orders", s.listOrders)
		v1.GET("/orders/:id", s.getOrder)
		v1.PATCH("/orders/:id", s.updateOrder)
		v1.POST("/orders/:id/cancel", s.cancelOrder)
		v1.DELETE("/orders/:id", s.deleteOrder)
		v1.POST("/orders/:id/restore", s.restoreOrder)
		v1.GET("/orders/:id/items", s.listOrderItems)

		v1.POST("/orders/:id/payment", s.createPayment)
		v1.GET("/orders/:id/payment", s.getPayment)
	}

	admin := s.engine.Group("/admin")
	{
		admin.POST("/sweeps/aggregate", s.triggerAggregation)
		admin.POST("/sweeps/cleanup", s.triggerCleanup)
		admin.POST("/sweeps/process-orders", s.triggerProcessOrders)
		admin.POST("/sweeps/retry-payments", s.triggerRetryPayments)
	}
}

func (s *Server) health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"app":     s.cfg.AppName,
		"version": s.cfg.AppVersion,
	})
}

var errIngestRateLimited = apperr.RateLimited("ingest_rate_limited")

// ingestLimit throttles the ingestion endpoints per tenant. With no redis
// configured the limiter is nil and everything passes.
func (s *Server) ingestLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.ingestLimiter.Enabled() {
			c.Next()
			return
		}
		tenantID, ok := tenantctx.TenantID(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		res, err := s.ingestLimiter.AllowTenant(c.Request.Context(), tenantID)
		if err != nil {
			// Redis being down must not block ingestion.
			c.Next()
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", res.RetryAfter.Round(time.Second).String())
			AbortWithError(c, errIngestRateLimited)
			return
		}
		c.Next()
	}
}
