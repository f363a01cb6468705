package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/njaeplume/plume/internal/auth/domain"
	"github.com/njaeplume/plume/internal/auth/session"
	"github.com/njaeplume/plume/internal/authorization"
	catalogdomain "github.com/njaeplume/plume/internal/catalog/domain"
	checkoutdomain "github.com/njaeplume/plume/internal/checkout/domain"
	"github.com/njaeplume/plume/internal/config"
	downloaddomain "github.com/njaeplume/plume/internal/download/domain"
	identitydomain "github.com/njaeplume/plume/internal/identity/domain"
	notificationdomain "github.com/njaeplume/plume/internal/notification/domain"
	"github.com/njaeplume/plume/internal/observability"
	obslogger "github.com/njaeplume/plume/internal/observability/logger"
	obsmetrics "github.com/njaeplume/plume/internal/observability/metrics"
	obstracing "github.com/njaeplume/plume/internal/observability/tracing"
	orderdomain "github.com/njaeplume/plume/internal/order/domain"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	"github.com/njaeplume/plume/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// NewEngine builds the gin engine with the shared middleware chain.
func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if httpMetrics != nil {
		r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))
	}
	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	sessions        *session.Manager
	verifier        authdomain.Verifier
	authzSvc        authorization.Service
	identitySvc     identitydomain.Service
	catalogSvc      catalogdomain.Service
	checkoutSvc     checkoutdomain.Service
	paymentSvc      paymentdomain.Service
	orderSvc        orderdomain.Service
	downloadSvc     downloaddomain.Service
	notificationSvc notificationdomain.Service
	downloadLimiter *ratelimit.DownloadLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Sessions        *session.Manager
	Verifier        authdomain.Verifier
	AuthzSvc        authorization.Service
	IdentitySvc     identitydomain.Service
	CatalogSvc      catalogdomain.Service
	CheckoutSvc     checkoutdomain.Service
	PaymentSvc      paymentdomain.Service
	OrderSvc        orderdomain.Service
	DownloadSvc     downloaddomain.Service
	NotificationSvc notificationdomain.Service
	DownloadLimiter *ratelimit.DownloadLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		sessions:        p.Sessions,
		verifier:        p.Verifier,
		authzSvc:        p.AuthzSvc,
		identitySvc:     p.IdentitySvc,
		catalogSvc:      p.CatalogSvc,
		checkoutSvc:     p.CheckoutSvc,
		paymentSvc:      p.PaymentSvc,
		orderSvc:        p.OrderSvc,
		downloadSvc:     p.DownloadSvc,
		notificationSvc: p.NotificationSvc,
		downloadLimiter: p.DownloadLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerPublicRoutes()
	svc.registerAccountRoutes()
	svc.registerCastleRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	api := s.engine.Group("/api")

	api.GET("/products", s.ListProducts)
	api.GET("/products/:slug", s.GetProductBySlug)
	api.POST("/contact", s.SubmitContact)

	api.POST("/checkout", s.AuthRequired(), s.CreateCheckoutSession)

	// Provider webhooks authenticate by signature, never by session.
	api.POST("/webhooks/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerAccountRoutes() {
	account := s.engine.Group("/api/account", s.AuthRequired())

	account.GET("/orders", s.ListAccountOrders)
	account.POST("/downloads/:itemId", s.DownloadRateLimit(), s.RequestDownload)
}

func (s *Server) registerCastleRoutes() {
	castle := s.engine.Group("/api/castle", s.AuthRequired())

	castle.GET("/orders", s.authorizeCastleAction(authorization.ObjectOrder, authorization.ActionOrderView), s.ListCastleOrders)
	castle.GET("/orders/:displayId", s.authorizeCastleAction(authorization.ObjectOrder, authorization.ActionOrderView), s.GetCastleOrder)
	castle.POST("/products", s.authorizeCastleAction(authorization.ObjectProduct, authorization.ActionProductCreate), s.CreateProduct)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
