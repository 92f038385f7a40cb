package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/erinfolamirukayat/theweddingplace/internal/config"
	"github.com/erinfolamirukayat/theweddingplace/internal/contribution"
	contributiondomain "github.com/erinfolamirukayat/theweddingplace/internal/contribution/domain"
	"github.com/erinfolamirukayat/theweddingplace/internal/gateway"
	"github.com/erinfolamirukayat/theweddingplace/internal/observability"
	obsmiddleware "github.com/erinfolamirukayat/theweddingplace/internal/observability/logger"
	obsmetrics "github.com/erinfolamirukayat/theweddingplace/internal/observability/metrics"
	obstracing "github.com/erinfolamirukayat/theweddingplace/internal/observability/tracing"
	"github.com/erinfolamirukayat/theweddingplace/internal/product"
	productdomain "github.com/erinfolamirukayat/theweddingplace/internal/product/domain"
	"github.com/erinfolamirukayat/theweddingplace/internal/ratelimit"
	"github.com/erinfolamirukayat/theweddingplace/internal/registry"
	registrydomain "github.com/erinfolamirukayat/theweddingplace/internal/registry/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	product.Module,
	registry.Module,
	gateway.Module,
	contribution.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
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
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	productSvc      productdomain.Service
	registrySvc     registrydomain.Service
	contributionSvc contributiondomain.Service
	paymentLimiter  *ratelimit.PaymentLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	ProductSvc      productdomain.Service
	RegistrySvc     registrydomain.Service
	ContributionSvc contributiondomain.Service
	PaymentLimiter  *ratelimit.PaymentLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics       `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		productSvc:      p.ProductSvc,
		registrySvc:     p.RegistrySvc,
		contributionSvc: p.ContributionSvc,
		paymentLimiter:  p.PaymentLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Products --------
	api.GET("/products", s.ListProducts)
	api.POST("/products", s.CreateProduct)
	api.GET("/products/:id", s.GetProductByID)
	api.PATCH("/products/:id", s.UpdateProduct)
	api.DELETE("/products/:id", s.DeleteProduct)

	// -------- Registries --------
	api.POST("/registries", s.CreateRegistry)
	api.GET("/registries/:id", s.GetRegistryByID)
	api.PATCH("/registries/:id", s.UpdateRegistry)
	api.DELETE("/registries/:id", s.DeleteRegistry)
	api.GET("/share/:shareUrl", s.GetRegistryByShareURL)

	api.GET("/registries/:id/items", s.ListRegistryItems)
	api.POST("/registries/:id/items", s.AddRegistryItem)
	api.DELETE("/registries/:id/items/:itemId", s.RemoveRegistryItem)
	api.GET("/registry-items/:id", s.GetRegistryItem)

	api.GET("/registries/:id/pictures", s.ListRegistryPictures)
	api.POST("/registries/:id/pictures", s.AddRegistryPicture)
	api.DELETE("/registries/:id/pictures/:pictureId", s.RemoveRegistryPicture)

	// -------- Contributions & Payments --------
	api.POST("/contributions", s.PaymentInitiateRateLimit(), s.InitiateContribution)
	api.GET("/contributions/item/:registryItemId", s.ListContributions)

	api.POST("/payments/initiate", s.PaymentInitiateRateLimit(), s.InitiateContribution)
	api.GET("/payments/verify", s.PaymentVerifyRateLimit(), s.VerifyPayment)
	api.POST("/payments/webhook", s.HandlePaymentWebhook)
	api.GET("/payments/history/:registryItemId", s.ListContributions)
}
