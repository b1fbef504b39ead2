package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/shopfront/pkg/admin"
	"github.com/example/shopfront/pkg/auth"
	"github.com/example/shopfront/pkg/cart"
	"github.com/example/shopfront/pkg/catalog"
	"github.com/example/shopfront/pkg/checkout"
	"github.com/example/shopfront/pkg/config"
	"github.com/example/shopfront/pkg/discovery"
	"github.com/example/shopfront/pkg/repository"
	"github.com/example/shopfront/web"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services are the collaborators the HTTP layer dispatches to. Discovery is
// optional.
type Services struct {
	Store     repository.Store
	Catalog   *catalog.Service
	Cart      *cart.Service
	Checkout  *checkout.Service
	Admin     *admin.Service
	Auth      *auth.Service
	Sessions  auth.SessionStore
	Discovery *discovery.ServiceDiscovery
}

type Gateway struct {
	config *config.Config
	svc    Services
	logger *zap.Logger
	router *gin.Engine
	server *http.Server
}

func NewGateway(cfg *config.Config, logger *zap.Logger, svc Services) (*Gateway, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.MaxMultipartMemory = cfg.Upload.MaxBytes

	tmpl, err := web.Templates(cfg.Server.TemplateDir, web.Funcs(cfg.Upload.URLPrefix))
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(tmpl)

	return &Gateway{
		config: cfg,
		svc:    svc,
		logger: logger,
		router: router,
	}, nil
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", g.health)

	g.router.StaticFS("/static", http.FS(web.Static()))
	if prefix := strings.Trim(g.config.Upload.URLPrefix, "/"); prefix != "" {
		g.router.Static("/"+prefix, g.config.Upload.Dir)
	}

	site := g.router.Group("/", g.sessionMiddleware())
	{
		site.GET("/", g.index)
		site.GET("/products", g.products)
		site.GET("/product/:id", g.productDetail)
		site.GET("/login", g.loginPage)
		site.POST("/login", g.login)
		site.GET("/register", g.registerPage)
		site.POST("/register", g.register)
	}

	shopper := site.Group("", g.requireUser())
	{
		shopper.GET("/logout", g.logout)
		shopper.GET("/cart", g.cart)
		shopper.POST("/add_to_cart", g.addToCart)
		shopper.POST("/update_cart", g.updateCart)
		shopper.GET("/checkout", g.checkoutPage)
		shopper.POST("/checkout", g.checkout)
		shopper.GET("/orders", g.orders)
		shopper.GET("/order/:id", g.orderDetail)
	}

	adm := site.Group("/admin", g.requireUser(), g.requireAdmin(false))
	{
		adm.GET("", g.adminDashboard)
		adm.GET("/products", g.adminProducts)
		adm.POST("/products", g.adminCreateProduct)
		adm.GET("/product/edit/:id", g.adminEditProductPage)
		adm.POST("/product/edit/:id", g.adminEditProduct)
		adm.POST("/product/delete/:id", g.adminDeleteProduct)
		adm.GET("/orders", g.adminOrders)
		adm.GET("/order/:id", g.adminOrderDetail)
		adm.GET("/categories", g.adminCategories)
		adm.POST("/category/delete/:id", g.adminDeleteCategory)
		adm.GET("/stats", g.adminStats)
	}

	// Endpoints called from page scripts reply with JSON.
	admJSON := site.Group("/admin", g.requireUser(), g.requireAdmin(true))
	{
		admJSON.POST("/order/update_status", g.adminUpdateStatus)
		admJSON.POST("/category/add", g.adminAddCategory)
		admJSON.POST("/category/edit/:id", g.adminEditCategory)
	}

	g.router.NoRoute(g.sessionMiddleware(), func(c *gin.Context) {
		g.render(c, http.StatusNotFound, "error.html", gin.H{
			"Title":   "Not found",
			"Status":  http.StatusNotFound,
			"Message": "The page you requested does not exist.",
		})
	})
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.config.Server.Addr()
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("Gateway shutting down")
	return g.server.Shutdown(ctx)
}

func (g *Gateway) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := g.svc.Store.Ping(ctx); err != nil {
		g.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}

	resp := gin.H{"status": "ok"}
	if g.svc.Discovery != nil {
		instances, err := g.svc.Discovery.Discover(ctx, g.config.Server.Name)
		if err != nil {
			g.logger.Warn("Failed to discover instances", zap.Error(err))
		} else {
			resp["instances"] = len(instances)
		}
	}
	c.JSON(http.StatusOK, resp)
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
