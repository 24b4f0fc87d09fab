package provider

import (
	"time"

	"github.com/lumen-shop/internal/cache"
	"github.com/lumen-shop/internal/config"
	"github.com/lumen-shop/internal/exchange"
	"github.com/lumen-shop/internal/logger"
	"github.com/lumen-shop/internal/models"
	"github.com/lumen-shop/internal/payment"
	"github.com/lumen-shop/internal/payment/cardpay"
	"github.com/lumen-shop/internal/queue"
	"github.com/lumen-shop/internal/repository"
	"github.com/lumen-shop/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	UserRepo     repository.UserRepository
	CategoryRepo repository.CategoryRepository
	ProductRepo  repository.ProductRepository
	CartRepo     repository.CartRepository
	PaymentRepo  repository.PaymentRepository

	// Services
	UserService         *service.UserService
	ProductService      *service.ProductService
	CartService         *service.CartService
	InventoryService    *service.InventoryService
	CurrencyService     *service.CurrencyService
	CheckoutService     *service.CheckoutService
	NotificationService *service.NotificationService

	// Gateway
	PaymentGateway payment.Gateway
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.CategoryRepo = repository.NewCategoryRepository(db)
	c.ProductRepo = repository.NewProductRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
}

func (c *Container) initServices() {
	jwtTTL := time.Duration(c.Config.JWT.ExpireHours) * time.Hour
	c.UserService = service.NewUserService(c.UserRepo, c.Config.JWT.SecretKey, jwtTTL)
	c.ProductService = service.NewProductService(c.ProductRepo, c.CategoryRepo)
	c.CartService = service.NewCartService(c.CartRepo, c.ProductRepo, c.PaymentRepo, c.Config.Checkout.BaseCurrency)
	c.InventoryService = service.NewInventoryService(c.ProductRepo)

	rateClient, err := exchange.NewClient(c.Config.Exchange.Endpoint, time.Duration(c.Config.Exchange.TimeoutMS)*time.Millisecond)
	if err != nil {
		logger.Errorw("provider_init_exchange_failed", "error", err)
		panic(err)
	}
	c.CurrencyService = service.NewCurrencyService(rateClient, time.Duration(c.Config.Exchange.CacheTTLSeconds)*time.Second)

	gateway, err := cardpay.New(cardpay.Config{
		Endpoint: c.Config.Gateway.Endpoint,
		APIKey:   c.Config.Gateway.APIKey,
		Timeout:  time.Duration(c.Config.Gateway.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Errorw("provider_init_gateway_failed", "error", err)
		panic(err)
	}
	c.PaymentGateway = gateway

	c.CheckoutService = service.NewCheckoutService(
		c.UserService,
		c.CartService,
		c.InventoryService,
		c.PaymentGateway,
		c.QueueClient,
		c.Config.Checkout.LowStockThreshold,
	)
	c.NotificationService = service.NewNotificationService(c.UserRepo, c.UserService, c.Config.Checkout.AdminUserIDs)
}
