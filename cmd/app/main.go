package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jwtware "github.com/gofiber/jwt/v2"

	"github.com/wichananm65/perfume-shop-backend/internal/admin"
	"github.com/wichananm65/perfume-shop-backend/internal/cart"
	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
	"github.com/wichananm65/perfume-shop-backend/internal/category"
	"github.com/wichananm65/perfume-shop-backend/internal/checkout"
	"github.com/wichananm65/perfume-shop-backend/internal/config"
	"github.com/wichananm65/perfume-shop-backend/internal/database"
	"github.com/wichananm65/perfume-shop-backend/internal/events"
	"github.com/wichananm65/perfume-shop-backend/internal/media"
	"github.com/wichananm65/perfume-shop-backend/internal/notify"
	"github.com/wichananm65/perfume-shop-backend/internal/order"
	"github.com/wichananm65/perfume-shop-backend/internal/payment"
	"github.com/wichananm65/perfume-shop-backend/internal/search"
	"github.com/wichananm65/perfume-shop-backend/internal/user"
)

const (
	cartIdleTTL    = 24 * time.Hour
	sessionIdleTTL = 2 * time.Hour
	janitorEvery   = 10 * time.Minute
	alertTimeout   = 10 * time.Second
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg)
	slog.SetDefault(log)

	if cfg.JWTSecret == "" {
		if cfg.Production() {
			log.Error("JWT_SECRET is required in production")
			os.Exit(1)
		}
		cfg.JWTSecret = "dev-only-secret"
		log.Warn("JWT_SECRET not set, using an insecure development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()
		if err := database.EnsureSchema(ctx, db); err != nil {
			log.Error("apply schema", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		log.Warn("DATABASE_URL not set, data is kept in memory only")
	}
	st := newStores(db)

	categoryService := category.NewService(st.categories)
	catalogService := catalog.NewService(st.items)
	catalogService.UseCategories(categoryService)
	if err := categoryService.SeedDefaults(ctx); err != nil {
		log.Warn("seed categories", slog.Any("error", err))
	}
	cartService := cart.NewService(cart.NewInMemoryRepository(), catalogService)
	orderService := order.NewService(st.orders)
	userService := user.NewService(st.users)

	bus := events.NewBus(log)
	notifier := newNotifier(cfg, log)
	notify.Subscribe(bus, newAlerter(cfg, notifier, log), alertTimeout, log)
	events.Subscribe(bus, "audit.order_placed", func(ctx context.Context, ev events.OrderPlaced) error {
		log.InfoContext(ctx, "order placed",
			slog.String("order_id", ev.OrderID),
			slog.String("payment_method", ev.PaymentMethod),
			slog.String("transaction_ref", ev.TransactionRef),
			slog.String("total", ev.Total.String()),
			slog.Int("lines", len(ev.Items)))
		return nil
	})

	orchestrator := checkout.NewOrchestrator(cartService, catalogService, orderService, newGateway(cfg, log),
		notifier, bus, st.ledger, checkout.Options{
			Shipping:          cfg.ShippingFee,
			LowStockThreshold: cfg.LowStockThreshold,
			Currency:          cfg.Currency,
			Logger:            log,
		})

	app := fiber.New(fiber.Config{
		AppName:      "perfume-shop",
		BodyLimit:    20 * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())
	app.Use(requestLogger(log))
	setupCORS(app, cfg.CORSOrigins)

	app.Get("/health", func(c *fiber.Ctx) error {
		if db != nil {
			if err := db.PingContext(c.UserContext()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	userHandler := user.NewHandler(userService, cfg.JWTSecret)
	adminHandler := admin.NewHandler(admin.NewAuthenticator(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.JWTSecret), catalogService, orderService)
	catalogHandler := catalog.NewHandler(catalogService)
	orderHandler := order.NewHandler(orderService, userService)
	checkoutHandler := checkout.NewHandler(orchestrator, st.ledger)
	mediaHandler := media.NewHandler(newImageStore(ctx, cfg, log), catalogService, log)

	// specific item routes before the catalog's /items/:id
	search.NewHandler(catalogService).RegisterPublicRoutes(app)
	catalogHandler.RegisterPublicRoutes(app)
	category.NewHandler(categoryService).RegisterPublicRoutes(app)
	cart.NewHandler(cartService).RegisterPublicRoutes(app)
	checkoutHandler.RegisterPublicRoutes(app)
	userHandler.RegisterPublicRoutes(app)
	adminHandler.RegisterPublicRoutes(app)

	auth := jwtware.New(jwtware.Config{SigningKey: []byte(cfg.JWTSecret)})

	adminGroup := app.Group("/api/v1/admin", auth, admin.RequireAdmin())
	catalogHandler.RegisterAdminRoutes(adminGroup)
	mediaHandler.RegisterAdminRoutes(adminGroup)
	orderHandler.RegisterAdminRoutes(adminGroup)
	checkoutHandler.RegisterAdminRoutes(adminGroup)
	adminHandler.RegisterAdminRoutes(adminGroup)

	app.Use(auth)
	userHandler.RegisterProtectedRoutes(app)
	orderHandler.RegisterProtectedRoutes(app)

	go runJanitor(ctx, log, cartService, orchestrator)

	go func() {
		if err := app.Listen(cfg.Addr); err != nil {
			log.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()
	log.Info("listening", slog.String("addr", cfg.Addr), slog.String("env", cfg.Env))

	<-ctx.Done()
	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("shutdown", slog.Any("error", err))
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	opts.Level = slog.LevelDebug
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func setupCORS(app *fiber.App, origins string) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + cart.HeaderCartID,
	}))
}

// stores picks Postgres or in-memory repositories for every package.
type stores struct {
	items      catalog.Repository
	categories category.Repository
	orders     order.Repository
	users      user.Repository
	ledger     checkout.Ledger
}

func newStores(db *sql.DB) stores {
	if db == nil {
		return stores{
			items:      catalog.NewInMemoryRepository(nil),
			categories: category.NewInMemoryRepository(nil),
			orders:     order.NewInMemoryRepository(),
			users:      user.NewInMemoryRepository(nil),
			ledger:     checkout.NewInMemoryLedger(),
		}
	}
	return stores{
		items:      catalog.NewPostgresRepository(db),
		categories: category.NewPostgresRepository(db),
		orders:     order.NewPostgresRepository(db),
		users:      user.NewPostgresRepository(db),
		ledger:     checkout.NewPostgresLedger(db),
	}
}

func newGateway(cfg config.Config, log *slog.Logger) *payment.Router {
	router := payment.NewRouter().Handle(payment.NewManual(payment.Instructions{
		UPIID:         cfg.UPIID,
		BankName:      cfg.BankName,
		AccountName:   cfg.BankAccountName,
		AccountNumber: cfg.BankAccountNumber,
		IFSC:          cfg.BankIFSC,
	}), payment.MethodUPI, payment.MethodBank)
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		router.Handle(payment.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, payment.DefaultRazorpayURL), payment.MethodRazorpay)
	} else {
		log.Warn("razorpay keys not set, only manual UPI and bank transfer are offered")
	}
	return router
}

func newNotifier(cfg config.Config, log *slog.Logger) notify.Notifier {
	if cfg.RelayURL == "" {
		log.Warn("NOTIFY_RELAY_URL not set, notifications are logged only")
		return notify.NewLogNotifier(log)
	}
	return notify.NewRelay(cfg.RelayURL, cfg.RelayToken).WithAlertPhone(cfg.AlertPhone)
}

// newAlerter picks where low-stock alerts go. The relay needs a recipient,
// so without ALERT_PHONE the alerts are only logged.
func newAlerter(cfg config.Config, n notify.Notifier, log *slog.Logger) notify.Notifier {
	if _, ok := n.(*notify.Relay); ok && cfg.AlertPhone == "" {
		log.Warn("ALERT_PHONE not set, low-stock alerts are logged only")
		return notify.NewLogNotifier(log)
	}
	return n
}

func newImageStore(ctx context.Context, cfg config.Config, log *slog.Logger) media.Store {
	store, err := media.NewS3Store(ctx, cfg.S3Bucket, cfg.S3PublicBaseURL)
	if err != nil {
		if !errors.Is(err, media.ErrDisabled) {
			log.Error("s3 uploader", slog.Any("error", err))
		}
		return nil
	}
	return store
}

// runJanitor drops idle carts and checkout sessions until ctx is done.
func runJanitor(ctx context.Context, log *slog.Logger, carts *cart.Service, orch *checkout.Orchestrator) {
	ticker := time.NewTicker(janitorEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c := carts.PruneIdle(cartIdleTTL)
			s := orch.PruneSessions(sessionIdleTTL)
			if c > 0 || s > 0 {
				log.Debug("pruned idle state", slog.Int("carts", c), slog.Int("sessions", s))
			}
		}
	}
}
