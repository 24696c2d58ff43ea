package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"

	"github.com/SentimentalK/Avalon-Tunnel/internal/audit"
	"github.com/SentimentalK/Avalon-Tunnel/internal/config"
	"github.com/SentimentalK/Avalon-Tunnel/internal/decoy"
	"github.com/SentimentalK/Avalon-Tunnel/internal/devicelog"
	"github.com/SentimentalK/Avalon-Tunnel/internal/handlers/api"
	"github.com/SentimentalK/Avalon-Tunnel/internal/middlewares"
	"github.com/SentimentalK/Avalon-Tunnel/internal/registry"
	"github.com/SentimentalK/Avalon-Tunnel/internal/settings"
	"github.com/SentimentalK/Avalon-Tunnel/internal/synth"
	"github.com/SentimentalK/Avalon-Tunnel/model"
	"github.com/SentimentalK/Avalon-Tunnel/params"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/memory/v2"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "avalond - tunnel identity registry, config synthesizer and decoy traffic engine"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:   "links",
			Usage:  "Print the import link of every enabled user",
			Action: printLinks,
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.SQLiteConfig) *gorm.DB {
	dsn := dbConfig.Path + "?_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to open database", "path", dbConfig.Path, "error", err)
		os.Exit(1)
	}

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	return db
}

func mustInitRestartHook(script string) synth.RestartFunc {
	if script == "" {
		return func(ctx context.Context) error {
			slog.Debug("No restart script configured, skipping tunnel daemon restart")
			return nil
		}
	}
	return func(ctx context.Context) error {
		out, err := exec.CommandContext(ctx, "bash", script).CombinedOutput()
		if err != nil {
			return fmt.Errorf("restart script failed: %w: %s", err, out)
		}
		return nil
	}
}

// mustPortFromAddr extracts the port of a listen address for use as a
// reverse proxy upstream.
func mustPortFromAddr(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		slog.Error("Invalid listen address", "addr", addr, "error", err)
		os.Exit(1)
	}
	return port
}

// bootstrap provisions a fresh deployment: a default user and the ingress
// port base, guarded by the initialized marker so it runs exactly once.
func bootstrap(ctx context.Context, cfg *config.Config, reg *registry.Registry, store *settings.Store) error {
	initialized, err := store.Get(ctx, params.SettingInitialized)
	if err != nil {
		return err
	}
	if initialized == "1" {
		return nil
	}

	slog.Info("First deployment detected, initializing system")
	if err := store.Set(ctx, params.SettingIngressPortBase,
		fmt.Sprintf("%d", cfg.Ingress.PortBase), "first tunnel listener port"); err != nil {
		return err
	}
	user, err := reg.Create(ctx, registry.CreateUserOptions{
		Email: "default@" + cfg.Domain,
		Notes: "system default user (created on first deployment)",
	})
	if err != nil {
		return err
	}
	slog.Info("Created default user", "email", user.Email, "uuid", user.UUID)

	return store.Set(ctx, params.SettingInitialized, "1", "system initialization marker")
}

func setupAPIRoutes(
	router fiber.Router,
	apiSecret string,
	userHandler *api.UserHandler,
	deviceHandler *api.DeviceHandler,
	configHandler *api.ConfigHandler,
	auditHandler *api.AuditHandler) {

	group := router.Group("/api")
	group.Get("/health", configHandler.GetHealth)

	group.Use(middlewares.BearerAuth(apiSecret))
	group.Post("/users", userHandler.PostUser)
	group.Get("/users", userHandler.GetUsers)
	group.Get("/users/:uuid", userHandler.GetUser)
	group.Put("/users/:uuid", userHandler.PutUser)
	group.Delete("/users/:uuid", userHandler.DeleteUser)
	group.Post("/config/reload", configHandler.PostReload)
	group.Get("/devices", deviceHandler.GetDevices)
	group.Post("/devices/record", deviceHandler.PostRecordDevice)
	group.Get("/users/:uuid/devices", deviceHandler.GetUserDevices)
	group.Get("/audit", auditHandler.GetAuditLog)
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(cfg.SQLite)

	// repositories
	var (
		userRepo    = registry.NewUserRepository(db)
		settingRepo = settings.NewSettingRepository(db)
		deviceRepo  = devicelog.NewDeviceLogRepository(db)
		auditRepo   = audit.NewAuditLogRepository(db)
	)
	audit.Initialize(auditRepo)

	// services
	var (
		settingStore  = settings.NewStore(settingRepo)
		userRegistry  = registry.NewRegistry(db, userRepo)
		deviceService = devicelog.NewService(deviceRepo)
		synthesizer   = synth.NewSynthesizer(userRegistry, settingStore, mustInitRestartHook(cfg.Ingress.RestartScript), synth.Options{
			Domain:     cfg.Domain,
			PortBase:   cfg.Ingress.PortBase,
			ConfigFile: cfg.Ingress.ConfigFile,
			RoutesFile: cfg.Ingress.RoutesFile,
			AdminPort:  mustPortFromAddr(cfg.ListenAddr),
			DecoyPort:  mustPortFromAddr(cfg.Decoy.ListenAddr),
		})
	)

	if err := bootstrap(ctx.Context, cfg, userRegistry, settingStore); err != nil {
		slog.Error("System initialization failed", "error", err)
		return err
	}
	if result, err := synthesizer.Synthesize(ctx.Context); err != nil {
		slog.Warn("Initial config synthesis failed", "error", err)
	} else {
		slog.Info("Initial config synthesis done", "users", result.UserCount, "success", result.Success)
	}

	// handlers
	var (
		userHandler   = api.NewUserHandler(userRegistry, cfg.Domain)
		deviceHandler = api.NewDeviceHandler(userRegistry, deviceService)
		configHandler = api.NewConfigHandler(synthesizer)
		auditHandler  = api.NewAuditHandler(auditRepo)
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New())
	router.Use(limiter.New(limiter.Config{
		Max:        params.AdminRateLimitMax,
		Expiration: params.AdminRateLimitWindow,
		Storage:    memory.New(),
	}))
	setupAPIRoutes(router, cfg.APISecret, userHandler, deviceHandler, configHandler, auditHandler)

	decoyHandler, err := decoy.NewHandler(decoy.Config{
		RootDocument: cfg.Decoy.RootDocument,
		DisguisePath: cfg.Decoy.DisguisePath,
		MediaFile:    cfg.Decoy.MediaFile,
		CorpusFile:   cfg.Decoy.CorpusFile,
		MinInterval:  cfg.Decoy.MinInterval,
		MaxInterval:  cfg.Decoy.MaxInterval,
		KeepAlive:    cfg.Decoy.KeepAlive,
		MaxStreams:   cfg.Decoy.MaxStreams,
	})
	if err != nil {
		slog.Error("Failed to initialize decoy engine", "error", err)
		return err
	}

	// Event streams stay open indefinitely; the decoy app must not enforce a
	// write deadline.
	decoyApp := fiber.New(fiber.Config{
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		ReadTimeout:   params.ServerReadTimeout,
		ErrorHandler:  decoy.ErrorHandler,
	})
	decoyApp.Use(recover.New())
	decoyApp.Use(logger.New())
	decoyHandler.Register(decoyApp)

	go func() {
		if err := decoyApp.Listen(cfg.Decoy.ListenAddr); err != nil {
			slog.Error("Decoy server terminated", "error", err)
			os.Exit(1)
		}
	}()

	go startHealthCheckServer(params.HealthCheckServerAddr, db)
	return router.Listen(cfg.ListenAddr)
}

func printLinks(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		return err
	}
	mustInitLogger(cfg.Debug)

	db := mustInitDatabase(cfg.SQLite)
	userRegistry := registry.NewRegistry(db, registry.NewUserRepository(db))
	users, err := userRegistry.List(ctx.Context, true)
	if err != nil {
		return err
	}

	fmt.Printf("domain: %s, enabled users: %d\n\n", cfg.Domain, len(users))
	for _, user := range users {
		fmt.Printf("%s\n  uuid: %s\n  link: %s\n\n", user.Email, user.UUID, synth.ClientLink(user, cfg.Domain))
	}
	return nil
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
