package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fxtoolworks/licensebot/internal/audit"
	"github.com/fxtoolworks/licensebot/internal/catalog"
	"github.com/fxtoolworks/licensebot/internal/conversation"
	"github.com/fxtoolworks/licensebot/internal/delivery"
	"github.com/fxtoolworks/licensebot/internal/licensing"
	"github.com/fxtoolworks/licensebot/internal/payment"
	"github.com/fxtoolworks/licensebot/pkg/certificate"
	"github.com/fxtoolworks/licensebot/pkg/chat"
	"github.com/fxtoolworks/licensebot/pkg/config"
	"github.com/fxtoolworks/licensebot/pkg/db"
	"github.com/fxtoolworks/licensebot/pkg/env"
	"github.com/fxtoolworks/licensebot/pkg/logger"
	"github.com/fxtoolworks/licensebot/pkg/metrics"
	"github.com/fxtoolworks/licensebot/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "bot"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "bot"

	logg = logger.New(logger.Options{
		ServiceName: "bot",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	licMetrics := metrics.NewLicensingMetrics(prometheus.DefaultRegisterer)

	gateway, err := consoleGateway(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to create chat transport", err)
		os.Exit(1)
	}

	renderer, err := certificate.NewClient(context.Background(), cfg.Delivery, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create certificate renderer", err)
		os.Exit(1)
	}

	licensingRepo := licensing.NewRepository(dbClient)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	issuer, err := licensing.NewIssuer(licensingRepo, renderer, logg, licMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create license issuer", err)
		os.Exit(1)
	}

	validator, err := licensing.NewValidator(licensingRepo, logg, licMetrics, cfg.Bot.Link)
	if err != nil {
		logg.Error(context.Background(), "failed to create license validator", err)
		os.Exit(1)
	}

	deliveryService, err := delivery.NewService(licensingRepo, gateway, cfg.Delivery, logg, licMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	oracle, err := payment.NewSimulatedOracle(cfg.Stellar)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment oracle", err)
		os.Exit(1)
	}

	auditSink, err := audit.NewSink(audit.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit sink", err)
		os.Exit(1)
	}

	store := conversation.NewStore(cfg.Conversation.IdleTimeout, cfg.Conversation.SweepInterval, logg)

	engine, err := conversation.NewEngine(conversation.Params{
		Store:        store,
		Gateway:      gateway,
		Catalog:      catalogService,
		Issuer:       issuer,
		Validator:    validator,
		Delivery:     deliveryService,
		Oracle:       oracle,
		Audit:        auditSink,
		Logger:       logg,
		Bot:          cfg.Bot,
		Stellar:      cfg.Stellar,
		Conversation: cfg.Conversation,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create conversation engine", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting license bot")

	if err := engine.Run(ctx, gateway); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "license bot stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "license bot shutting down gracefully")
}

// consoleGateway binds the bot to stdin/stdout for local operation. The
// console user identity defaults to the admin so every flow is reachable
// from one terminal.
func consoleGateway(cfg *config.Config) (*chat.Console, error) {
	chatID, err := strconv.ParseInt(env.Get("LICENSEBOT_CONSOLE_CHAT_ID", strconv.FormatInt(cfg.Bot.AdminChatID, 10)), 10, 64)
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseInt(env.Get("LICENSEBOT_CONSOLE_USER_ID", strconv.FormatInt(cfg.Bot.AdminChatID, 10)), 10, 64)
	if err != nil {
		return nil, err
	}
	username := env.Get("LICENSEBOT_CONSOLE_USERNAME", "operator")
	return chat.NewConsole(os.Stdin, os.Stdout, chatID, userID, username)
}
