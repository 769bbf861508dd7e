package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/whatsmanager/campaign-gateway/internal/config"
	"github.com/whatsmanager/campaign-gateway/internal/handlers"
	"github.com/whatsmanager/campaign-gateway/internal/provider"
	"github.com/whatsmanager/campaign-gateway/internal/queue"
	"github.com/whatsmanager/campaign-gateway/internal/repository"
	"github.com/whatsmanager/campaign-gateway/internal/scheduler"
	xhttp "github.com/whatsmanager/campaign-gateway/pkg/http"
	"github.com/whatsmanager/campaign-gateway/pkg/logger"
	"github.com/whatsmanager/campaign-gateway/pkg/pg"
	"github.com/whatsmanager/campaign-gateway/pkg/prom"
	"github.com/whatsmanager/campaign-gateway/pkg/redis"
)

type healthService struct{}

func (healthService) Get() error { return nil }

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()

	// transport
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     cfg.PostgresReadUser,
		Host:     cfg.PostgresReadHost,
		Port:     cfg.PostgresReadPort,
		Password: cfg.PostgresReadPassword,
		Database: cfg.PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     cfg.PostgresWriteUser,
		Host:     cfg.PostgresWriteHost,
		Port:     cfg.PostgresWritePort,
		Password: cfg.PostgresWritePassword,
		Database: cfg.PostgresWriteDatabase,
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: "default",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	if err := prom.Create(hostname(), cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed registering metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.MetricsListenAddr, "/metrics")

	providerClient := provider.NewClient(provider.Config{
		BaseURL:            cfg.ProviderBaseURL,
		AccountSID:         cfg.ProviderAccountSID,
		AuthToken:          cfg.ProviderAuthToken,
		From:               cfg.ProviderFrom,
		MessagesPerSecond:  cfg.MessagesPerSecond,
		DefaultCountryCode: cfg.DefaultCountryCode,
		DefaultPhoneLength: cfg.DefaultPhoneLength,
	})

	campaignRepo := repository.NewCampaignRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	contactRepo := repository.NewContactRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	sendQueue := queue.New(providerClient, cfg.MaxRetryAttempts, 256)

	sched := scheduler.New(scheduler.Options{
		Campaigns:   campaignRepo,
		Messages:    messageRepo,
		Contacts:    contactRepo,
		Templates:   templateRepo,
		Attachments: attachmentRepo,
		Provider:    providerClient,
		Queue:       sendQueue,
		Guard:       scheduler.NewSendGuard(redisAdap),

		MaxRetryAttempts:   cfg.MaxRetryAttempts,
		RetryDelay:         cfg.RetryDelay,
		DispatchBatchSize:  cfg.DispatchBatchSize,
		ReconcileBatchSize: cfg.ReconcileBatchSize,
		ReconcileGrace:     cfg.ReconcileGrace,

		CampaignSweepInterval: cfg.CampaignSweepInterval,
		DispatchInterval:      cfg.DispatchInterval,
		FailedSweepInterval:   cfg.FailedSweepInterval,
		ReconcileInterval:     cfg.ReconcileInterval,
	})
	sched.Start()

	// v1 handlers
	campaignHandler := handlers.NewCampaignHandler(sched, campaignRepo, messageRepo)
	templateHandler := handlers.NewTemplateHandler(templateRepo)
	contactHandler := handlers.NewContactHandler(contactRepo, providerClient)
	healthHandler := handlers.NewHealthHandler(healthService{})

	g := s.Router.Group("/api/v1")
	handlers.RegisterCampaignRoutes(g, campaignHandler)
	handlers.RegisterTemplateRoutes(g, templateHandler)
	handlers.RegisterContactRoutes(g, contactHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	logger.Info("shutting down")
	s.Shutdown()
	sched.Stop()
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
