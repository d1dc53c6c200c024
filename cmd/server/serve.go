package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mehrbod2002/masjidmap/internal/api"
	"github.com/mehrbod2002/masjidmap/internal/config"
	"github.com/mehrbod2002/masjidmap/internal/service"
	"github.com/mehrbod2002/masjidmap/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := ws.NewHub(logger.WithField("component", "ws"))
	go hub.Run(ctx)

	events := service.Publishers{hub}
	if cfg.TelegramBotToken != "" {
		notifier, err := service.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, logger.WithField("component", "telegram"))
		if err != nil {
			return err
		}
		go notifier.Run(ctx)
		events = append(events, notifier)
	}

	logService := service.NewLogService(st.logs)
	rt := service.Runtime{
		Logger:  logger.WithField("component", "service"),
		Metrics: service.NewMetrics(reg),
		Audit:   logService,
		Events:  events,
		Timeout: cfg.OperationTimeout,
	}
	accountService := service.NewAccountService(st.accounts, rt)
	placeService := service.NewPlaceService(st.places, rt)
	requestService := service.NewChangeRequestService(st.requests, st.accounts, st.places, st.tx, rt)
	svc := api.Services{
		Accounts:  accountService,
		Places:    placeService,
		Proximity: service.NewProximityService(st.places, rt),
		Gate:      service.NewGateService(placeService, requestService, rt),
		Requests:  requestService,
		Logs:      logService,
	}

	if _, err := config.EnsureMainAdmin(ctx, accountService, cfg, logger); err != nil {
		return err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	wsHandler := ws.NewWebSocketHandler(hub, accountService, cfg.JWTSecret, cfg.CORSOrigins)
	if err := api.SetupRoutes(r, cfg, svc, wsHandler, reg, logger.WithField("component", "http")); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    srv.Addr,
			"storage": cfg.Storage,
		}).Info("starting server")
		logger.Infof("Swagger UI available at %s/swagger/index.html", cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
