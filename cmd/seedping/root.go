package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/adevnylo/hll-seed-ping/docs"
	"github.com/adevnylo/hll-seed-ping/internal/client/crcon"
	"github.com/adevnylo/hll-seed-ping/internal/config"
	"github.com/adevnylo/hll-seed-ping/internal/handler"
	"github.com/adevnylo/hll-seed-ping/internal/logger"
	"github.com/adevnylo/hll-seed-ping/internal/metrics"
	"github.com/adevnylo/hll-seed-ping/internal/monitor"
	"github.com/adevnylo/hll-seed-ping/internal/notification"
	"github.com/adevnylo/hll-seed-ping/internal/report"
	"github.com/adevnylo/hll-seed-ping/internal/runner"
	"github.com/adevnylo/hll-seed-ping/internal/store"
)

type options struct {
	daemon       bool
	configPath   string
	settingsPath string
	noFetch      bool
}

func execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "seedping:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "seedping",
		Short: "Ping Discord when a Hell Let Loose server needs seeding",
		Long: `Without flags, prints the stored statistics and settings, plus one live
status query. With --daemon, keeps checking the server and sends a seeding
message when the player count enters the seeding window.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.daemon, "daemon", false, "run continuously")
	f.StringVar(&opts.configPath, "config", "", "config file (default $SEEDPING_CONFIG or "+config.DefaultPath+")")
	f.StringVar(&opts.settingsPath, "settings", "", "settings record path (overrides settings.path)")
	f.BoolVar(&opts.noFetch, "no-fetch", false, "print mode only: skip the live status query")
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// app is the wired object graph shared by both modes.
type app struct {
	cfg     config.Config
	log     *zap.Logger
	store   *store.FileStore
	client  *crcon.Client
	metrics *metrics.Metrics
	monitor *monitor.Monitor
}

func run(ctx context.Context, out io.Writer, opts *options) error {
	boot, err := config.LoadBootstrap()
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	path := boot.ConfigPath
	if opts.configPath != "" {
		path = opts.configPath
	}
	cfg, err := config.Load(path, boot.EnvOnly)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if opts.settingsPath != "" {
		cfg.Settings.Path = opts.settingsPath
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	if opts.daemon {
		return a.runDaemon(ctx, out)
	}
	return a.runPrint(ctx, out, opts.noFetch)
}

func newApp(cfg config.Config, log *zap.Logger) (*app, error) {
	defaults := monitor.DefaultSettings(cfg)
	fs := store.NewFileStore(cfg.Settings.Path, defaults)
	client := crcon.NewClient(&http.Client{Timeout: cfg.CRCON.Timeout})
	sender, err := notification.NewDiscordSender(cfg.Discord, log)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	m := metrics.New()
	return &app{
		cfg:     cfg,
		log:     log,
		store:   fs,
		client:  client,
		metrics: m,
		monitor: &monitor.Monitor{
			Store:    fs,
			Fetcher:  client,
			Notifier: sender,
			Defaults: defaults,
			Fast:     cfg.Monitor.CheckIntervalFast,
			Slow:     cfg.Monitor.CheckIntervalSlow,
			Logger:   log,
			Metrics:  m,
		},
	}, nil
}

func (a *app) runPrint(ctx context.Context, out io.Writer, noFetch bool) error {
	report.Banner(out, "print")
	s, err := a.monitor.LoadSettings()
	if err != nil {
		var pe *store.PersistError
		if !errors.As(err, &pe) || s == nil {
			return err
		}
		a.log.Warn("default settings not persisted", zap.Error(err))
	}

	rep := report.Report{Settings: s, SettingsPath: a.store.Path()}
	if !noFetch {
		st, err := a.client.Fetch(ctx, s.APIURL)
		if err != nil {
			rep.LiveErr = err
		} else {
			rep.Live = &st
		}
	}
	return report.Render(out, rep)
}

func (a *app) runDaemon(ctx context.Context, out io.Writer) error {
	report.Banner(out, "service")
	if a.cfg.Settings.Lock {
		unlock, err := a.store.Lock()
		if err != nil {
			return err
		}
		defer unlock()
	}

	if addr := strings.TrimSpace(a.cfg.Server.HTTPAddr); addr != "" {
		srv := a.statusServer(addr)
		go func() {
			a.log.Info("status server listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("status server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	r := &runner.Runner{Monitor: a.monitor, Store: a.store, Logger: a.log}
	return r.Run(ctx)
}

func (a *app) statusServer(addr string) *http.Server {
	if strings.EqualFold(a.cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	(&handler.HealthHandler{Monitor: a.monitor}).Register(engine)
	(&handler.StatusHandler{Monitor: a.monitor, Metrics: a.metrics}).Register(engine)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	return &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
