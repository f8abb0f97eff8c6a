// fixengine is a FIX session engine daemon: it maintains a registry of
// administrative FIX sessions (logon, heartbeating, sequence management,
// resend/gap-fill, logout), accepting inbound TCP connections and dialing
// out to configured initiator peers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"fixengine/internal/config"
	"fixengine/internal/fix"
	"fixengine/internal/fixlog"
	"fixengine/internal/fixnet"
	"fixengine/internal/fixserver"
	"fixengine/internal/fixstore"
	fixenginemetrics "fixengine/internal/metrics"
	appversion "fixengine/internal/version"
)

// tickInterval is how often every registered Session's Tick is driven,
// matching the 1-second cadence assumed by heartbeat/timeout logic.
const tickInterval = time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("fixengine starting",
		slog.String("version", appversion.Version),
		slog.String("admin_addr", cfg.Admin.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr))

	reg := prometheus.NewRegistry()
	collector := fixenginemetrics.NewCollector(reg)

	storeFactory, closeStore, err := openStore(cfg.Store)
	if err != nil {
		logger.Error("failed to open message store", slog.String("error", err.Error()))
		return 1
	}
	defer closeStore()

	registry := fix.NewSessionRegistry(logger)
	logFactory := fixlog.NewSlogLogFactory(logger)

	if err := runServers(cfg, registry, storeFactory, logFactory, collector, reg, logger, *configPath, logLevel); err != nil {
		logger.Error("fixengine exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("fixengine stopped")
	return 0
}

func openStore(cfg config.StoreConfig) (fix.MessageStoreFactory, func(), error) {
	if cfg.Backend == "badger" {
		factory, err := fixstore.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		return factory, func() { _ = factory.Close() }, nil
	}
	return fix.NewMemoryStoreFactory(time.Now), func() {}, nil
}

func runServers(
	cfg *config.Config,
	registry *fix.SessionRegistry,
	storeFactory fix.MessageStoreFactory,
	logFactory fix.LogFactory,
	collector *fixenginemetrics.Collector,
	promReg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	go registry.RunDispatch(gCtx)
	g.Go(func() error { return forwardMetricsEvents(gCtx, registry, collector) })

	admin := fixserver.New(registry, fix.SystemClock{}, logger)
	adminSrv := newAdminServer(cfg.Admin, admin)
	metricsSrv := newMetricsServer(cfg.Metrics, promReg)

	lc := net.ListenConfig{}
	g.Go(func() error {
		logger.Info("admin API listening", slog.String("addr", cfg.Admin.Addr))
		return listenAndServe(gCtx, &lc, adminSrv, cfg.Admin.Addr)
	})
	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr))
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	acceptor, err := fixnet.Listen(cfg.Listen.Addr, registryResolver(registry), fix.SystemClock{}, logger)
	if err != nil {
		return fmt.Errorf("start FIX listener: %w", err)
	}
	defer func() { _ = acceptor.Close() }()
	g.Go(func() error { return acceptor.Run(gCtx) })
	logger.Info("FIX acceptor listening", slog.String("addr", acceptor.Addr().String()))

	g.Go(func() error { return runTickLoop(gCtx, registry) })
	g.Go(func() error { return runWatchdog(gCtx, logger) })
	g.Go(func() error {
		return runSIGHUP(gCtx, configPath, logLevel, registry, storeFactory, logFactory, collector, logger)
	})

	reconcileSessions(cfg, registry, storeFactory, logFactory, collector, logger)
	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(logger, adminSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// forwardMetricsEvents drains StateChanges and updates per-session gauges,
// since Collector has no other way to learn a session logged off.
func forwardMetricsEvents(ctx context.Context, registry *fix.SessionRegistry, collector *fixenginemetrics.Collector) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-registry.StateChanges():
			if !ok {
				return nil
			}
			switch change.State {
			case fix.ConnectionStateLoggedOff:
				collector.IncDisconnects(change.SessionID)
				collector.UnregisterSession(change.SessionID)
			case fix.ConnectionStateLoggedOn:
				collector.RegisterSession(change.SessionID)
			}
		}
	}
}

func registryResolver(registry *fix.SessionRegistry) fixnet.SessionResolver {
	return func(beginString, senderCompID, targetCompID string) (*fix.Session, bool) {
		id := fix.NewSessionID(beginString, senderCompID, targetCompID)
		return registry.Lookup(id)
	}
}

func runTickLoop(ctx context.Context, registry *fix.SessionRegistry) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, sess := range registry.Sessions() {
				sess.Tick(now.UTC())
			}
		}
	}
}

func newAdminServer(cfg config.AdminConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func gracefulShutdown(logger *slog.Logger, servers ...*http.Server) error {
	notifyStopping(logger)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(context.Background()), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(s *http.Server) {
			defer wg.Done()
			_ = s.Shutdown(ctx)
		}(srv)
	}
	wg.Wait()
	return nil
}

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		return nil
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", err.Error()))
			}
		}
	}
}

func runSIGHUP(
	ctx context.Context,
	configPath string,
	logLevel *slog.LevelVar,
	registry *fix.SessionRegistry,
	storeFactory fix.MessageStoreFactory,
	logFactory fix.LogFactory,
	collector *fixenginemetrics.Collector,
	logger *slog.Logger,
) error {
	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	defer signal.Stop(sigHUP)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration")
			newCfg, err := loadConfig(configPath)
			if err != nil {
				logger.Error("failed to reload configuration, keeping current settings",
					slog.String("error", err.Error()))
				continue
			}
			logLevel.Set(config.ParseLogLevel(newCfg.Log.Level))
			reconcileSessions(newCfg, registry, storeFactory, logFactory, collector, logger)
		}
	}
}

// reconcileSessions registers every declarative session not already in
// the registry. It does not remove sessions absent from a reloaded
// config: an operator-visible Logout is a safer default than silently
// tearing down a live connection on a config typo.
func reconcileSessions(
	cfg *config.Config,
	registry *fix.SessionRegistry,
	storeFactory fix.MessageStoreFactory,
	logFactory fix.LogFactory,
	collector *fixenginemetrics.Collector,
	logger *slog.Logger,
) {
	for _, sc := range cfg.Sessions {
		id := sc.SessionID()
		if registry.IsRegistered(id) {
			continue
		}

		settings := fix.DefaultSettings()
		settings.ResetOnLogon = cfg.Defaults.ResetOnLogon
		settings.CheckLatency = cfg.Defaults.CheckLatency
		settings.MaxLatency = cfg.Defaults.MaxLatency
		settings.LogonTimeout = cfg.Defaults.LogonTimeout
		settings.LogoutTimeout = cfg.Defaults.LogoutTimeout
		settings.HeartBtInt = cfg.Defaults.HeartBtInt
		if sc.HeartBtInt > 0 {
			settings.HeartBtInt = sc.HeartBtInt
		}

		store, err := storeFactory.Create(id)
		if err != nil {
			logger.Error("failed to create message store for session",
				slog.String("session_id", id.String()), slog.String("error", err.Error()))
			continue
		}

		app := fix.NotifyingApplication(fix.NopApplication{}, registry.NotifyStateChange)
		app = metricsApplication{Application: app, collector: collector}

		sess, err := fix.NewSession(fix.SessionConfig{
			ID:          id,
			Initiate:    sc.ConnectionType == "initiator",
			Application: app,
			Settings:    settings,
			Store:       store,
			LogFactory:  logFactory,
		})
		if err != nil {
			logger.Error("failed to construct session",
				slog.String("session_id", id.String()), slog.String("error", err.Error()))
			continue
		}

		if err := registry.Add(sess); err != nil {
			logger.Error("failed to register session",
				slog.String("session_id", id.String()), slog.String("error", err.Error()))
			continue
		}
		sess.Logon()

		if sc.ConnectionType == "initiator" {
			go fixnet.RunInitiator(context.Background(), sc.TargetAddr, sess, fix.SystemClock{}, logger)
		}

		logger.Info("session reconciled",
			slog.String("session_id", id.String()), slog.String("connection_type", sc.ConnectionType))
	}
}

// metricsApplication decorates an Application so every admin upcall the
// session drives also updates per-session Prometheus counters.
type metricsApplication struct {
	fix.Application
	collector *fixenginemetrics.Collector
}

func (m metricsApplication) ToAdmin(msg *fix.Message, sessionID fix.SessionID) {
	m.Application.ToAdmin(msg, sessionID)
	msgType, err := msg.MsgType()
	if err != nil {
		return
	}
	m.collector.IncMessagesSent(sessionID, msgType)
	switch msgType {
	case fix.MsgTypeReject:
		m.collector.IncRejects(sessionID)
	case fix.MsgTypeResendRequest:
		m.collector.IncResends(sessionID)
	case fix.MsgTypeHeartbeat:
		m.collector.IncHeartbeats(sessionID)
	}
}

func (m metricsApplication) FromAdmin(msg *fix.Message, sessionID fix.SessionID) error {
	if msgType, err := msg.MsgType(); err == nil {
		m.collector.IncMessagesReceived(sessionID, msgType)
	}
	return m.Application.FromAdmin(msg, sessionID)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
