package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vincentyang1210/pion/codec"
	"github.com/vincentyang1210/pion/config"
	"github.com/vincentyang1210/pion/database"
	"github.com/vincentyang1210/pion/engine"
	"github.com/vincentyang1210/pion/health"
	"github.com/vincentyang1210/pion/metric"
	"github.com/vincentyang1210/pion/plugin"
	"github.com/vincentyang1210/pion/reactor"
	"github.com/vincentyang1210/pion/reactors"
	"github.com/vincentyang1210/pion/scheduler"
	"github.com/vincentyang1210/pion/server"
	"github.com/vincentyang1210/pion/services"
	"github.com/vincentyang1210/pion/services/hello"
	"github.com/vincentyang1210/pion/services/healthsvc"
	"github.com/vincentyang1210/pion/services/stats"
	"github.com/vincentyang1210/pion/vocab"
)

type cliFlags struct {
	configPath      string
	logLevel        string
	logFormat       string
	validateOnly    bool
	shutdownTimeout time.Duration
}

func newRootCommand() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Event processing platform",
		Long:          "pion reads, transforms and stores typed events through configurable chains of reactors.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "pion.yaml", "configuration file path")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "override the configured log level")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "override the configured log format")
	cmd.Flags().BoolVar(&flags.validateOnly, "validate", false, "validate the configuration and exit")
	cmd.Flags().DurationVar(&flags.shutdownTimeout, "shutdown-timeout", 30*time.Second, "graceful shutdown timeout")

	return cmd
}

func run(ctx context.Context, flags *cliFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if flags.validateOnly {
		logger.Info("configuration is valid", "path", flags.configPath)
		return nil
	}
	logger.Info("starting pion", "config_path", flags.configPath)

	metrics := metric.NewRegistry()

	sched := scheduler.New(
		scheduler.WithWorkers(cfg.Scheduler.Workers),
		scheduler.WithQueueSize(cfg.Scheduler.QueueSize),
		scheduler.WithMetricsRegistry(metrics),
	)

	vocabMgr := vocab.NewManager(logger)
	if err := cfg.ApplyVocabulary(vocabMgr); err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}

	loader := plugin.NewLoader(logger, cfg.PluginPaths...)
	if err := codec.RegisterBuiltins(loader); err != nil {
		return fmt.Errorf("register codecs: %w", err)
	}
	if err := reactors.Register(loader); err != nil {
		return fmt.Errorf("register reactors: %w", err)
	}
	if err := services.Register(loader); err != nil {
		return fmt.Errorf("register services: %w", err)
	}

	codecs := codec.NewFactory(logger, loader, vocabMgr)
	defer codecs.Close()
	for i, ref := range cfg.Codecs {
		doc, err := ref.Bytes()
		if err != nil {
			return fmt.Errorf("codec %d: %w", i, err)
		}
		if _, err := codecs.AddCodec(doc); err != nil {
			return fmt.Errorf("codec %d: %w", i, err)
		}
	}

	databases := database.NewManager(logger)
	defer func() { _ = databases.Close() }()
	for name, dbURL := range cfg.Databases {
		if err := databases.Configure(name, dbURL); err != nil {
			return fmt.Errorf("database %q: %w", name, err)
		}
	}

	eng := engine.New(logger, sched, loader, codecs, vocabMgr,
		engine.WithDatabaseManager(databases),
		engine.WithMetricsRegistry(metrics),
	)
	defer eng.Close()

	if err := loadReactors(eng, cfg); err != nil {
		return err
	}

	monitor := health.NewMonitor()

	if err := sched.Startup(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() { _ = sched.Shutdown(flags.shutdownTimeout) }()
	monitor.Update("scheduler", health.Healthy, "worker pool running")

	if err := eng.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() { _ = eng.Stop() }()
	monitor.Update("engine", health.Healthy, "reactors running")

	if cfg.Server.Enabled {
		srv := server.New(logger, sched, serverOptions(cfg, metrics)...)
		addr := cfg.Server.Address
		if cfg.Server.Doc != nil {
			doc, err := cfg.Server.Doc.Bytes()
			if err != nil {
				return fmt.Errorf("server document: %w", err)
			}
			srvCfg, err := server.ParseConfig(doc)
			if err != nil {
				return fmt.Errorf("server document: %w", err)
			}
			if err := srv.SetConfig(loader, srvCfg); err != nil {
				return fmt.Errorf("server document: %w", err)
			}
			// the document port applies unless YAML set an explicit address
			if srvCfg.Port > 0 && addr == config.DefaultServerAddress {
				addr = srvCfg.Addr()
			}
		} else {
			if err := srv.AddService("/", hello.New()); err != nil {
				return fmt.Errorf("register hello service: %w", err)
			}
		}
		if err := srv.AddService("/stats", stats.New(eng, sched)); err != nil {
			return fmt.Errorf("register stats service: %w", err)
		}
		if err := srv.AddService("/health", healthsvc.New(monitor, appName)); err != nil {
			return fmt.Errorf("register health service: %w", err)
		}
		if err := srv.Start(addr); err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		defer func() { _ = srv.Stop() }()
		monitor.Update("server", health.Healthy, "listening on "+addr)
	}

	if cfg.Metrics.Enabled {
		startMetricsEndpoint(logger, metrics, cfg.Metrics.Address)
	}

	logger.Info("pion started")
	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-signalCtx.Done()
	logger.Info("received shutdown signal")
	return nil
}

// loadReactors adds the configured reactors and rewires their connections.
// Reactor configs reference each other by name; the generated ids are
// resolved after every reactor exists.
func loadReactors(eng *engine.Engine, cfg *config.Config) error {
	type pending struct {
		id      string
		targets []string
	}

	idByName := make(map[string]string)
	var wired []pending
	for i, ref := range cfg.Reactors {
		doc, err := ref.Bytes()
		if err != nil {
			return fmt.Errorf("reactor %d: %w", i, err)
		}
		rcfg, err := reactor.ParseConfig(doc)
		if err != nil {
			return fmt.Errorf("reactor %d: %w", i, err)
		}

		id, err := eng.AddReactor(doc)
		if err != nil {
			return fmt.Errorf("reactor %d: %w", i, err)
		}
		if rcfg.Name != "" {
			idByName[rcfg.Name] = id
		}
		targets := make([]string, 0, len(rcfg.Connections))
		for _, conn := range rcfg.Connections {
			targets = append(targets, conn.To)
		}
		wired = append(wired, pending{id: id, targets: targets})
	}

	for _, p := range wired {
		for _, name := range p.targets {
			target, ok := idByName[name]
			if !ok {
				return fmt.Errorf("reactor %s: unknown connection target %q", p.id, name)
			}
			if err := eng.RemoveConnection(p.id, name); err != nil {
				return fmt.Errorf("reactor %s: %w", p.id, err)
			}
			if err := eng.AddConnection(p.id, target); err != nil {
				return fmt.Errorf("reactor %s: %w", p.id, err)
			}
		}
	}
	return nil
}

func serverOptions(cfg *config.Config, metrics *metric.Registry) []server.Option {
	opts := []server.Option{server.WithMetricsRegistry(metrics)}
	if cfg.Server.MaxHeaderBytes > 0 {
		opts = append(opts, server.WithMaxHeaderBytes(cfg.Server.MaxHeaderBytes))
	}
	if cfg.Server.MaxBodyBytes > 0 {
		opts = append(opts, server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes))
	}
	if cfg.Server.IdleTimeout > 0 {
		opts = append(opts, server.WithIdleTimeout(cfg.Server.IdleTimeout.Std()))
	}
	return opts
}

// startMetricsEndpoint serves the Prometheus registry on its own listener
// so scrapes never contend with event traffic.
func startMetricsEndpoint(logger *slog.Logger, metrics *metric.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics endpoint failed", "error", err)
		}
	}()
}
