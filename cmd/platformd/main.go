package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/corefold/eventcore"
	"github.com/corefold/eventcore/bolt"
	"github.com/corefold/eventcore/config"
	"github.com/corefold/eventcore/contexts"
	httpapi "github.com/corefold/eventcore/http"
	"github.com/corefold/eventcore/logging"
	"github.com/corefold/eventcore/organization"
	"github.com/corefold/eventcore/project"
	"github.com/corefold/eventcore/team"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("platformd exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventLog, err := openEventLog(cfg.EventLog, logger)
	if err != nil {
		return err
	}
	defer eventLog.Close()

	views := eventcore.NewViewStore()
	views.Register(organization.Views()...)
	views.Register(team.Views()...)
	views.Register(project.Views()...)
	if err := rebuildViews(ctx, eventLog, views, logger); err != nil {
		return err
	}

	bus := eventcore.NewCommandBus(logger)
	if err := bus.Subscribe(
		organization.NewHandler(eventLog, views, logger),
		team.NewHandler(eventLog, views, logger),
		project.NewHandler(eventLog, views, logger),
	); err != nil {
		return err
	}

	contextService := contexts.NewService(eventLog, logger)

	server := httpapi.NewServer(httpapi.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		CommandTimeout: cfg.EventLog.AppendTimeout,
	}, logger)
	httpapi.RegisterOrganizationEndpoints(server, bus, views)
	httpapi.RegisterTeamEndpoints(server, bus, views)
	httpapi.RegisterProjectEndpoints(server, bus, views)
	httpapi.RegisterContextEndpoints(server, contextService)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", cfg.HTTP.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// rebuildViews refolds every projected stream from the log so a restart over
// a durable backend serves the same views replay would produce.
func rebuildViews(ctx context.Context, log eventcore.EventLog, views eventcore.ViewStore, logger *zap.Logger) error {
	refs, err := log.Streams(ctx)
	if err != nil {
		return err
	}

	projected := map[string]bool{
		organization.AggregateKind: true,
		team.AggregateKind:         true,
		project.AggregateKind:      true,
	}
	rebuilt := 0
	for _, ref := range refs {
		if !projected[ref.Kind] {
			continue // context streams are folded on read, not projected
		}
		if err := views.Rebuild(ctx, log, ref); err != nil {
			return err
		}
		rebuilt++
	}
	logger.Info("views rebuilt from event log", zap.Int("streams", rebuilt))
	return nil
}

func openEventLog(cfg config.EventLogConfig, logger *zap.Logger) (eventcore.EventLog, error) {
	switch cfg.Backend {
	case "bolt":
		logger.Info("opening bolt event log", zap.String("path", cfg.Path))
		return bolt.Open(cfg.Path)
	default:
		logger.Warn("using in-memory event log; events will not survive restarts")
		return eventcore.NewMemoryEventLog(), nil
	}
}
