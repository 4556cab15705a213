package commands

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/marmos91/daserver/internal/logger"
	"github.com/marmos91/daserver/pkg/alarms"
	"github.com/marmos91/daserver/pkg/api"
	"github.com/marmos91/daserver/pkg/config"
	"github.com/marmos91/daserver/pkg/items"
	"github.com/marmos91/daserver/pkg/lifecycle"
	"github.com/marmos91/daserver/pkg/metrics"
	"github.com/marmos91/daserver/pkg/notify"
	"github.com/marmos91/daserver/pkg/population"
	"github.com/marmos91/daserver/pkg/simulation"
)

// server is a fully wired daserver process, not yet started.
type server struct {
	cfg        *config.Config
	core       *lifecycle.ServerCore
	controller *lifecycle.Controller
	engine     *simulation.Engine
	dispatcher *notify.Dispatcher
	recent     *notify.RecentSink
	nats       *nats.Conn
}

// buildServer wires the item store, condition model, notification fan-out,
// refresh engine and lifecycle controller described by cfg. onShutdown runs
// when a client writes the control item and the configuration honors it.
//
// Metrics must be initialized before the call for the components to pick up
// their collectors.
func buildServer(cfg *config.Config, onShutdown func(reason string)) (*server, error) {
	dispatcher := notify.NewDispatcher(cfg.DispatcherConfig(), metrics.NewNotifyMetrics())
	dispatcher.AddSink(notify.LogSink{})
	recent := notify.NewRecentSink(cfg.Notify.RecentSize)
	dispatcher.AddSink(recent)

	s := &server{cfg: cfg, dispatcher: dispatcher, recent: recent}

	if natsCfg, enabled := cfg.NATSSinkConfig(); enabled {
		conn, err := notify.DialNATS(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect notification broker: %w", err)
		}
		s.nats = conn
		dispatcher.AddSink(notify.NewNATSSink(conn, natsCfg.SubjectPrefix, natsCfg.IncludeItems))
		logger.Info("NATS notifications enabled", "url", natsCfg.URL, "subject_prefix", natsCfg.SubjectPrefix)
	}

	store := items.NewStore(
		items.WithMaxItems(cfg.Items.MaxItems),
		items.WithObserver(dispatcher),
		items.WithMetrics(metrics.NewStoreMetrics()),
	)
	model := alarms.NewModel(
		alarms.WithListener(dispatcher),
		alarms.WithMetrics(metrics.NewAlarmMetrics()),
	)

	honor := cfg.Control.HonorShutdownRequest
	host := lifecycle.HostFuncs{
		OnState: func(state lifecycle.ServerState) {
			logger.Info("Server state changed", "state", state.String())
		},
		OnShutdown: func(reason string) {
			if !honor {
				logger.Warn("Shutdown request ignored", "reason", reason,
					"hint", "set control.honor_shutdown_request to act on it")
				return
			}
			if onShutdown != nil {
				onShutdown(reason)
			}
		},
	}
	s.core = lifecycle.NewCore(store, model,
		lifecycle.WithHost(host),
		lifecycle.WithControlItem(cfg.Control.Item),
		lifecycle.WithShutdownNotifier(dispatcher),
	)

	scenarios, err := population.Scenarios(cfg.ScenarioConfig())
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to build scenarios: %w", err)
	}
	s.engine = simulation.NewEngine(cfg.SimulationConfig(), store, model,
		simulation.WithReadiness(s.core.Ready),
		simulation.WithMetrics(metrics.NewRefreshMetrics()),
	)
	for _, sig := range population.Signals(store, cfg.Population.Seed) {
		s.engine.AddSignal(sig)
	}
	for _, sc := range scenarios {
		s.engine.AddScenario(sc)
	}

	s.controller = lifecycle.NewController(s.core, population.Sample(cfg.PlanConfig()), s.engine,
		cfg.LifecycleConfig(), lifecycle.WithMetrics(metrics.NewLifecycleMetrics()))
	return s, nil
}

// addAuxiliaryServers registers the operator API and, when given, the
// metrics server with the controller.
func (s *server) addAuxiliaryServers(metricsServer *metrics.Server) error {
	if metricsServer != nil {
		s.controller.AddAuxiliaryServer(metricsServer)
		logger.Info("Metrics enabled", "port", metricsServer.Port(), "path", s.cfg.Metrics.Path)
	} else {
		logger.Info("Metrics collection disabled")
	}

	if !s.cfg.API.IsEnabled() {
		logger.Info("API server disabled")
		return nil
	}
	apiServer, err := api.NewServer(s.cfg.API, s.core, s.recent)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	s.controller.AddAuxiliaryServer(apiServer)
	logger.Info("API server enabled", "port", apiServer.Port())
	return nil
}

// close stops the dispatcher, giving queued notifications up to the
// configured timeout, and drops the broker connection.
func (s *server) close() {
	timeout := s.cfg.Notify.StopTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s.dispatcher.Stop(timeout)
	if s.nats != nil {
		if err := s.nats.Drain(); err != nil {
			logger.Warn("NATS drain error", logger.Err(err))
			s.nats.Close()
		}
	}
}
