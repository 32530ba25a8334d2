package relay

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"signalrelay/src/alert"
	"signalrelay/src/database"
	"signalrelay/src/handler"
	"signalrelay/src/model"
	"signalrelay/src/registry"
	"signalrelay/src/repository"
	"signalrelay/src/security"
	"signalrelay/src/server"
	"signalrelay/src/strategy"
	"signalrelay/src/stream"
	"signalrelay/src/venue"
)

type Relay struct{}

// Start resumes every Active strategy, serves the management API and blocks
// until SIGINT or SIGTERM. Stored statuses survive the shutdown.
func (t *Relay) Start() error {
	config := GetConfig()
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	log := logrus.WithField("cmd", "relay")

	if err := database.InitMainDB(); err != nil {
		log.WithError(err).Error("Failed to connect to main database")
		return err
	}
	defer database.Close()

	box, err := security.NewBoxFromEnv()
	if err != nil {
		log.WithError(err).Error("Invalid credentials key")
		return err
	}

	strategies := repository.NewStrategyRepository()
	trades := repository.NewTradeRepository()
	exceptions := repository.NewExceptionRepository()

	venueConfig := venue.GetConfig()
	opener := venue.NewBridgeOpener(venueConfig.BridgeURL, venueConfig.Timeout)
	processor := alert.NewProcessor(log, trades, exceptions)
	streamConfig := stream.GetConfig()

	reg := registry.New(func(s model.Strategy) registry.Runner {
		return stream.NewClient(s, stream.Options{
			Config:      streamConfig,
			Opener:      opener,
			Handler:     processor,
			Credentials: strategy.VenueCredentials(box),
			Logger:      log,
			OnTransition: func(id uint, from, to stream.State) {
				log.WithFields(logrus.Fields{"strategy_id": id, "from": from.String(), "state": to.String()}).Debug("Stream state changed")
			},
		})
	}, strategies, log)

	svc := strategy.NewService(log, strategies, trades, reg, box, strategy.GetConfig())
	defer svc.Shutdown()

	bootCtx, cancel := context.WithTimeout(ctx, config.BootstrapTimeout)
	started, err := svc.Bootstrap(bootCtx)
	cancel()
	if err != nil {
		log.WithError(err).Error("Failed to resume active strategies")
		return err
	}
	log.WithField("started", started).Info("Relay running")

	serverConfig := server.GetConfig()
	api := handler.NewStrategyHandler(svc, exceptions, reg.States)
	return server.StartServer(ctx, serverConfig.Port, server.NewRouter(serverConfig.APIToken, api.Mount), serverConfig.ShutdownTimeout)
}
