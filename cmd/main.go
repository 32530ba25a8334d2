package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"signalrelay/cmd/relay"
	"signalrelay/cmd/report"
	"signalrelay/src/database"
	"signalrelay/src/logging"
	"signalrelay/src/repository"
)

var Version string

var logCloser io.Closer

func main() {
	// .env is optional; the process environment wins when both are set.
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Name = "signalrelay"
	app.Usage = "Relay streamed trading alerts to a venue account"
	app.Version = Version

	app.Before = func(_ *cli.Context) error {
		logCloser = logging.Setup(logging.GetConfig())
		return nil
	}
	app.After = func(_ *cli.Context) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	}

	app.Commands = []cli.Command{
		relayCMD,
		migrateCMD,
		strategiesCMD,
		tradesCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	relayCMD = cli.Command{
		Name:        "relay",
		Usage:       "run the signal relay",
		Action:      relayAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Resume Active strategies and serve the management API until interrupted`,
	}
	migrateCMD = cli.Command{
		Name:        "migrate",
		Usage:       "migrate the database",
		Action:      migrateAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Create or update tables and run pending data migrations`,
	}
	strategiesCMD = cli.Command{
		Name:        "strategies",
		Usage:       "list strategies",
		Action:      strategiesAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Print every stored strategy with its status and trade count`,
	}
	tradesCMD = cli.Command{
		Name:      "trades",
		Usage:     "list trades of a strategy",
		Action:    tradesAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.UintFlag{Name: "strategy, s", Usage: "strategy id"},
			cli.IntFlag{Name: "limit, l", Usage: "max rows, 0 for all"},
		},
		Description: `Print the trades of one strategy, oldest first`,
	}
)

func relayAction(_ *cli.Context) error {
	logrus.Info("Starting relay CMD")

	r := &relay.Relay{}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func migrateAction(_ *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to migrate database")
		return err
	}
	defer database.Close()
	return nil
}

func strategiesAction(_ *cli.Context) error {
	if err := database.InitMainDB(); err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	list, err := repository.NewStrategyRepository().List(ctx)
	if err != nil {
		return err
	}

	trades := repository.NewTradeRepository()
	counts := make(map[uint]int64, len(list))
	for _, s := range list {
		n, err := trades.CountByStrategy(ctx, s.ID)
		if err != nil {
			return err
		}
		counts[s.ID] = n
	}
	report.Strategies(os.Stdout, list, counts)
	return nil
}

func tradesAction(c *cli.Context) error {
	id := c.Uint("strategy")
	if id == 0 {
		return errors.New("--strategy is required")
	}

	if err := database.InitMainDB(); err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if _, err := repository.NewStrategyRepository().FindByID(ctx, id); err != nil {
		return err
	}
	list, err := repository.NewTradeRepository().ListByStrategy(ctx, id, c.Int("limit"))
	if err != nil {
		return err
	}
	report.Trades(os.Stdout, list)
	return nil
}
