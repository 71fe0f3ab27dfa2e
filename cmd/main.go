package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/mrsteinmetz/follow-the-goat-sub005/cmd/pricefeed"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/connectors"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/database"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/executors"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/features"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/miner"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/repository"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/trail"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Follow The Goat CMD"
	app.Usage = "The follow-the-goat command line interface"

	app.Commands = []cli.Command{
		trailerCMD,
		minerCMD,
		pricefeedCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	trailerCMD = cli.Command{
		Name:        "trailer",
		Usage:       "run the trail sampling loop",
		Action:      trailerAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Samples feature snapshots for open candidates every minute`,
	}
	minerCMD = cli.Command{
		Name:        "miner",
		Usage:       "run the filter mining loop",
		Action:      minerAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Mines filter suggestions from resolved candidates periodically`,
	}
	pricefeedCMD = cli.Command{
		Name:        "pricefeed",
		Usage:       "run the price feed",
		Action:      pricefeedAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Polls minute candles and stores them as price ticks`,
	}
)

func trailerAction(_ *cli.Context) error {
	logrus.Info("Starting trailer CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := buildRecorder(ctx)

	err := executors.StartTrailLoop(ctx, recorder, executors.GetConfig().TrailLoopPeriod)
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func minerAction(_ *cli.Context) error {
	logrus.Info("Starting miner CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	if err := database.InitReadOnlyDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := miner.GetConfig()
	runner := miner.NewRunner(
		repository.NewCandidateRepository(),
		repository.NewTrailRepositoryReadOnly(),
		repository.NewFilterRepository(),
		cfg,
	)

	err := executors.StartMinerLoop(ctx, runner, cfg.MiningInterval)
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func pricefeedAction(_ *cli.Context) error {
	logrus.Info("Starting pricefeed CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := pricefeed.New(logrus.WithField("cmd", "pricefeed"), repository.NewPriceRepository())

	err := feed.Start(ctx)
	if err != nil {
		logrus.WithError(err).Error("Starting pricefeed cmd")
		return err
	}

	return nil
}

// buildRecorder wires the full provider set against the main database and
// the order book stream. The stream only runs when an endpoint is configured,
// without it the order book section records nulls.
func buildRecorder(ctx context.Context) *trail.Recorder {
	connCfg := connectors.GetConfig()

	books := connectors.NewOrderBookStream(connCfg.OrderBookWSURL, connCfg.OrderBookMaxStale)
	if connCfg.OrderBookWSURL != "" {
		go func() {
			if err := books.Run(ctx); err != nil {
				logrus.WithError(err).Error("Order book stream stopped")
			}
		}()
	}

	prices := repository.NewPriceRepository()
	whales := repository.NewWhaleEventRepository()
	providers := features.DefaultProviders(prices, books, whales, features.GetConfig())

	return trail.NewRecorder(
		repository.NewCandidateRepository(),
		repository.NewTrailRepository(),
		prices,
		providers,
		trail.GetConfig(),
	)
}
