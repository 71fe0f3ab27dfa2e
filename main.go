package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/mrsteinmetz/follow-the-goat-sub005/src/auth"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/connectors"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/database"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/features"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/gate"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/handler"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/repository"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/security"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/server"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/trail"
	"github.com/mrsteinmetz/follow-the-goat-sub005/src/validator"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	// Initialize main (read/write) database
	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	// Initialize read-only database
	if err := database.InitReadOnlyDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	routes := buildRoutes(context.Background())

	server.StartServer(server.GetConfig().Port, routes)
}

func buildRoutes(ctx context.Context) server.Routes {
	candidates := repository.NewCandidateRepository()
	trails := repository.NewTrailRepository()
	filters := repository.NewFilterRepository()
	prices := repository.NewPriceRepository()
	whales := repository.NewWhaleEventRepository()
	exceptions := repository.NewExceptionRepository()

	connCfg := connectors.GetConfig()
	books := connectors.NewOrderBookStream(connCfg.OrderBookWSURL, connCfg.OrderBookMaxStale)
	if connCfg.OrderBookWSURL != "" {
		go func() {
			if err := books.Run(ctx); err != nil {
				logger.WithError(err).Error("Order book stream stopped")
			}
		}()
	}

	providers := features.DefaultProviders(prices, books, whales, features.GetConfig())
	recorder := trail.NewRecorder(candidates, trails, prices, providers, trail.GetConfig())

	momentum := gate.New(prices, exceptions, gate.GetConfig())
	decider := validator.New(momentum, recorder, candidates, filters, trails, exceptions)

	secCfg := security.GetConfig()
	ingestAuth := auth.RequireToken(
		auth.TokenSpec{Name: "webhook", Hash: secCfg.WebhookTokenHash},
		auth.TokenSpec{Name: "executor", Hash: secCfg.ExecutorTokenHash},
	)
	readerAuth := auth.RequireToken(
		auth.TokenSpec{Name: "reader", Hash: secCfg.ReaderTokenHash},
	)

	return server.Routes{
		WhaleWebhook:  handler.WhaleWebhookHandler(whales, decider),
		Fills:         handler.FillsHandler(candidates, recorder),
		Candidates:    handler.ListCandidatesHandler(candidates),
		MiningRuns:    handler.ListMiningRunsHandler(filters),
		ActiveFilters: handler.ActiveFiltersHandler(filters),

		IngestAuth: ingestAuth,
		ReaderAuth: readerAuth,
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
