package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osoriodev/coursebot/internal/analytics"
	"github.com/osoriodev/coursebot/internal/bot"
	"github.com/osoriodev/coursebot/internal/chat"
	"github.com/osoriodev/coursebot/internal/config"
	"github.com/osoriodev/coursebot/internal/document"
	"github.com/osoriodev/coursebot/internal/health"
	"github.com/osoriodev/coursebot/internal/history"
	"github.com/osoriodev/coursebot/internal/openai"
	"github.com/osoriodev/coursebot/internal/telegram"
	"github.com/osoriodev/coursebot/internal/websearch"
)

// Outbound call timeouts. Each network dependency gets its own bound.
const (
	documentFetchTimeout = 30 * time.Second
	webSearchTimeout     = 10 * time.Second
	completionTimeout    = 120 * time.Second
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func run() error {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interactions, err := analytics.New(cfg.LogFilePath, cfg.AnonymizeLogs)
	if err != nil {
		return err
	}

	store, err := history.Open(cfg.HistoryDBPath, cfg.HistoryWindow)
	if err != nil {
		return err
	}
	defer store.Close()

	docs := document.NewProvider(cfg.DocumentURL, cfg.DocumentMaxChars, documentFetchTimeout, log)
	if err := docs.Load(ctx); err != nil {
		// Questions get the unavailability notice until a successful load;
		// the process still serves /start and the health endpoint.
		log.WithError(err).Warn("initial document load failed")
	}

	var web chat.Searcher
	if cfg.WebSearchEnabled {
		web = websearch.NewClient(cfg.WebSearchURL, webSearchTimeout, log)
	}

	engine := &chat.Engine{
		Docs:      docs,
		Web:       web,
		History:   store,
		Model:     openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIChatCompURL, cfg.OpenAIModel, completionTimeout),
		Assembler: &chat.GroundedAssembler{Topic: cfg.Topic},
		Log:       log,
	}

	healthSrv := health.New(cfg.HealthAddr, docs, log)
	go func() {
		if err := healthSrv.Run(ctx); err != nil {
			log.WithError(err).Warn("health listener stopped")
		}
	}()

	dispatcher := bot.New(bot.Config{
		Messenger:           telegram.NewClient(cfg.TelegramAPIBase, time.Duration(cfg.PollTimeout+20)*time.Second),
		Engine:              engine,
		History:             store,
		Docs:                docs,
		Analytics:           interactions,
		Log:                 log,
		Topic:               cfg.Topic,
		PollTimeout:         cfg.PollTimeout,
		Sleep:               time.Duration(cfg.SleepSeconds) * time.Second,
		DocumentFilename:    cfg.DocumentFilename,
		Resources:           cfg.Resources,
		RecommendedMaterial: cfg.RecommendedMaterial,
	})

	log.WithFields(logrus.Fields{
		"model": cfg.OpenAIModel,
		"topic": cfg.Topic,
	}).Info("bot running")

	if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
