package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"quizgate/internal/bot"
	"quizgate/internal/cache"
	"quizgate/internal/config"
	"quizgate/internal/db/sqlite"
	"quizgate/internal/event"
	handlers "quizgate/internal/handlers/chat"
	"quizgate/internal/infra"
	"quizgate/internal/infrastructure/telegram"
	"quizgate/internal/lifecycle"
	"quizgate/internal/observability"
	"quizgate/internal/quiz"
	"quizgate/internal/scheduler"
)

func main() {
	cfg := config.Get()
	log.SetFormatter(&config.Formatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.Level(cfg.LogLevel))

	infra.GoRecoverable(-1, "main", func() {
		if err := run(cfg); err != nil && err != context.Canceled {
			log.WithError(err).Fatalln("exiting")
		}
	})
}

func run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	defer event.RunWorker()()

	event.Subscribe(event.TypeVerificationOutcome, func(e event.Queueable) {
		outcome, ok := e.(*event.VerificationOutcome)
		if !ok {
			return
		}
		log.WithFields(log.Fields{
			"chat_id": outcome.ChatID,
			"user_id": outcome.UserID,
			"outcome": outcome.Outcome,
		}).Info("verification resolved")
	})

	botAPI, err := api.NewBotAPI(cfg.TelegramAPIToken)
	if err != nil {
		log.WithError(err).Errorln("cant initialize bot api")
		return err
	}
	if log.Level(cfg.LogLevel) == log.TraceLevel {
		botAPI.Debug = true
	}
	defer botAPI.StopReceivingUpdates()

	dbClient, err := sqlite.NewSQLiteClient(ctx, infra.GetWorkDir(), cfg.DBPath)
	if err != nil {
		log.WithError(err).Errorln("cant initialize database")
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.WithError(err).Errorln("cant close database")
		}
	}()

	quizService := quiz.NewService(dbClient, nil)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()
		quizService = quiz.NewService(dbClient, cache.NewPreview(redisClient))
		log.WithField("addr", cfg.Redis.Addr).Info("preview cache enabled")
	}

	sched := scheduler.New()
	ops := telegram.NewOperations(botAPI)
	service := bot.NewService(botAPI, dbClient, cfg)
	verifier := handlers.NewVerifier(dbClient, ops, quizService, sched, service, cfg)
	bot.RegisterUpdateHandler("verification", verifier)

	runtime := lifecycle.NewRuntime(sched, verifier)
	if err := runtime.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := runtime.Stop(context.Background()); err != nil {
			log.WithError(err).Errorln("cant stop components")
		}
	}()

	if err := observability.Init(ctx, cfg.MetricsAddr); err != nil {
		return err
	}

	updateConfig := api.NewUpdate(0)
	updateConfig.Timeout = 60
	updateProcessor := bot.NewUpdateProcessor(service, cfg.EnabledHandlers)
	updateChan, errorChan := bot.GetUpdatesChans(ctx, botAPI, updateConfig)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case err := <-errorChan:
				log.WithError(err).Errorln("bot api get updates error")
				return err
			case update, ok := <-updateChan:
				if !ok {
					return nil
				}
				if err := updateProcessor.Process(gctx, &update); err != nil {
					log.WithError(err).Errorln("cant process update")
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})
	return g.Wait()
}
