package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"planner/internal/bot"
	"planner/internal/config"
	"planner/internal/logging"
	"planner/internal/metrics"
	"planner/internal/repository"
	"planner/internal/series"
	"planner/internal/server"
	"planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	log := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	db, err := repository.NewDB(cfg.DatabaseURL, logging.Component(log, "db"))
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	seriesRepo := repository.NewSeriesRepository(db)
	store := repository.NewGenerationStore(seriesRepo, taskRepo)

	materializer := series.NewMaterializer()
	manager := series.NewManager(materializer, cfg.WindowDays)
	generator := series.NewScheduler(materializer, cfg.WindowDays, cfg.LookaheadDays)

	recorder := newRecorder(ctx, cfg.RedisURL, log)
	generation := service.NewGenerationService(generator, store, store, recorder, logging.Component(log, "generation"))

	categorySvc := service.NewCategoryService(categoryRepo)
	taskSvc := service.NewTaskService(repository.NewTransactor(db), taskRepo, seriesRepo, categoryRepo, manager, generation, logging.Component(log, "tasks"))
	reminderSvc := service.NewReminderService(taskRepo, seriesRepo, categoryRepo)

	scheduler := service.NewSchedulerService(time.Local, logging.Component(log, "cron"))
	if err := generation.Start(scheduler, cfg.GenerationInterval, cfg.GenerationDelay); err != nil {
		log.Fatal().Err(err).Msg("schedule generation")
	}
	defer generation.Stop()

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		api := server.New(userRepo, taskSvc, generation, logging.Component(log, "http"))
		httpSrv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api.Engine(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server")
				stop()
			}
		}()
	}

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken, userRepo, categorySvc, taskSvc, reminderSvc, cfg.ReportRatePerSec, logging.Component(log, "bot"))
		if err != nil {
			log.Fatal().Err(err).Msg("bot")
		}
		if err := scheduleReports(scheduler, cfg, telegramBot, log); err != nil {
			log.Fatal().Err(err).Msg("schedule reports")
		}
	}

	scheduler.Start()
	defer scheduler.Stop()

	log.Info().Msg("planner started")
	if telegramBot != nil {
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("bot stopped with error")
		}
	}
	<-ctx.Done()

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}
	}
	log.Info().Msg("shutdown complete")
}

// newRecorder keeps generation metrics in Redis when REDIS_URL is set and
// reachable, in memory otherwise.
func newRecorder(ctx context.Context, url string, log zerolog.Logger) metrics.Recorder {
	if url == "" {
		return metrics.NewMemory()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rdb, err := metrics.Connect(pingCtx, url)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, metrics kept in memory")
		return metrics.NewMemory()
	}
	return metrics.NewRedisRecorder(rdb)
}

func scheduleReports(scheduler *service.SchedulerService, cfg config.Config, telegramBot *bot.Bot, log zerolog.Logger) error {
	job := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("report")
		}
	}
	if cfg.ReportTime != "" {
		_, err := scheduler.ScheduleDaily(cfg.ReportTime, job)
		return err
	}
	if cfg.ReportInterval > 0 {
		_, err := scheduler.ScheduleInterval(cfg.ReportInterval, job)
		return err
	}
	return nil
}
