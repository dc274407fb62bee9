package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"collexa/admin"
	"collexa/auth"
	"collexa/config"
	"collexa/db"
	"collexa/httpapi"
	"collexa/listing"
	"collexa/mailer"
	"collexa/ratelimit"
	"collexa/report"
	"collexa/storage"
)

const usage = `Usage:
	- start
	- migrate [up/down/drop]
`

func main() {
	if len(os.Args) == 1 {
		fmt.Print(usage)
		return
	}
	cfg := config.Load()

	switch os.Args[1] {
	case "start":
		server := apiServer{cfg: cfg}
		server.setup()
		server.run()
	case "migrate":
		if len(os.Args) < 3 {
			fmt.Print(usage)
			return
		}
		var err error
		switch os.Args[2] {
		case "up":
			err = db.MigrateUp(cfg.DatabaseURL)
		case "down":
			err = db.MigrateDown(cfg.DatabaseURL)
		case "drop":
			err = db.Drop(cfg.DatabaseURL)
		default:
			fmt.Print(usage)
			return
		}
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Println("Done")
	default:
		fmt.Print(usage)
	}
}

type apiServer struct {
	cfg        config.Config
	logger     zerolog.Logger
	pool       *pgxpool.Pool
	sweepCron  *cron.Cron
	httpServer *http.Server
}

func (s *apiServer) setup() {
	s.setupLogger()
	s.setupDB()
	s.setupHTTPServer()
}

func (s *apiServer) setupLogger() {
	var writer io.Writer = os.Stdout
	if s.cfg.Debug {
		writer = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	s.logger = zerolog.New(writer).With().Timestamp().Logger()
	if !s.cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func (s *apiServer) setupDB() {
	if err := db.MigrateUp(s.cfg.DatabaseURL); err != nil {
		s.logger.Fatal().Err(err).Msg("migrations failed")
	}
	pool, err := db.NewPool(context.Background(), s.cfg.DatabaseURL)
	if err != nil {
		s.logger.Fatal().Err(err).Msg("database connection failed")
	}
	s.pool = pool
}

func (s *apiServer) setupHTTPServer() {
	limiter := s.buildLimiter()
	blobs := s.buildBlobStore()

	authSvc := auth.NewService(auth.NewRepository(s.pool), s.buildMailer(), s.cfg.JWTSecret)

	listingRepo := listing.NewRepository(s.pool)
	listingSvc := listing.NewService(listingRepo, blobs, limiter, s.logger)

	reportSvc := report.NewService(report.NewRepository(s.pool), listingRepo, listingSvc, limiter, s.logger)

	adminSvc := admin.NewService(admin.NewRepository(s.pool))

	sweeper := listing.NewSweeper(listingRepo, s.logger)
	sweepCron, err := sweeper.Schedule(listing.DefaultSweepSchedule)
	if err != nil {
		s.logger.Fatal().Err(err).Msg("sweep schedule invalid")
	}
	s.sweepCron = sweepCron

	api := httpapi.NewServer(authSvc, listingSvc, reportSvc, adminSvc, blobs, limiter, s.logger)
	s.httpServer = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      api.Router(),
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
}

// buildLimiter prefers Redis so quotas hold across replicas; without a Redis
// URL a single-process in-memory window is used instead.
func (s *apiServer) buildLimiter() ratelimit.Limiter {
	if s.cfg.RedisURL == "" {
		s.logger.Warn().Msg("REDIS_URL not set, using in-memory rate limiting")
		return ratelimit.NewMemoryLimiter()
	}
	opts, err := redis.ParseURL(s.cfg.RedisURL)
	if err != nil {
		s.logger.Fatal().Err(err).Msg("invalid REDIS_URL")
	}
	return ratelimit.NewRedisLimiter(redis.NewClient(opts))
}

func (s *apiServer) buildBlobStore() storage.BlobStore {
	blobs, err := storage.NewCloudinary(s.cfg.CloudinaryURL, "collexa/listings")
	if err != nil {
		s.logger.Fatal().Err(err).Msg("cloudinary setup failed")
	}
	return blobs
}

func (s *apiServer) buildMailer() mailer.OTPSender {
	return mailer.NewSMTP(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.EmailFrom)
}

func (s *apiServer) run() {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg("server failed")
		}
	}()
	s.sweepCron.Start()
	s.logger.Info().Msg("ready")

	<-ctx.Done()
	stop()
	s.logger.Info().Msg("shutting down")
	s.shutdown()
}

func (s *apiServer) shutdown() {
	<-s.sweepCron.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("shutdown error")
	}
	s.pool.Close()
}
