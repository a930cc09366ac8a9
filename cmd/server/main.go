package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flextalent-auth/internal/config"
	"github.com/iliyamo/flextalent-auth/internal/database"
	"github.com/iliyamo/flextalent-auth/internal/handler"
	"github.com/iliyamo/flextalent-auth/internal/mailer"
	"github.com/iliyamo/flextalent-auth/internal/queue"
	"github.com/iliyamo/flextalent-auth/internal/repository"
	"github.com/iliyamo/flextalent-auth/internal/router"
	"github.com/iliyamo/flextalent-auth/internal/service"
	"github.com/iliyamo/flextalent-auth/internal/session"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env directly

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	rdb := config.NewRedisClient() // nil disables rate limiting
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewResetTokenRepo(db)

	codec := session.NewCodec(cfg.AuthSecret)
	hasher := service.BcryptHasher{Cost: cfg.BcryptCost}
	publisher := queue.NewPublisher(cfg.AmqpURL)

	reset := service.NewResetFlowService(users, tokens, hasher, publisher, cfg.AppBaseURL)
	verify := service.NewVerificationFlowService(users, hasher, publisher, nil, cfg.AppBaseURL)

	// The mail consumer runs inside the same process; without an SMTP
	// relay configured, published events simply wait on the queue.
	if cfg.SMTPHost != "" {
		m := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			From:     cfg.SMTPFrom,
			Password: cfg.SMTPPassword,
		})
		go func() {
			if err := queue.StartMailConsumer(cfg.AmqpURL, m); err != nil {
				log.Printf("mail consumer stopped: %v", err)
			}
		}()
	} else {
		log.Println("SMTP_HOST not set; mail consumer disabled")
	}

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, codec, reset, verify), codec, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
