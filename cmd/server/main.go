package main

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avdeevk/job-board/internal/config"
	"github.com/avdeevk/job-board/internal/database"
	"github.com/avdeevk/job-board/internal/handler"
	"github.com/avdeevk/job-board/internal/queue"
	"github.com/avdeevk/job-board/internal/repository"
	"github.com/avdeevk/job-board/internal/router"
	"github.com/avdeevk/job-board/internal/service"
	"github.com/avdeevk/job-board/internal/token"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer func() { _ = db.Close() }()

	rdb := config.NewRedisClient()
	if rdb == nil {
		// Token revocation cannot work without Redis; refuse to start.
		log.Fatal("redis: connection required for the token denylist")
	}

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	entries := repository.NewEntryRepo(db)
	vacancies := repository.NewVacancyRepo(db)
	resumes := repository.NewResumeRepo(db)
	comments := repository.NewCommentRepo(db)
	revoked := repository.NewRedisTokenStore(rdb)

	accessTTL := time.Duration(cfg.AccessTTLMin) * time.Minute
	refreshTTL := time.Duration(cfg.RefreshTTLHours) * time.Hour
	codec := token.NewCodec(cfg.AccessSecret, cfg.RefreshSecret, accessTTL, refreshTTL)

	auth := service.NewAuthService(users, roles, entries, revoked, codec, cfg.BcryptCost)

	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:      handler.NewAuthHandler(auth, refreshTTL),
		Roles:     handler.NewRoleHandler(roles),
		Vacancies: handler.NewVacancyHandler(vacancies),
		Resumes:   handler.NewResumeHandler(resumes),
		Comments:  handler.NewCommentHandler(comments, vacancies),
	}, auth, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
