package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Clark-Hu/movie-catalog/db"
	"github.com/Clark-Hu/movie-catalog/internal/auth"
	"github.com/Clark-Hu/movie-catalog/internal/config"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/events"
	httpserver "github.com/Clark-Hu/movie-catalog/internal/http"
	"github.com/Clark-Hu/movie-catalog/internal/rating"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/store"
	"github.com/Clark-Hu/movie-catalog/internal/upload"
)

func main() {
	promote := flag.String("promote-admin", "", "grant the admin role to the account with this email, then exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stderr, "[movie-catalog] ", log.LstdFlags|log.Lshortfile)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	if cfg.DBAutoMigrate {
		if err := st.Migrate(dbCtx, db.Migrations); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
	}

	repo := repository.New(st)
	if *promote != "" {
		if err := promoteAdmin(dbCtx, repo, *promote); err != nil {
			log.Fatalf("promote admin: %v", err)
		}
		logger.Printf("granted admin role to %s", *promote)
		return
	}

	uploads := upload.NewStorage(cfg.PublicDir, cfg.UploadMaxBytes)
	if err := uploads.EnsureDirs(); err != nil {
		log.Fatalf("prepare upload dirs: %v", err)
	}

	var revocations auth.Revocations = auth.NewMemoryRevocations()
	if client := auth.DialRedis(dbCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger); client != nil {
		defer client.Close()
		revocations = auth.NewRedisRevocations(client, logger)
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		publisher = events.NewAMQPPublisher(cfg.AMQPURL, cfg.ReviewEventsQueue, logger)
	}

	server := httpserver.New(cfg, st, repo, httpserver.Options{
		Recalculator: rating.NewRecalculator(repo, logger),
		Issuer:       auth.NewIssuer(cfg.JWTSecret, time.Duration(cfg.SessionTTLHours)*time.Hour),
		Revocations:  revocations,
		Uploads:      uploads,
		Events:       publisher,
	}, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on :%s", cfg.Port)
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
}

func promoteAdmin(ctx context.Context, repo *repository.Repository, email string) error {
	user, err := repo.Users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find %s: %w", email, err)
	}
	return repo.Users.SetRole(ctx, user.ID, domain.RoleAdmin)
}
