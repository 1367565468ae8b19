package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lab-access-api/internal/config"
	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/lab-access-api/internal/infrastructure/jwt"
	s3infra "github.com/lab-access-api/internal/infrastructure/s3"
	"github.com/lab-access-api/internal/infrastructure/smtp"
	"github.com/lab-access-api/internal/store"
	transporthttp "github.com/lab-access-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	tokenProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("activity token keys: %v", err)
	}

	deps, sweepers := buildDeps(cfg, tokenProvider)

	router := transporthttp.NewRouter(cfg, deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go sweep(ctx, sweepers, cfg.SweepInterval)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, storage=%s)", cfg.AppPort, cfg.AppEnv, cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// buildDeps wires the storage backend the configuration selects. The second
// return value lists every store the background sweeper should visit.
func buildDeps(cfg *config.Config, tokens *jwtinfra.Provider) (*transporthttp.Deps, []store.Sweeper) {
	mailer := smtp.NewMailer(cfg)

	s3Client := s3infra.NewClient(cfg)
	sink := s3infra.NewStore(s3Client, cfg.S3BucketName)

	if cfg.StorageBackend == "memory" {
		fixtures, err := loadFixtures(cfg.DevFixturesPath)
		if err != nil {
			log.Fatalf("memory backend: %v", err)
		}
		deps := &transporthttp.Deps{
			Sessions:      store.NewMemory[domain.Session](nil),
			Codes:         store.NewMemory[domain.VerificationCode](nil),
			Reservations:  store.NewMemory[domain.Reservation](nil),
			AppTokens:     store.NewMemory[domain.AppToken](nil),
			DesktopTokens: store.NewMemory[domain.DesktopToken](nil),
			DesktopIndex:  store.NewMemory[string](nil),
			Activities:    fixtures,
			Users:         fixtures,
			Sink:          sink,
			Mailer:        mailer,
			Tokens:        tokens,
		}
		return deps, sweepersOf(deps)
	}

	client := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), client, cfg.DynamoTables)

	users := dynamo.NewUserRepo(client, cfg.DynamoTables.StaffUsers)
	activities := dynamo.NewActivityRepo(client, cfg.DynamoTables.Activities)
	if cfg.DevFixturesPath != "" {
		fixtures, err := loadFixtures(cfg.DevFixturesPath)
		if err != nil {
			log.Fatalf("dynamo seed: %v", err)
		}
		if err := seedDynamo(context.Background(), users, activities, fixtures); err != nil {
			log.Fatalf("dynamo seed: %v", err)
		}
	}

	deps := &transporthttp.Deps{
		Sessions:      dynamo.NewEphemeralStore[domain.Session](client, cfg.DynamoTables.Sessions),
		Codes:         dynamo.NewEphemeralStore[domain.VerificationCode](client, cfg.DynamoTables.VerificationCodes),
		Reservations:  dynamo.NewEphemeralStore[domain.Reservation](client, cfg.DynamoTables.Reservations),
		AppTokens:     dynamo.NewEphemeralStore[domain.AppToken](client, cfg.DynamoTables.AppTokens),
		DesktopTokens: dynamo.NewEphemeralStore[domain.DesktopToken](client, cfg.DynamoTables.DesktopTokens),
		DesktopIndex:  dynamo.NewEphemeralStore[string](client, cfg.DynamoTables.DesktopTokenIndex),
		Activities:    activities,
		Users:         users,
		Sink:          sink,
		Mailer:        mailer,
		Tokens:        tokens,
	}
	return deps, sweepersOf(deps)
}

func sweepersOf(deps *transporthttp.Deps) []store.Sweeper {
	return []store.Sweeper{
		deps.Sessions, deps.Codes, deps.Reservations,
		deps.AppTokens, deps.DesktopTokens, deps.DesktopIndex,
	}
}

// sweep periodically evicts expired records. Correctness never depends on
// it: reads treat expired records as absent regardless.
func sweep(ctx context.Context, sweepers []store.Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range sweepers {
				if n, err := s.Sweep(ctx); err != nil {
					slog.Warn("sweep failed", "err", err)
				} else if n > 0 {
					slog.Debug("swept expired records", "count", n)
				}
			}
		}
	}
}
