package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/tactics-board/internal/api"
	"github.com/npezzotti/tactics-board/internal/auth"
	"github.com/npezzotti/tactics-board/internal/config"
	"github.com/npezzotti/tactics-board/internal/database"
	"github.com/npezzotti/tactics-board/internal/server"
	"github.com/npezzotti/tactics-board/internal/stats"
	"github.com/npezzotti/tactics-board/internal/suggest"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// envDuration reads a duration from the environment. Unset or empty
// variables yield def.
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

var (
	addr              string
	dsn               string
	signingKey        string
	allowedOrigins    stringSliceFlag
	idleTimeout       time.Duration
	cleanupInterval   time.Duration
	suggestProvider   string
	suggestModel      string
	suggestBaseURL    string
	suggestionTimeout time.Duration
)

func main() {
	logger := log.New(os.Stdout, "[tactics] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Fatal("load .env:", err)
	}

	durationDefault := func(key string, def time.Duration) time.Duration {
		d, err := envDuration(key, def)
		if err != nil {
			logger.Fatal("config:", err)
		}
		return d
	}

	if v := os.Getenv("TACTICS_ALLOWED_ORIGINS"); v != "" {
		allowedOrigins.Set(v)
	}

	flag.StringVar(&addr, "addr", envOr("TACTICS_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("TACTICS_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", envOr("TACTICS_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&idleTimeout, "room-idle-timeout", durationDefault("TACTICS_ROOM_IDLE_TIMEOUT", config.DefaultRoomIdleTimeout), "how long a room without active members is kept")
	flag.DurationVar(&cleanupInterval, "cleanup-interval", durationDefault("TACTICS_CLEANUP_INTERVAL", config.DefaultCleanupInterval), "interval of the inactive room sweep")
	flag.StringVar(&suggestProvider, "suggest-provider", envOr("TACTICS_SUGGEST_PROVIDER", "none"), "analysis suggestion provider (none, openai, groq)")
	flag.StringVar(&suggestModel, "suggest-model", envOr("TACTICS_SUGGEST_MODEL", ""), "model used for suggestions")
	flag.StringVar(&suggestBaseURL, "suggest-base-url", envOr("TACTICS_SUGGEST_BASE_URL", ""), "override the provider API URL")
	flag.DurationVar(&suggestionTimeout, "suggest-timeout", durationDefault("TACTICS_SUGGEST_TIMEOUT", config.DefaultSuggestionTimeout), "deadline for one suggestion request")
	flag.Parse()

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}
	if err := cfg.WithRoomTimeouts(idleTimeout, cleanupInterval); err != nil {
		logger.Fatal("config:", err)
	}
	err = cfg.WithSuggestions(config.SuggestionConfig{
		Provider: suggestProvider,
		// keys stay out of the process arguments
		APIKey:  os.Getenv("TACTICS_SUGGEST_API_KEY"),
		Model:   suggestModel,
		BaseURL: suggestBaseURL,
		Timeout: suggestionTimeout,
	})
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgTacticsRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if err := dbConn.Migrate(logger); err != nil {
		logger.Fatal("db migrate:", err)
	}

	suggester, err := suggest.New(cfg.Suggestions.Provider, cfg.Suggestions.APIKey, cfg.Suggestions.Model, cfg.Suggestions.BaseURL)
	if err != nil {
		logger.Fatal("suggestions:", err)
	}
	if suggester == nil {
		logger.Println("analysis suggestions disabled")
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	jwt := auth.NewJWT(cfg.SigningKey)

	store, err := server.NewRoomStore(logger, statsUpdater, server.StoreConfig{
		IdleTimeout:       cfg.RoomIdleTimeout,
		CleanupInterval:   cfg.CleanupInterval,
		SuggestionTimeout: cfg.Suggestions.Timeout,
		Verifier:          jwt,
		Suggester:         suggester,
		Archiver:          dbConn,
	})
	if err != nil {
		logger.Fatal("new room store:", err)
	}

	srv := api.NewTacticsApp(mux, logger, store, dbConn, jwt, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go store.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down room store...")
	if err := store.Shutdown(shutDownCtx); err != nil {
		logger.Println("room store shutdown:", err)
	}

	logger.Println("shutdown complete")
}
