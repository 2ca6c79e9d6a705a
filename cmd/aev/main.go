package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/adaptive-vault/aev/internal/config"
	"github.com/adaptive-vault/aev/internal/engine"
	"github.com/adaptive-vault/aev/internal/feed"
	"github.com/adaptive-vault/aev/internal/logger"
	"github.com/adaptive-vault/aev/internal/state"
	"github.com/adaptive-vault/aev/internal/web"
)

// main is the entry point for the AEV engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Msg("AEV Engine Starting...")

	// Initialize Database Connection (optional: the engine runs in memory
	// without one)
	var sink engine.SnapshotSink
	if config.DatabaseURL != "" {
		if err := state.InitDB(config.DatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		sink = state.Store{}
	} else {
		log.Warn().Msg("DATABASE_URL not set, running without persistence")
	}

	// Load Engine Parameters
	engineParams := config.DefaultEngineParameters
	if state.DB != nil {
		loaded, err := state.LoadActiveEngineParameters(config.DefaultParamsName)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load active engine parameters, using defaults and saving.")
			if _, err := state.SaveEngineParameters(engineParams, config.DefaultParamsName, config.DefaultParamsVersion, true); err != nil {
				log.Fatal().Err(err).Msg("Failed to save initial default engine parameters.")
			}
		} else {
			engineParams = *loaded
		}
	}
	log.Info().Msg("Engine parameters loaded successfully.")

	// --- 2. Create Engine ---
	eng, err := engine.NewEngine(engineParams, sink, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	// --- 3. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, eng)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting AEV web API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 4. Start Volatility Feed ---
	if config.FeedURL != "" {
		feedClient := feed.NewClient(config.FeedURL, func(sampleBps int64, ts time.Time) error {
			_, err := eng.Execute(engine.RecordVolatilityCmd{SampleBps: sampleBps, Timestamp: ts})
			return err
		})
		go feedClient.Run(ctx)
	} else {
		log.Warn().Msg("AEV_FEED_URL not set, epoch durations will hold at the base value")
	}

	// --- 5. Start Engine Crank Loop ---
	log.Info().Str("interval", config.CrankInterval.String()).Msg("Starting engine crank loop")
	eng.RunLoop(ctx, config.CrankInterval)
}
