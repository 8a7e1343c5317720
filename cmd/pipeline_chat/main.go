package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"clone-llm/internal/analysis"
	"clone-llm/internal/attribution"
	"clone-llm/internal/cache"
	"clone-llm/internal/config"
	"clone-llm/internal/db"
	"clone-llm/internal/domain"
	"clone-llm/internal/embedding"
	"clone-llm/internal/flow"
	"clone-llm/internal/llm"
	"clone-llm/internal/memory/timeseries"
	"clone-llm/internal/memory/vector"
	"clone-llm/internal/persona"
	"clone-llm/internal/pipeline"
	"clone-llm/internal/prompt"
	"clone-llm/internal/repository"
	"clone-llm/internal/session"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// pipeline_chat is a terminal harness for manually driving one persona
// through the full scatter-gather pipeline, turn by turn. It takes the
// place of the teacher's cli_chat IPIP-20 onboarding flow, which had no
// equivalent in this domain: personas are loaded from disk (C9), not built
// from a user-administered questionnaire.
func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	personas := persona.NewLoader(cfg.PersonaDir)
	if err := personas.Reload(); err != nil {
		log.Fatal(err)
	}

	personaID := os.Getenv("PERSONA_ID")
	if personaID == "" {
		all := personas.All()
		if len(all) == 0 {
			log.Fatal("no personas loaded from " + cfg.PersonaDir)
		}
		personaID = all[0].ID
	}

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.EmbeddingModel, nil)

	vectorStore, err := vector.NewStore(cfg.QdrantAddr, cfg.QdrantAPIKey, cfg.QdrantVectorSize)
	if err != nil {
		log.Fatal(err)
	}
	tsStore, err := timeseries.NewStore(ctx, cfg.ClickHouseAddr, cfg.ClickHouseDatabase, cfg.ClickHouseUser, cfg.ClickHousePassword, logger)
	if err != nil {
		logger.Warn("time-series store disabled", zap.Error(err))
	}

	var lock cache.ConversationLock = cache.NewInMemoryLock()
	if cfg.RedisAddr != "" {
		lock = cache.NewRedisLock(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
	}

	var cacheClient *redis.Client
	if cfg.CacheMode == "redis" {
		addr := cfg.RedisAddr
		if cfg.CacheHost != "" {
			addr = fmt.Sprintf("%s:%d", cfg.CacheHost, cfg.CachePort)
		}
		cacheClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	conversationCache := cache.NewConversationCache(
		cfg.CacheMode,
		cacheClient,
		cfg.ConversationCacheMaxLocal,
		time.Duration(cfg.ConversationCacheTimeoutMinutes)*time.Minute,
		logger,
	)

	orchestrator := pipeline.NewOrchestrator(
		personas,
		analysis.NewAnalyzer(llmClient, logger),
		embedding.NewProvider(llmClient),
		vectorStore,
		flow.NewAnalyzer(vectorStore, tsStore),
		session.NewManager(
			time.Duration(cfg.SessionInactivityMinutes)*time.Minute,
			cfg.SummarizationThreshold,
			nil,
		),
		conversationCache,
		lock,
		attribution.NewManager(cfg.IdentityLevel),
		prompt.NewComposer(cfg.StrictImmersiveMode, cfg.PromptTokenBudget),
		llmClient,
		repository.NewPgRelationshipRepository(pool),
		repository.NewPgFactRepository(pool),
		pipeline.NewPersistor(
			embedding.NewProvider(llmClient),
			vectorStore,
			repository.NewPgTurnRepository(pool),
			repository.NewPgRelationshipRepository(pool),
			repository.NewPgFactRepository(pool),
			tsStore,
			logger,
		),
		logger,
		time.Duration(cfg.BranchTimeoutMillis)*time.Millisecond,
		time.Duration(cfg.OverallTimeoutMillis)*time.Millisecond,
	)

	conversations := repository.NewPgConversationRepository(pool)
	conversationID := "cli_" + personaID + "_cli_user"
	now := time.Now().UTC()
	convo, err := conversations.GetByID(ctx, conversationID)
	if err != nil {
		convo = domain.ConversationSession{
			ID:           conversationID,
			PersonaID:    personaID,
			UserID:       "cli_user",
			ChannelID:    "cli",
			LastActiveAt: now,
			CreatedAt:    now,
		}
		if err := conversations.Upsert(ctx, convo); err != nil {
			log.Fatal(err)
		}
	}

	fmt.Printf("talking to %s (conversation %s). ctrl-d to quit.\n", personaID, convo.ID)
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("you> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		reply, err := orchestrator.Handle(ctx, pipeline.Inbound{
			ConversationID: convo.ID,
			PersonaID:      personaID,
			UserID:         "cli_user",
			DisplayName:    "cli_user",
			ChannelID:      "cli",
			MessageID:      uuid.NewString(),
			Content:        line,
		})
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Printf("%s> %s\n", personaID, reply)
	}
}
