package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cafenotice/noticebot/config"
	"cafenotice/noticebot/internal/command"
	"cafenotice/noticebot/internal/crawler"
	"cafenotice/noticebot/internal/discord"
	"cafenotice/noticebot/internal/keepalive"
	"cafenotice/noticebot/logger"
	"cafenotice/noticebot/services/cache"
	"cafenotice/noticebot/services/poller"
	"cafenotice/noticebot/services/publisher"
	"cafenotice/noticebot/services/scheduler"
	"cafenotice/noticebot/services/seen"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("fetch_mode", cfg.FetchMode).
		Str("schedule", cfg.PollSchedule).
		Str("seen_backend", cfg.SeenBackend).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	// Create crawlers
	crawlers := crawler.CreateCrawlers(cfg, crawler.NewFetcher(cfg))
	if len(crawlers) == 0 {
		log.Fatal().Msg("No crawlers were created")
	}

	log.Info().
		Int("crawler_count", len(crawlers)).
		Msg("Created crawlers")

	p := poller.NewPoller(crawlers, services.Seen, services.Publisher, poller.Options{
		KeyMode:      cfg.SeenKey,
		PrimeOnStart: cfg.PrimeOnStart,
	})

	sched, err := scheduler.New(ctx, cfg.PollSchedule, p.PollAll)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	// Commands and the first poll need the poller; the poller needs the bot as publisher
	services.Bot.Commands = command.NewDispatcher(p, cfg.CommandRatePerMin)
	services.Bot.OnReady = func(context.Context) {
		sched.RunOnce()
	}

	if err := services.Bot.Open(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to open discord session")
	}

	sched.Start()
	defer sched.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Start keep-alive server in a goroutine
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- keepalive.NewServer(cfg.KeepAliveAddr, p).Run(ctx)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	case err := <-serverDone:
		if err != nil {
			log.Error().Err(err).Msg("Keep-alive server exited with error")
		} else {
			log.Info().Msg("Keep-alive server exited normally")
		}
		cancel()
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Seen      seen.Store
	Bot       *discord.Bot
	Publisher publisher.Publisher
	Redis     *redis.Client
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.Warn("Failed to close publishers: %v", err)
		}
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Redis backs the seen set and/or the stream mirror
	if cfg.SeenBackend == config.SeenBackendRedis || cfg.RedisStream != "" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		services.Redis = client

		logger.Info("Connected to Redis at %s (DB: %d)", cfg.RedisAddr, cfg.RedisDB)
	}

	// Initialize seen store
	switch cfg.SeenBackend {
	case config.SeenBackendMemcache:
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := cacheService.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to memcache at %s: %w", cfg.MemcacheAddr, err)
		}
		services.Seen = seen.NewCacheStore(cacheService, "notice:seen:")

		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	case config.SeenBackendRedis:
		services.Seen = seen.NewRedisStore(services.Redis, cfg.RedisSeenKey)
	default:
		services.Seen = seen.NewMemoryStore()
	}

	// Initialize publishers
	bot, err := discord.New(discord.Config{
		Token:       cfg.DiscordToken,
		ChannelID:   cfg.NoticeChannelID,
		ChannelName: cfg.NoticeChannelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create discord bot: %w", err)
	}
	services.Bot = bot

	publishers := publisher.Multi{bot}
	if cfg.RedisStream != "" {
		publishers = append(publishers, publisher.NewRedisPublisher(
			services.Redis,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		))

		logger.Info("Mirroring notices to Redis stream %s (%d shards)", cfg.RedisStream, cfg.RedisStreamCount)
	}
	services.Publisher = publishers

	return services, nil
}
