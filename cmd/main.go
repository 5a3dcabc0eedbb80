package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/urfave/cli/v3"

	"autopress/internal/batch"
	"autopress/internal/cache"
	"autopress/internal/config"
	"autopress/internal/core/generate"
	"autopress/internal/core/job"
	"autopress/internal/core/media"
	"autopress/internal/core/pipeline"
	"autopress/internal/core/publish"
	"autopress/internal/core/research"
	"autopress/internal/core/seo"
	"autopress/internal/keys"
	"autopress/internal/keywords"
	"autopress/internal/logger"
	"autopress/internal/platform/llm"
	rds "autopress/internal/platform/redis"
	"autopress/internal/platform/tasks"
	"autopress/internal/ratelimit"
	"autopress/internal/server"
	"autopress/internal/worker"
	"autopress/prompts"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "autopress",
		Usage: "keyword-to-published-article pipeline",
		Commands: []*cli.Command{
			runCommand(),
			serveCommand(),
			checkCommand(),
			cacheCommand(),
		},
		DefaultCommand: "run",
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// app bundles the wired services shared by every command.
type app struct {
	cfg      config.Config
	log      *logger.Logger
	redis    *rds.Service
	cache    *cache.Store
	rate     *ratelimit.Controller
	rotator  *keys.Rotator
	jobs     *job.Service
	wpClient *publish.Client
	pubSvc   *publish.Service
	orch     *pipeline.Orchestrator
}

// bootstrap wires the full service graph. requireRedis distinguishes serve
// mode (hard dependency) from run mode, which degrades to in-memory caching
// when Redis is unreachable.
func bootstrap(requireRedis bool) (*app, error) {
	cfg := config.Load()
	logr := logger.New("main")

	if len(cfg.GeminiAPIKeys) == 0 {
		return nil, fmt.Errorf("no Gemini API keys configured (set GEMINI_API_KEY or a key pools file)")
	}
	if cfg.WordPressURL == "" || cfg.WordPressUsername == "" || cfg.WordPressAppPassword == "" {
		return nil, fmt.Errorf("WordPress credentials are required (WP_URL, WP_USERNAME, WP_APP_PASSWORD)")
	}

	var (
		backend cache.Backend
		store   keys.StateStore
	)
	redisSvc, err := rds.New(rds.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		if requireRedis {
			return nil, fmt.Errorf("redis is required: %w", err)
		}
		logr.LogWarnf("Redis unavailable, caching and credential state will not survive this run: %v", err)
		redisSvc = nil
		backend = cache.NewMemoryBackend()
	} else {
		backend = cache.NewRedisBackend(redisSvc)
		store = keys.NewRedisStore(redisSvc)
	}

	rate := ratelimit.NewController()
	rate.Configure(config.ServiceGemini, cfg.GeminiRateLimit, cfg.GeminiRateWindow)
	rate.Configure(config.ServiceWordPress, cfg.WordPressRateLimit, cfg.WordPressRateWindow)
	rate.Configure(config.ServiceImage, cfg.ImageRateLimit, cfg.ImageRateWindow)
	rate.Configure(config.ServiceVideo, cfg.VideoRateLimit, cfg.VideoRateWindow)

	rotator := keys.NewRotator(keys.Options{
		MaxErrors: float64(cfg.KeyMaxErrors),
		Cooldown:  cfg.KeyCooldown,
		Store:     store,
	})
	rotator.Register(context.Background(), config.ServiceGemini, cfg.GeminiAPIKeys)

	cacheStore := cache.NewStore(backend)
	jobSvc := job.NewService(redisSvc)

	llmSvc := llm.NewService(llm.Config{Provider: "gemini", Model: cfg.GeminiModel})
	sp := prompts.NewSystemPrompts()
	researchSvc := research.NewService(llmSvc, sp)
	generateSvc := generate.NewService(llmSvc, sp)

	wpClient := publish.NewClient(publish.Options{
		BaseURL:     cfg.WordPressURL,
		Username:    cfg.WordPressUsername,
		AppPassword: cfg.WordPressAppPassword,
		UseYoastSEO: cfg.UseYoastSEO,
	})
	registry := publish.NewRegistry(redisSvc)
	pubSvc := publish.NewService(wpClient, registry)
	seoSvc := seo.NewService(wpClient, cfg.DefaultCategory)

	deps := &pipeline.Deps{
		Cache: cacheStore,
		Rate:  rate,
		Keys:  rotator,
		Log:   logger.New("Pipeline"),
	}
	orch := pipeline.NewOrchestrator(
		deps,
		jobSvc,
		researchSvc,
		generateSvc,
		seoSvc,
		media.NewImageFinder(),
		media.NewVideoFinder(),
		pubSvc,
		pipeline.StageConfig{
			CacheTTL:         cfg.CacheTTL,
			MediaCacheTTL:    cfg.MediaCacheTTL,
			GenerateAttempts: cfg.GenerateMaxAttempts,
			PublishAttempts:  cfg.PublishMaxAttempts,
			LookupAttempts:   cfg.LookupMaxAttempts,
			RetryBaseDelay:   cfg.RetryBaseDelay,
			RetryMaxDelay:    cfg.RetryMaxDelay,
			ImageMaxCount:    cfg.ImageMaxCount,
			VideoMaxCount:    cfg.VideoMaxCount,
		},
	)

	return &app{
		cfg:      cfg,
		log:      logr,
		redis:    redisSvc,
		cache:    cacheStore,
		rate:     rate,
		rotator:  rotator,
		jobs:     jobSvc,
		wpClient: wpClient,
		pubSvc:   pubSvc,
		orch:     orch,
	}, nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "process keywords through the pipeline",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "single keyword (repeatable)"},
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "keyword file, one per line"},
			&cli.IntFlag{Name: "max", Usage: "cap the number of keywords processed"},
			&cli.BoolFlag{Name: "shuffle", Usage: "shuffle keywords before processing"},
			&cli.IntFlag{Name: "workers", Usage: "concurrent jobs (default from WORKERS)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer a.close()

			kws, err := resolveKeywords(cmd, a.cfg)
			if err != nil {
				return err
			}
			if len(kws) == 0 {
				return fmt.Errorf("no keywords to process")
			}

			workers := int(cmd.Int("workers"))
			if workers <= 0 {
				workers = a.cfg.Workers
			}

			started := time.Now()
			runner := batch.NewRunner(a.orch)
			summary := runner.Run(ctx, kws, batch.Options{
				Max:      int(cmd.Int("max")),
				Shuffle:  cmd.Bool("shuffle"),
				Workers:  workers,
				Interval: a.cfg.JobInterval,
			})

			for _, j := range summary.Jobs {
				switch j.Status {
				case job.StatusSucceeded:
					a.log.LogSuccessf("%-12s %s -> %s", j.Status, j.Keyword, j.Permalink)
				case job.StatusSkipped:
					a.log.LogInfof("%-12s %s", j.Status, j.Keyword)
				default:
					a.log.LogErrorf("%-12s %s (%s: %s)", j.Status, j.Keyword, j.FailedStage, j.Error)
				}
			}
			a.log.LogInfof("Processed %d keywords in %s: %d succeeded, %d failed, %d skipped",
				summary.Total, time.Since(started).Round(time.Second), summary.Succeeded, summary.Failed, summary.Skipped)
			if !summary.OK() {
				return cli.Exit(fmt.Sprintf("%d of %d keywords failed", summary.Failed, summary.Total), 1)
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and task worker",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := bootstrap(true)
			if err != nil {
				return err
			}
			defer a.close()
			cfg := a.cfg

			taskClient := tasks.New(a.redis)
			asynqServer := asynq.NewServer(a.redis.AsynqRedisOpt(), asynq.Config{
				Concurrency: cfg.Workers,
				Queues:      map[string]int{"default": 1},
			})

			mux := worker.NewMux()
			worker.RegisterKeywordHandler(mux, a.orch, a.jobs)

			go func() {
				if err := asynqServer.Start(mux.Mux()); err != nil {
					log.Printf("[worker] stopped: %v\n", err)
				}
			}()

			fiberApp := fiber.New(fiber.Config{
				AppName: "Autopress Engine",
				JSONEncoder: func(v interface{}) ([]byte, error) {
					var buf bytes.Buffer
					encoder := json.NewEncoder(&buf)
					encoder.SetEscapeHTML(false)
					if err := encoder.Encode(v); err != nil {
						return nil, err
					}
					return buf.Bytes(), nil
				},
			})

			healthHandler := server.RegisterRoutes(fiberApp, server.Dependencies{
				Jobs:           a.jobs,
				Tasks:          taskClient,
				Cache:          a.cache,
				Redis:          a.redis,
				TaskQueue:      "default",
				TaskMaxRetries: cfg.TaskMaxRetries,
			})

			go func() {
				time.Sleep(2 * time.Second)
				healthHandler.SetReady()
			}()

			go func() {
				<-ctx.Done()
				a.log.LogInfo("Shutting down...")
				asynqServer.Shutdown()
				_ = fiberApp.ShutdownWithTimeout(5 * time.Second)
			}()

			a.log.LogInfof("Serving at %s (env=%s)", cfg.HTTPAddr, cfg.AppEnv)
			return fiberApp.Listen(cfg.HTTPAddr)
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "verify configuration and remote connectivity",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer a.close()

			a.log.LogInfof("Gemini credential pool: %d key(s)", a.rotator.PoolSize(config.ServiceGemini))

			if a.redis != nil {
				if err := a.redis.HealthCheck(ctx); err != nil {
					a.log.LogError("Redis check failed", err)
				} else {
					a.log.LogSuccess("Redis reachable")
				}
			}

			if err := a.wpClient.CheckConnection(ctx); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			a.log.LogSuccess("All checks passed")
			return nil
		},
	}
}

func cacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "cache maintenance",
		Commands: []*cli.Command{
			{
				Name:  "clean",
				Usage: "purge cached stage results",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "stage", Usage: "limit purge to one stage (research, generate, seo, image, video)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := bootstrap(true)
					if err != nil {
						return err
					}
					defer a.close()

					removed, err := a.cache.Purge(ctx, cmd.String("stage"))
					if err != nil {
						return err
					}
					a.log.LogSuccessf("Removed %d cache entries", removed)
					return nil
				},
			},
		},
	}
}

// resolveKeywords picks the keyword source: explicit flags first, then a
// file, then the configured keywords directory.
func resolveKeywords(cmd *cli.Command, cfg config.Config) ([]string, error) {
	if kws := cmd.StringSlice("keyword"); len(kws) > 0 {
		return kws, nil
	}
	if file := cmd.String("file"); file != "" {
		return keywords.ReadFile(file)
	}
	return keywords.ReadDir(cfg.KeywordsDir)
}
