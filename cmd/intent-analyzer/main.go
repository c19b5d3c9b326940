package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/lpernett/godotenv"
	"go.uber.org/zap"

	"github.com/clariondata/intentline/intent"
	"github.com/clariondata/intentline/intent/provider"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("loading -env-file: %w", err).Error())
			os.Exit(2)
		}
	} else {
		_ = godotenv.Load()
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY (or pass -api-key)")
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("run_id", intent.NewRunID()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, apiKey, logger); err != nil {
		logger.Error("analysis run failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

func run(ctx context.Context, cfg Config, apiKey string, logger *zap.Logger) error {
	events, err := intent.LoadEvents(cfg.CSVPath)
	if err != nil {
		return err
	}
	users := intent.GroupByUser(events)
	users = selectUsers(users, cfg.Users, cfg.MaxUsers)
	if len(users) == 0 {
		return fmt.Errorf("no matching users in %s", cfg.CSVPath)
	}
	logger.Info("events loaded",
		zap.String("csv", cfg.CSVPath),
		zap.Int("events", len(events)),
		zap.Int("users", len(users)),
	)

	prompts := intent.DefaultPrompts()
	if cfg.PromptDir != "" {
		if err := prompts.LoadOverrides(cfg.PromptDir); err != nil {
			return err
		}
	}

	caller, err := provider.NewOpenAI(apiKey, cfg.Model)
	if err != nil {
		return err
	}

	store := intent.NewStore(cfg.OutPath)
	skip := map[string]struct{}{}
	if cfg.Resume {
		skip, err = store.CompletedUsers()
		if err != nil {
			return err
		}
		if len(skip) > 0 {
			logger.Info("resuming", zap.Int("completed_users", len(skip)))
		}
	}

	mode := intent.ModeStaged
	if cfg.SingleCall {
		mode = intent.ModeSingleCall
	}
	analyzer := &intent.Analyzer{
		Caller:              caller,
		Store:               store,
		Log:                 logger,
		Prompts:             prompts,
		Mode:                mode,
		WithRecommendations: cfg.WithRecommendations,
		PlainText:           cfg.PlainText,
		SessionTimeout:      cfg.SessionTimeout,
		BatchSize:           cfg.BatchSize,
		Concurrency:         cfg.Concurrency,
		BatchPause:          cfg.BatchPause,
	}

	if err := analyzer.AnalyzeAll(ctx, users, skip); err != nil {
		return err
	}

	doc, err := store.Load()
	if err != nil {
		return err
	}
	stats := intent.ComputeStats(doc)
	logger.Info("analysis complete",
		zap.String("out", cfg.OutPath),
		zap.Int("users", stats.TotalUsers),
		zap.Int("segments", stats.TotalSegments),
		zap.Float64("avg_confidence", stats.Confidence.Average),
	)
	return nil
}

func selectUsers(users []intent.UserEvents, filter string, maxUsers int) []intent.UserEvents {
	if filter != "" {
		wanted := make(map[string]struct{})
		for _, id := range strings.Split(filter, ",") {
			if id = strings.TrimSpace(id); id != "" {
				wanted[id] = struct{}{}
			}
		}
		kept := users[:0]
		for _, ue := range users {
			if _, ok := wanted[ue.UserID]; ok {
				kept = append(kept, ue)
			}
		}
		users = kept
	}
	if maxUsers > 0 && len(users) > maxUsers {
		users = users[:maxUsers]
	}
	return users
}
