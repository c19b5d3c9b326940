// Command ops-recommender back-fills operation recommendations onto an
// existing intent result document. It only touches segments that have no
// recommendation yet, so it can be re-run safely after interrupted or
// intent-only analysis runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lpernett/godotenv"
	"go.uber.org/zap"

	"github.com/clariondata/intentline/intent"
	"github.com/clariondata/intentline/intent/provider"
)

type Config struct {
	ResultPath string
	Model      string
	APIKey     string
	Pause      time.Duration
	PlainText  bool
	PromptDir  string
	Verbose    bool
}

func (c Config) Validate() error {
	if c.ResultPath == "" {
		return errors.New("missing -results")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.Pause < 0 {
		return errors.New("pause must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		ResultPath: "intent_result.json",
		Model:      "gpt-5-mini",
		Pause:      200 * time.Millisecond,
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.ResultPath, "results", cfg.ResultPath, "Path to the JSON result document to annotate")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model to use (e.g. gpt-5-mini)")
	fs.DurationVar(&cfg.Pause, "pause", cfg.Pause, "Pause between consecutive model calls")
	fs.BoolVar(&cfg.PlainText, "plain-text", false, "Disable schema-constrained output and rely on lenient decoding")
	fs.StringVar(&cfg.PromptDir, "prompt-dir", "", "Optional directory of prompt template overrides")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose (debug) logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

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

	_ = godotenv.Load()
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY (or pass -api-key)")
		os.Exit(2)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompts := intent.DefaultPrompts()
	if cfg.PromptDir != "" {
		if err := prompts.LoadOverrides(cfg.PromptDir); err != nil {
			logger.Error("loading prompt overrides failed", zap.Error(err))
			os.Exit(1)
		}
	}

	caller, err := provider.NewOpenAI(apiKey, cfg.Model)
	if err != nil {
		logger.Error("building model client failed", zap.Error(err))
		os.Exit(1)
	}

	rec := &intent.Recommender{
		Caller:    caller,
		Store:     intent.NewStore(cfg.ResultPath),
		Log:       logger,
		Prompts:   prompts,
		PlainText: cfg.PlainText,
		Pause:     cfg.Pause,
	}
	generated, err := rec.Run(ctx)
	if err != nil {
		logger.Error("recommendation pass failed",
			zap.Int("generated", generated),
			zap.Error(err),
		)
		os.Exit(1)
	}
	logger.Info("recommendation pass complete",
		zap.String("results", cfg.ResultPath),
		zap.Int("generated", generated),
	)
}
