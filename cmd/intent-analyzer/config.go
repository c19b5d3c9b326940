package main

import (
	"errors"
	"flag"
	"os"
	"time"
)

type Config struct {
	CSVPath             string
	OutPath             string
	Model               string
	APIKey              string
	Users               string
	MaxUsers            int
	SessionTimeout      time.Duration
	Concurrency         int
	BatchSize           int
	BatchPause          time.Duration
	SingleCall          bool
	WithRecommendations bool
	Resume              bool
	PlainText           bool
	PromptDir           string
	EnvFile             string
	Verbose             bool
}

func (c Config) Validate() error {
	if c.CSVPath == "" {
		return errors.New("missing -csv")
	}
	if c.OutPath == "" {
		return errors.New("missing -out")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.SessionTimeout <= 0 {
		return errors.New("session-timeout must be > 0")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must be >= 0")
	}
	if c.BatchSize < 0 {
		return errors.New("batch-size must be >= 0")
	}
	if c.BatchPause < 0 {
		return errors.New("batch-pause must be >= 0")
	}
	if c.MaxUsers < 0 {
		return errors.New("max-users must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		OutPath:        "intent_result.json",
		Model:          "gpt-5-mini",
		SessionTimeout: 30 * time.Minute,
		Concurrency:    15,
		BatchSize:      50,
		BatchPause:     time.Second,
		Resume:         true,
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.CSVPath, "csv", cfg.CSVPath, "Path to the clickstream CSV export")
	fs.StringVar(&cfg.OutPath, "out", cfg.OutPath, "Path to the JSON result document")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model to use (e.g. gpt-5-mini)")
	fs.StringVar(&cfg.Users, "users", "", "Comma-separated user IDs to analyze (default: all users in the CSV)")
	fs.IntVar(&cfg.MaxUsers, "max-users", 0, "Analyze only the first N users (0 = all)")
	fs.DurationVar(&cfg.SessionTimeout, "session-timeout", cfg.SessionTimeout, "Inactivity gap that ends a time session")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Max users analyzed concurrently")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Max actions per model call in filter/segmentation")
	fs.DurationVar(&cfg.BatchPause, "batch-pause", cfg.BatchPause, "Pause between consecutive model calls within a user")
	fs.BoolVar(&cfg.SingleCall, "single-call", false, "Run one fused filter+segment+analyze call per time session")
	fs.BoolVar(&cfg.WithRecommendations, "with-recommendations", false, "Generate operation recommendations in the same analysis call")
	fs.BoolVar(&cfg.Resume, "resume", cfg.Resume, "Skip users already present in the result document")
	fs.BoolVar(&cfg.PlainText, "plain-text", false, "Disable schema-constrained output and rely on lenient decoding")
	fs.StringVar(&cfg.PromptDir, "prompt-dir", "", "Optional directory of prompt template overrides")
	fs.StringVar(&cfg.EnvFile, "env-file", "", "Optional .env file to load before reading environment variables")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose (debug) logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
