package main

import (
	"flag"
	"testing"
	"time"

	"github.com/clariondata/intentline/intent"
)

func TestParseFlagsDefaults(t *testing.T) {
	t.Parallel()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{"-csv", "events.csv"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.CSVPath != "events.csv" {
		t.Fatalf("CSVPath = %q", cfg.CSVPath)
	}
	if cfg.OutPath != "intent_result.json" {
		t.Fatalf("OutPath = %q", cfg.OutPath)
	}
	if cfg.SessionTimeout != 30*time.Minute {
		t.Fatalf("SessionTimeout = %v", cfg.SessionTimeout)
	}
	if cfg.BatchSize != 50 || cfg.Concurrency != 15 {
		t.Fatalf("batch/concurrency = %d/%d", cfg.BatchSize, cfg.Concurrency)
	}
	if !cfg.Resume {
		t.Fatal("Resume must default to true")
	}
	if cfg.SingleCall || cfg.WithRecommendations || cfg.PlainText {
		t.Fatal("mode switches must default to false")
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	t.Parallel()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := parseFlags(fs, []string{
		"-csv", "e.csv",
		"-out", "r.json",
		"-model", "gpt-5",
		"-session-timeout", "45m",
		"-batch-size", "25",
		"-batch-pause", "0s",
		"-single-call",
		"-with-recommendations",
		"-resume=false",
		"-users", "a,b",
		"-max-users", "10",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.SessionTimeout != 45*time.Minute || cfg.BatchSize != 25 || cfg.BatchPause != 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.SingleCall || !cfg.WithRecommendations || cfg.Resume {
		t.Fatalf("switches wrong: %+v", cfg)
	}
	if cfg.Users != "a,b" || cfg.MaxUsers != 10 {
		t.Fatalf("user selection wrong: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	base := defaultConfig()
	base.CSVPath = "e.csv"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing csv", func(c *Config) { c.CSVPath = "" }, true},
		{"missing out", func(c *Config) { c.OutPath = "" }, true},
		{"missing model", func(c *Config) { c.Model = "" }, true},
		{"zero session timeout", func(c *Config) { c.SessionTimeout = 0 }, true},
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }, true},
		{"negative batch size", func(c *Config) { c.BatchSize = -1 }, true},
		{"negative pause", func(c *Config) { c.BatchPause = -time.Second }, true},
		{"negative max users", func(c *Config) { c.MaxUsers = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSelectUsers(t *testing.T) {
	t.Parallel()
	users := []intent.UserEvents{{UserID: "a"}, {UserID: "b"}, {UserID: "c"}}

	got := selectUsers(append([]intent.UserEvents(nil), users...), "b, c", 0)
	if len(got) != 2 || got[0].UserID != "b" || got[1].UserID != "c" {
		t.Fatalf("filtered = %+v", got)
	}

	got = selectUsers(append([]intent.UserEvents(nil), users...), "", 2)
	if len(got) != 2 || got[1].UserID != "b" {
		t.Fatalf("capped = %+v", got)
	}

	got = selectUsers(append([]intent.UserEvents(nil), users...), "zzz", 0)
	if len(got) != 0 {
		t.Fatalf("unknown filter = %+v", got)
	}
}
