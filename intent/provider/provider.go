// Package provider abstracts the model backend behind a single Generate
// call so the analysis pipeline can run against the real API or a fake.
package provider

import "context"

// Request describes one model call. A nil Schema requests free text; a
// non-nil Schema requests strict schema-constrained JSON output.
type Request struct {
	Prompt          string
	SchemaName      string
	Schema          map[string]interface{}
	MaxOutputTokens int64
}

// Reply carries the model's raw output. Structured is true when the backend
// enforced a JSON schema, meaning Text parses directly without repair.
type Reply struct {
	Structured bool
	Text       string
}

// Caller is implemented by model backends.
type Caller interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}
