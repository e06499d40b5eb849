// Package llm is the thin model-provider boundary. Callers describe one
// completion at a time; schema enforcement happens server-side where the
// provider supports it, and callers re-validate locally regardless.
package llm

import "context"

// Request describes a single completion call.
type Request struct {
	System    string         // system message
	Prompt    string         // user message
	SchemaName string        // name for the structured-output schema
	Schema    map[string]any // JSON Schema; nil requests plain JSON output
	MaxTokens int            // 0 uses the provider default
}

// Client produces one completion per call. Implementations return
// *model.HTTPError for status failures so retry logic can classify them.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
