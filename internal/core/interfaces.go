package core

import "context"

// ChatBackend sends one chat completion to a remote API
type ChatBackend interface {
	// Complete executes a single non-streaming completion
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// SecretFetcher looks up a secret value by name in a vault
type SecretFetcher interface {
	GetSecret(ctx context.Context, name string) (string, error)
}
