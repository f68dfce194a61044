// Package llm adapts one debate turn into a request against an external
// text-generation provider, exposing the response as a lazy stream of
// fragments. Credential lookup is a collaborator concern: providers receive
// an already-resolved secret and never persist it.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoCredential marks a provider for which no secret could be resolved.
// The runner surfaces it before attempting any generation call.
var ErrNoCredential = errors.New("no credential configured for provider")

// Message is one entry of the replayed conversation, in provider-neutral
// chat form. Role is "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Request describes a single streaming generation call.
type Request struct {
	Model       string
	Temperature float64
	MaxTokens   int
	System      string
	Messages    []Message
}

// Provider streams text fragments for one generation request. The fragment
// channel is closed when generation finishes; a terminal failure is
// delivered on the error channel. Streams are finite and not restartable.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (<-chan string, <-chan error)
}

// Opener resolves a concrete provider client for a provider name and an
// already-resolved API secret.
type Opener interface {
	Open(provider, apiKey string) (Provider, error)
}

// Factory is the default Opener backed by the official SDK clients.
type Factory struct{}

// Open returns a streaming client for the named provider.
func (Factory) Open(provider, apiKey string) (Provider, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// Resolver is the credential collaborator: it maps a provider name to a
// secret, or reports absence via ErrNoCredential.
type Resolver interface {
	Resolve(provider string) (string, error)
}

// Credential is one configured provider secret.
type Credential struct {
	Provider string
	APIKey   string
	Priority int
}

// StaticResolver resolves credentials from a fixed profile list, preferring
// the lowest priority value per provider.
type StaticResolver struct {
	byProvider map[string]Credential
}

// NewStaticResolver builds a resolver from configured credentials.
func NewStaticResolver(creds []Credential) *StaticResolver {
	byProvider := make(map[string]Credential, len(creds))
	for _, c := range creds {
		if c.APIKey == "" {
			continue
		}
		existing, ok := byProvider[c.Provider]
		if !ok || c.Priority < existing.Priority {
			byProvider[c.Provider] = c
		}
	}
	return &StaticResolver{byProvider: byProvider}
}

// Resolve returns the secret for a provider or ErrNoCredential.
func (r *StaticResolver) Resolve(provider string) (string, error) {
	c, ok := r.byProvider[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoCredential, provider)
	}
	return c.APIKey, nil
}
