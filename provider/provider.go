package provider

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Asul0/belg-agent/config"
	"github.com/Asul0/belg-agent/provider/gigachat"
	openai_provider "github.com/Asul0/belg-agent/provider/openai"
)

// Purpose distinguishes the two call profiles the bot needs: event
// extraction runs with a higher temperature and bigger completions
// than the intent/NLU calls.
type Purpose string

const (
	PurposeExtract Purpose = "extract"
	PurposeNLU     Purpose = "nlu"
)

// Provider is the black-box LLM collaborator: given a system prompt
// and a user prompt it returns text, and it can embed texts into a
// shared vector space.
type Provider interface {
	Chat(ctx context.Context, system, user string) (string, error)
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Registry holds one eagerly constructed provider per purpose. Eager
// construction surfaces credential problems at startup instead of on a
// user's first search, and removes the construct-once race of a lazy
// cache.
type Registry struct {
	providers map[Purpose]Provider
}

// NewRegistry builds providers for every purpose up front.
func NewRegistry(cfg config.LLMConfig, logger *log.Logger) (*Registry, error) {
	r := &Registry{providers: make(map[Purpose]Provider)}
	for purpose, profile := range map[Purpose]struct {
		temperature float64
		maxTokens   int
	}{
		PurposeExtract: {cfg.ExtractTemperature, cfg.ExtractMaxTokens},
		PurposeNLU:     {cfg.NLUTemperature, cfg.NLUMaxTokens},
	} {
		p, err := newProvider(cfg, profile.temperature, profile.maxTokens, logger)
		if err != nil {
			return nil, fmt.Errorf("building %s provider: %w", purpose, err)
		}
		r.providers[purpose] = p
	}
	return r, nil
}

// For returns the provider for a purpose. Purposes are fixed at
// compile time, so a miss is a programming error.
func (r *Registry) For(p Purpose) Provider {
	prov, ok := r.providers[p]
	if !ok {
		panic(fmt.Sprintf("no provider registered for purpose %q", p))
	}
	return prov
}

func newProvider(cfg config.LLMConfig, temperature float64, maxTokens int, logger *log.Logger) (Provider, error) {
	switch cfg.Type {
	case "gigachat":
		return gigachat.NewClient(gigachat.Options{
			Credentials:    cfg.GigaChat.Credentials,
			Scope:          cfg.GigaChat.Scope,
			Model:          cfg.GigaChat.Model,
			EmbeddingModel: cfg.GigaChat.EmbeddingModel,
			VerifySSL:      cfg.GigaChat.VerifySSL,
			Temperature:    temperature,
			MaxTokens:      maxTokens,
			Timeout:        cfg.Timeout,
			Logger:         logger,
		})
	case "openai":
		return openai_provider.NewClient(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.BaseURL,
			cfg.OpenAI.Model,
			cfg.OpenAI.EmbeddingModel,
			temperature,
			maxTokens,
			cfg.Timeout,
		), nil
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
