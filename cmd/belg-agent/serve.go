package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Asul0/belg-agent/config"
	"github.com/Asul0/belg-agent/internal/clients"
	"github.com/Asul0/belg-agent/internal/dialogue"
	"github.com/Asul0/belg-agent/internal/nlu"
	"github.com/Asul0/belg-agent/internal/search"
	"github.com/Asul0/belg-agent/internal/server"
	"github.com/Asul0/belg-agent/internal/telegram"
	"github.com/Asul0/belg-agent/internal/telemetry"
	"github.com/Asul0/belg-agent/provider"
	"github.com/Asul0/belg-agent/session"
	"github.com/Asul0/belg-agent/tools/embedding"
	"github.com/Asul0/belg-agent/tools/web_fetch"
	"github.com/Asul0/belg-agent/tools/web_search"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the event-search bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return serve
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.New()

	registry, err := provider.NewRegistry(cfg.LLM, log.New(log.Writer(), "[LLM] ", log.LstdFlags))
	if err != nil {
		return err
	}

	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey)
	if err != nil {
		return err
	}
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.ChromedpFetcherType,
		time.Duration(cfg.Fetch.TimeoutMS), cfg.Fetch.MaxChars)
	if err != nil {
		return err
	}

	sessionStore, err := search.NewSessionStore(session.StoreType(cfg.Retrieval.Store), cfg.Databases.Redis)
	if err != nil {
		return err
	}

	pipelineLogger := log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	pipeline := &search.Pipeline{
		Queries: search.QueryGenerator{AggregatorSites: cfg.Search.AggregatorSites},
		Collector: &search.Collector{
			Searcher:    searcher,
			Fetcher:     fetcher,
			MaxPerQuery: cfg.Search.MaxPerQuery,
			Logger:      pipelineLogger,
		},
		Chunker: search.Chunker{Size: cfg.Retrieval.ChunkSize, Overlap: cfg.Retrieval.ChunkOverlap},
		Retriever: &search.Retriever{
			Embedding: embedding.NewEmbedding(registry.For(provider.PurposeExtract)),
			Store:     sessionStore,
			TopK:      cfg.Retrieval.TopK,
			TTL:       time.Duration(cfg.Retrieval.TTLHours) * time.Hour,
			Logger:    pipelineLogger,
		},
		Classifier: &search.Classifier{
			LLM:     registry.For(provider.PurposeExtract),
			Logger:  pipelineLogger,
			Metrics: metrics,
		},
		Metrics: metrics,
		Logger:  pipelineLogger,
	}

	lookup, err := clients.NewLookup(cfg.Clients, log.New(log.Writer(), "[CLIENTS] ", log.LstdFlags))
	if err != nil {
		return err
	}

	dialogueLogger := log.New(log.Writer(), "[DIALOGUE] ", log.LstdFlags)
	store := dialogue.NewStore(cfg.Dialogue.SessionTTL, metrics, dialogueLogger)
	if err := store.RunSweeper(ctx.Done(), cfg.Dialogue.SweepSchedule); err != nil {
		return err
	}

	manager := &dialogue.Manager{
		Store:        store,
		Pipeline:     pipeline,
		Assistant:    &nlu.Assistant{LLM: registry.For(provider.PurposeNLU), Logger: dialogueLogger},
		Clients:      lookup,
		MessageLimit: cfg.Telegram.MessageLimit,
		Logger:       dialogueLogger,
	}

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server, store, log.New(log.Writer(), "[HTTP] ", log.LstdFlags))
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("[HTTP] server stopped: %v", err)
			}
		}()
	}

	bot, err := telegram.NewBot(cfg.Telegram.Token, manager, log.New(log.Writer(), "[TELEGRAM] ", log.LstdFlags))
	if err != nil {
		return err
	}
	return bot.Run(ctx)
}
