package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/config"
	"github.com/kailas-cloud/hwfinder/internal/db"
	dbRedis "github.com/kailas-cloud/hwfinder/internal/db/redis"
	"github.com/kailas-cloud/hwfinder/internal/domain"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
	"github.com/kailas-cloud/hwfinder/internal/domain/query"
	"github.com/kailas-cloud/hwfinder/internal/metrics"
	"github.com/kailas-cloud/hwfinder/internal/repository/catalog"
	"github.com/kailas-cloud/hwfinder/internal/repository/embcache"
	openaiT "github.com/kailas-cloud/hwfinder/internal/transport/openai"
	rodT "github.com/kailas-cloud/hwfinder/internal/transport/rod"
	batchuc "github.com/kailas-cloud/hwfinder/internal/usecase/batch"
	"github.com/kailas-cloud/hwfinder/internal/usecase/conversation"
	detailuc "github.com/kailas-cloud/hwfinder/internal/usecase/detail"
	"github.com/kailas-cloud/hwfinder/internal/usecase/dialogue"
	"github.com/kailas-cloud/hwfinder/internal/usecase/diversify"
	"github.com/kailas-cloud/hwfinder/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/hwfinder/internal/usecase/health"
	"github.com/kailas-cloud/hwfinder/internal/usecase/retrieve"
)

// services is the composition root shared by every subcommand.
type services struct {
	mode     query.Mode
	store    db.Store
	fetcher  *rodT.Fetcher
	embedder *embcache.CachedEmbedder
	catalog  *catalog.Repo
	registry *conversation.Registry
	dialogue *dialogue.Service
	details  *detailuc.Service
	batch    *batchuc.Service
	health   *healthuc.Service
	logger   *zap.Logger
	closers  []func()
}

// Close releases the browser and the database connection.
func (r *services) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// buildLocalIndex connects to Redis and assembles the embedding chain:
// OpenAI -> Cached (for documents) -> QueryEmbedder (for queries, outermost so the cache key includes the instruction).
func buildLocalIndex(ctx context.Context, cfg config.Config, logger *zap.Logger) (*services, error) {
	rt := &services{logger: logger}
	li := cfg.LocalIndex

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    li.Addrs,
		Username: li.Username,
		Password: li.Password,
		DB:       li.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	rt.closers = append(rt.closers, store.Close)

	if err := store.WaitForReady(ctx, config.Seconds(li.ReadinessTimeout)); err != nil {
		rt.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	rt.store = store

	emb := li.Embedding
	base := openaiT.NewEmbedder(&openaiT.Config{
		Provider:   emb.Provider,
		APIKey:     emb.APIKey,
		BaseURL:    emb.BaseURL,
		APIVersion: emb.APIVersion,
		Model:      emb.Model,
		Dimensions: emb.Dimensions,
	}, logger)
	rt.embedder = embcache.New(base, store, emb.Model,
		time.Duration(emb.CacheTTLHours)*time.Hour, metrics.EmbeddingCacheTotal, logger,
		embcache.WithMemoryEntries(emb.MemoryCacheEntries))

	var queryEmbedder domain.Embedder = rt.embedder
	if emb.QueryInstruction != "" {
		queryEmbedder = domain.NewQueryEmbedder(rt.embedder, emb.QueryInstruction)
	}

	rt.catalog = catalog.New(store, queryEmbedder, catalog.Config{
		IndexName:   li.IndexName,
		KeyPrefix:   li.KeyPrefix,
		HNSWM:       li.HNSWM,
		EFConstruct: li.HNSWEFConstruct,
	}, logger)

	logger.Info("Local index connected",
		zap.Strings("addrs", li.Addrs),
		zap.String("index", li.IndexName),
		zap.String("embedding_model", emb.Model),
	)
	return rt, nil
}

// buildRuntime wires every use case from the configuration.
func buildRuntime(ctx context.Context, cfg config.Config, logger *zap.Logger) (*services, error) {
	metrics.Register()

	rt := &services{logger: logger}
	if cfg.LocalIndex.Enabled {
		local, err := buildLocalIndex(ctx, cfg, logger)
		if err != nil {
			if query.Mode(cfg.Retrieval.Mode) == query.Local {
				return nil, err
			}
			// Hybrid keeps serving from the online source alone.
			logger.Warn("Local index disabled", zap.Error(err))
		} else {
			rt = local
		}
	}

	// Pass nil interfaces (not typed nil pointers) for sources that are not configured.
	var online retrieve.OnlineFetcher
	if cfg.OnlineEnabled() {
		oc := cfg.Online
		rt.fetcher = rodT.New(rodT.Config{
			BaseURL:       oc.BaseURL,
			SearchPath:    oc.SearchPath,
			LoginPath:     oc.LoginPath,
			Email:         oc.Email,
			Password:      oc.Password,
			Headless:      oc.Headless,
			ControlURL:    oc.ControlURL,
			SettleTimeout: config.Seconds(oc.SettleTimeoutSec),
			MaxResults:    oc.MaxResults,
			Selectors:     selectorsFromConfig(oc.Selectors),
		}, logger)
		rt.closers = append(rt.closers, func() {
			if err := rt.fetcher.Close(); err != nil {
				logger.Warn("Close browser", zap.Error(err))
			}
		})
		online = rt.fetcher
	}
	var local retrieve.LocalIndex
	if rt.catalog != nil {
		local = rt.catalog
	}

	reasoner := openaiT.NewReasoner(&openaiT.Config{
		Provider:   cfg.Reasoner.Provider,
		APIKey:     cfg.Reasoner.APIKey,
		BaseURL:    cfg.Reasoner.BaseURL,
		APIVersion: cfg.Reasoner.APIVersion,
		Model:      cfg.Reasoner.Model,
		User:       cfg.Reasoner.User,
	}, logger)
	reasonerTimeout := config.Seconds(cfg.Reasoner.TimeoutSec)

	retriever := retrieve.New(online, local, retrieve.Options{
		Mode:              query.Mode(cfg.Retrieval.Mode),
		FetchTimeout:      config.Seconds(cfg.Online.TimeoutSec),
		IndexTimeout:      config.Seconds(cfg.LocalIndex.TimeoutSec),
		MinOnlineResults:  cfg.Retrieval.MinOnlineResults,
		OverfetchMultiple: cfg.Retrieval.OverfetchMultiple,
		MaxCandidates:     cfg.Retrieval.MaxCandidates,
	}, logger)
	rt.mode = retriever.Mode()

	extractor := extract.New(reasoner, logger).WithMode(rt.mode).WithTimeout(reasonerTimeout)
	diversifier := diversify.New(cfg.Diversify.DedupThreshold)

	rt.dialogue = dialogue.New(extractor, retriever, diversifier, reasoner, dialogue.Options{
		Target:            cfg.Dialogue.TargetShortlistSize,
		ReasonMaxTokens:   cfg.Dialogue.ReasonMaxTokens,
		ReasonConcurrency: cfg.Dialogue.ReasonConcurrency,
		MaxClarifications: cfg.Dialogue.MaxClarifications,
		Timeout:           reasonerTimeout,
		HistoryTurns:      cfg.Dialogue.HistoryTurns,
	}, logger)
	rt.registry = conversation.NewRegistry(rt.dialogue, logger)

	rt.batch = batchuc.New(extractor, retriever, diversifier, cfg.Dialogue.TargetShortlistSize, logger).
		WithConcurrency(cfg.Batch.Concurrency).
		WithMaxBatchSize(cfg.Batch.MaxBatchSize)

	var authFetcher detailuc.AuthenticatedFetcher = disabledFetcher{}
	if rt.fetcher != nil {
		authFetcher = rt.fetcher
	}
	details, err := detailuc.New(authFetcher, cfg.Detail.CacheSize, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create detail resolver: %w", err)
	}
	rt.details = details.WithTimeout(config.Seconds(cfg.Online.TimeoutSec))

	checks := map[string]healthuc.Checker{}
	if rt.store != nil {
		checks["database"] = healthuc.CheckFunc(rt.store.Ping)
		checks["local_index"] = healthuc.CheckFunc(rt.indexReady)
	}
	checks["reasoner"] = healthuc.CheckFunc(reasoner.HealthCheck)
	rt.health = healthuc.New(rt.mode.Label(), checks)

	logger.Info("Search mode determined",
		zap.String("mode", rt.mode.Label()),
		zap.Bool("online", online != nil),
		zap.Bool("local_index", local != nil),
	)
	return rt, nil
}

func (r *services) indexReady(ctx context.Context) error {
	ok, err := r.catalog.Ready(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrIndexUnavailable
	}
	return nil
}

// disabledFetcher answers detail lookups when the online source is turned off.
type disabledFetcher struct{}

func (disabledFetcher) FetchByName(context.Context, string) ([]product.Raw, error) {
	return nil, fmt.Errorf("online source disabled: %w", domain.ErrFetch)
}

func selectorsFromConfig(s config.SelectorsConfig) rodT.Selectors {
	return rodT.Selectors{
		Tile:          s.Tile,
		Name:          s.Name,
		Price:         s.Price,
		Link:          s.Link,
		Image:         s.Image,
		Description:   s.Description,
		SKU:           s.SKU,
		Detail:        s.Detail,
		LoginEmail:    s.LoginEmail,
		LoginPassword: s.LoginPassword,
		LoginSubmit:   s.LoginSubmit,
		LoggedIn:      s.LoggedIn,
	}
}
