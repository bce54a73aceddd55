package main

import (
	"fmt"

	"github.com/hyperjump/resumatch/internal/cache"
	"github.com/hyperjump/resumatch/internal/config"
	"github.com/hyperjump/resumatch/internal/embedding"
	"github.com/hyperjump/resumatch/internal/extract"
	"github.com/hyperjump/resumatch/internal/keyword"
	"github.com/hyperjump/resumatch/internal/matcher"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/monitor"
	"github.com/hyperjump/resumatch/internal/ranking"
	"github.com/hyperjump/resumatch/internal/source"
	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/pkg/utils"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Storage   storage.Storage
	Embedder  embedding.Embedder
	Keywords  *keyword.Extractor
	Ranker    *ranking.Ranker
	Extractor *extract.Extractor
	// Source is the cached posting source shared by requests and the monitor.
	Source *source.Cached
	// FileSource is the underlying table when source.kind is "file", else nil.
	FileSource *source.FileSource
	Matcher    *matcher.Service
}

// Close releases storage and embedder resources.
func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// NewScheduler builds a stopped monitoring scheduler over the shared components.
func (c *Components) NewScheduler(logger *zap.Logger) *monitor.Scheduler {
	m := c.Config.Monitor
	return monitor.New(c.Storage, c.Source, c.Extractor, c.Ranker, monitor.Config{
		Interval: m.Interval,
		Pages:    m.Pages,
		TopN:     m.TopN,
		MinScore: m.MinScore,
		Workers:  m.Workers,
	}, logger)
}

func newSource(cfg *config.Config, logger *zap.Logger) (source.Source, *source.FileSource, error) {
	switch cfg.Source.Kind {
	case config.SourceFile:
		fsrc := source.NewFileSource(cfg.Source.Path, cfg.Source.PageSize, logger)
		return fsrc, fsrc, nil
	case config.SourceAdzuna:
		if cfg.Source.AppID == "" || cfg.Source.AppKey == "" {
			logger.Warn("adzuna credentials missing; searches will return no postings",
				zap.String("env_app_id", config.EnvAdzunaAppID), zap.String("env_app_key", config.EnvAdzunaAppKey))
		}
		return source.NewAdzunaSource(source.AdzunaConfig{
			BaseURL:  cfg.Source.BaseURL,
			AppID:    cfg.Source.AppID,
			AppKey:   cfg.Source.AppKey,
			Country:  cfg.Source.Country,
			PageSize: cfg.Source.PageSize,
			Timeout:  cfg.Source.Timeout,
		}, logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.Open(embedding.Options{
		ModelPath:  cfg.Embedding.ModelPath,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	inner, fileSource, err := newSource(cfg, logger)
	if err != nil {
		_ = store.Close()
		_ = embedder.Close()
		return nil, err
	}
	postings := cache.New[[]models.Posting](cfg.Cache.MaxEntries, cfg.Cache.TTL, cache.WithKeyNormalizer(utils.NormalizeKey))
	src := source.NewCached(inner, postings)

	keywords := keyword.NewExtractor(embedder)
	ranker := ranking.NewRanker(keywords, &ranking.RankingConfig{
		FullTextWeight:   cfg.Matching.FullTextWeight,
		KeywordWeight:    cfg.Matching.KeywordWeight,
		KeywordCount:     cfg.Matching.KeywordCount,
		Workers:          cfg.Matching.Workers,
		KeywordCacheSize: cfg.Matching.KeywordCacheSize,
	}, ranking.WithLogger(logger))

	results := matcher.NewResultStore(cfg.Matching.MaxResults, cfg.Matching.ResultTTL)
	svc := matcher.NewService(src, ranker, keywords, results, matcher.Config{
		TopN:  cfg.Matching.TopN,
		Pages: cfg.Source.Pages,
	}, logger)

	return &Components{
		Config:     cfg,
		Storage:    store,
		Embedder:   embedder,
		Keywords:   keywords,
		Ranker:     ranker,
		Extractor:  extract.NewExtractor(),
		Source:     src,
		FileSource: fileSource,
		Matcher:    svc,
	}, nil
}
