package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".resumatch/data/resumatch.db"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = ".resumatch/uploads"
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = SourceFile
	}
	if cfg.Source.Kind == SourceFile && cfg.Source.Path == "" {
		cfg.Source.Path = ".resumatch/jobs.csv"
	}
	if cfg.Source.Pages == 0 {
		cfg.Source.Pages = 2
	}
	if cfg.Source.Country == "" {
		cfg.Source.Country = "gb"
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 15 * time.Second
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 30 * time.Minute
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 256
	}
	if cfg.Matching.TopN == 0 {
		cfg.Matching.TopN = 100
	}
	if cfg.Matching.KeywordCount == 0 {
		cfg.Matching.KeywordCount = 30
	}
	if cfg.Matching.PageSize == 0 {
		cfg.Matching.PageSize = 10
	}
	if cfg.Matching.FullTextWeight == 0 && cfg.Matching.KeywordWeight == 0 {
		cfg.Matching.FullTextWeight = 0.5
		cfg.Matching.KeywordWeight = 0.5
	}
	if cfg.Matching.ResultTTL == 0 {
		cfg.Matching.ResultTTL = time.Hour
	}
	if cfg.Matching.MaxResults == 0 {
		cfg.Matching.MaxResults = 512
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = ".resumatch/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = 10 * time.Minute
	}
	if cfg.Monitor.Pages == 0 {
		cfg.Monitor.Pages = 1
	}
	if cfg.Monitor.TopN == 0 {
		cfg.Monitor.TopN = 10
	}
	if cfg.Monitor.Workers == 0 {
		cfg.Monitor.Workers = 1
	}
}
