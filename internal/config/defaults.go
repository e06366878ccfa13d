package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/eiga/data/catalog.db"
	}
	if cfg.Catalog.DebounceMS == 0 {
		cfg.Catalog.DebounceMS = 500
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderONNX
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/eiga/data/models/all-MiniLM-L6-v2.onnx"
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
	if cfg.Embedding.GeminiModel == "" {
		cfg.Embedding.GeminiModel = "text-embedding-004"
	}
	if cfg.Embedding.GeminiAPIKeyEnv == "" {
		cfg.Embedding.GeminiAPIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Recommend.DefaultLimit == 0 {
		cfg.Recommend.DefaultLimit = 5
	}
	if cfg.Recommend.MaxLimit == 0 {
		cfg.Recommend.MaxLimit = 50
	}
	if cfg.Recommend.PosterBaseURL == "" {
		cfg.Recommend.PosterBaseURL = "https://image.tmdb.org/t/p/w500"
	}
}

// DefaultConfig returns a config with every default applied. Used when no config file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
