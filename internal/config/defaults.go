package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = "/usr/local/var/bookrs/data/artifacts"
	}
	if cfg.Catalog.DatabasePath == "" {
		cfg.Catalog.DatabasePath = "/usr/local/var/bookrs/data/db/catalog.db"
	}
	if cfg.Catalog.BleveIndexPath == "" {
		cfg.Catalog.BleveIndexPath = "/usr/local/var/bookrs/data/indices/bleve"
	}
	if cfg.Encoder.ModelPath == "" {
		cfg.Encoder.ModelPath = "/usr/local/var/bookrs/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Encoder.Dimensions == 0 {
		cfg.Encoder.Dimensions = 384
	}
	if cfg.Encoder.MaxTokens == 0 {
		cfg.Encoder.MaxTokens = 128
	}
	if cfg.Encoder.CacheSize == 0 {
		cfg.Encoder.CacheSize = 1024
	}
	if cfg.Recommend.SemanticWeight == 0 && cfg.Recommend.CFWeight == 0 {
		cfg.Recommend.SemanticWeight = 0.7
		cfg.Recommend.CFWeight = 0.3
	}
	if cfg.Recommend.CandidateFloor == 0 {
		cfg.Recommend.CandidateFloor = 50
	}
	if cfg.Recommend.DefaultTopK == 0 {
		cfg.Recommend.DefaultTopK = 10
	}
	if cfg.Recommend.MaxTopK == 0 {
		cfg.Recommend.MaxTopK = 100
	}
}
