package embed

import (
	"fmt"
	"time"

	"github.com/cortexdesk/cortexrag/internal/config"
)

// New builds the Embedder named by cfg.Provider, wrapping it in an LRU
// cache sized by cfg.CacheSize. "unavailable" skips the cache since it
// never returns a vector worth remembering; an "http" provider with an
// empty model also yields the uncached unavailable stub, so no request
// is ever sent.
func New(cfg config.EmbeddingsConfig) (Embedder, error) {
	switch cfg.Provider {
	case "unavailable", "":
		return NewUnavailableEmbedder(cfg.Dimension, cfg.Model), nil
	case "http":
		if cfg.Model == "" {
			return NewUnavailableEmbedder(cfg.Dimension, cfg.Model), nil
		}
		base := NewHTTPEmbedder(HTTPConfig{
			Endpoint:   cfg.Endpoint,
			Model:      cfg.Model,
			Dimensions: cfg.Dimension,
			BatchSize:  cfg.BatchSize,
			Timeout:    30 * time.Second,
		})
		return NewCachedEmbedder(base, cfg.CacheSize)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
}
