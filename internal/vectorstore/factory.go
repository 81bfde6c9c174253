package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures a Store implementation.
type Config struct {
	// Provider selects the backend: "qdrant" or "chromem".
	// Default: "chromem" (embedded, zero external dependencies).
	Provider string

	Qdrant  QdrantConfig
	Chromem ChromemConfig
}

// NewStore creates a Store for the configured provider.
//
//   - "chromem" (default): embedded ChromemStore, no external server
//   - "qdrant": QdrantStore over gRPC, requires a running Qdrant
func NewStore(cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(cfg.Chromem, logger)
	case "qdrant":
		return NewQdrantStore(cfg.Qdrant)
	default:
		return nil, fmt.Errorf("%w: %s (supported: chromem, qdrant)", ErrUnknownProvider, cfg.Provider)
	}
}
