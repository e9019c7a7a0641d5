package retrieval

import (
	"github.com/northstar-market/concierge/internal/config"
	"github.com/northstar-market/concierge/internal/llm"
)

// Build constructs a VectorIndex from the retrieval config: Qdrant when a
// DSN is configured, a local on-disk index otherwise.
func Build(cfg config.RetrievalConfig, localDir string) (VectorIndex, error) {
	if cfg.QdrantDSN != "" {
		return NewQdrantIndex(cfg.QdrantDSN, cfg.Dimensions)
	}
	return NewLocalIndex(localDir)
}

// NewRetriever wires a VectorIndex, an Embedder, and the rewrite/rerank
// provider into a Retriever.
func NewRetriever(index VectorIndex, embedder *Embedder, provider llm.Provider) *Retriever {
	return &Retriever{Index: index, Embedder: embedder, LLM: provider}
}
