// Package retrieval implements the hybrid knowledge retriever: a dense
// similarity index combined with a lexical BM25 index, optional LLM query
// rewrite and reranking, over two named collections (knowledge_base and
// product_catalog).
package retrieval

import "context"

// Document is a single passage returned by Retrieve, annotated with the
// metadata the retrieval pipeline attaches (retrieval_method, hybrid_search,
// reranked).
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"-"`
}

// Params is one call to Retrieve.
type Params struct {
	Query           string
	Collection      string
	TopK            int
	Filter          map[string]string
	UseHybridSearch bool
	UseRerank       bool
	UseQueryRewrite bool
}

// VectorIndex is a pluggable dense similarity index over L2-normalized
// embedding vectors, scored by inner product (equivalent to cosine for
// normalized vectors).
type VectorIndex interface {
	Upsert(ctx context.Context, collection, id string, vector []float32, content string, metadata map[string]string) error
	Delete(ctx context.Context, collection, id string) error
	Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]candidate, error)
	Count(ctx context.Context, collection string) (int, error)
}

// candidate is an internal scored hit before it's promoted to a Document.
type candidate struct {
	id       string
	content  string
	metadata map[string]string
	score    float64
	dense    bool
	lexical  bool
}
