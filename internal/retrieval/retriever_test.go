package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/northstar-market/concierge/internal/llm"
)

// fakeEmbedServer returns a fixed embedding per distinct input string so
// tests can control which document a query is "closest" to.
func fakeEmbedServer(t *testing.T, vectors map[string][]float32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		type datum struct {
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Data []datum `json:"data"`
		}{}
		for _, in := range req.Input {
			v, ok := vectors[in]
			if !ok {
				v = []float32{0, 0, 1}
			}
			resp.Data = append(resp.Data, datum{Embedding: v})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestRetriever_EmptyCollectionShortCircuits(t *testing.T) {
	dir := t.TempDir()
	idx, _ := NewLocalIndex(dir)
	srv := fakeEmbedServer(t, nil)
	defer srv.Close()
	emb := NewEmbedder(srv.Client(), srv.URL, "k", "m")

	r := NewRetriever(idx, emb, nil)
	docs := r.Retrieve(context.Background(), Params{Query: "anything", Collection: "knowledge_base", TopK: 5})
	if docs != nil {
		t.Fatalf("expected nil docs for empty collection, got %+v", docs)
	}
}

func TestRetriever_DenseOnlyReturnsClosestDocument(t *testing.T) {
	dir := t.TempDir()
	idx, _ := NewLocalIndex(dir)
	ctx := context.Background()
	_ = idx.Upsert(ctx, "knowledge_base", "doc1", []float32{1, 0, 0}, "refund policy covers damaged items", nil)
	_ = idx.Upsert(ctx, "knowledge_base", "doc2", []float32{0, 1, 0}, "shipping takes five days", nil)

	srv := fakeEmbedServer(t, map[string][]float32{"refunds": {1, 0, 0}})
	defer srv.Close()
	emb := NewEmbedder(srv.Client(), srv.URL, "k", "m")

	r := NewRetriever(idx, emb, nil)
	docs := r.Retrieve(ctx, Params{Query: "refunds", Collection: "knowledge_base", TopK: 1})
	if len(docs) != 1 || docs[0].ID != "doc1" {
		t.Fatalf("expected doc1, got %+v", docs)
	}
	if docs[0].Metadata["retrieval_method"] != "dense" {
		t.Fatalf("expected dense retrieval_method, got %+v", docs[0].Metadata)
	}
}

func TestRetriever_HybridAnnotatesMetadata(t *testing.T) {
	dir := t.TempDir()
	idx, _ := NewLocalIndex(dir)
	ctx := context.Background()
	_ = idx.Upsert(ctx, "knowledge_base", "doc1", []float32{1, 0}, "refund policy covers damaged items", nil)

	srv := fakeEmbedServer(t, map[string][]float32{"refund policy": {1, 0}})
	defer srv.Close()
	emb := NewEmbedder(srv.Client(), srv.URL, "k", "m")

	r := NewRetriever(idx, emb, nil)
	docs := r.Retrieve(ctx, Params{Query: "refund policy", Collection: "knowledge_base", TopK: 5, UseHybridSearch: true})
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %+v", docs)
	}
	if docs[0].Metadata["hybrid_search"] != "true" {
		t.Fatalf("expected hybrid_search=true, got %+v", docs[0].Metadata)
	}
}

type fakeProvider struct {
	response llm.Message
	err      error
}

func (f *fakeProvider) Invoke(ctx context.Context, msgs []llm.Message) (llm.Message, error) {
	return f.response, f.err
}
func (f *fakeProvider) InvokeStream(ctx context.Context, msgs []llm.Message, h llm.StreamHandler) error {
	return f.err
}
func (f *fakeProvider) BindTools(tools []llm.ToolSchema) llm.Provider { return f }

func TestRetriever_RerankFallsBackToScoreOrderOnUnparsableResponse(t *testing.T) {
	dir := t.TempDir()
	idx, _ := NewLocalIndex(dir)
	ctx := context.Background()
	_ = idx.Upsert(ctx, "knowledge_base", "doc1", []float32{1, 0}, "best match", nil)
	_ = idx.Upsert(ctx, "knowledge_base", "doc2", []float32{0, 1}, "weaker match", nil)

	srv := fakeEmbedServer(t, map[string][]float32{"q": {1, 0}})
	defer srv.Close()
	emb := NewEmbedder(srv.Client(), srv.URL, "k", "m")

	provider := &fakeProvider{response: llm.Message{Content: "not json at all"}}
	r := NewRetriever(idx, emb, provider)

	docs := r.Retrieve(ctx, Params{Query: "q", Collection: "knowledge_base", TopK: 2, UseRerank: true})
	if len(docs) != 2 {
		t.Fatalf("expected fallback to score order with 2 docs, got %+v", docs)
	}
	if docs[0].Metadata["reranked"] != "false" {
		t.Fatalf("expected reranked=false on fallback, got %+v", docs[0].Metadata)
	}
}

func TestRetriever_AddAndDeleteDocument(t *testing.T) {
	dir := t.TempDir()
	idx, _ := NewLocalIndex(dir)
	srv := fakeEmbedServer(t, nil)
	defer srv.Close()
	emb := NewEmbedder(srv.Client(), srv.URL, "k", "m")
	r := NewRetriever(idx, emb, nil)
	ctx := context.Background()

	if err := r.AddDocuments(ctx, "knowledge_base", []string{"d1", "d2"}, []string{"a", "b"}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, _ := idx.Count(ctx, "knowledge_base")
	if n != 2 {
		t.Fatalf("expected 2 docs, got %d", n)
	}

	if err := r.DeleteDocument(ctx, "knowledge_base", "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, _ = idx.Count(ctx, "knowledge_base")
	if n != 1 {
		t.Fatalf("expected 1 doc after delete, got %d", n)
	}
}
