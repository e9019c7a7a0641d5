package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/observability"
	"github.com/northstar-market/concierge/internal/state"
)

var errEmptyRerank = errors.New("no valid indices in rerank response")

// lexicalSearcher is the optional capability a VectorIndex may additionally
// implement to serve the BM25 half of a hybrid search; only localIndex does
// today, matching the documented "if hybrid enabled and BM25 available"
// fallback.
type lexicalSearcher interface {
	bm25Search(collection, query string, k int) []candidate
}

// Retriever implements the Knowledge Retriever contract: dense + BM25
// candidate generation, optional LLM query rewrite, de-duplication, a
// top-3*k cut, and optional LLM rerank.
type Retriever struct {
	Index    VectorIndex
	Embedder *Embedder
	LLM      llm.Provider
}

// Retrieve never raises into the caller: any step failure degrades that
// step's contribution and the rest of the pipeline continues; a total
// failure yields an empty result.
func (r *Retriever) Retrieve(ctx context.Context, p Params) []Document {
	log := observability.LoggerWithTrace(ctx)
	topK := p.TopK
	if topK <= 0 {
		topK = 5
	}

	count, err := r.Index.Count(ctx, p.Collection)
	if err != nil {
		log.Warn().Err(err).Str("collection", p.Collection).Msg("retrieval_count_failed")
		return nil
	}
	if count == 0 {
		return nil
	}

	queries := []string{p.Query}
	if p.UseQueryRewrite && r.LLM != nil {
		if extra, err := r.rewriteQuery(ctx, p.Query); err != nil {
			log.Warn().Err(err).Msg("retrieval_query_rewrite_failed")
		} else {
			queries = append(queries, extra...)
			if len(queries) > 4 {
				queries = queries[:4]
			}
		}
	}

	var candidatesByContent = make(map[string]candidate)
	for _, q := range queries {
		for _, c := range r.generateCandidates(ctx, q, p, topK) {
			key := dedupeKey(c.content)
			if key == "" {
				continue
			}
			if existing, ok := candidatesByContent[key]; !ok || c.score > existing.score {
				candidatesByContent[key] = c
			}
		}
	}

	merged := make([]candidate, 0, len(candidatesByContent))
	for _, c := range candidatesByContent {
		merged = append(merged, c)
	}
	sortCandidatesByScore(merged)
	cut := topK * 3
	if cut > 0 && len(merged) > cut {
		merged = merged[:cut]
	}

	reranked := false
	if p.UseRerank && r.LLM != nil && len(merged) > 0 {
		if order, err := r.rerank(ctx, p.Query, merged); err != nil {
			log.Warn().Err(err).Msg("retrieval_rerank_failed")
		} else {
			merged = order
			reranked = true
		}
	}

	if len(merged) > topK {
		merged = merged[:topK]
	}

	docs := make([]Document, 0, len(merged))
	for _, c := range merged {
		md := make(map[string]string, len(c.metadata)+3)
		for k, v := range c.metadata {
			md[k] = v
		}
		md["retrieval_method"] = retrievalMethod(c)
		md["hybrid_search"] = boolString(p.UseHybridSearch)
		md["reranked"] = boolString(reranked)
		docs = append(docs, Document{ID: c.id, Content: c.content, Metadata: md, Score: c.score})
	}
	return docs
}

func retrievalMethod(c candidate) string {
	switch {
	case c.dense && c.lexical:
		return "hybrid"
	case c.lexical:
		return "bm25"
	default:
		return "dense"
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func dedupeKey(content string) string {
	if len(content) > 100 {
		return content[:100]
	}
	return content
}

func (r *Retriever) generateCandidates(ctx context.Context, query string, p Params, topK int) []candidate {
	var dense, lexical []candidate

	vecs, err := r.Embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("retrieval_embed_failed")
	} else if len(vecs) == 1 {
		hits, err := r.Index.Search(ctx, p.Collection, vecs[0], topK*2, p.Filter)
		if err != nil {
			observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("retrieval_dense_search_failed")
		} else {
			dense = hits
		}
	}

	if p.UseHybridSearch {
		if ls, ok := r.Index.(lexicalSearcher); ok {
			hits := ls.bm25Search(p.Collection, query, topK*2)
			if max := maxScore(hits); max > 0 {
				for i := range hits {
					hits[i].score /= max
				}
			}
			lexical = hits
		}
	}

	return append(dense, lexical...)
}

// rewriteQuery asks the LLM for up to 3 alternative phrasings.
func (r *Retriever) rewriteQuery(ctx context.Context, query string) ([]string, error) {
	msg, err := r.LLM.Invoke(ctx, []llm.Message{
		{Role: "system", Content: "Rewrite the user's search query into up to 3 alternative phrasings that would help retrieve the same information. Respond with a JSON array of strings only."},
		{Role: "user", Content: query},
	})
	if err != nil {
		return nil, &state.RetrievalError{Op: "retrieval.rewrite", Err: err}
	}
	var out []string
	if err := json.Unmarshal([]byte(extractJSONArray(msg.Content)), &out); err != nil {
		return nil, &state.RetrievalError{Op: "retrieval.rewrite.parse", Err: err}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out, nil
}

// rerank presents the candidate shortlist to the LLM and asks for
// descending-relevance indices. Falls back to score order if unparsable.
func (r *Retriever) rerank(ctx context.Context, query string, cands []candidate) ([]candidate, error) {
	msg, err := r.LLM.Invoke(ctx, []llm.Message{
		{Role: "system", Content: "Given a query and a numbered list of candidate passages, return a JSON array of the 0-based indices ordered from most to least relevant to the query."},
		{Role: "user", Content: "Query: " + query + "\n\nCandidates:\n" + numberedList(cands)},
	})
	if err != nil {
		return nil, &state.RetrievalError{Op: "retrieval.rerank", Err: err}
	}
	var order []int
	if err := json.Unmarshal([]byte(extractJSONArray(msg.Content)), &order); err != nil {
		return nil, &state.RetrievalError{Op: "retrieval.rerank.parse", Err: err}
	}
	out := make([]candidate, 0, len(cands))
	seen := make(map[int]bool)
	for _, idx := range order {
		if idx < 0 || idx >= len(cands) || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, cands[idx])
	}
	if len(out) == 0 {
		return nil, &state.RetrievalError{Op: "retrieval.rerank.empty", Err: errEmptyRerank}
	}
	return out, nil
}

func numberedList(cands []candidate) string {
	var sb strings.Builder
	for i, c := range cands {
		sb.WriteString(itoaIndex(i))
		sb.WriteString(": ")
		sb.WriteString(strings.TrimSpace(strings.ReplaceAll(c.content, "\n", " ")))
		sb.WriteString("\n")
	}
	return sb.String()
}

func itoaIndex(i int) string {
	return strconv.Itoa(i)
}

// extractJSONArray trims surrounding prose/markdown fences the model may
// add around the JSON array it was asked for.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end < start {
		return "[]"
	}
	return s[start : end+1]
}

// AddDocuments embeds texts in batches and appends them to the collection,
// atomically re-saving the dense index and rebuilding BM25, per the
// documented addition algorithm.
func (r *Retriever) AddDocuments(ctx context.Context, collection string, ids, texts []string, metadatas []map[string]string) error {
	vecs, err := r.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range ids {
		i := i
		g.Go(func() error {
			var md map[string]string
			if i < len(metadatas) {
				md = metadatas[i]
			}
			return r.Index.Upsert(gctx, collection, ids[i], vecs[i], texts[i], md)
		})
	}
	return g.Wait()
}

// DeleteDocument removes id from collection; the dense index drops the row
// and BM25 rebuilds from what remains.
func (r *Retriever) DeleteDocument(ctx context.Context, collection, id string) error {
	return r.Index.Delete(ctx, collection, id)
}

// UpdateDocument re-embeds and re-upserts id, replacing its prior vector
// and content in place.
func (r *Retriever) UpdateDocument(ctx context.Context, collection, id, text string, metadata map[string]string) error {
	vecs, err := r.Embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return err
	}
	return r.Index.Upsert(ctx, collection, id, vecs[0], text, metadata)
}
