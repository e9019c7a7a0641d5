package retrieval

import (
	"math"
	"strings"
	"sync"
)

// bm25Index is a hand-rolled Okapi BM25 index over whitespace-tokenized
// document text. No BM25 implementation appears anywhere in the retrieved
// reference corpus, so this is grounded on the textbook Okapi BM25 formula
// rather than on any example file.
//
// k1 and b are the standard Robertson/Sparck-Jones defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type bm25Doc struct {
	id     string
	terms  map[string]int
	length int
}

// bm25Index is rebuilt from scratch on every add/update/delete, per the
// retriever's documented algorithm.
type bm25Index struct {
	mu       sync.RWMutex
	docs     map[string]*bm25Doc
	order    []string
	df       map[string]int
	totalLen int
}

func newBM25Index() *bm25Index {
	return &bm25Index{docs: make(map[string]*bm25Doc), df: make(map[string]int)}
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// rebuild recomputes document frequencies from the full corpus. Callers
// hold mu.
func (b *bm25Index) rebuild(corpus map[string]string) {
	b.docs = make(map[string]*bm25Doc, len(corpus))
	b.df = make(map[string]int)
	b.order = b.order[:0]
	b.totalLen = 0

	for id, text := range corpus {
		terms := make(map[string]int)
		toks := tokenize(text)
		for _, tok := range toks {
			terms[tok]++
		}
		doc := &bm25Doc{id: id, terms: terms, length: len(toks)}
		b.docs[id] = doc
		b.order = append(b.order, id)
		b.totalLen += doc.length
		for term := range terms {
			b.df[term]++
		}
	}
}

func (b *bm25Index) avgDocLen() float64 {
	if len(b.docs) == 0 {
		return 0
	}
	return float64(b.totalLen) / float64(len(b.docs))
}

func (b *bm25Index) idf(term string) float64 {
	n := float64(len(b.docs))
	df := float64(b.df[term])
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// search returns up to k (id, score) pairs ranked by BM25 score for query.
func (b *bm25Index) search(query string, k int) []candidate {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.docs) == 0 {
		return nil
	}
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}
	avgLen := b.avgDocLen()

	scores := make(map[string]float64, len(b.docs))
	for _, term := range queryTerms {
		idf := b.idf(term)
		if idf <= 0 {
			continue
		}
		for id, doc := range b.docs {
			tf := float64(doc.terms[term])
			if tf == 0 {
				continue
			}
			denom := tf + bm25K1*(1-bm25B+bm25B*float64(doc.length)/avgLen)
			scores[id] += idf * (tf * (bm25K1 + 1)) / denom
		}
	}

	out := make([]candidate, 0, len(scores))
	for id, score := range scores {
		if score <= 0 {
			continue
		}
		out = append(out, candidate{id: id, score: score, lexical: true})
	}
	sortCandidatesByScore(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func maxScore(cands []candidate) float64 {
	max := 0.0
	for _, c := range cands {
		if c.score > max {
			max = c.score
		}
	}
	return max
}
