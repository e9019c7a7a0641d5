package retrieval

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/northstar-market/concierge/internal/state"
)

func sortCandidatesByScore(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
}

type storedVector struct {
	ID       string            `json:"id"`
	Vector   []float32         `json:"vector"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// companionFile is the on-disk JSON file for one collection, holding each
// entry's id, vector, content and metadata. Entries are written in map
// iteration order; insertion order is not preserved.
type companionFile struct {
	Vectors []storedVector `json:"vectors"`
}

// localIndex is an on-disk dense + BM25 index for single-node deployments
// that don't run Qdrant. It persists the dense vectors to disk after every
// mutation and rebuilds the BM25 index from the full corpus each time, per
// the documented algorithm.
type localIndex struct {
	mu       sync.RWMutex
	dir      string
	vectors  map[string]map[string]storedVector // collection -> id -> vector
	bm25     map[string]*bm25Index              // collection -> index
}

// NewLocalIndex returns a VectorIndex that persists collections as JSON
// files under dir.
func NewLocalIndex(dir string) (VectorIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &state.IOError{Op: "retrieval.local.mkdir", Err: err}
	}
	idx := &localIndex{
		dir:     dir,
		vectors: make(map[string]map[string]storedVector),
		bm25:    make(map[string]*bm25Index),
	}
	return idx, nil
}

func (l *localIndex) path(collection string) string {
	return filepath.Join(l.dir, collection+".json")
}

// loadLocked reads collection into l.vectors/l.bm25 if it isn't already
// cached. Callers must hold l.mu for writing.
func (l *localIndex) loadLocked(collection string) map[string]storedVector {
	if m, ok := l.vectors[collection]; ok {
		return m
	}
	m := make(map[string]storedVector)
	data, err := os.ReadFile(l.path(collection))
	if err == nil {
		var cf companionFile
		if json.Unmarshal(data, &cf) == nil {
			for _, v := range cf.Vectors {
				m[v.ID] = v
			}
		}
	}
	l.vectors[collection] = m
	l.rebuildBM25Locked(collection)
	return m
}

// ensureLoaded guarantees collection is present in l.vectors/l.bm25,
// loading it from disk on first access. Double-checked so the common
// warm-cache path only takes a read lock; concurrent cold-start callers
// (e.g. two simultaneous Search calls against a collection that hasn't
// been touched yet) never race on the write path in loadLocked.
func (l *localIndex) ensureLoaded(collection string) {
	l.mu.RLock()
	_, ok := l.vectors[collection]
	l.mu.RUnlock()
	if ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadLocked(collection)
}

func (l *localIndex) rebuildBM25Locked(collection string) {
	corpus := make(map[string]string, len(l.vectors[collection]))
	for id, v := range l.vectors[collection] {
		corpus[id] = v.Content
	}
	idx := newBM25Index()
	idx.rebuild(corpus)
	l.bm25[collection] = idx
}

func (l *localIndex) saveLocked(collection string) error {
	m := l.vectors[collection]
	cf := companionFile{Vectors: make([]storedVector, 0, len(m))}
	for _, v := range m {
		cf.Vectors = append(cf.Vectors, v)
	}
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return &state.IOError{Op: "retrieval.local.encode", Err: err}
	}
	tmp := l.path(collection) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &state.IOError{Op: "retrieval.local.write", Err: err}
	}
	if err := os.Rename(tmp, l.path(collection)); err != nil {
		return &state.IOError{Op: "retrieval.local.rename", Err: err}
	}
	return nil
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func innerProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func (l *localIndex) Upsert(ctx context.Context, collection, id string, vector []float32, content string, metadata map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.loadLocked(collection)
	m[id] = storedVector{ID: id, Vector: normalize(vector), Content: content, Metadata: metadata}
	l.vectors[collection] = m
	if err := l.saveLocked(collection); err != nil {
		return err
	}
	l.rebuildBM25Locked(collection)
	return nil
}

func (l *localIndex) Delete(ctx context.Context, collection, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.loadLocked(collection)
	delete(m, id)
	l.vectors[collection] = m
	if err := l.saveLocked(collection); err != nil {
		return err
	}
	l.rebuildBM25Locked(collection)
	return nil
}

func (l *localIndex) Count(ctx context.Context, collection string) (int, error) {
	l.ensureLoaded(collection)
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.vectors[collection]), nil
}

func matchesFilter(md, filter map[string]string) bool {
	for k, v := range filter {
		if md[k] != v {
			return false
		}
	}
	return true
}

func (l *localIndex) Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]candidate, error) {
	l.ensureLoaded(collection)
	l.mu.RLock()
	defer l.mu.RUnlock()
	m := l.vectors[collection]
	q := normalize(vector)
	out := make([]candidate, 0, len(m))
	for id, v := range m {
		if !matchesFilter(v.Metadata, filter) {
			continue
		}
		score := innerProduct(q, v.Vector)
		out = append(out, candidate{id: id, content: v.Content, metadata: v.Metadata, score: score, dense: true})
	}
	sortCandidatesByScore(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// bm25Search exposes the collection's lexical index to the retriever.
func (l *localIndex) bm25Search(collection, query string, k int) []candidate {
	l.ensureLoaded(collection)
	l.mu.RLock()
	idx := l.bm25[collection]
	m := l.vectors[collection]
	l.mu.RUnlock()
	if idx == nil {
		return nil
	}
	hits := idx.search(query, k)
	for i := range hits {
		if v, ok := m[hits[i].id]; ok {
			hits[i].content = v.Content
			hits[i].metadata = v.Metadata
		}
	}
	return hits
}
