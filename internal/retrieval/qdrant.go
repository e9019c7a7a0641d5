package retrieval

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/northstar-market/concierge/internal/state"
)

// payloadIDField stores the caller-supplied document id in the point
// payload, since Qdrant only accepts UUIDs/integers as point ids.
const payloadIDField = "_original_id"
const payloadContentField = "_content"

// qdrantIndex is the production VectorIndex backend: one Qdrant collection
// per named collection (knowledge_base, product_catalog), each created
// on demand with a cosine-distance space sized to cfg.Dimensions.
type qdrantIndex struct {
	client     *qdrant.Client
	dimensions int
	ensured    map[string]bool
}

// NewQdrantIndex connects to dsn (host:port, or http(s)://host:port with an
// optional ?api_key=... query parameter) and prepares a VectorIndex whose
// collections are created lazily on first use.
func NewQdrantIndex(dsn string, dimensions int) (VectorIndex, error) {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.Host == "" {
		// A bare host:port has no scheme; parse it as an authority.
		parsed, err = url.Parse("//" + dsn)
	}
	if err != nil {
		return nil, &state.IOError{Op: "retrieval.qdrant.parse_dsn", Err: err}
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, &state.IOError{Op: "retrieval.qdrant.parse_port", Err: err}
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, &state.IOError{Op: "retrieval.qdrant.connect", Err: err}
	}
	return &qdrantIndex{client: client, dimensions: dimensions, ensured: make(map[string]bool)}, nil
}

func (q *qdrantIndex) pointID(id string) (string, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), true
}

func (q *qdrantIndex) ensureCollection(ctx context.Context, collection string) error {
	if q.ensured[collection] {
		return nil
	}
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if !exists {
		if q.dimensions <= 0 {
			return fmt.Errorf("qdrant requires dimensions > 0")
		}
		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	q.ensured[collection] = true
	return nil
}

func (q *qdrantIndex) Upsert(ctx context.Context, collection, id string, vector []float32, content string, metadata map[string]string) error {
	if err := q.ensureCollection(ctx, collection); err != nil {
		return &state.IOError{Op: "retrieval.qdrant.upsert", Err: err}
	}
	uuidStr, remapped := q.pointID(id)
	payload := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		payload[k] = v
	}
	payload[payloadContentField] = content
	if remapped {
		payload[payloadIDField] = id
	}
	vec := make([]float32, len(vector))
	copy(vec, normalize(vector))
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(uuidStr),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return &state.IOError{Op: "retrieval.qdrant.upsert", Err: err}
	}
	return nil
}

func (q *qdrantIndex) Delete(ctx context.Context, collection, id string) error {
	uuidStr, _ := q.pointID(id)
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(uuidStr)),
	})
	if err != nil {
		return &state.IOError{Op: "retrieval.qdrant.delete", Err: err}
	}
	return nil
}

func (q *qdrantIndex) Count(ctx context.Context, collection string) (int, error) {
	if err := q.ensureCollection(ctx, collection); err != nil {
		return 0, &state.IOError{Op: "retrieval.qdrant.count", Err: err}
	}
	n, err := q.client.Count(ctx, &qdrant.CountPoints{CollectionName: collection})
	if err != nil {
		return 0, &state.IOError{Op: "retrieval.qdrant.count", Err: err}
	}
	return int(n), nil
}

func (q *qdrantIndex) Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]candidate, error) {
	if err := q.ensureCollection(ctx, collection); err != nil {
		return nil, &state.IOError{Op: "retrieval.qdrant.search", Err: err}
	}
	if k <= 0 {
		k = 10
	}
	var qfilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		qfilter = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	vec := make([]float32, len(vector))
	copy(vec, normalize(vector))
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         qfilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &state.IOError{Op: "retrieval.qdrant.search", Err: err}
	}
	out := make([]candidate, 0, len(hits))
	for _, hit := range hits {
		id := hit.Id.GetUuid()
		metadata := make(map[string]string)
		var content, originalID string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				switch k {
				case payloadIDField:
					originalID = v.GetStringValue()
				case payloadContentField:
					content = v.GetStringValue()
				default:
					metadata[k] = v.GetStringValue()
				}
			}
		}
		if originalID != "" {
			id = originalID
		}
		out = append(out, candidate{id: id, content: content, metadata: metadata, score: float64(hit.Score), dense: true})
	}
	return out, nil
}
