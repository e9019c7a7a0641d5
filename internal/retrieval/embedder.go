package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/northstar-market/concierge/internal/state"
)

// embedBatchSize is the external embedding service's per-request cap;
// Embedder.EmbedBatch chunks larger inputs into groups of this size.
const embedBatchSize = 10

// Embedder calls an OpenAI-compatible embeddings endpoint.
type Embedder struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewEmbedder builds an Embedder against an OpenAI-compatible
// /embeddings endpoint.
func NewEmbedder(httpClient *http.Client, baseURL, apiKey, model string) *Embedder {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Embedder{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey, model: model}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// embedOne performs a single request for up to embedBatchSize inputs.
func (e *Embedder) embedOne(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: inputs})
	if err != nil {
		return nil, &state.RetrievalError{Op: "embed.encode", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &state.RetrievalError{Op: "embed.request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &state.RetrievalError{Op: "embed.do", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &state.RetrievalError{Op: "embed.status", Err: fmt.Errorf("%s: %s", resp.Status, string(b))}
	}
	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, &state.RetrievalError{Op: "embed.decode", Err: err}
	}
	if len(er.Data) != len(inputs) {
		return nil, &state.RetrievalError{Op: "embed.count", Err: fmt.Errorf("got %d embeddings, want %d", len(er.Data), len(inputs))}
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

// EmbedBatch embeds inputs in chunks of embedBatchSize, preserving order.
func (e *Embedder) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		chunk, err := e.embedOne(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}
