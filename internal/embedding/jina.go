package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hmemcore/hmem/internal/models"
)

// JinaClient generates text embeddings via the Jina AI embeddings API,
// following the teacher's OllamaClient shape (model + timeout
// http.Client, one POST-and-decode embed call).
type JinaClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewJinaClient creates a client for jinaModel (default per spec.md §6:
// "jina-embeddings-v5-text-small").
func NewJinaClient(apiKey, model string) *JinaClient {
	return &JinaClient{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type jinaEmbedRequest struct {
	Model string   `json:"model"`
	Task  string   `json:"task"`
	Input []string `json:"input"`
}

type jinaEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// jinaEndpoint is a var rather than a const so tests can point it at a
// local httptest server.
var jinaEndpoint = "https://api.jina.ai/v1/embeddings"

// Embed generates a single embedding vector for text.
func (c *JinaClient) Embed(text string, task models.EmbeddingTask) ([]float32, error) {
	vecs, err := c.EmbedBatch([]string{text}, task)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("jina returned no embeddings")
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (c *JinaClient) EmbedBatch(texts []string, task models.EmbeddingTask) ([][]float32, error) {
	reqBody := jinaEmbedRequest{
		Model: c.model,
		Task:  string(task),
		Input: texts,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, jinaEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jina embed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jina embed: status %d: %s", resp.StatusCode, string(body))
	}

	var result jinaEmbedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("jina returned no embeddings")
	}

	out := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
