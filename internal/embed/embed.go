// Package embed turns texts into vectors with a registry embedding model.
package embed

import (
	"context"
	"fmt"

	"github.com/kalambet/llmcore/internal/llm"
	"github.com/kalambet/llmcore/internal/provider"
	"github.com/kalambet/llmcore/internal/transport"
)

const (
	DefaultChunkSize   = 64
	DefaultConcurrency = 4
)

// Embedder sends texts to an embedding model in chunks, several chunks at a
// time.
type Embedder struct {
	model       llm.ModelInfo
	prov        provider.Provider
	client      *transport.Client
	chunkSize   int
	concurrency int
}

type Option func(*Embedder)

// WithChunkSize sets how many texts go into one request.
func WithChunkSize(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithConcurrency sets how many requests may be in flight.
func WithConcurrency(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New returns an embedder for model. Providers without embedding support are
// rejected with llm.ErrNotSupported.
func New(model llm.ModelInfo, client *transport.Client, opts ...Option) (*Embedder, error) {
	prov := provider.For(model.Provider)
	if !prov.SupportsEmbeddings(model.ModelTag) {
		return nil, fmt.Errorf("embedding with %s (%s): %w", model.Name, model.Provider, llm.ErrNotSupported)
	}
	if client == nil {
		client = transport.New(transport.DefaultRetryPolicy())
	}
	e := &Embedder{
		model:       model,
		prov:        prov,
		client:      client,
		chunkSize:   DefaultChunkSize,
		concurrency: DefaultConcurrency,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Model returns the embedding model.
func (e *Embedder) Model() llm.ModelInfo { return e.model }

// Embed returns one vector per text, in input order. The first failing chunk
// fails the whole call.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	url, err := e.prov.EmbeddingURL(e.model.BaseURL, e.model.ModelTag, e.model.APIKey)
	if err != nil {
		return nil, err
	}
	header := e.prov.RequestHeaders(e.model.APIKey)

	var chunks [][]string
	for start := 0; start < len(texts); start += e.chunkSize {
		chunks = append(chunks, texts[start:min(start+e.chunkSize, len(texts))])
	}

	reqs := make([]transport.Request, len(chunks))
	for i, chunk := range chunks {
		body, err := e.prov.PrepareEmbeddingRequest(e.model.ModelTag, chunk)
		if err != nil {
			return nil, err
		}
		reqs[i] = transport.Request{URL: url, Header: header, Body: body}
	}

	out := make([][]float32, 0, len(texts))
	for i, res := range e.client.Batch(ctx, reqs, e.concurrency) {
		if res.Err != nil {
			return nil, fmt.Errorf("embedding chunk %d: %w", i, res.Err)
		}
		vecs, err := e.prov.ParseEmbeddingResponse(res.Body)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %d: %w", i, err)
		}
		if len(vecs) != len(chunks[i]) {
			return nil, llm.ParseError("embedding chunk %d: got %d vectors for %d texts", i, len(vecs), len(chunks[i]))
		}
		if d := e.model.Dimensions; d > 0 {
			for _, v := range vecs {
				if len(v) != d {
					return nil, llm.ParseError("embedding chunk %d: vector has %d dimensions, want %d", i, len(v), d)
				}
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}
