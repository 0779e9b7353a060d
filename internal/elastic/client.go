// Package elastic wraps the official Elasticsearch client behind a small
// interface so handlers and the health monitor interact with the cluster in
// one place (and metrics only hook in here).
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/searchbox/searchbox/internal/logging"
	"github.com/searchbox/searchbox/internal/metrics"
)

// ErrNotFound is returned when a document ID does not exist in the index.
var ErrNotFound = errors.New("document not found")

// Hit is a single document returned from the index.
type Hit struct {
	ID     string                 `json:"id"`
	Source map[string]interface{} `json:"source"`
}

// Store is the interface the HTTP layer and the health monitor use for all
// cluster operations.
type Store interface {
	Ping(ctx context.Context) error
	EnsureIndex(ctx context.Context, index string, mapping map[string]interface{}) error
	IndexDocument(ctx context.Context, index string, doc interface{}) (string, error)
	GetDocument(ctx context.Context, index, id string) (map[string]interface{}, error)
	DeleteDocument(ctx context.Context, index, id string) error
	ListDocuments(ctx context.Context, index string, limit, offset int) ([]Hit, error)
	SearchDocuments(ctx context.Context, index, query string, limit, offset int) ([]Hit, error)
}

// Client is the production Store backed by the official SDK.
type Client struct {
	es *elasticsearch.Client
}

var _ Store = (*Client)(nil)

// NewClient returns a Store connected to the cluster at url.
func NewClient(url string) (*Client, error) {
	return NewClientWithTransport(url, nil)
}

// NewClientWithTransport returns a Store using a custom HTTP transport
// (used by tests to point at a fake cluster).
func NewClientWithTransport(url string, transport http.RoundTripper) (*Client, error) {
	cfg := elasticsearch.Config{Addresses: []string{url}}
	if transport != nil {
		cfg.Transport = transport
	}
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Client{es: es}, nil
}

// Ping issues a root-endpoint request against the cluster.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("cluster info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("cluster info: status %d", res.StatusCode)
	}
	return nil
}

// EnsureIndex creates the index with the provided mapping when it does not
// exist yet. An existing index is left untouched.
func (c *Client) EnsureIndex(ctx context.Context, index string, mapping map[string]interface{}) error {
	defer observe("ensure_index", time.Now())

	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		metrics.IncStorageError()
		return fmt.Errorf("check index %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		logging.Get().Debug().Str("index", index).Msg("index already exists")
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		metrics.IncStorageError()
		return fmt.Errorf("check index %s: status %d", index, res.StatusCode)
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	createRes, err := c.es.Indices.Create(index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		metrics.IncStorageError()
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		metrics.IncStorageError()
		return fmt.Errorf("create index %s: status %d", index, createRes.StatusCode)
	}
	logging.Get().Info().Str("index", index).Msg("created index")
	return nil
}

// IndexDocument stores doc and returns the cluster-generated document ID.
func (c *Client) IndexDocument(ctx context.Context, index string, doc interface{}) (string, error) {
	defer observe("index", time.Now())

	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	res, err := c.es.Index(index, bytes.NewReader(body), c.es.Index.WithContext(ctx))
	if err != nil {
		metrics.IncStorageError()
		return "", fmt.Errorf("index document: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		metrics.IncStorageError()
		return "", fmt.Errorf("index document: status %d", res.StatusCode)
	}

	var out struct {
		ID string `json:"_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode index response: %w", err)
	}
	return out.ID, nil
}

// GetDocument returns the source of the document with the given ID, or
// ErrNotFound when the ID is unknown.
func (c *Client) GetDocument(ctx context.Context, index, id string) (map[string]interface{}, error) {
	defer observe("get", time.Now())

	res, err := c.es.Get(index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		metrics.IncStorageError()
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if res.IsError() {
		metrics.IncStorageError()
		return nil, fmt.Errorf("get document %s: status %d", id, res.StatusCode)
	}

	var out struct {
		Source map[string]interface{} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode get response: %w", err)
	}
	return out.Source, nil
}

// DeleteDocument removes the document with the given ID, or returns
// ErrNotFound when the ID is unknown.
func (c *Client) DeleteDocument(ctx context.Context, index, id string) error {
	defer observe("delete", time.Now())

	res, err := c.es.Delete(index, id, c.es.Delete.WithContext(ctx))
	if err != nil {
		metrics.IncStorageError()
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.IsError() {
		metrics.IncStorageError()
		return fmt.Errorf("delete document %s: status %d", id, res.StatusCode)
	}
	return nil
}

// ListDocuments returns all documents (match_all) with from/size paging.
func (c *Client) ListDocuments(ctx context.Context, index string, limit, offset int) ([]Hit, error) {
	defer observe("list", time.Now())
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"match_all": map[string]interface{}{},
		},
	}
	return c.search(ctx, index, q, limit, offset)
}

// SearchDocuments returns documents whose text field matches the query.
func (c *Client) SearchDocuments(ctx context.Context, index, query string, limit, offset int) ([]Hit, error) {
	defer observe("search", time.Now())
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"text": query,
			},
		},
	}
	return c.search(ctx, index, q, limit, offset)
}

// search runs a query body against the index and flattens hits.
func (c *Client) search(ctx context.Context, index string, query map[string]interface{}, limit, offset int) ([]Hit, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(body)),
		c.es.Search.WithSize(limit),
		c.es.Search.WithFrom(offset),
	)
	if err != nil {
		metrics.IncStorageError()
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		metrics.IncStorageError()
		return nil, fmt.Errorf("search %s: status %d", index, res.StatusCode)
	}

	var out struct {
		Hits struct {
			Hits []struct {
				ID     string                 `json:"_id"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]Hit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		hits = append(hits, Hit{ID: h.ID, Source: h.Source})
	}
	return hits, nil
}

func observe(op string, start time.Time) {
	metrics.ObserveStorageOp(op, time.Since(start).Seconds())
}
